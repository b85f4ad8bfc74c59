package stealth

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// MouseConfig holds configuration for human-like mouse movement
type MouseConfig struct {
	// Movement speed (base duration in ms for a "standard" move)
	BaseSpeedMs int

	// Number of steps for the curve. 8-15 looks human, 50+ does not.
	MinSteps int
	MaxSteps int

	OvershootChance   float64 // probability of overshooting (0.0-1.0)
	OvershootDistance float64 // max overshoot as fraction of total distance

	// CurveVariance is how far control points stray: 0.0 = straight line, 0.3 = natural curve
	CurveVariance float64

	JitterEnabled bool
	JitterAmount  float64 // pixels
}

// DefaultMouseConfig returns balanced settings for human-like movement
func DefaultMouseConfig() *MouseConfig {
	return &MouseConfig{
		BaseSpeedMs:       150,
		MinSteps:          8,
		MaxSteps:          14,
		OvershootChance:   0.15,
		OvershootDistance: 0.08,
		CurveVariance:     0.25,
		JitterEnabled:     true,
		JitterAmount:      1.5,
	}
}

// Mouse clicks elements by moving the cursor along a curved path first
type Mouse struct {
	cfg   *MouseConfig
	rnd   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// NewMouse creates a Mouse. sleep must honour ctx cancellation.
func NewMouse(cfg *MouseConfig, rnd *rand.Rand, sleep func(ctx context.Context, d time.Duration) error) *Mouse {
	if cfg == nil {
		cfg = DefaultMouseConfig()
	}
	return &Mouse{cfg: cfg, rnd: rnd, sleep: sleep}
}

// Click moves to el and clicks it. Elements without a box model get a plain click.
func (m *Mouse) Click(ctx context.Context, page *rod.Page, el *rod.Element) error {
	target, ok := m.target(el)
	if !ok {
		return el.Click(proto.InputMouseButtonLeft, 1)
	}

	from := page.Mouse.Position()
	if from.X == 0 && from.Y == 0 {
		start, err := m.startPoint(page)
		if err != nil {
			return el.Click(proto.InputMouseButtonLeft, 1)
		}
		if err := page.Mouse.MoveTo(start); err != nil {
			return err
		}
		from = start
	}

	path := m.Path(from, target)
	stepDelay := m.stepDelay(distance(from, target), len(path))
	for _, pt := range path {
		if err := page.Mouse.MoveTo(pt); err != nil {
			return err
		}
		if err := m.sleep(ctx, m.jitterDelay(stepDelay)); err != nil {
			return err
		}
	}

	// reaction time before the press
	if err := m.sleep(ctx, time.Duration(30+m.rnd.Intn(70))*time.Millisecond); err != nil {
		return err
	}
	return page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

// target is a point near the centre of the element's first quad
func (m *Mouse) target(el *rod.Element) (proto.Point, bool) {
	shape, err := el.Shape()
	if err != nil || shape == nil || len(shape.Quads) == 0 {
		return proto.Point{}, false
	}
	quad := shape.Quads[0]
	if len(quad) < 8 {
		return proto.Point{}, false
	}

	x := (quad[0] + quad[2] + quad[4] + quad[6]) / 4
	y := (quad[1] + quad[3] + quad[5] + quad[7]) / 4

	// don't always click dead centre
	width := math.Abs(quad[2] - quad[0])
	height := math.Abs(quad[5] - quad[1])
	x += (m.rnd.Float64() - 0.5) * width * 0.3
	y += (m.rnd.Float64() - 0.5) * height * 0.3

	return proto.Point{X: x, Y: y}, true
}

// startPoint is a random spot in the middle of the viewport
func (m *Mouse) startPoint(page *rod.Page) (proto.Point, error) {
	res, err := page.Eval(`() => ({ width: window.innerWidth, height: window.innerHeight })`)
	if err != nil {
		return proto.Point{}, err
	}
	width := res.Value.Get("width").Num()
	height := res.Value.Get("height").Num()

	return proto.Point{
		X: width * (0.3 + m.rnd.Float64()*0.4),
		Y: height * (0.3 + m.rnd.Float64()*0.4),
	}, nil
}

// Path returns the points the cursor visits on its way from one point to the
// other. The last point is always the destination.
func (m *Mouse) Path(from, to proto.Point) []proto.Point {
	dist := distance(from, to)
	if dist < 5 {
		return []proto.Point{to}
	}

	steps := m.cfg.MinSteps + int(dist/100)
	if steps > m.cfg.MaxSteps {
		steps = m.cfg.MaxSteps
	}
	if steps < 1 {
		steps = 1
	}

	ctrl1, ctrl2 := m.controlPoints(from, to)
	path := make([]proto.Point, 0, steps+4)
	for i := 1; i <= steps; i++ {
		t := easeInOutQuad(float64(i) / float64(steps))
		pos := cubicBezier(from, ctrl1, ctrl2, to, t)

		if m.cfg.JitterEnabled && i < steps {
			pos.X += (m.rnd.Float64() - 0.5) * m.cfg.JitterAmount
			pos.Y += (m.rnd.Float64() - 0.5) * m.cfg.JitterAmount
		}
		path = append(path, pos)
	}

	if m.rnd.Float64() < m.cfg.OvershootChance {
		path = append(path, m.overshoot(to, dist)...)
	}
	return path
}

// overshoot passes the target and comes back to it in 2-3 short steps
func (m *Mouse) overshoot(target proto.Point, dist float64) []proto.Point {
	by := dist * m.cfg.OvershootDistance * (0.5 + m.rnd.Float64()*0.5)
	angle := m.rnd.Float64() * 2 * math.Pi
	past := proto.Point{
		X: target.X + math.Cos(angle)*by,
		Y: target.Y + math.Sin(angle)*by,
	}

	points := []proto.Point{past}
	steps := 2 + m.rnd.Intn(2)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		points = append(points, proto.Point{
			X: past.X + (target.X-past.X)*t,
			Y: past.Y + (target.Y-past.Y)*t,
		})
	}
	return points
}

// controlPoints bends the path by offsetting two points perpendicular to it
func (m *Mouse) controlPoints(from, to proto.Point) (proto.Point, proto.Point) {
	dx := to.X - from.X
	dy := to.Y - from.Y
	dist := math.Sqrt(dx*dx + dy*dy)

	perpX := -dy / dist
	perpY := dx / dist

	offset1 := (m.rnd.Float64() - 0.5) * 2 * m.cfg.CurveVariance * dist
	offset2 := (m.rnd.Float64() - 0.5) * 2 * m.cfg.CurveVariance * dist

	return proto.Point{X: from.X + dx*0.3 + perpX*offset1, Y: from.Y + dy*0.3 + perpY*offset1},
		proto.Point{X: from.X + dx*0.7 + perpX*offset2, Y: from.Y + dy*0.7 + perpY*offset2}
}

func (m *Mouse) stepDelay(dist float64, steps int) time.Duration {
	if steps < 1 {
		steps = 1
	}
	total := time.Duration(float64(time.Duration(m.cfg.BaseSpeedMs)*time.Millisecond) * (0.8 + dist/500))
	return total / time.Duration(steps)
}

func (m *Mouse) jitterDelay(d time.Duration) time.Duration {
	d += time.Duration(m.rnd.Intn(10)-5) * time.Millisecond
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}

func distance(a, b proto.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// cubicBezier calculates a point on a cubic Bézier curve
func cubicBezier(p0, p1, p2, p3 proto.Point, t float64) proto.Point {
	// B(t) = (1-t)³P0 + 3(1-t)²tP1 + 3(1-t)t²P2 + t³P3
	mt := 1 - t
	mt2 := mt * mt
	mt3 := mt2 * mt
	t2 := t * t
	t3 := t2 * t

	return proto.Point{
		X: mt3*p0.X + 3*mt2*t*p1.X + 3*mt*t2*p2.X + t3*p3.X,
		Y: mt3*p0.Y + 3*mt2*t*p1.Y + 3*mt*t2*p2.Y + t3*p3.Y,
	}
}

// easeInOutQuad: slow start, fast middle, slow end
func easeInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}
