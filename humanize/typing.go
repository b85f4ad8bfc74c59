package humanize

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Nehilsa2/query_runner/driver"
)

// TypingConfig holds configuration for human-like typing
type TypingConfig struct {
	// Base delay between keystrokes in milliseconds
	BaseDelayMs int
	// Random variation added to base delay (±)
	VariationMs int
	// Probability of a longer "thinking" pause (0-100)
	ThinkPauseProbability int
	// Duration of thinking pause in milliseconds
	ThinkPauseMinMs int
	ThinkPauseMaxMs int
}

// DefaultTypingConfig returns sensible defaults for human-like typing
func DefaultTypingConfig() *TypingConfig {
	return &TypingConfig{
		BaseDelayMs:           80, // ~75 WPM
		VariationMs:           40,
		ThinkPauseProbability: 5,
		ThinkPauseMinMs:       300,
		ThinkPauseMaxMs:       800,
	}
}

// FastTypingConfig returns config for an experienced typist
func FastTypingConfig() *TypingConfig {
	return &TypingConfig{
		BaseDelayMs:           50, // ~100 WPM
		VariationMs:           25,
		ThinkPauseProbability: 3,
		ThinkPauseMinMs:       200,
		ThinkPauseMaxMs:       500,
	}
}

// SlowTypingConfig returns config for a casual typist
func SlowTypingConfig() *TypingConfig {
	return &TypingConfig{
		BaseDelayMs:           120, // ~50 WPM
		VariationMs:           60,
		ThinkPauseProbability: 8,
		ThinkPauseMinMs:       500,
		ThinkPauseMaxMs:       1200,
	}
}

// TypingConfigByName maps "fast", "slow" and "default" to a config
func TypingConfigByName(name string) (*TypingConfig, error) {
	switch name {
	case "", "default":
		return DefaultTypingConfig(), nil
	case "fast":
		return FastTypingConfig(), nil
	case "slow":
		return SlowTypingConfig(), nil
	}
	return nil, fmt.Errorf("unknown typing speed %q", name)
}

// TypeText sends text to el one character at a time with human-like gaps.
// A query typed in one burst has no keystroke rhythm at all.
func TypeText(ctx context.Context, el driver.Element, text string, cfg *TypingConfig, p *Pacer) error {
	if cfg == nil {
		cfg = DefaultTypingConfig()
	}

	position := 0
	for _, char := range text {
		if err := el.SendText(string(char)); err != nil {
			return fmt.Errorf("failed to type character %d: %w", position, err)
		}
		if err := p.Wait(ctx, KeystrokeDelay(p.Rand(), char, cfg, position)); err != nil {
			return err
		}
		position++
	}

	return nil
}

// KeystrokeDelay returns a human-like delay after typing char.
// Word and sentence boundaries, shifted characters and the first key are slower.
func KeystrokeDelay(rnd *rand.Rand, char rune, cfg *TypingConfig, position int) time.Duration {
	baseDelay := cfg.BaseDelayMs

	switch {
	case char == ' ':
		baseDelay = int(float64(baseDelay) * 1.3)
	case char == '.' || char == '!' || char == '?':
		baseDelay = int(float64(baseDelay) * 1.8)
	case char == ',' || char == ';' || char == ':':
		baseDelay = int(float64(baseDelay) * 1.4)
	case char >= 'A' && char <= 'Z':
		baseDelay = int(float64(baseDelay) * 1.2)
	case char >= '0' && char <= '9':
		baseDelay = int(float64(baseDelay) * 1.15)
	case char == '@' || char == '#' || char == '$' || char == '%':
		baseDelay = int(float64(baseDelay) * 1.4)
	}

	if position == 0 {
		baseDelay = int(float64(baseDelay) * 1.5)
	}

	delay := baseDelay
	if cfg.VariationMs > 0 {
		delay += rnd.Intn(cfg.VariationMs*2) - cfg.VariationMs
	}

	if delay < 30 {
		delay = 30
	}

	if rnd.Intn(100) < cfg.ThinkPauseProbability {
		delay += int(RandomMillis(rnd, cfg.ThinkPauseMinMs, cfg.ThinkPauseMaxMs) / time.Millisecond)
	}

	return time.Duration(delay) * time.Millisecond
}
