// Package drivertest provides scripted in-memory fakes of the driver interfaces
package drivertest

import (
	"context"
	"fmt"
	"time"

	"github.com/Nehilsa2/query_runner/driver"
)

// Launcher hands out Session, or fails with Err
type Launcher struct {
	Session *Session
	Err     error
	Starts  int
}

// Start implements driver.Launcher
func (l *Launcher) Start(ctx context.Context) (driver.Session, error) {
	l.Starts++
	if l.Err != nil {
		return nil, l.Err
	}
	if l.Session == nil {
		l.Session = NewSession()
	}
	return l.Session, nil
}

// Session records every call made against it in Calls
type Session struct {
	Calls []string

	NavigateErr error
	MaximizeErr error
	QuitErr     error

	// Missing locators time out with driver.ErrTimeout
	Missing map[driver.Locator]bool
	// WaitHook, when set, decides the outcome of the n-th wait (1-based) for loc
	WaitHook func(loc driver.Locator, n int) error

	ClearErr    error
	SendTextErr error
	SubmitErr   error
	ClickErr    error

	Typed   []string
	Submits int
	Clicks  int
	Quits   int
	Waits   []time.Duration

	counts map[driver.Locator]int
}

// NewSession returns a session where every element is present
func NewSession() *Session {
	return &Session{
		Missing: map[driver.Locator]bool{},
		counts:  map[driver.Locator]int{},
	}
}

func (s *Session) record(format string, args ...any) {
	s.Calls = append(s.Calls, fmt.Sprintf(format, args...))
}

// Navigate implements driver.Session
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.record("navigate %s", url)
	return s.NavigateErr
}

// Maximize implements driver.Session
func (s *Session) Maximize(ctx context.Context) error {
	s.record("maximize")
	return s.MaximizeErr
}

// WaitPresent implements driver.Session
func (s *Session) WaitPresent(ctx context.Context, loc driver.Locator, timeout time.Duration) (driver.Element, error) {
	s.record("wait_present %s", loc)
	return s.wait(loc, timeout)
}

// WaitClickable implements driver.Session
func (s *Session) WaitClickable(ctx context.Context, loc driver.Locator, timeout time.Duration) (driver.Element, error) {
	s.record("wait_clickable %s", loc)
	return s.wait(loc, timeout)
}

func (s *Session) wait(loc driver.Locator, timeout time.Duration) (driver.Element, error) {
	if s.counts == nil {
		s.counts = map[driver.Locator]int{}
	}
	s.counts[loc]++
	s.Waits = append(s.Waits, timeout)

	if s.WaitHook != nil {
		if err := s.WaitHook(loc, s.counts[loc]); err != nil {
			return nil, err
		}
		return &Element{session: s}, nil
	}
	if s.Missing[loc] {
		return nil, fmt.Errorf("%w: %s", driver.ErrTimeout, loc)
	}
	return &Element{session: s}, nil
}

// Quit implements driver.Session
func (s *Session) Quit() error {
	s.record("quit")
	s.Quits++
	return s.QuitErr
}

// Element writes its interactions back to the owning Session
type Element struct {
	session *Session
}

// Clear implements driver.Element
func (e *Element) Clear() error {
	e.session.record("clear")
	return e.session.ClearErr
}

// SendText implements driver.Element
func (e *Element) SendText(text string) error {
	e.session.record("send %s", text)
	if e.session.SendTextErr != nil {
		return e.session.SendTextErr
	}
	e.session.Typed = append(e.session.Typed, text)
	return nil
}

// Submit implements driver.Element
func (e *Element) Submit() error {
	e.session.record("submit")
	if e.session.SubmitErr != nil {
		return e.session.SubmitErr
	}
	e.session.Submits++
	return nil
}

// Click implements driver.Element
func (e *Element) Click() error {
	e.session.record("click")
	if e.session.ClickErr != nil {
		return e.session.ClickErr
	}
	e.session.Clicks++
	return nil
}
