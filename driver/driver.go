// Package driver describes the browser automation collaborator the query
// runner talks to, and provides a go-rod backed implementation of it.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTimeout is returned when a bounded wait expires before its condition holds
var ErrTimeout = errors.New("bounded wait timed out")

// By selects how a Locator value is interpreted
type By string

const (
	ByID    By = "id"
	ByCSS   By = "css"
	ByXPath By = "xpath"
)

// Locator identifies an element on the page
type Locator struct {
	By    By
	Value string
}

// ID is shorthand for an id locator
func ID(id string) Locator { return Locator{By: ByID, Value: id} }

// CSS is shorthand for a css selector locator
func CSS(selector string) Locator { return Locator{By: ByCSS, Value: selector} }

// XPath is shorthand for an xpath expression locator
func XPath(expr string) Locator { return Locator{By: ByXPath, Value: expr} }

// ParseLocator reads "id=...", "css=..." or "xpath=..." forms.
// A value without a known prefix is treated as a CSS selector.
func ParseLocator(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}

	if prefix, value, ok := strings.Cut(s, "="); ok {
		switch By(strings.ToLower(strings.TrimSpace(prefix))) {
		case ByID:
			return ID(strings.TrimSpace(value)), nonEmpty(value, s)
		case ByCSS:
			return CSS(strings.TrimSpace(value)), nonEmpty(value, s)
		case ByXPath:
			return XPath(strings.TrimSpace(value)), nonEmpty(value, s)
		}
	}

	return CSS(s), nil
}

func nonEmpty(value, raw string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("locator %q has no value", raw)
	}
	return nil
}

// Selector returns the CSS selector for id and css locators
func (l Locator) Selector() string {
	if l.By == ByID {
		return "#" + l.Value
	}
	return l.Value
}

func (l Locator) String() string {
	return string(l.By) + "=" + l.Value
}

// Launcher acquires new browser sessions
type Launcher interface {
	Start(ctx context.Context) (Session, error)
}

// Session is one running browser instance
type Session interface {
	Navigate(ctx context.Context, url string) error
	Maximize(ctx context.Context) error

	// WaitPresent waits until an element matching loc is attached to the DOM
	WaitPresent(ctx context.Context, loc Locator, timeout time.Duration) (Element, error)
	// WaitClickable waits until an element matching loc is visible and can receive clicks
	WaitClickable(ctx context.Context, loc Locator, timeout time.Duration) (Element, error)

	// Quit closes the browser and frees its process
	Quit() error
}

// Element is a handle to a located DOM element
type Element interface {
	Clear() error
	SendText(text string) error
	Submit() error
	Click() error
}
