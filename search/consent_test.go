package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Nehilsa2/query_runner/driver"
	"github.com/Nehilsa2/query_runner/driver/drivertest"
)

func newDismisser(logger *zap.Logger, slept *[]time.Duration) *ConsentDismisser {
	return &ConsentDismisser{
		Button:  driver.ID("bnp_btn_accept"),
		Timeout: 10 * time.Second,
		Settle:  2 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
		Logger: logger,
	}
}

func TestConsentDismisser_ClicksWhenPresent(t *testing.T) {
	var slept []time.Duration
	sess := drivertest.NewSession()

	err := newDismisser(zap.NewNop(), &slept).Apply(context.Background(), sess)

	require.NoError(t, err)
	assert.Equal(t, []string{"wait_clickable id=bnp_btn_accept", "click"}, sess.Calls)
	assert.Equal(t, []time.Duration{10 * time.Second}, sess.Waits)
	assert.Equal(t, []time.Duration{2 * time.Second}, slept)
}

func TestConsentDismisser_AbsenceIsNotAnError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var slept []time.Duration
	sess := drivertest.NewSession()
	sess.Missing[driver.ID("bnp_btn_accept")] = true

	err := newDismisser(zap.New(core), &slept).Apply(context.Background(), sess)

	require.NoError(t, err)
	assert.Zero(t, sess.Clicks)
	assert.Empty(t, slept)
	assert.Equal(t, 1, logs.FilterMessage("No cookie consent pop-up found").Len())
}

func TestConsentDismisser_LookupFailure(t *testing.T) {
	var slept []time.Duration
	sess := drivertest.NewSession()
	sess.WaitHook = func(driver.Locator, int) error { return errors.New("target closed") }

	err := newDismisser(zap.NewNop(), &slept).Apply(context.Background(), sess)

	assert.ErrorContains(t, err, "target closed")
}

func TestConsentDismisser_ClickFailure(t *testing.T) {
	var slept []time.Duration
	sess := drivertest.NewSession()
	sess.ClickErr = errors.New("covered by another element")

	err := newDismisser(zap.NewNop(), &slept).Apply(context.Background(), sess)

	assert.ErrorContains(t, err, "covered by another element")
	assert.Empty(t, slept)
}
