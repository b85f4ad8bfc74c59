package driver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Locator
	}{
		{"id prefix", "id=sb_form_q", ID("sb_form_q")},
		{"css prefix", "css=input[name='q']", CSS("input[name='q']")},
		{"xpath prefix", "xpath=//button[@id='bnp_btn_accept']", XPath("//button[@id='bnp_btn_accept']")},
		{"prefix is case insensitive", "ID=b_results", ID("b_results")},
		{"surrounding space", "  id = b_results ", ID("b_results")},
		{"bare value is css", "#b_results", CSS("#b_results")},
		{"unknown prefix stays css", "input[name=q]", CSS("input[name=q]")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocator(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLocator_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "id=", "xpath=  "} {
		_, err := ParseLocator(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestLocatorSelector(t *testing.T) {
	assert.Equal(t, "#sb_form_q", ID("sb_form_q").Selector())
	assert.Equal(t, "div.results", CSS("div.results").Selector())
	assert.Equal(t, "id=sb_form_q", ID("sb_form_q").String())
}

func TestWrapWaitErr(t *testing.T) {
	err := wrapWaitErr(ID("b_results"), fmt.Errorf("rod: %w", context.DeadlineExceeded))
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Contains(t, err.Error(), "id=b_results")

	err = wrapWaitErr(ID("b_results"), errors.New("target closed"))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Contains(t, err.Error(), "target closed")
}
