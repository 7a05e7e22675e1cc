package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
		found    bool
	}{
		{
			name:     "Single marker",
			text:     "report body\nSRS Marker: 1700000000",
			expected: 1700000000,
			found:    true,
		},
		{
			name:     "Last marker wins",
			text:     "SRS Marker: 100\nquoted older report\nSRS Marker: 200",
			expected: 200,
			found:    true,
		},
		{
			name:     "Fractional marker",
			text:     "SRS Marker: 1700000000.5",
			expected: 1700000000.5,
			found:    true,
		},
		{
			name:  "No marker",
			text:  "just an ordinary self post",
			found: false,
		},
		{
			name:  "Pattern without value",
			text:  "SRS Marker: soon",
			found: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			value, found := ExtractMarker(tc.text)
			assert.Equal(t, tc.found, found)
			if tc.found {
				assert.Equal(t, tc.expected, value)
			}
		})
	}
}

func TestValidateTopPeriod(t *testing.T) {
	for _, period := range []string{"day", "week", "month", "year", "all"} {
		assert.NoError(t, ValidateTopPeriod(period))
	}
	for _, period := range []string{"", "hour", "decade", "Week", "all time"} {
		assert.Error(t, ValidateTopPeriod(period), "period %q should be rejected", period)
	}
}

func TestResolveWindow(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	high := float64(now.Add(-3 * 24 * time.Hour).Unix())

	window := ResolveWindow(32, now)
	assert.Equal(t, high, window.High)
	assert.Equal(t, high-32*86400, window.Low)
	assert.Less(t, window.Low, window.High)

	unbounded := ResolveWindow(0, now)
	assert.Equal(t, high, unbounded.High)
	assert.Zero(t, unbounded.Low)
}
