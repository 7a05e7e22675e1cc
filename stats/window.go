package stats

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/Laurentiu-Andronache/prawtools/models"
)

const (
	// PostPrefix starts the title of every report this tool publishes. It is
	// how a later run recognizes its own previous reports in the listing.
	PostPrefix = "Subreddit Stats:"

	// gracePeriod trails behind now; submissions younger than this are
	// excluded because their scores have not stabilized yet.
	gracePeriod = 3 * 24 * time.Hour

	daysInSeconds = 24 * 60 * 60
)

// markerPattern matches the continuation marker embedded in a report footer.
// The value is the high bound of the run that produced the report.
var markerPattern = regexp.MustCompile(`SRS Marker: (\d+(?:\.\d+)?)`)

// ExtractMarker scans text for the continuation marker. When the text holds
// several markers the last one wins (most recently written).
func ExtractMarker(text string) (float64, bool) {
	matches := markerPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ValidTopPeriods is the closed set of period tokens the top listing accepts.
var ValidTopPeriods = []string{"day", "week", "month", "year", "all"}

// ValidateTopPeriod checks a -top flag value against the accepted set.
func ValidateTopPeriod(period string) error {
	for _, valid := range ValidTopPeriods {
		if period == valid {
			return nil
		}
	}
	return fmt.Errorf("%q is not a valid top period (want one of day, week, month, year, all)", period)
}

// ResolveWindow computes the time window for a run. The high bound sits a
// grace period behind now; the low bound reaches back the given number of
// days, or to zero (unbounded) when days <= 0.
func ResolveWindow(days int, now time.Time) models.Window {
	window := models.Window{
		High: float64(now.Add(-gracePeriod).Unix()),
	}
	if days > 0 {
		window.Low = window.High - float64(days*daysInSeconds)
	}
	return window
}

// PreviousReport points at the report a run continues from.
type PreviousReport struct {
	Permalink string
	Marker    float64
}
