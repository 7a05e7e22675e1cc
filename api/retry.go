package api

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// SleepFunc blocks for the given duration. Tests inject a recording stub so
// nothing actually sleeps.
type SleepFunc func(time.Duration)

// Call invokes fn, retrying for as long as it fails with a rate-limit signal.
// The wait between attempts is whatever the server suggested; there is no
// retry cap and no backoff growth since the server dictates the pacing. A
// rate-limit signal nested inside an APIErrorList counts (errors.As walks the
// batch); any other failure propagates immediately.
func Call[T any](log *logrus.Logger, sleep SleepFunc, fn func() (T, error)) (T, error) {
	if sleep == nil {
		sleep = time.Sleep
	}
	for {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		var rle *RateLimitError
		if !errors.As(err, &rle) {
			return result, err
		}
		log.WithFields(logrus.Fields{
			"sleep": rle.SleepTime.String(),
		}).Info("Rate limited, sleeping before retry")
		sleep(rle.SleepTime)
	}
}
