package api

import (
	"fmt"
	"strings"
	"time"
)

// RateLimitError is returned when the API refuses a call and tells us how
// long to wait before trying again.
type RateLimitError struct {
	Message   string
	SleepTime time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s (retry after %s)", e.Message, e.SleepTime)
}

// FieldError is a single non-rate-limit error from the api_type=json error
// envelope, e.g. ["SUBREDDIT_NOEXIST", "that subreddit doesn't exist", "sr"].
type FieldError struct {
	Code    string
	Message string
	Field   string
}

func (e *FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// APIErrorList wraps a batch of errors returned together by the API. It
// unwraps to its members so errors.As can find a nested RateLimitError.
type APIErrorList struct {
	Errors []error
}

func (e *APIErrorList) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("api returned %d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *APIErrorList) Unwrap() []error {
	return e.Errors
}
