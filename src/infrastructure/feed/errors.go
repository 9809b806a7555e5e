package feed

import (
	"errors"
	"fmt"
)

// FetchError covers network failures, non-2xx responses, empty bodies and
// bodies without any XML marker. Tasks failing with it are retried.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError covers malformed XML and responses missing the rss.channel
// structure. Providers occasionally return broken XML under load, so
// tasks failing with it are retried as well.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Retryable reports whether err belongs to the fetch/parse stage of the
// pipeline, i.e. happened before any posting-level processing.
func Retryable(err error) bool {
	var fe *FetchError
	var pe *ParseError
	return errors.As(err, &fe) || errors.As(err, &pe)
}
