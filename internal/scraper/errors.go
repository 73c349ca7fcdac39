package scraper

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL        = errors.New("scrape: invalid trustpilot url")
	ErrNoStructuredData  = errors.New("scrape: no structured data found in page")
	ErrNoAggregateRating = errors.New("scrape: no aggregate rating data found in structured data")
)

type FetchKind string

const (
	FetchNetwork   FetchKind = "network"
	FetchStatus    FetchKind = "http_status"
	FetchEmptyBody FetchKind = "empty_body"
)

// FetchError is a failed page fetch. Kind lets callers decide retry policy;
// Status is only set for FetchStatus.
type FetchError struct {
	Kind   FetchKind
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchStatus:
		return fmt.Sprintf("fetch: http status %d", e.Status)
	case FetchEmptyBody:
		return "fetch: empty response body"
	default:
		return fmt.Sprintf("fetch: %v", e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }
