package scraper

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoRecords means the page was retrieved but no extraction strategy
// produced a plausible announcement. It usually means the page layout changed.
var ErrNoRecords = errors.New("no plausible announcements found, page structure may have changed")

// ErrorKind classifies why a fetch failed.
type ErrorKind string

const (
	KindUnreachable ErrorKind = "unreachable" // transport error, timeout, cancellation
	KindStatus      ErrorKind = "status"      // non-2xx response
	KindStructure   ErrorKind = "structure"   // page fetched but zero plausible records
)

// FetchError is returned by Fetcher.Fetch once every attempt has failed.
// Kind reflects the last failure.
type FetchError struct {
	Kind     ErrorKind
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s) (%s): %v", e.URL, e.Attempts, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-2xx response from a page source.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsStructureChange reports whether err is a fetch failure caused by the page
// yielding no plausible records, as opposed to the page being unreachable.
func IsStructureChange(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindStructure
}

func kindOf(err error) ErrorKind {
	var se *StatusError
	switch {
	case errors.Is(err, ErrNoRecords):
		return KindStructure
	case errors.As(err, &se):
		return KindStatus
	default:
		return KindUnreachable
	}
}
