package model

import "fmt"

// FetchError reports a failed retrieval of a remote document. StatusCode is
// zero for transport failures (DNS, connection refused, timeout).
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: upstream returned %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseAdvisory describes a document that could not be parsed as a feed.
// It never aborts a run: the run simply yields zero entries.
type ParseAdvisory struct {
	URL string
	Err error
}

func (a *ParseAdvisory) Error() string {
	return fmt.Sprintf("feed %s could not be parsed: %v", a.URL, a.Err)
}

func (a *ParseAdvisory) Unwrap() error { return a.Err }

// ValidationError is returned for a request that fails input constraints.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
