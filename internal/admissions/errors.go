package admissions

import "fmt"

// FetchErrorKind classifies page retrieval failures.
type FetchErrorKind string

// Fetch failure kinds. All are recoverable at the pipeline level: the target
// is marked failed, never the whole run.
const (
	FetchTimeout           FetchErrorKind = "timeout"
	FetchConnectionRefused FetchErrorKind = "connection_refused"
	FetchNonSuccessStatus  FetchErrorKind = "non_success_status"
	FetchTooManyRedirects  FetchErrorKind = "too_many_redirects"
)

// FetchError describes a failed page retrieval.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

// NewFetchError builds a FetchError wrapping an optional cause.
func NewFetchError(kind FetchErrorKind, url string, statusCode int, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, StatusCode: statusCode, Err: err}
}

func (e *FetchError) Error() string {
	if e.Kind == FetchNonSuccessStatus {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError reports that a strategy failed for one field. The field
// becomes a sentinel downstream; extraction errors never abort a target.
type ExtractionError struct {
	Field string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Field, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EnrichmentError describes a failed provider exchange for one record. The
// record falls back to the Simulation transform; the batch continues.
type EnrichmentError struct {
	Provider string
	Record   string
	Err      error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich %q via %s: %v", e.Record, e.Provider, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }
