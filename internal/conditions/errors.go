package conditions

import (
	"errors"
	"fmt"
)

// ErrUnknownSite is matched by every UnknownSiteError.
var ErrUnknownSite = errors.New("unknown river site")

// UnknownSiteError is returned for river names outside the configured set.
type UnknownSiteError struct {
	Name string
}

func (e *UnknownSiteError) Error() string {
	return fmt.Sprintf("unknown river site %q", e.Name)
}

func (e *UnknownSiteError) Unwrap() error {
	return ErrUnknownSite
}

// FetchErrorKind classifies why a source fetch failed.
type FetchErrorKind string

const (
	FetchTimeout     FetchErrorKind = "timeout"
	FetchHTTPError   FetchErrorKind = "http_error"
	FetchParseError  FetchErrorKind = "parse_error"
	FetchEmptyResult FetchErrorKind = "empty_result"
)

// FetchError is returned by source clients. The cache turns it into a stale
// or unavailable record; it never reaches snapshot consumers.
type FetchError struct {
	Source SourceID
	Kind   FetchErrorKind
	Err    error
}

// NewFetchError builds a FetchError wrapping err.
func NewFetchError(source SourceID, kind FetchErrorKind, err error) *FetchError {
	return &FetchError{Source: source, Kind: kind, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s fetch: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s fetch: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetchErrorKindOf reports the kind of a FetchError anywhere in err's chain.
func FetchErrorKindOf(err error) (FetchErrorKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
