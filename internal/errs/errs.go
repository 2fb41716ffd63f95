// Package errs defines the discharge-coordination control plane's closed
// error taxonomy. Every error the workflow engine or its
// collaborators return is one of these types, so the HTTP façade and the
// workflow coordinator can dispatch on it with errors.As instead of
// string-matching messages.
package errs

import "fmt"

// ValidationError reports a malformed or missing intake field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %q %s", e.Field, e.Reason)
}

// NotFound reports an unknown case_id or listing key.
type NotFound struct {
	Kind string
	Key  string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// CacheMiss reports that no cached row matched a filter.
type CacheMiss struct {
	Category string
	Filter   string
}

func (e *CacheMiss) Error() string {
	if e.Filter == "" {
		return fmt.Sprintf("cache miss: category %q is empty", e.Category)
	}
	return fmt.Sprintf("cache miss: no %s row matches %s", e.Category, e.Filter)
}

// UpstreamError reports a failure from an external collaborator (voice
// provider, routing provider, scraping proxy).
type UpstreamError struct {
	Upstream string
	Detail   string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: %s: %v", e.Upstream, e.Detail, e.Err)
	}
	return fmt.Sprintf("upstream %s: %s", e.Upstream, e.Detail)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Timeout reports that a deadline elapsed waiting on an upstream call.
type Timeout struct {
	Upstream string
	Deadline string
}

func (e *Timeout) Error() string {
	return fmt.Sprintf("timeout waiting on %s (deadline %s)", e.Upstream, e.Deadline)
}

// QuotaExceeded reports an upstream quota rejection (e.g. the voice
// provider's daily outbound call limit).
type QuotaExceeded struct {
	Upstream string
	Detail   string
}

func (e *QuotaExceeded) Error() string {
	return fmt.Sprintf("quota exceeded on %s: %s", e.Upstream, e.Detail)
}

// Cancelled reports that the calling context was cancelled mid-call.
type Cancelled struct {
	Upstream string
}

func (e *Cancelled) Error() string {
	return fmt.Sprintf("cancelled: %s", e.Upstream)
}

// Internal reports a programmer error or invariant violation. It is the
// only class that surfaces as HTTP 500.
type Internal struct {
	Detail string
	Err    error
}

func (e *Internal) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("internal: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("internal: %s", e.Detail)
}

func (e *Internal) Unwrap() error { return e.Err }
