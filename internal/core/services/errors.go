package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates a requested record or blob does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable indicates the metadata or blob store could not
	// be reached or answered with a backend failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEncoding indicates a legacy index artifact could not be decoded:
	// the bytes are not valid gzip or not a valid listing stream.
	ErrEncoding = errors.New("encoding failure")
)

// PublishError reports the artifact keys that failed to persist during a
// publish. Keys written before the failure stay written; the publish is
// retryable as a whole.
type PublishError struct {
	Keys []string
	Errs []error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publishing index artifacts: %d key(s) failed: %s",
		len(e.Keys), strings.Join(e.Keys, ", "))
}

func (e *PublishError) Unwrap() []error { return e.Errs }
