package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is returned when an uploaded batch is not a JSON array of objects.
	ErrMalformedInput = errors.New("malformed input")
	// ErrRemoteService is returned on transport failures or non-2xx answers from a remote API.
	ErrRemoteService = errors.New("remote service error")
	// ErrUpstreamResponse is returned when a classification response lacks the expected structure.
	ErrUpstreamResponse = errors.New("unexpected upstream response")
	// ErrStorage wraps every persistence failure.
	ErrStorage = errors.New("storage error")
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
)

// BatchError reports the item that aborted an ingestion batch.
// Index is the 1-based position of the item in the submitted array.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
