// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the resource already exists in a state that rejects the request.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates malformed input rejected before any lookup.
var ErrValidation = errors.New("validation")

// ErrUpstreamUnavailable indicates the breach data source failed or is unreachable.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ErrPersistence indicates the partition state could not be loaded or saved.
var ErrPersistence = errors.New("persistence failure")

// ErrCancelled indicates the caller abandoned the operation before it completed.
var ErrCancelled = errors.New("cancelled")
