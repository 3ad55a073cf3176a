package customalloc

import "errors"

// Sentinel errors returned by the allocation entry points, following the
// teacher's hive/alloc/errors.go pattern of package-level errors.New values
// rather than bespoke error types.
var (
	// ErrObjectTooLarge is returned when an object or array's requested size
	// cannot be represented as an AllocationSize (would overflow the
	// allocator's internal cell-count accounting).
	ErrObjectTooLarge = errors.New("customalloc: object size overflows allocation size accounting")

	// ErrPageAcquisitionFailed is returned when none of the
	// Config.MaxPageAcquireAttempts pages ThreadData obtains in a row from
	// the heap's PageStore can serve the allocation (out-of-memory
	// conditions panic in the raw allocation layer instead).
	ErrPageAcquisitionFailed = errors.New("customalloc: exceeded max page acquisition attempts under concurrent sweep")

	// ErrThreadDataClosed is returned by AllocateObject and AllocateArray
	// called after Close.
	ErrThreadDataClosed = errors.New("customalloc: thread data already closed")
)
