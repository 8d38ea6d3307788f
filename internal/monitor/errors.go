package monitor

import "errors"

// Error taxonomy. Infrastructure errors abort the run; everything else is
// caught at the smallest enclosing stage and converted into skip-and-continue.
var (
	// ErrInfra marks session launch or authentication failures that
	// survived retry exhaustion. Fatal to the run.
	ErrInfra = errors.New("infrastructure failure")

	// ErrNavigation marks a selector or page that never appeared within its
	// timeout. The current page or item is skipped.
	ErrNavigation = errors.New("navigation failure")

	// ErrExtraction marks a missing required field (e.g. title). The item
	// is discarded.
	ErrExtraction = errors.New("extraction failure")

	// ErrArchive marks a remote archive failure. Never propagates past the
	// archiver boundary.
	ErrArchive = errors.New("archive failure")

	// ErrPersistence marks a store write failure. The item is lost for this
	// run; the run continues.
	ErrPersistence = errors.New("persistence failure")

	// ErrAlreadyRunning is returned by Start while a run is active.
	ErrAlreadyRunning = errors.New("a monitoring run is already active")

	// ErrNotRunning is returned by Stop when no run is active.
	ErrNotRunning = errors.New("no monitoring run is active")
)
