package frame

import "errors"

var (
	// ErrNoRun indicates that no contiguous run of free frames of the
	// requested length exists in the pool.
	ErrNoRun = errors.New("frame: no contiguous run of free frames")
)
