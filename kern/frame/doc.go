// Package frame provides contiguous physical-frame allocation over the
// machine's memory.
//
// # Overview
//
// A Pool manages a run of 4096-byte frames with a 2-bit-per-frame state
// bitmap: Free, Used, or Head-of-Sequence. Head-of-Sequence marks the first
// frame of an allocated run and is the only frame a release accepts; the run
// extends through the Used frames that follow it. The bitmap itself lives in
// simulated physical memory, either inside the pool's first frame or in a
// dedicated info frame elsewhere.
//
// # Allocation
//
//	pool := frame.NewPool(m, reg, 512, 1024, 0)
//	first, err := pool.GetFrames(4) // first-fit scan, lowest frame upward
//	...
//	reg.ReleaseFrames(first)
//
// Release goes through the Registry rather than a pool: at release time the
// caller knows only the frame number, so the registry walks the pools in
// construction order and dispatches to the one whose range contains it.
//
// # Errors
//
// Fragmentation (no matching run) is reported with ErrNoRun and the sentinel
// frame number 0. Asking for more frames than are free, releasing a frame
// that is not a Head-of-Sequence, or releasing a frame no pool owns are
// kernel bugs and halt the machine.
package frame
