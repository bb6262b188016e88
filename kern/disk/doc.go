// Package disk provides block-device access over the machine's port bus:
// an LBA28 programmed-I/O IDE controller, a blocking SimpleDisk, and the
// NonBlockingDisk that parks the calling thread instead of spinning while
// an operation is outstanding.
//
// # Parking instead of polling
//
// NonBlockingDisk issues the command, enqueues the calling thread on its
// I/O-blocked queue, and yields. The scheduler consults the disk on every
// yield: once the device reports ready, one parked thread moves back to the
// ready queue, resumes, and performs the 256 16-bit data transfers.
//
// # Port serialization
//
// Several threads share the one IDE port range, so each port phase (command
// issue, data transfer) is bracketed by a Peterson filter lock. The filter
// is sound for cooperative or timer-preempted scheduling on a single CPU;
// it is not an SMP lock.
//
// # The simulated device
//
// Device implements machine.PortDevice over ports 0x1F0..0x1F7 and 0x3F6
// and serves transfers from a block image, in memory or memory-mapped from
// a file. Commands become ready only after a configurable number of status
// polls, which is what makes threads genuinely park.
package disk
