// Package machine simulates the 32-bit hardware that the kernel core runs
// against: frame-granular physical memory, the CR0/CR2/CR3 control registers,
// the interrupt-enable flag, and a port-I/O bus with pluggable devices.
//
// # Memory access
//
// Physical memory is addressed directly with ReadPhysWord/WritePhysWord and
// FrameBytes. Virtual access (ReadWord, WriteWord, ReadVirt, WriteVirt) obeys
// CR0: with paging disabled addresses are physical; with paging enabled the
// machine walks the two-level table rooted at CR3 exactly like the MMU. A
// missing or protection-violating translation loads CR2 with the faulting
// address and invokes the installed page-fault handler, then retries the
// walk, so lazy mapping behaves the way a re-fired fault does on hardware.
//
// # Halts
//
// Invariant violations halt the kernel. A halt is modeled as a panic with a
// *HaltError so tests can observe it with require.PanicsWithError and the
// simulator's callers can recover it at the top of the run loop.
//
// # Port bus
//
// Devices register for the ports they answer. Unclaimed ports read as zero
// and swallow writes, which matches a floating ISA bus closely enough for the
// workloads here.
package machine
