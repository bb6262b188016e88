// Package layout houses the low-level constants of the simulated 32-bit
// machine: frame and page geometry, the 2-bit frame-state bitmap encoding,
// page-table entry flags, and the virtual-address split. The goal is to keep
// the bit-level contracts in one place, independent from the public API, so
// higher-level packages can orchestrate the data in a more ergonomic form.
package layout

const (
	// FrameSize is the size of a physical frame (and of a virtual page)
	// in bytes.
	FrameSize = 4096

	// FrameShift is the number of address bits covered by one frame.
	FrameShift = 12

	// WordSize is the size of a machine word. Directory and table entries
	// are one word each.
	WordSize = 4

	// EntriesPerPage is the number of word-sized entries in a directory or
	// page-table frame.
	EntriesPerPage = FrameSize / WordSize

	// MaxPoolFrames is the largest frame count a single pool may manage.
	// Two bits per frame must fit in one bitmap frame: 4096*8/2.
	MaxPoolFrames = FrameSize * 8 / 2

	// BitsPerFrameState is the width of one frame-state cell in the bitmap.
	BitsPerFrameState = 2

	// FramesPerBitmapByte is the number of frame states packed into one
	// bitmap byte, at bit offsets 0, 2, 4 and 6.
	FramesPerBitmapByte = 8 / BitsPerFrameState
)

// Page-table entry flag bits. Kernel mappings use PTEPresent|PTEWritable;
// a not-present-but-writable placeholder is just PTEWritable.
const (
	PTEPresent  uint32 = 1 << 0
	PTEWritable uint32 = 1 << 1
	PTEUser     uint32 = 1 << 2

	// PTEKernelFlags is the flag combination installed for present kernel
	// mappings (P|R/W).
	PTEKernelFlags = PTEPresent | PTEWritable

	// PTEFrameMask extracts the physical frame address from an entry.
	PTEFrameMask uint32 = 0xFFFFF000
)

// Control-register bits and fault error-code bits.
const (
	// CR0PagingBit enables paging when set in CR0.
	CR0PagingBit uint32 = 1 << 31

	// FaultErrProtection is set in the page-fault error code when the
	// fault was a protection violation rather than a missing page.
	FaultErrProtection uint32 = 1 << 0

	// FaultErrWrite is set when the faulting access was a write.
	FaultErrWrite uint32 = 1 << 1
)

// Self-mapping convention: directory slot 1023 points at the directory
// itself, so after paging is enabled the directory is always reachable at
// SelfMapDirBase and the page table for directory index i at
// SelfMapTableBase | i<<12.
const (
	// SelfMapSlot is the directory slot reserved for the recursive entry.
	SelfMapSlot = EntriesPerPage - 1

	// SelfMapTableBase is the base virtual address of the page-table
	// window (0x3FF << 22).
	SelfMapTableBase uint32 = uint32(SelfMapSlot) << 22

	// SelfMapDirBase is the fixed virtual address of the directory itself.
	SelfMapDirBase uint32 = 0xFFFFF000
)
