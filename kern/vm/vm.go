// Package vm carves a per-process virtual address range into named regions
// on top of paging. Allocation is a bump within the pool and never touches
// the page table; backing frames arrive lazily when the region is first
// touched and the page fault fires.
//
// The region table itself lives in the pool's first page, reached through
// virtual stores. That only works because the constructor registers the pool
// for fault service before the first store: the store faults, the handler
// finds the address legitimate, and the table's own page materializes.
package vm

import (
	"github.com/kernkit/kernkit/internal/layout"
	"github.com/kernkit/kernkit/kern/frame"
	"github.com/kernkit/kernkit/kern/machine"
	"github.com/kernkit/kernkit/kern/paging"
)

// regionEntrySize is the in-pool footprint of one (base, length) pair.
const regionEntrySize = 2 * layout.WordSize

// maxRegions is how many entries fit in the one-page region table.
const maxRegions = layout.FrameSize / regionEntrySize

// Pool is one contiguous virtual range [base, base+size) subdivided into
// allocation regions. Region 0 is the region table itself.
type Pool struct {
	m *machine.Machine

	base      uint32
	size      uint32
	available uint32

	framePool *frame.Pool
	pt        *paging.PageTable

	nRegions uint32
}

// NewPool registers the range [base, base+size) with the page table and
// seeds the in-pool region table with region 0 (the table's own page).
func NewPool(m *machine.Machine, base, size uint32, framePool *frame.Pool, pt *paging.PageTable) *Pool {
	p := &Pool{
		m:         m,
		base:      base,
		size:      size,
		available: size,
		framePool: framePool,
		pt:        pt,
	}

	// Registration must precede the first store below: writing the region
	// table faults, and the handler accepts the address only once the pool
	// is on the page table's chain.
	pt.RegisterPool(p)

	p.writeRegion(0, base, layout.FrameSize)
	p.nRegions = 1
	p.available -= layout.FrameSize

	m.Logger().Info("constructed vm pool", "base", base, "size", size)
	return p
}

// BaseAddress returns the pool's first virtual address.
func (p *Pool) BaseAddress() uint32 { return p.base }

// Size returns the pool's span in bytes.
func (p *Pool) Size() uint32 { return p.size }

// Available returns how many bytes remain unallocated.
func (p *Pool) Available() uint32 { return p.available }

// writeRegion stores the (base, length) pair for region i into the in-pool
// table.
func (p *Pool) writeRegion(i, base, length uint32) {
	addr := p.base + i*regionEntrySize
	p.m.WriteWord(addr, base)
	p.m.WriteWord(addr+layout.WordSize, length)
}

// readRegion loads the (base, length) pair for region i.
func (p *Pool) readRegion(i uint32) (base, length uint32) {
	addr := p.base + i*regionEntrySize
	return p.m.ReadWord(addr), p.m.ReadWord(addr + layout.WordSize)
}

// Allocate reserves a region of whole pages directly after the last region
// and returns its base address. The page table is not touched; the first
// access pages the region in. Returns 0 when the rounded request exceeds
// what is left.
func (p *Pool) Allocate(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	rounded := layout.PagesForBytes(size) * layout.FrameSize
	if rounded > p.available {
		p.m.Logger().Debug("vm pool exhausted", "requested", rounded, "available", p.available)
		return 0
	}
	if p.nRegions == maxRegions {
		machine.Halt("region table full in pool at %#x", p.base)
	}

	lastBase, lastLen := p.readRegion(p.nRegions - 1)
	base := lastBase + lastLen
	p.writeRegion(p.nRegions, base, rounded)
	p.nRegions++
	p.available -= rounded

	p.m.Logger().Debug("allocated region", "base", base, "bytes", rounded)
	return base
}

// Release frees the region starting at the given address: every page it
// spans is handed back through the page table, and the region table is
// compacted. Releasing an address that starts no region is fatal. Region 0
// is not releasable.
func (p *Pool) Release(startAddress uint32) {
	match := uint32(0)
	for i := uint32(1); i < p.nRegions; i++ {
		if base, _ := p.readRegion(i); base == startAddress {
			match = i
			break
		}
	}
	if match == 0 {
		machine.Halt("release of %#x which starts no region in pool at %#x",
			startAddress, p.base)
	}

	_, length := p.readRegion(match)
	for va := startAddress; va < startAddress+length; va += layout.FrameSize {
		p.pt.FreePage(va)
	}
	p.available += length

	for i := match; i+1 < p.nRegions; i++ {
		base, l := p.readRegion(i + 1)
		p.writeRegion(i, base, l)
	}
	p.nRegions--

	p.m.Logger().Debug("released region", "base", startAddress, "bytes", length)
}

// IsLegitimate reports whether addr lies within the pool's overall span,
// inclusive of the upper bound. Coarse on purpose: fault service accepts any
// in-pool address, allocated region or not.
func (p *Pool) IsLegitimate(addr uint32) bool {
	return addr >= p.base && addr <= p.base+p.size
}
