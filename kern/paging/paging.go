package paging

import (
	"github.com/kernkit/kernkit/internal/layout"
	"github.com/kernkit/kernkit/kern/frame"
	"github.com/kernkit/kernkit/kern/machine"
)

// AddressChecker reports whether a virtual address is backed by some
// allocated arrangement. Satisfied by vm.Pool.
type AddressChecker interface {
	IsLegitimate(addr uint32) bool
}

// Context is the process-wide paging state: the pools that serve frame
// requests, the registry used for pool-less release, and the currently
// loaded page table.
type Context struct {
	m   *machine.Machine
	reg *frame.Registry

	kernelPool  *frame.Pool
	processPool *frame.Pool
	sharedSize  uint32

	current *PageTable
	enabled bool
}

// Init sets up the paging system and installs the page-fault ISR. The
// kernel pool serves directory frames; the process pool serves page tables
// and leaf pages.
func Init(m *machine.Machine, reg *frame.Registry, kernelPool, processPool *frame.Pool, sharedSize uint32) *Context {
	ctx := &Context{
		m:           m,
		reg:         reg,
		kernelPool:  kernelPool,
		processPool: processPool,
		sharedSize:  sharedSize,
	}
	m.SetFaultHandler(func(regs *machine.Regs) {
		if ctx.current == nil {
			machine.Halt("page fault with no page table loaded")
		}
		ctx.current.HandleFault(regs)
	})
	m.Logger().Info("initialized paging system", "shared", sharedSize)
	return ctx
}

// Current returns the page table most recently loaded, nil before the
// first load.
func (c *Context) Current() *PageTable { return c.current }

// Enabled reports whether EnablePaging has run.
func (c *Context) Enabled() bool { return c.enabled }

// EnablePaging sets the paging bit in CR0. A page table must be loaded
// first.
func (c *Context) EnablePaging() {
	if c.current == nil {
		machine.Halt("paging enabled with no page table loaded")
	}
	c.m.WriteCR0(c.m.ReadCR0() | layout.CR0PagingBit)
	c.enabled = true
	c.m.Logger().Info("enabled paging")
}

// PageTable is one address space: a 1024-entry directory frame whose last
// slot refers back to the directory itself.
type PageTable struct {
	ctx      *Context
	dirFrame uint32

	// pools is the chain of VM pools consulted during fault service,
	// kept in registration order.
	pools []AddressChecker
}

// mustGetFrame pulls one frame from a pool, halting on fragmentation; the
// fault path has no way to report exhaustion upward.
func mustGetFrame(p *frame.Pool) uint32 {
	f, err := p.GetFrames(1)
	if err != nil {
		machine.Halt("out of frames servicing paging: %v", err)
	}
	return f
}

// NewPageTable constructs a page table: a directory frame from the kernel
// pool, a first page table from the process pool identity-mapping the first
// 4 MiB with P|R/W, non-present entries everywhere else, and the recursive
// self-reference in the last directory slot.
func (c *Context) NewPageTable() *PageTable {
	pt := &PageTable{ctx: c, dirFrame: mustGetFrame(c.kernelPool)}
	m := c.m

	dirBase := layout.FrameAddress(pt.dirFrame)
	tableFrame := mustGetFrame(c.processPool)
	tableBase := layout.FrameAddress(tableFrame)

	for i := uint32(0); i < layout.EntriesPerPage; i++ {
		m.WritePhysWord(tableBase+i*layout.WordSize,
			layout.FrameAddress(i)|layout.PTEKernelFlags)
	}

	m.WritePhysWord(dirBase, tableBase|layout.PTEKernelFlags)
	for i := uint32(1); i < layout.SelfMapSlot; i++ {
		m.WritePhysWord(dirBase+i*layout.WordSize, layout.PTEWritable)
	}
	m.WritePhysWord(dirBase+layout.SelfMapSlot*layout.WordSize,
		dirBase|layout.PTEKernelFlags)

	m.Logger().Info("constructed page table", "directory", pt.dirFrame)
	return pt
}

// Load makes this page table current: the directory base goes to CR3, not
// the first entry.
func (pt *PageTable) Load() {
	pt.ctx.current = pt
	pt.ctx.m.WriteCR3(layout.FrameAddress(pt.dirFrame))
	pt.ctx.m.Logger().Debug("loaded page table", "directory", pt.dirFrame)
}

// RegisterPool appends a VM pool to this page table's chain (tail insert).
func (pt *PageTable) RegisterPool(p AddressChecker) {
	pt.pools = append(pt.pools, p)
	pt.ctx.m.Logger().Debug("registered vm pool")
}

// HandleFault services a page fault. Protection violations and addresses
// outside every registered VM pool are fatal. A missing directory entry is
// fixed by materializing an empty page table; the re-fired fault then
// installs the leaf mapping from the process pool.
func (pt *PageTable) HandleFault(regs *machine.Regs) {
	m := pt.ctx.m
	faultAddr := m.ReadCR2()

	if regs.ErrCode&layout.FaultErrProtection != 0 {
		machine.Halt("protection violation at %#x", faultAddr)
	}

	legitimate := false
	for _, p := range pt.pools {
		if p.IsLegitimate(faultAddr) {
			legitimate = true
			break
		}
	}
	if !legitimate {
		machine.Halt("fault at %#x outside every vm pool", faultAddr)
	}

	dirIdx := layout.DirIndex(faultAddr)
	tblIdx := layout.TableIndex(faultAddr)
	dirBase := layout.FrameAddress(pt.dirFrame)
	pde := m.ReadPhysWord(dirBase + dirIdx*layout.WordSize)

	if pde&layout.PTEPresent != 0 {
		// Leaf mapping, installed through the self-map window.
		pageFrame := mustGetFrame(pt.ctx.processPool)
		m.WriteWord(layout.TableWindow(dirIdx)+tblIdx*layout.WordSize,
			layout.FrameAddress(pageFrame)|layout.PTEKernelFlags)
		m.Logger().Debug("handled page fault",
			"addr", faultAddr, "frame", pageFrame)
		return
	}

	// Missing directory entry: materialize an empty table, not-present but
	// writable throughout, and hook it into the directory through the
	// directory window. The original fault re-fires and lands above.
	tableFrame := mustGetFrame(pt.ctx.processPool)
	tableBase := layout.FrameAddress(tableFrame)
	for i := uint32(0); i < layout.EntriesPerPage; i++ {
		m.WritePhysWord(tableBase+i*layout.WordSize, layout.PTEWritable)
	}
	m.WriteWord(layout.SelfMapDirBase+dirIdx*layout.WordSize,
		tableBase|layout.PTEKernelFlags)
	m.Logger().Debug("materialized page table", "dirIndex", dirIdx, "frame", tableFrame)
}

// FreePage tears down the mapping covering the given virtual address: the
// entry is marked not-present, the backing frame goes back through the
// registry (the owning pool is found there, not here), and the TLB is
// flushed by reloading CR3. Pages that were never faulted in are left
// alone. Only valid on the currently loaded table, which the self-map
// lookups assume.
func (pt *PageTable) FreePage(va uint32) {
	m := pt.ctx.m

	dirIdx := layout.DirIndex(va)
	pde := m.ReadPhysWord(layout.FrameAddress(pt.dirFrame) + dirIdx*layout.WordSize)
	if pde&layout.PTEPresent == 0 {
		return
	}

	pteAddr := layout.TableWindow(dirIdx) + layout.TableIndex(va)*layout.WordSize
	pte := m.ReadWord(pteAddr)
	if pte&layout.PTEPresent == 0 {
		return
	}

	m.WriteWord(pteAddr, layout.PTEWritable)
	pt.ctx.reg.ReleaseFrames(layout.AddressFrame(pte & layout.PTEFrameMask))

	// Flush the TLB.
	m.WriteCR3(layout.FrameAddress(pt.dirFrame))
	m.Logger().Debug("freed page", "addr", va)
}
