package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernkit/kernkit/internal/layout"
	"github.com/kernkit/kernkit/kern/frame"
	"github.com/kernkit/kernkit/kern/machine"
	"github.com/kernkit/kernkit/kern/paging"
)

type fixture struct {
	m           *machine.Machine
	processPool *frame.Pool
	pt          *paging.PageTable
	faults      int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{m: machine.New(1280, nil)}
	reg := frame.NewRegistry()
	kernelPool := frame.NewPool(fx.m, reg, 512, 512, 0)
	fx.processPool = frame.NewPool(fx.m, reg, 1024, 256, 0)
	ctx := paging.Init(fx.m, reg, kernelPool, fx.processPool, 4*1024*1024)

	fx.m.SetFaultHandler(func(regs *machine.Regs) {
		fx.faults++
		ctx.Current().HandleFault(regs)
	})

	fx.pt = ctx.NewPageTable()
	fx.pt.Load()
	ctx.EnablePaging()
	return fx
}

func TestConstructorBootstrapsRegionTable(t *testing.T) {
	fx := newFixture(t)

	before := fx.processPool.FreeCount()
	p := NewPool(fx.m, 0x400000, 0x100000, fx.processPool, fx.pt)

	// Writing region 0 into the pool's own first page faulted it in: one
	// page table plus one leaf page.
	assert.Equal(t, 2, fx.faults)
	assert.Equal(t, before-2, fx.processPool.FreeCount())
	assert.Equal(t, uint32(0x100000-layout.FrameSize), p.Available())
}

func TestAllocateScenarioS4(t *testing.T) {
	fx := newFixture(t)
	p := NewPool(fx.m, 0x400000, 0x100000, fx.processPool, fx.pt)

	// Region 0 holds the table, so the first allocation lands one page in.
	first := p.Allocate(0x1000)
	assert.Equal(t, uint32(0x400000+0x1000), first)

	// 0x1001 bytes round up to two pages.
	second := p.Allocate(0x1001)
	assert.Equal(t, uint32(0x400000+0x2000), second)
	assert.Equal(t, uint32(0x100000-3*layout.FrameSize-layout.FrameSize), p.Available())
}

func TestAllocateDoesNotTouchPageTable(t *testing.T) {
	fx := newFixture(t)
	p := NewPool(fx.m, 0x400000, 0x100000, fx.processPool, fx.pt)

	free := fx.processPool.FreeCount()
	faults := fx.faults
	addr := p.Allocate(64 * 1024)
	require.NotZero(t, addr)

	// No backing until first touch.
	assert.Equal(t, free, fx.processPool.FreeCount())
	assert.Equal(t, faults, fx.faults)

	fx.m.WriteWord(addr, 7)
	assert.Equal(t, free-1, fx.processPool.FreeCount())
	assert.Equal(t, uint32(7), fx.m.ReadWord(addr))
}

func TestAllocateBeyondAvailableReturnsZero(t *testing.T) {
	fx := newFixture(t)
	p := NewPool(fx.m, 0x400000, 0x10000, fx.processPool, fx.pt)

	// 16 pages total, one taken by the region table. An exact fit works;
	// one byte more does not.
	assert.NotZero(t, p.Allocate(0xF000))
	assert.Zero(t, p.Allocate(1))
}

func TestReleaseRestoresAvailable(t *testing.T) {
	fx := newFixture(t)
	p := NewPool(fx.m, 0x400000, 0x100000, fx.processPool, fx.pt)

	available := p.Available()
	addr := p.Allocate(3 * layout.FrameSize)
	require.NotZero(t, addr)

	// Touch two of the three pages so some backing exists.
	fx.m.WriteWord(addr, 1)
	fx.m.WriteWord(addr+layout.FrameSize, 2)
	backed := fx.processPool.FreeCount()

	p.Release(addr)
	assert.Equal(t, available, p.Available())
	assert.Equal(t, backed+2, fx.processPool.FreeCount(), "both touched pages released")
}

func TestReleaseCompactsRegionTable(t *testing.T) {
	fx := newFixture(t)
	p := NewPool(fx.m, 0x400000, 0x100000, fx.processPool, fx.pt)

	a := p.Allocate(layout.FrameSize)
	b := p.Allocate(layout.FrameSize)
	c := p.Allocate(layout.FrameSize)
	require.NotZero(t, a)
	require.NotZero(t, c)

	p.Release(b)

	// The bump pointer continues after the last surviving region.
	d := p.Allocate(layout.FrameSize)
	assert.Equal(t, c+layout.FrameSize, d)

	// And the released base is gone from the table: releasing it again is
	// a kernel bug.
	require.Panics(t, func() { p.Release(b) })
}

func TestIsLegitimateSpansWholePool(t *testing.T) {
	fx := newFixture(t)
	p := NewPool(fx.m, 0x400000, 0x100000, fx.processPool, fx.pt)

	assert.True(t, p.IsLegitimate(0x400000))
	assert.True(t, p.IsLegitimate(0x4FFFFF))
	assert.True(t, p.IsLegitimate(0x500000), "upper bound is inclusive")
	assert.False(t, p.IsLegitimate(0x3FFFFF))
	assert.False(t, p.IsLegitimate(0x500001))

	// Coarse check: inside the span but outside any region still passes.
	assert.True(t, p.IsLegitimate(0x480000))
}

func TestTwoPoolsOneAddressSpace(t *testing.T) {
	fx := newFixture(t)
	p1 := NewPool(fx.m, 0x400000, 0x100000, fx.processPool, fx.pt)
	p2 := NewPool(fx.m, 0x800000, 0x100000, fx.processPool, fx.pt)

	a := p1.Allocate(layout.FrameSize)
	b := p2.Allocate(layout.FrameSize)
	fx.m.WriteWord(a, 0x11)
	fx.m.WriteWord(b, 0x22)
	assert.Equal(t, uint32(0x11), fx.m.ReadWord(a))
	assert.Equal(t, uint32(0x22), fx.m.ReadWord(b))
}
