package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernkit/kernkit/internal/layout"
)

func TestPhysWordRoundTrip(t *testing.T) {
	m := New(4, nil)
	m.WritePhysWord(0x1000, 0xDEADBEEF)
	assert.Equal(t, uint32(0xDEADBEEF), m.ReadPhysWord(0x1000))

	// Little-endian byte order in the backing frame.
	b := m.FrameBytes(1)
	assert.Equal(t, byte(0xEF), b[0])
	assert.Equal(t, byte(0xDE), b[3])
}

func TestPagingDisabledIsIdentity(t *testing.T) {
	m := New(4, nil)
	m.WriteWord(0x2008, 42)
	assert.Equal(t, uint32(42), m.ReadPhysWord(0x2008))
	assert.Equal(t, uint32(42), m.ReadWord(0x2008))
}

func TestHaltOnOutOfRangeAccess(t *testing.T) {
	m := New(2, nil)
	require.PanicsWithError(t,
		"machine: halted: physical read at 0x2000 beyond memory",
		func() { m.ReadPhysWord(2 * layout.FrameSize) })
}

// buildIdentityTable hand-assembles a directory at frame dir with one table
// at frame tbl identity-mapping the first 4 MiB.
func buildIdentityTable(m *Machine, dir, tbl uint32) {
	for i := uint32(0); i < layout.EntriesPerPage; i++ {
		m.WritePhysWord(layout.FrameAddress(tbl)+i*layout.WordSize,
			layout.FrameAddress(i)|layout.PTEKernelFlags)
		m.WritePhysWord(layout.FrameAddress(dir)+i*layout.WordSize, layout.PTEWritable)
	}
	m.WritePhysWord(layout.FrameAddress(dir), layout.FrameAddress(tbl)|layout.PTEKernelFlags)
}

func TestVirtualWalk(t *testing.T) {
	m := New(8, nil)
	buildIdentityTable(m, 6, 7)
	m.WriteCR3(layout.FrameAddress(6))
	m.WriteCR0(m.ReadCR0() | layout.CR0PagingBit)

	m.WriteWord(0x3004, 99)
	assert.Equal(t, uint32(99), m.ReadPhysWord(0x3004), "identity mapping")
	assert.Equal(t, uint32(99), m.ReadWord(0x3004))
}

func TestFaultHandlerRetries(t *testing.T) {
	m := New(8, nil)
	buildIdentityTable(m, 6, 7)
	m.WriteCR3(layout.FrameAddress(6))
	m.WriteCR0(m.ReadCR0() | layout.CR0PagingBit)

	// 0x00400000 has no PDE; the handler installs one pointing at a fresh
	// identity table and the access must then succeed.
	faults := 0
	m.SetFaultHandler(func(regs *Regs) {
		faults++
		require.Equal(t, uint32(0), regs.ErrCode&layout.FaultErrProtection)
		va := m.ReadCR2()
		require.Equal(t, uint32(0x00400000), layout.AlignPage(va))

		tbl := uint32(5)
		for i := uint32(0); i < layout.EntriesPerPage; i++ {
			m.WritePhysWord(layout.FrameAddress(tbl)+i*layout.WordSize,
				layout.FrameAddress(4)|layout.PTEKernelFlags)
		}
		m.WritePhysWord(layout.FrameAddress(6)+layout.DirIndex(va)*layout.WordSize,
			layout.FrameAddress(tbl)|layout.PTEKernelFlags)
	})

	m.WriteWord(0x00400010, 7)
	assert.Equal(t, 1, faults)
	assert.Equal(t, uint32(7), m.ReadPhysWord(layout.FrameAddress(4)+0x10))
}

func TestUnresolvedFaultHalts(t *testing.T) {
	m := New(8, nil)
	buildIdentityTable(m, 6, 7)
	m.WriteCR3(layout.FrameAddress(6))
	m.WriteCR0(m.ReadCR0() | layout.CR0PagingBit)
	m.SetFaultHandler(func(*Regs) {}) // never fixes anything

	require.Panics(t, func() { m.ReadWord(0x00800000) })
}

type recordingPort struct {
	lastOut uint16
	inValue uint16
}

func (r *recordingPort) InB(uint16) uint8        { return uint8(r.inValue) }
func (r *recordingPort) OutB(_ uint16, v uint8)  { r.lastOut = uint16(v) }
func (r *recordingPort) InW(uint16) uint16       { return r.inValue }
func (r *recordingPort) OutW(_ uint16, v uint16) { r.lastOut = v }

func TestPortBusDispatch(t *testing.T) {
	m := New(1, nil)
	dev := &recordingPort{inValue: 0x1234}
	m.RegisterPorts(dev, 0x1F0)

	assert.Equal(t, uint16(0x1234), m.InPortW(0x1F0))
	m.OutPortW(0x1F0, 0xBEEF)
	assert.Equal(t, uint16(0xBEEF), dev.lastOut)

	// Unclaimed ports float low and swallow writes.
	assert.Equal(t, uint8(0), m.InPortB(0x3F6))
	m.OutPortB(0x20, 0x20)
}
