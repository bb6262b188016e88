package machine

import (
	"encoding/binary"
	"io"
	"log/slog"

	"github.com/kernkit/kernkit/internal/layout"
)

// Regs is the register snapshot handed to interrupt handlers. Only the
// pieces the core consumes are modeled.
type Regs struct {
	// ErrCode is the x86 page-fault error code: bit 0 set means the fault
	// was a protection violation, bit 1 set means the access was a write.
	ErrCode uint32
}

// FaultHandler services a page fault. CR2 holds the faulting address when
// the handler runs.
type FaultHandler func(regs *Regs)

// faultRetryLimit bounds how often a single access may re-fire its fault.
// Real hardware retries forever; a handler that cannot make progress here
// is a kernel bug, so the machine halts instead of spinning.
const faultRetryLimit = 8

// Machine is the simulated single-CPU 32-bit system.
//
// NOT thread-safe by itself: the cooperative scheduling discipline
// guarantees a single runner at a time.
type Machine struct {
	mem []byte

	cr0 uint32
	cr2 uint32
	cr3 uint32

	intsEnabled bool

	faultHandler FaultHandler

	ports map[uint16]PortDevice

	log *slog.Logger
}

// New creates a machine with the given number of physical frames.
// A nil logger discards all output.
func New(frames int, log *slog.Logger) *Machine {
	if frames <= 0 {
		Halt("machine with %d frames", frames)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Machine{
		mem:   make([]byte, frames*layout.FrameSize),
		ports: make(map[uint16]PortDevice),
		log:   log,
	}
}

// Logger returns the machine's logger for components to trace through.
func (m *Machine) Logger() *slog.Logger { return m.log }

// Frames returns the number of physical frames installed.
func (m *Machine) Frames() int { return len(m.mem) / layout.FrameSize }

// FrameBytes returns the backing bytes of one physical frame.
func (m *Machine) FrameBytes(frameNo uint32) []byte {
	base := int(frameNo) * layout.FrameSize
	if base < 0 || base+layout.FrameSize > len(m.mem) {
		Halt("frame %d outside physical memory", frameNo)
	}
	return m.mem[base : base+layout.FrameSize]
}

// ReadPhysWord reads a 32-bit little-endian word from physical memory.
func (m *Machine) ReadPhysWord(pa uint32) uint32 {
	if int(pa)+layout.WordSize > len(m.mem) {
		Halt("physical read at %#x beyond memory", pa)
	}
	return binary.LittleEndian.Uint32(m.mem[pa:])
}

// WritePhysWord writes a 32-bit little-endian word to physical memory.
func (m *Machine) WritePhysWord(pa uint32, v uint32) {
	if int(pa)+layout.WordSize > len(m.mem) {
		Halt("physical write at %#x beyond memory", pa)
	}
	binary.LittleEndian.PutUint32(m.mem[pa:], v)
}

// Control-register accessors. WriteCR3 doubles as the TLB flush point; the
// simulation keeps no TLB state, so the write itself is the whole effect.

func (m *Machine) ReadCR0() uint32   { return m.cr0 }
func (m *Machine) WriteCR0(v uint32) { m.cr0 = v }
func (m *Machine) ReadCR2() uint32   { return m.cr2 }
func (m *Machine) ReadCR3() uint32   { return m.cr3 }
func (m *Machine) WriteCR3(v uint32) { m.cr3 = v }

// PagingEnabled reports whether CR0 has the paging bit set.
func (m *Machine) PagingEnabled() bool {
	return m.cr0&layout.CR0PagingBit != 0
}

// InterruptsEnabled reports the simulated interrupt-enable flag.
func (m *Machine) InterruptsEnabled() bool { return m.intsEnabled }

// EnableInterrupts sets the simulated interrupt-enable flag.
func (m *Machine) EnableInterrupts() { m.intsEnabled = true }

// DisableInterrupts clears the simulated interrupt-enable flag.
func (m *Machine) DisableInterrupts() { m.intsEnabled = false }

// SetFaultHandler installs the page-fault ISR.
func (m *Machine) SetFaultHandler(h FaultHandler) { m.faultHandler = h }

// pageFault describes a failed translation before it is raised.
type pageFault struct {
	addr    uint32
	errCode uint32
}

// translate walks the two-level table rooted at CR3. It returns the
// physical address, or a fault description when the walk cannot complete.
// With paging disabled, addresses translate to themselves.
func (m *Machine) translate(va uint32, write bool) (uint32, *pageFault) {
	if !m.PagingEnabled() {
		return va, nil
	}

	var errW uint32
	if write {
		errW = layout.FaultErrWrite
	}

	dirBase := m.cr3 & layout.PTEFrameMask
	pde := m.ReadPhysWord(dirBase + layout.DirIndex(va)*layout.WordSize)
	if pde&layout.PTEPresent == 0 {
		return 0, &pageFault{addr: va, errCode: errW}
	}
	if write && pde&layout.PTEWritable == 0 {
		return 0, &pageFault{addr: va, errCode: layout.FaultErrProtection | errW}
	}

	tableBase := pde & layout.PTEFrameMask
	pte := m.ReadPhysWord(tableBase + layout.TableIndex(va)*layout.WordSize)
	if pte&layout.PTEPresent == 0 {
		return 0, &pageFault{addr: va, errCode: errW}
	}
	if write && pte&layout.PTEWritable == 0 {
		return 0, &pageFault{addr: va, errCode: layout.FaultErrProtection | errW}
	}

	return (pte & layout.PTEFrameMask) | layout.PageOffset(va), nil
}

// raise loads CR2 and runs the installed fault handler.
func (m *Machine) raise(f *pageFault) {
	if m.faultHandler == nil {
		Halt("page fault at %#x with no handler installed", f.addr)
	}
	m.cr2 = f.addr
	m.faultHandler(&Regs{ErrCode: f.errCode})
}

// resolve translates va, raising and retrying on faults the way re-fired
// faults behave on hardware.
func (m *Machine) resolve(va uint32, write bool) uint32 {
	for attempt := 0; attempt < faultRetryLimit; attempt++ {
		pa, flt := m.translate(va, write)
		if flt == nil {
			return pa
		}
		m.raise(flt)
	}
	Halt("page fault at %#x not resolved after %d retries", va, faultRetryLimit)
	return 0
}

// ReadWord reads a 32-bit word through virtual memory.
func (m *Machine) ReadWord(va uint32) uint32 {
	return m.ReadPhysWord(m.resolve(va, false))
}

// WriteWord writes a 32-bit word through virtual memory.
func (m *Machine) WriteWord(va uint32, v uint32) {
	m.WritePhysWord(m.resolve(va, true), v)
}

// ReadVirt copies len(buf) bytes from virtual memory, faulting page by page.
func (m *Machine) ReadVirt(va uint32, buf []byte) {
	for off := 0; off < len(buf); {
		pa := m.resolve(va+uint32(off), false)
		n := layout.FrameSize - int(layout.PageOffset(va+uint32(off)))
		if rem := len(buf) - off; n > rem {
			n = rem
		}
		copy(buf[off:off+n], m.mem[pa:])
		off += n
	}
}

// WriteVirt copies buf into virtual memory, faulting page by page.
func (m *Machine) WriteVirt(va uint32, buf []byte) {
	for off := 0; off < len(buf); {
		pa := m.resolve(va+uint32(off), true)
		n := layout.FrameSize - int(layout.PageOffset(va+uint32(off)))
		if rem := len(buf) - off; n > rem {
			n = rem
		}
		copy(m.mem[pa:int(pa)+n], buf[off:off+n])
		off += n
	}
}
