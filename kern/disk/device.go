package disk

import "github.com/kernkit/kernkit/kern/machine"

// pendingOp is one command the device has accepted but not finished.
type pendingOp struct {
	write bool
	block uint32

	// countdown is how many status polls remain until the data phase is
	// ready. This is what lets callers park instead of spin.
	countdown int

	// word indexes the next 16-bit transfer within the block.
	word int
}

// Device is the simulated ATA disk behind the IDE port range. Commands
// queue in arrival order; each becomes ready after latency status polls,
// then serves its 256-word data phase from the block image.
type Device struct {
	image   []byte
	latency int

	lbaLow, lbaMid, lbaHigh uint8
	drive                   uint8

	pending []pendingOp

	// transferLog records the block number of every data-register word
	// moved, in order. Tests use it to prove transfers never interleave.
	transferLog []uint32
}

// NewDevice creates an in-memory disk of the given number of blocks.
// latency is how many status polls a command stays busy for.
func NewDevice(blocks int, latency int) *Device {
	return &Device{
		image:   make([]byte, blocks*BlockSize),
		latency: latency,
	}
}

// NewDeviceFromImage wraps an existing block image, for instance a
// memory-mapped disk file. The image length must be a whole number of
// blocks.
func NewDeviceFromImage(image []byte, latency int) *Device {
	if len(image)%BlockSize != 0 {
		machine.Halt("disk image of %d bytes is not block aligned", len(image))
	}
	return &Device{image: image, latency: latency}
}

// Attach registers the device on the machine's IDE ports.
func (d *Device) Attach(m *machine.Machine) {
	m.RegisterPorts(d,
		portData, portSectors, portLBALow, portLBAMid, portLBAHigh,
		portDrive, portCommand, portAltSts)
}

// Blocks returns the device capacity in blocks.
func (d *Device) Blocks() uint32 {
	return uint32(len(d.image) / BlockSize)
}

// Image exposes the raw block image (used when formatting in place).
func (d *Device) Image() []byte { return d.image }

// TransferLog returns the per-word block trace.
func (d *Device) TransferLog() []uint32 { return d.transferLog }

// lba assembles the LBA28 address from the address registers.
func (d *Device) lba() uint32 {
	return uint32(d.lbaLow) | uint32(d.lbaMid)<<8 | uint32(d.lbaHigh)<<16 |
		uint32(d.drive&0x0F)<<24
}

// statusByte computes the status register without side effects.
func (d *Device) statusByte() uint8 {
	if len(d.pending) == 0 {
		return statusRDY
	}
	if d.pending[0].countdown > 0 {
		return statusBSY
	}
	return statusRDY | statusDRQ
}

// OutB latches address registers and accepts commands.
func (d *Device) OutB(port uint16, v uint8) {
	switch port {
	case portSectors:
		// Single-block operations only; the count is ignored.
	case portLBALow:
		d.lbaLow = v
	case portLBAMid:
		d.lbaMid = v
	case portLBAHigh:
		d.lbaHigh = v
	case portDrive:
		d.drive = v
	case portCommand:
		switch v {
		case cmdRead, cmdWrite:
			block := d.lba()
			if block >= d.Blocks() {
				machine.Halt("disk command for block %d beyond capacity %d",
					block, d.Blocks())
			}
			d.pending = append(d.pending, pendingOp{
				write:     v == cmdWrite,
				block:     block,
				countdown: d.latency,
			})
		case cmdCacheFlush:
			// Writes hit the image directly; nothing to flush.
		}
	}
}

// InB serves the status registers. A primary-status read ages the current
// command; the alternate register peeks without side effects.
func (d *Device) InB(port uint16) uint8 {
	switch port {
	case portStatus:
		s := d.statusByte()
		if len(d.pending) > 0 && d.pending[0].countdown > 0 {
			d.pending[0].countdown--
		}
		return s
	case portAltSts:
		return d.statusByte()
	}
	return 0
}

// InW streams read data out of the image.
func (d *Device) InW(port uint16) uint16 {
	if port != portData {
		return 0
	}
	op := d.dataPhaseOp(false)
	off := int(op.block)*BlockSize + op.word*2
	w := uint16(d.image[off]) | uint16(d.image[off+1])<<8
	d.advance(op)
	return w
}

// OutW streams write data into the image.
func (d *Device) OutW(port uint16, v uint16) {
	if port != portData {
		return
	}
	op := d.dataPhaseOp(true)
	off := int(op.block)*BlockSize + op.word*2
	d.image[off] = uint8(v)
	d.image[off+1] = uint8(v >> 8)
	d.advance(op)
}

// dataPhaseOp validates that the head command is in its data phase and
// moving in the expected direction.
func (d *Device) dataPhaseOp(write bool) *pendingOp {
	if len(d.pending) == 0 {
		machine.Halt("data transfer with no command outstanding")
	}
	op := &d.pending[0]
	if op.countdown > 0 {
		machine.Halt("data transfer while device busy")
	}
	if op.write != write {
		machine.Halt("data transfer direction mismatch")
	}
	return op
}

// advance logs the word and retires the command after its last word.
func (d *Device) advance(op *pendingOp) {
	d.transferLog = append(d.transferLog, op.block)
	op.word++
	if op.word == wordsPerBlock {
		d.pending = d.pending[1:]
	}
}
