package disk

import "github.com/kernkit/kernkit/kern/machine"

// BlockSize is the transfer unit: 512 bytes moved as 256 16-bit words.
const (
	BlockSize     = 512
	wordsPerBlock = BlockSize / 2
)

// IDE port map: command block on 0x1F0..0x1F7, alternate status on 0x3F6.
const (
	portData    uint16 = 0x1F0
	portSectors uint16 = 0x1F2
	portLBALow  uint16 = 0x1F3
	portLBAMid  uint16 = 0x1F4
	portLBAHigh uint16 = 0x1F5
	portDrive   uint16 = 0x1F6
	portCommand uint16 = 0x1F7
	portStatus  uint16 = 0x1F7
	portAltSts  uint16 = 0x3F6
)

// ATA status bits and commands.
const (
	statusERR uint8 = 0x01
	statusDRQ uint8 = 0x08
	statusDF  uint8 = 0x20
	statusRDY uint8 = 0x40
	statusBSY uint8 = 0x80

	cmdRead       uint8 = 0x20
	cmdWrite      uint8 = 0x30
	cmdCacheFlush uint8 = 0xE7
)

// Op selects the direction of a block operation.
type Op uint8

const (
	OpRead Op = iota
	OpWrite
)

// IDEController drives an LBA28 disk with programmed I/O on the primary
// controller's ports. Derived from the classic PIO access sequence: load
// the sector count and LBA registers, send the command, poll status, then
// stream the data register.
type IDEController struct {
	m *machine.Machine
}

// NewIDEController returns a controller talking through m's port bus.
func NewIDEController(m *machine.Machine) *IDEController {
	return &IDEController{m: m}
}

// status reads the primary status register. In the simulation every status
// read also ages the device's current command, so polling makes progress.
func (c *IDEController) status() uint8 {
	return c.m.InPortB(portStatus)
}

// IsReady reports whether the device has data to transfer (DRQ set).
func (c *IDEController) IsReady() bool {
	return c.status()&statusDRQ != 0
}

// IssueCommand loads the LBA registers and sends a read or write command
// for the given block. Waits out a busy device first.
func (c *IDEController) IssueCommand(op Op, blockNo uint32) {
	for c.status()&statusBSY != 0 {
	}

	c.m.OutPortB(portSectors, 0x01)
	c.m.OutPortB(portLBALow, uint8(blockNo))
	c.m.OutPortB(portLBAMid, uint8(blockNo>>8))
	c.m.OutPortB(portLBAHigh, uint8(blockNo>>16))
	c.m.OutPortB(portDrive, uint8(blockNo>>24)&0x0F|0xE0)

	if op == OpRead {
		c.m.OutPortB(portCommand, cmdRead)
	} else {
		c.m.OutPortB(portCommand, cmdWrite)
	}
}

// Poll waits for BSY to clear, reading the alternate status register four
// times first (the canonical 400 ns settle delay). With advancedCheck it
// then validates ERR, DF and DRQ; any anomaly is fatal.
func (c *IDEController) Poll(advancedCheck bool) {
	for i := 0; i < 4; i++ {
		c.m.InPortB(portAltSts)
	}
	for c.status()&statusBSY != 0 {
	}

	if advancedCheck {
		state := c.status()
		if state&statusERR != 0 {
			machine.Halt("ide error, status %#x", state)
		}
		if state&statusDF != 0 {
			machine.Halt("ide device fault, status %#x", state)
		}
		if state&statusDRQ == 0 {
			machine.Halt("ide DRQ not set, status %#x", state)
		}
	}
}

// TransferIn streams one block from the data register into buf.
func (c *IDEController) TransferIn(buf []byte) {
	for i := 0; i < wordsPerBlock; i++ {
		w := c.m.InPortW(portData)
		buf[i*2] = uint8(w)
		buf[i*2+1] = uint8(w >> 8)
	}
}

// TransferOut streams one block from buf into the data register.
func (c *IDEController) TransferOut(buf []byte) {
	for i := 0; i < wordsPerBlock; i++ {
		c.m.OutPortW(portData, uint16(buf[i*2])|uint16(buf[i*2+1])<<8)
	}
}

// FlushCache issues the cache-flush command after a write.
func (c *IDEController) FlushCache() {
	c.m.OutPortB(portCommand, cmdCacheFlush)
}

// ReadBlock performs a complete blocking read of one block.
func (c *IDEController) ReadBlock(blockNo uint32, buf []byte) {
	c.IssueCommand(OpRead, blockNo)
	c.Poll(true)
	c.TransferIn(buf)
}

// WriteBlock performs a complete blocking write of one block.
func (c *IDEController) WriteBlock(blockNo uint32, buf []byte) {
	c.IssueCommand(OpWrite, blockNo)
	c.Poll(false)
	c.TransferOut(buf)
	c.FlushCache()
	c.Poll(false)
}
