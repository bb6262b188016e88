package frame

import (
	"github.com/kernkit/kernkit/internal/layout"
	"github.com/kernkit/kernkit/kern/machine"
)

// Pool allocates contiguous runs of physical frames from the range
// [baseFrame, baseFrame+nFrames). The state bitmap lives in the pool's own
// first frame when infoFrame is zero, otherwise in the named external frame.
type Pool struct {
	m *machine.Machine

	baseFrame uint32
	nFrames   uint32
	infoFrame uint32
	freeCount uint32

	// bitmap aliases the backing bytes of the info frame.
	bitmap []byte

	// next links the pool into its registry, construction order.
	next *Pool
}

// NewPool constructs a pool over [baseFrame, baseFrame+nFrames), marks every
// manageable frame Free, and links the pool into reg. With infoFrame zero
// the bitmap occupies the pool's first frame and that frame is taken out of
// circulation. Halts if the bitmap cannot fit one frame.
func NewPool(m *machine.Machine, reg *Registry, baseFrame, nFrames, infoFrame uint32) *Pool {
	if nFrames == 0 || nFrames > layout.MaxPoolFrames {
		machine.Halt("pool of %d frames does not fit a one-frame bitmap", nFrames)
	}

	p := &Pool{
		m:         m,
		baseFrame: baseFrame,
		nFrames:   nFrames,
		infoFrame: infoFrame,
		freeCount: nFrames,
	}

	bitmapFrame := infoFrame
	if infoFrame == 0 {
		bitmapFrame = baseFrame
	}
	p.bitmap = m.FrameBytes(bitmapFrame)

	for f := uint32(0); f < nFrames; f++ {
		p.setState(f, Free)
	}
	if infoFrame == 0 {
		p.setState(0, Used)
		p.freeCount--
	}

	reg.add(p)
	m.Logger().Info("frame pool initialized",
		"base", baseFrame, "frames", nFrames, "info", infoFrame)
	return p
}

// BaseFrame returns the pool's first frame number.
func (p *Pool) BaseFrame() uint32 { return p.baseFrame }

// NFrames returns the number of frames the pool manages.
func (p *Pool) NFrames() uint32 { return p.nFrames }

// FreeCount returns the number of frames currently Free.
func (p *Pool) FreeCount() uint32 { return p.freeCount }

// StateOf returns the state of an absolute frame number. Halts when the
// frame is outside the pool.
func (p *Pool) StateOf(frameNo uint32) State {
	if !p.contains(frameNo) {
		machine.Halt("frame %d outside pool [%d,%d)", frameNo, p.baseFrame, p.baseFrame+p.nFrames)
	}
	return p.getState(frameNo - p.baseFrame)
}

func (p *Pool) contains(frameNo uint32) bool {
	return frameNo >= p.baseFrame && frameNo < p.baseFrame+p.nFrames
}

// getState reads the 2-bit state of the frame at pool-relative index rel.
// Bit pairs pack little-endian within each byte at offsets 0, 2, 4, 6.
func (p *Pool) getState(rel uint32) State {
	shift := (rel % layout.FramesPerBitmapByte) * layout.BitsPerFrameState
	return State((p.bitmap[rel/layout.FramesPerBitmapByte] >> shift) & 0x3)
}

// setState writes the 2-bit state of the frame at rel: clear both bits
// first, then OR in the encoding. Toggling without the clear corrupts the
// cell on overwrite.
func (p *Pool) setState(rel uint32, s State) {
	idx := rel / layout.FramesPerBitmapByte
	shift := (rel % layout.FramesPerBitmapByte) * layout.BitsPerFrameState
	p.bitmap[idx] &^= 0x3 << shift
	p.bitmap[idx] |= uint8(s) << shift
}

// markRun stamps a run starting at pool-relative rel: Head-of-Sequence for
// the first frame, Used for the rest. Returns how many of the stamped
// frames were Free beforehand.
func (p *Pool) markRun(rel, n uint32) uint32 {
	var wereFree uint32
	if p.getState(rel) == Free {
		wereFree++
	}
	p.setState(rel, HeadOfSequence)
	for f := rel + 1; f < rel+n; f++ {
		if p.getState(f) == Free {
			wereFree++
		}
		p.setState(f, Used)
	}
	return wereFree
}

// GetFrames finds the first (lowest-index) run of exactly n free frames,
// marks it allocated, and returns the absolute frame number of its head.
// Returns 0 and ErrNoRun when the pool is too fragmented to satisfy the
// request. Halts when n is zero or exceeds the free count.
func (p *Pool) GetFrames(n uint32) (uint32, error) {
	if n == 0 {
		machine.Halt("allocation of zero frames")
	}
	if n > p.freeCount {
		machine.Halt("allocation of %d frames with only %d free", n, p.freeCount)
	}

	var start, free uint32
	for f := uint32(0); f < p.nFrames; f++ {
		if p.getState(f) != Free {
			start = f + 1
			free = 0
			continue
		}
		free++
		if free == n {
			p.markRun(start, n)
			p.freeCount -= n
			p.m.Logger().Debug("allocated frames",
				"first", start+p.baseFrame, "count", n, "free", p.freeCount)
			return start + p.baseFrame, nil
		}
	}

	return 0, ErrNoRun
}

// MarkInaccessible force-marks the run [baseFrameNo, baseFrameNo+n) as
// allocated without searching: head first, Used after. Used to pre-reserve
// kernel regions. The free count drops by however many of those frames were
// actually Free.
func (p *Pool) MarkInaccessible(baseFrameNo, n uint32) {
	if n == 0 || !p.contains(baseFrameNo) || !p.contains(baseFrameNo+n-1) {
		machine.Halt("mark of [%d,%d) outside pool [%d,%d)",
			baseFrameNo, baseFrameNo+n, p.baseFrame, p.baseFrame+p.nFrames)
	}
	p.freeCount -= p.markRun(baseFrameNo-p.baseFrame, n)
}

// releaseRun frees the run headed at the absolute frame number. Halts when
// the frame is not a Head-of-Sequence. Returns the run length.
func (p *Pool) releaseRun(frameNo uint32) uint32 {
	rel := frameNo - p.baseFrame
	if p.getState(rel) != HeadOfSequence {
		machine.Halt("release of frame %d which is not a head-of-sequence", frameNo)
	}

	p.setState(rel, Free)
	n := uint32(1)
	for f := rel + 1; f < p.nFrames && p.getState(f) == Used; f++ {
		p.setState(f, Free)
		n++
	}
	p.freeCount += n
	p.m.Logger().Debug("released frames", "first", frameNo, "count", n, "free", p.freeCount)
	return n
}

// NeededInfoFrames returns how many info frames are required to manage a
// pool of n frames at two bits per frame.
func NeededInfoFrames(n uint32) uint32 {
	bits := 2 * n
	perFrame := uint32(8 * layout.FrameSize)
	return (bits + perFrame - 1) / perFrame
}
