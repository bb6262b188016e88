package frame

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernkit/kernkit/kern/machine"
)

// assertInvariants checks the bitmap shape after every mutation: the free
// count matches the number of Free cells, no reserved encoding appears, and
// every Used frame is preceded by a Used or Head-of-Sequence frame.
func assertInvariants(t *testing.T, p *Pool) {
	t.Helper()

	var free uint32
	prev := Free
	for f := uint32(0); f < p.nFrames; f++ {
		s := p.getState(f)
		switch s {
		case Free:
			free++
		case Used:
			require.NotEqual(t, Free, prev, "Used frame %d preceded by Free", f)
		case HeadOfSequence:
		default:
			t.Fatalf("reserved encoding at frame %d", f)
		}
		prev = s
	}
	require.Equal(t, free, p.freeCount, "free count out of sync with bitmap")
}

func newTestPool(t *testing.T, base, n, info uint32) (*machine.Machine, *Registry, *Pool) {
	t.Helper()
	frames := int(base + n)
	if info >= base+n {
		frames = int(info) + 1
	}
	m := machine.New(frames, nil)
	reg := NewRegistry()
	p := NewPool(m, reg, base, n, info)
	assertInvariants(t, p)
	return m, reg, p
}

func TestPoolScenarioS1(t *testing.T) {
	_, reg, p := newTestPool(t, 512, 1024, 0)

	// Frame 512 holds the bitmap and is excluded from allocation.
	require.Equal(t, uint32(1023), p.FreeCount())
	require.Equal(t, Used, p.StateOf(512))

	f1, err := p.GetFrames(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(513), f1)
	assert.Equal(t, HeadOfSequence, p.StateOf(513))

	f4, err := p.GetFrames(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(514), f4)
	assert.Equal(t, HeadOfSequence, p.StateOf(514))
	for f := uint32(515); f <= 517; f++ {
		assert.Equal(t, Used, p.StateOf(f))
	}
	assertInvariants(t, p)

	reg.ReleaseFrames(514)
	assert.Equal(t, uint32(1022), p.FreeCount())
	for f := uint32(514); f <= 517; f++ {
		assert.Equal(t, Free, p.StateOf(f))
	}
	assertInvariants(t, p)

	reg.ReleaseFrames(513)
	assert.Equal(t, uint32(1023), p.FreeCount())
	assertInvariants(t, p)
}

func TestGetFramesMarksExactRun(t *testing.T) {
	_, _, p := newTestPool(t, 512, 64, 0)

	before := make([]State, p.NFrames())
	for f := uint32(0); f < p.NFrames(); f++ {
		before[f] = p.getState(f)
	}

	first, err := p.GetFrames(5)
	require.NoError(t, err)

	rel := first - p.BaseFrame()
	for f := uint32(0); f < p.NFrames(); f++ {
		switch {
		case f == rel:
			assert.Equal(t, HeadOfSequence, p.getState(f))
		case f > rel && f < rel+5:
			assert.Equal(t, Used, p.getState(f))
		default:
			assert.Equal(t, before[f], p.getState(f), "frame %d changed", f)
		}
	}
}

func TestReleaseRestoresBitmap(t *testing.T) {
	_, reg, p := newTestPool(t, 100, 256, 0)

	// Fragment the pool: three runs, release the middle one.
	a, err := p.GetFrames(3)
	require.NoError(t, err)
	b, err := p.GetFrames(4)
	require.NoError(t, err)
	c, err := p.GetFrames(2)
	require.NoError(t, err)
	reg.ReleaseFrames(b)
	assertInvariants(t, p)

	// Round trip: an equal request lands back on the same run.
	snapshot := make([]byte, len(p.bitmap))
	copy(snapshot, p.bitmap)
	free := p.FreeCount()

	got, err := p.GetFrames(4)
	require.NoError(t, err)
	assert.Equal(t, b, got)
	reg.ReleaseFrames(got)

	assert.Equal(t, snapshot, p.bitmap)
	assert.Equal(t, free, p.FreeCount())

	// Neighbor runs never moved.
	assert.Equal(t, HeadOfSequence, p.StateOf(a))
	assert.Equal(t, HeadOfSequence, p.StateOf(c))
}

func TestReleaseStopsAtNextHead(t *testing.T) {
	_, reg, p := newTestPool(t, 100, 64, 0)

	a, err := p.GetFrames(3)
	require.NoError(t, err)
	b, err := p.GetFrames(3)
	require.NoError(t, err)
	require.Equal(t, a+3, b, "runs expected back to back")

	reg.ReleaseFrames(a)
	assert.Equal(t, Free, p.StateOf(a))
	assert.Equal(t, HeadOfSequence, p.StateOf(b), "release must stop at the next head")
	assert.Equal(t, Used, p.StateOf(b+1))
	assertInvariants(t, p)
}

func TestExternalInfoFrame(t *testing.T) {
	m := machine.New(300, nil)
	reg := NewRegistry()
	p := NewPool(m, reg, 200, 64, 10)

	// With the bitmap elsewhere, the pool's first frame is allocatable.
	require.Equal(t, uint32(64), p.FreeCount())
	first, err := p.GetFrames(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(200), first)
	assertInvariants(t, p)
}

func TestMarkInaccessible(t *testing.T) {
	_, reg, p := newTestPool(t, 512, 128, 0)

	p.MarkInaccessible(520, 8)
	assert.Equal(t, HeadOfSequence, p.StateOf(520))
	assert.Equal(t, Used, p.StateOf(527))
	assert.Equal(t, uint32(119), p.FreeCount())
	assertInvariants(t, p)

	// The reserved run releases like any other.
	reg.ReleaseFrames(520)
	assertInvariants(t, p)
	assert.Equal(t, uint32(127), p.FreeCount())
}

func TestFragmentedPoolReturnsSentinel(t *testing.T) {
	_, reg, p := newTestPool(t, 100, 16, 0)

	// Allocate seven pairs back to back, then free alternating pairs:
	// plenty of free frames but no run longer than two.
	var heads []uint32
	for i := 0; i < 7; i++ {
		h, err := p.GetFrames(2)
		require.NoError(t, err)
		heads = append(heads, h)
	}
	for i := 0; i < 6; i += 2 {
		reg.ReleaseFrames(heads[i])
	}
	assertInvariants(t, p)

	got, err := p.GetFrames(3)
	assert.ErrorIs(t, err, ErrNoRun)
	assert.Equal(t, uint32(0), got)
}

func TestAllocationHalts(t *testing.T) {
	_, _, p := newTestPool(t, 100, 8, 0)

	require.Panics(t, func() { p.GetFrames(0) })
	require.Panics(t, func() { p.GetFrames(8) }, "only 7 frames are free")
}

func TestOversizedPoolHalts(t *testing.T) {
	m := machine.New(4, nil)
	reg := NewRegistry()
	require.Panics(t, func() { NewPool(m, reg, 0, 16385, 1) })
}

func TestNeededInfoFramesScenarioS6(t *testing.T) {
	assert.Equal(t, uint32(1), NeededInfoFrames(16384))
	assert.Equal(t, uint32(2), NeededInfoFrames(16385))
	assert.Equal(t, uint32(1), NeededInfoFrames(1))
	assert.Equal(t, uint32(0), NeededInfoFrames(0))
}

// TestRandomizedChurn drives a random get/release sequence and checks the
// bitmap invariants after every step.
func TestRandomizedChurn(t *testing.T) {
	_, reg, p := newTestPool(t, 512, 512, 0)
	rng := rand.New(rand.NewSource(1))

	type run struct{ head, n uint32 }
	var live []run

	for step := 0; step < 2000; step++ {
		if rng.Intn(2) == 0 && p.FreeCount() > 16 {
			n := uint32(rng.Intn(8) + 1)
			head, err := p.GetFrames(n)
			if err == nil {
				live = append(live, run{head, n})
			}
		} else if len(live) > 0 {
			i := rng.Intn(len(live))
			reg.ReleaseFrames(live[i].head)
			live = append(live[:i], live[i+1:]...)
		}
		assertInvariants(t, p)
	}

	for _, r := range live {
		reg.ReleaseFrames(r.head)
	}
	assertInvariants(t, p)
	assert.Equal(t, uint32(511), p.FreeCount())
}
