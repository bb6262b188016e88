package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernkit/kernkit/kern/machine"
)

func TestRegistryDispatchScenarioS2(t *testing.T) {
	m := machine.New(400, nil)
	reg := NewRegistry()
	a := NewPool(m, reg, 1, 99, 0)
	b := NewPool(m, reg, 200, 200, 0)

	// An allocation from B must be released by B after A reports "not mine".
	head, err := b.GetFrames(10)
	require.NoError(t, err)
	require.Equal(t, uint32(201), head)

	reg.ReleaseFrames(head)
	assert.Equal(t, uint32(199), b.FreeCount())
	assert.Equal(t, uint32(98), a.FreeCount())
	assertInvariants(t, a)
	assertInvariants(t, b)
}

func TestRegistryOrder(t *testing.T) {
	m := machine.New(64, nil)
	reg := NewRegistry()
	a := NewPool(m, reg, 0, 16, 1)
	b := NewPool(m, reg, 16, 16, 2)
	c := NewPool(m, reg, 32, 16, 3)

	assert.Equal(t, []*Pool{a, b, c}, reg.Pools())
}

func TestReleaseHalts(t *testing.T) {
	m := machine.New(128, nil)
	reg := NewRegistry()
	p := NewPool(m, reg, 10, 32, 0)

	head, err := p.GetFrames(4)
	require.NoError(t, err)

	// Interior frames are not valid release targets.
	require.Panics(t, func() { reg.ReleaseFrames(head + 1) })

	// Neither are frames outside every pool.
	require.Panics(t, func() { reg.ReleaseFrames(100) })
}
