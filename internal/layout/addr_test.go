package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressSplit(t *testing.T) {
	tests := []struct {
		name    string
		va      uint32
		dirIdx  uint32
		tblIdx  uint32
		pageOff uint32
	}{
		{"zero", 0x00000000, 0, 0, 0},
		{"first 4MiB", 0x004003F8, 1, 0, 0x3F8},
		{"inside 4MiB region", 0x00401000, 1, 1, 0},
		{"directory window", 0xFFFFF000, 1023, 1023, 0},
		{"table window", 0xFFC01000, 1023, 1, 0},
		{"high half", 0x80000000, 512, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.dirIdx, DirIndex(tt.va))
			assert.Equal(t, tt.tblIdx, TableIndex(tt.va))
			assert.Equal(t, tt.pageOff, PageOffset(tt.va))
		})
	}
}

func TestTableWindow(t *testing.T) {
	assert.Equal(t, uint32(0xFFC00000), TableWindow(0))
	assert.Equal(t, uint32(0xFFC01000), TableWindow(1))
	assert.Equal(t, SelfMapDirBase, TableWindow(uint32(SelfMapSlot)))
}

func TestPagesForBytes(t *testing.T) {
	assert.Equal(t, uint32(0), PagesForBytes(0))
	assert.Equal(t, uint32(1), PagesForBytes(1))
	assert.Equal(t, uint32(1), PagesForBytes(FrameSize))
	assert.Equal(t, uint32(2), PagesForBytes(FrameSize+1))
}

func TestFrameAddressRoundTrip(t *testing.T) {
	for _, f := range []uint32{0, 1, 512, 16383} {
		assert.Equal(t, f, AddressFrame(FrameAddress(f)))
	}
}
