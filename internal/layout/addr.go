package layout

// Virtual-address split for the two-level table walk.
// bits [31:22] index the directory, [21:12] the page table, [11:0] the page.

// DirIndex returns the page-directory index of a virtual address.
func DirIndex(va uint32) uint32 {
	return (va >> 22) & 0x3FF
}

// TableIndex returns the page-table index of a virtual address.
func TableIndex(va uint32) uint32 {
	return (va >> 12) & 0x3FF
}

// PageOffset returns the offset of a virtual address within its page.
func PageOffset(va uint32) uint32 {
	return va & (FrameSize - 1)
}

// FrameAddress returns the physical base address of a frame number.
func FrameAddress(frameNo uint32) uint32 {
	return frameNo << FrameShift
}

// AddressFrame returns the frame number containing a physical address.
func AddressFrame(addr uint32) uint32 {
	return addr >> FrameShift
}

// TableWindow returns the self-map virtual address through which the page
// table for directory index dirIdx is visible while the table is active.
func TableWindow(dirIdx uint32) uint32 {
	return SelfMapTableBase | (dirIdx << FrameShift)
}

// PagesForBytes returns the number of whole pages needed to hold n bytes.
func PagesForBytes(n uint32) uint32 {
	return (n + FrameSize - 1) / FrameSize
}

// AlignPage returns addr aligned down to its page base.
func AlignPage(addr uint32) uint32 {
	return addr &^ (FrameSize - 1)
}
