// Package fs is the single-indirection-block file system used as the disk
// workload. Block 0 holds the inode list, block 1 the free-block map (one
// byte per block, 'u' used / 'f' free) plus the volume label. Each file owns
// one index block whose byte entries name its data blocks; 0xFF means "no
// block yet". Files are therefore capped at 128 data blocks (64 KiB).
package fs

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"

	"github.com/kernkit/kernkit/kern/disk"
)

const (
	inodeListBlock = 0
	freeListBlock  = 1

	// blockFree / blockUsed are the free-map cell encodings.
	blockFree = 'f'
	blockUsed = 'u'

	// noBlock marks an empty index-block entry; block numbers must stay
	// below it.
	noBlock = 0xFF

	// MaxFileBlocks caps a file at one index block of byte entries.
	MaxFileBlocks = 128

	// inodeSize is the on-disk inode footprint; MaxInodes of them fill
	// block 0 exactly.
	inodeSize = 32
	MaxInodes = disk.BlockSize / inodeSize

	// nameBytes is the UTF-16LE file-name field inside an inode.
	nameBytes = 16

	// labelOffset places the UTF-16LE volume label in the tail of the
	// free-list block, past the map cells a <=255-block disk can use.
	labelOffset = 480
	labelBytes  = 32
)

// utf16le codes file names and the volume label the way on-disk formats of
// this vintage do.
var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Inode describes one file: identifier, index block, byte size and a short
// name. A negative id marks the slot unused.
type Inode struct {
	ID         int32
	IndexBlock int32
	Size       uint32
	Name       string
}

// FileSystem is a mounted volume: the inode list and free map are cached in
// memory and written back after every mutating operation.
type FileSystem struct {
	disk   BlockDevice
	inodes [MaxInodes]Inode
	free   [disk.BlockSize]byte
}

// BlockDevice is the disk surface the file system needs; both SimpleDisk
// and NonBlockingDisk satisfy it.
type BlockDevice interface {
	Size() uint32
	Read(blockNo uint32, buf []byte)
	Write(blockNo uint32, buf []byte)
}

// Format initializes an empty volume on d: a cleared inode list, a free map
// with the two metadata blocks taken, and the label. Blocks the device does
// not have (or that an index entry could not name) are marked used so they
// are never handed out.
func Format(d BlockDevice, label string) error {
	buf := make([]byte, disk.BlockSize)
	for i := 0; i < MaxInodes; i++ {
		putInode(buf[i*inodeSize:], Inode{ID: -1, IndexBlock: -1})
	}
	d.Write(inodeListBlock, buf)

	for i := range buf {
		buf[i] = blockUsed
	}
	for b := uint32(2); b < d.Size() && b < noBlock; b++ {
		buf[b] = blockFree
	}
	encoded, err := utf16le.NewEncoder().Bytes([]byte(label))
	if err != nil || len(encoded) > labelBytes {
		return fmt.Errorf("fs: label %q does not fit: %w", label, errLabel(err))
	}
	for i := labelOffset; i < labelOffset+labelBytes; i++ {
		buf[i] = 0
	}
	copy(buf[labelOffset:], encoded)
	d.Write(freeListBlock, buf)
	return nil
}

func errLabel(err error) error {
	if err != nil {
		return err
	}
	return ErrNameTooLong
}

// Mount reads the metadata blocks and validates that a formatted volume is
// present: both metadata blocks must be marked used in the free map.
func Mount(d BlockDevice) (*FileSystem, error) {
	fs := &FileSystem{disk: d}

	buf := make([]byte, disk.BlockSize)
	d.Read(inodeListBlock, buf)
	for i := 0; i < MaxInodes; i++ {
		fs.inodes[i] = getInode(buf[i*inodeSize:])
	}

	d.Read(freeListBlock, fs.free[:])
	if fs.free[inodeListBlock] != blockUsed || fs.free[freeListBlock] != blockUsed {
		return nil, ErrNotFormatted
	}
	return fs, nil
}

// Label returns the volume label recorded at format time.
func (fs *FileSystem) Label() string {
	raw := fs.free[labelOffset : labelOffset+labelBytes]
	end := len(raw)
	for end >= 2 && raw[end-1] == 0 && raw[end-2] == 0 {
		end -= 2
	}
	decoded, err := utf16le.NewDecoder().Bytes(raw[:end])
	if err != nil {
		return ""
	}
	return string(decoded)
}

// putInode serializes an inode into 32 bytes.
func putInode(buf []byte, ino Inode) {
	binary.LittleEndian.PutUint32(buf[0:], uint32(ino.ID))
	binary.LittleEndian.PutUint32(buf[4:], uint32(ino.IndexBlock))
	binary.LittleEndian.PutUint32(buf[8:], ino.Size)
	for i := 12; i < 12+nameBytes; i++ {
		buf[i] = 0
	}
	if encoded, err := utf16le.NewEncoder().Bytes([]byte(ino.Name)); err == nil {
		copy(buf[12:12+nameBytes], encoded)
	}
}

// getInode deserializes an inode.
func getInode(buf []byte) Inode {
	ino := Inode{
		ID:         int32(binary.LittleEndian.Uint32(buf[0:])),
		IndexBlock: int32(binary.LittleEndian.Uint32(buf[4:])),
		Size:       binary.LittleEndian.Uint32(buf[8:]),
	}
	raw := buf[12 : 12+nameBytes]
	end := len(raw)
	for end >= 2 && raw[end-1] == 0 && raw[end-2] == 0 {
		end -= 2
	}
	if decoded, err := utf16le.NewDecoder().Bytes(raw[:end]); err == nil {
		ino.Name = string(decoded)
	}
	return ino
}

// getFreeInode claims the first unused inode slot, -1 when none is left.
func (fs *FileSystem) getFreeInode() int {
	for i := range fs.inodes {
		if fs.inodes[i].ID < 0 {
			return i
		}
	}
	return -1
}

// getFreeBlock claims the first free block, -1 when the disk is full.
func (fs *FileSystem) getFreeBlock() int {
	for b := 2; b < noBlock; b++ {
		if fs.free[b] == blockFree {
			fs.free[b] = blockUsed
			return b
		}
	}
	return -1
}

// flushMetadata writes the inode list and free map back to disk.
func (fs *FileSystem) flushMetadata() {
	buf := make([]byte, disk.BlockSize)
	for i := range fs.inodes {
		putInode(buf[i*inodeSize:], fs.inodes[i])
	}
	fs.disk.Write(inodeListBlock, buf)
	fs.disk.Write(freeListBlock, fs.free[:])
}

// Files returns copies of the allocated inodes in slot order.
func (fs *FileSystem) Files() []Inode {
	var out []Inode
	for i := range fs.inodes {
		if fs.inodes[i].ID >= 0 {
			out = append(out, fs.inodes[i])
		}
	}
	return out
}

// LookupFile returns the inode for a file id, nil when absent.
func (fs *FileSystem) LookupFile(id int32) *Inode {
	for i := range fs.inodes {
		if fs.inodes[i].ID == id {
			return &fs.inodes[i]
		}
	}
	return nil
}

// CreateFile makes an empty file: a fresh inode plus a cleared index block.
func (fs *FileSystem) CreateFile(id int32, name string) error {
	if id < 0 {
		return fmt.Errorf("fs: file id %d: %w", id, ErrBadFileID)
	}
	if fs.LookupFile(id) != nil {
		return fmt.Errorf("fs: file %d: %w", id, ErrExists)
	}
	if encoded, err := utf16le.NewEncoder().Bytes([]byte(name)); err != nil || len(encoded) > nameBytes {
		return fmt.Errorf("fs: name %q: %w", name, ErrNameTooLong)
	}

	indexBlock := fs.getFreeBlock()
	if indexBlock == -1 {
		return fmt.Errorf("fs: create %d: %w", id, ErrNoSpace)
	}
	slot := fs.getFreeInode()
	if slot == -1 {
		fs.free[indexBlock] = blockFree
		return fmt.Errorf("fs: create %d: %w", id, ErrNoInode)
	}

	index := make([]byte, disk.BlockSize)
	for i := range index {
		index[i] = noBlock
	}
	fs.disk.Write(uint32(indexBlock), index)

	fs.inodes[slot] = Inode{ID: id, IndexBlock: int32(indexBlock), Name: name}
	fs.flushMetadata()
	return nil
}

// DeleteFile removes a file, returning its data blocks and index block to
// the free map.
func (fs *FileSystem) DeleteFile(id int32) error {
	ino := fs.LookupFile(id)
	if ino == nil {
		return fmt.Errorf("fs: delete %d: %w", id, ErrNotFound)
	}

	index := make([]byte, disk.BlockSize)
	fs.disk.Read(uint32(ino.IndexBlock), index)
	for i := 0; i < MaxFileBlocks; i++ {
		if index[i] != noBlock {
			fs.free[index[i]] = blockFree
		}
	}
	fs.free[ino.IndexBlock] = blockFree

	*ino = Inode{ID: -1, IndexBlock: -1}
	fs.flushMetadata()
	return nil
}
