package fs

import (
	"fmt"

	"github.com/kernkit/kernkit/kern/disk"
)

// File supports sequential reads and writes over one file's data blocks,
// located through the file's index block. The index block and the current
// data block are cached; Close writes the cached state back.
type File struct {
	fs    *FileSystem
	inode *Inode

	index [disk.BlockSize]byte
	cache [disk.BlockSize]byte

	pos uint32
}

// Open loads the file's index block and positions the cursor at the start.
func Open(fs *FileSystem, id int32) (*File, error) {
	ino := fs.LookupFile(id)
	if ino == nil {
		return nil, fmt.Errorf("fs: open %d: %w", id, ErrNotFound)
	}
	f := &File{fs: fs, inode: ino}
	fs.disk.Read(uint32(ino.IndexBlock), f.index[:])
	return f, nil
}

// Name returns the file's stored name.
func (f *File) Name() string { return f.inode.Name }

// Size returns the file's byte size.
func (f *File) Size() uint32 { return f.inode.Size }

// Reset rewinds the cursor to the start of the file.
func (f *File) Reset() { f.pos = 0 }

// EoF reports whether the cursor sits at or past the end of the file.
func (f *File) EoF() bool { return f.pos >= f.inode.Size }

// Read copies up to len(buf) bytes from the cursor onward and advances it.
// Returns how many bytes were read; short counts mean end of file.
func (f *File) Read(buf []byte) int {
	toRead := uint32(len(buf))
	if remaining := f.inode.Size - f.pos; toRead > remaining {
		toRead = remaining
	}

	read := uint32(0)
	for toRead > 0 {
		blockIdx := f.pos / disk.BlockSize
		offset := f.pos % disk.BlockSize
		if blockIdx >= MaxFileBlocks || f.index[blockIdx] == noBlock {
			break
		}

		f.fs.disk.Read(uint32(f.index[blockIdx]), f.cache[:])
		n := disk.BlockSize - offset
		if n > toRead {
			n = toRead
		}
		copy(buf[read:read+n], f.cache[offset:])

		read += n
		toRead -= n
		f.pos += n
	}
	return int(read)
}

// Write copies buf at the cursor, allocating data blocks on demand, and
// advances the cursor. Returns how many bytes were written; short counts
// mean the file hit its 128-block cap or the disk filled up. The index
// block and inode are flushed before returning.
func (f *File) Write(buf []byte) int {
	written := uint32(0)
	toWrite := uint32(len(buf))

	for toWrite > 0 {
		blockIdx := f.pos / disk.BlockSize
		offset := f.pos % disk.BlockSize
		if blockIdx >= MaxFileBlocks {
			break
		}

		if f.index[blockIdx] == noBlock {
			newBlock := f.fs.getFreeBlock()
			if newBlock == -1 {
				break
			}
			f.index[blockIdx] = byte(newBlock)
		}

		f.fs.disk.Read(uint32(f.index[blockIdx]), f.cache[:])
		n := disk.BlockSize - offset
		if n > toWrite {
			n = toWrite
		}
		copy(f.cache[offset:], buf[written:written+n])
		f.fs.disk.Write(uint32(f.index[blockIdx]), f.cache[:])

		written += n
		toWrite -= n
		f.pos += n
	}

	if f.pos > f.inode.Size {
		f.inode.Size = f.pos
	}
	f.flush()
	return int(written)
}

// flush writes the index block and metadata back to disk.
func (f *File) flush() {
	f.fs.disk.Write(uint32(f.inode.IndexBlock), f.index[:])
	f.fs.flushMetadata()
}

// Close writes any cached state back to disk.
func (f *File) Close() {
	f.flush()
}
