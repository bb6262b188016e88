package fs

import "errors"

var (
	// ErrNotFormatted indicates the disk holds no recognizable volume.
	ErrNotFormatted = errors.New("fs: volume not formatted")

	// ErrExists indicates a create for a file id already present.
	ErrExists = errors.New("fs: file already exists")

	// ErrNotFound indicates no file with the given id.
	ErrNotFound = errors.New("fs: file not found")

	// ErrNoInode indicates the inode list is full.
	ErrNoInode = errors.New("fs: out of inodes")

	// ErrNoSpace indicates no free block is left.
	ErrNoSpace = errors.New("fs: out of free blocks")

	// ErrBadFileID indicates a negative file id.
	ErrBadFileID = errors.New("fs: invalid file id")

	// ErrNameTooLong indicates a name or label beyond its on-disk field.
	ErrNameTooLong = errors.New("fs: name too long")
)
