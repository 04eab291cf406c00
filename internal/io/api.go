package io

import (
	"io"
	"io/fs"
	"os"
)

// FileIO is an interface for file io operations
type FileIO interface {
	Stat(target string) (os.FileInfo, error)
	ReadDir(name string) ([]os.DirEntry, error)
	Create(name string) (io.WriteCloser, error)
	IsSameFileSystem(source, target string) (bool, error)
	Open(name string) (*os.File, error)
	Rename(source, target string) error
	WalkDir(fsys fs.FS, root string, fn fs.WalkDirFunc) error
	Copy(source, target string) (int64, error)
	MkdirAll(name string, perm os.FileMode) error
	Fingerprint(target string) (Fingerprint, error)
}

// Fingerprint identifies a file across rescans by device, inode, size and
// modification time, independent of its path.
type Fingerprint struct {
	DeviceID uint64
	Inode    uint64
	Size     int64
	ModTime  int64
}
