// Package mmap maps input files read-only into memory so columnar decoders
// can read them without an intermediate copy.
package mmap

import (
	"fmt"
	"os"
)

// File is a read-only mapping of a whole file
type File struct {
	file *os.File
	data []byte
}

// Open maps the file at path. Empty files are valid and map to no bytes.
func Open(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the caller
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()
	if size == 0 {
		return &File{file: f}, nil
	}
	if int64(int(size)) != size {
		f.Close()
		return nil, fmt.Errorf("file of %d bytes cannot be mapped", size)
	}

	data, err := mapFile(f, int(size))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap file: %w", err)
	}
	// Advice is a hint; decoding works without it.
	_ = adviseSequential(data)

	return &File{file: f, data: data}, nil
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (m *File) Bytes() []byte { return m.data }

// Len returns the file size
func (m *File) Len() int { return len(m.data) }

// Close unmaps the file and closes it
func (m *File) Close() error {
	var err error
	if m.data != nil {
		err = unmapFile(m.data)
		m.data = nil
	}
	if m.file != nil {
		if cerr := m.file.Close(); err == nil {
			err = cerr
		}
		m.file = nil
	}
	return err
}
