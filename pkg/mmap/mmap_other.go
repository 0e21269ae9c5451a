//go:build !linux && !darwin

package mmap

import (
	"io"
	"os"
)

// mapFile reads the file on platforms without a syscall.Mmap.
func mapFile(f *os.File, size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, err
	}
	return data, nil
}

func unmapFile([]byte) error { return nil }

func adviseSequential([]byte) error { return nil }
