package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMapsContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	want := []byte("ARROW1 column bytes")
	require.NoError(t, os.WriteFile(path, want, 0o600))

	m, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, len(want), m.Len())
	assert.Equal(t, want, m.Bytes())

	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
	require.NoError(t, m.Close())
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	m, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	require.NoError(t, m.Close())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")
}
