package service_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckUnknownSession(t *testing.T) {
	f := setup(t)

	c, err := f.checker.Check("nope", 3)
	require.NoError(t, err)
	assert.False(t, c.Exists)
	assert.False(t, c.Complete)
	assert.Equal(t, 0, c.Received)
	assert.Equal(t, []int{}, c.Chunks)
	assert.Equal(t, []int{0, 1, 2}, c.Missing)
}

func TestCheckPartialSession(t *testing.T) {
	f := setup(t)
	parts := chunks()

	_, err := f.send("s1", 2, 3, 2560, false, parts[2])
	require.NoError(t, err)
	_, err = f.send("s1", 0, 3, 2560, false, parts[0])
	require.NoError(t, err)

	c, err := f.checker.Check("s1", 3)
	require.NoError(t, err)
	assert.True(t, c.Exists)
	assert.False(t, c.Complete)
	assert.Equal(t, 2, c.Received)
	assert.Equal(t, []int{0, 2}, c.Chunks)
	assert.Equal(t, []int{1}, c.Missing)
}

func TestCheckIgnoresForeignAndOutOfRangeFiles(t *testing.T) {
	f := setup(t)

	for _, name := range []string{"chunk_0", "chunk_1", "chunk_7", "notes.txt", ".chunk_2.123.tmp"} {
		wc, err := f.storage.Writer("s1", name)
		require.NoError(t, err)
		_, err = io.Copy(wc, bytes.NewReader([]byte("x")))
		require.NoError(t, err)
		require.NoError(t, wc.Close())
	}

	c, err := f.checker.Check("s1", 3)
	require.NoError(t, err)
	assert.False(t, c.Complete)
	assert.Equal(t, 2, c.Received)
	assert.Equal(t, []int{2}, c.Missing)
}

func TestCheckCompleteSession(t *testing.T) {
	f := setup(t)
	parts := chunks()

	for i, part := range parts {
		_, err := f.send("s1", i, 3, 2560, false, part)
		require.NoError(t, err)
	}

	c, err := f.checker.Check("s1", 3)
	require.NoError(t, err)
	assert.True(t, c.Complete)
	assert.Equal(t, []int{0, 1, 2}, c.Chunks)
	assert.Empty(t, c.Missing)
}

func TestCheckUnknownTotal(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.storage.MkdirAll("orphan"))
	for _, name := range []string{"chunk_0", "chunk_4", "notes.txt"} {
		w, err := f.storage.Writer("orphan", name)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	c, err := f.checker.Check("orphan", 0)
	require.NoError(t, err)
	assert.True(t, c.Exists)
	assert.False(t, c.Complete)
	assert.Equal(t, 2, c.Received)
	assert.Equal(t, []int{0, 4}, c.Chunks)
	assert.Equal(t, []int{}, c.Missing)
}
