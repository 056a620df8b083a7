package xpath_test

import (
	"testing"

	"github.com/mdouchement/chunkd/internal/xpath"
	"github.com/stretchr/testify/assert"
)

func TestValidSession(t *testing.T) {
	assert.True(t, xpath.ValidSession("upload-1234_abc.v2"))

	assert.False(t, xpath.ValidSession(""))
	assert.False(t, xpath.ValidSession("."))
	assert.False(t, xpath.ValidSession(".."))
	assert.False(t, xpath.ValidSession("../etc"))
	assert.False(t, xpath.ValidSession("a/b"))
	assert.False(t, xpath.ValidSession("with space"))
}

func TestChunkNameRoundTrip(t *testing.T) {
	for _, i := range []int{0, 1, 9, 10, 12345} {
		index, ok := xpath.ChunkIndex(xpath.ChunkName(i))
		assert.True(t, ok)
		assert.Equal(t, i, index)
	}
}

func TestChunkIndexRejectsForeignFiles(t *testing.T) {
	for _, name := range []string{"chunk_", "chunk_-1", "chunk_01", "chunk_1.tmp", ".chunk_1.tmp", "other", "chunk_1a"} {
		_, ok := xpath.ChunkIndex(name)
		assert.False(t, ok, name)
	}
}
