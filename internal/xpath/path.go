package xpath

import (
	"regexp"
	"strconv"
	"strings"
)

// ChunkPrefix is the filename prefix of every stored chunk.
const ChunkPrefix = "chunk_"

var session = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidSession returns true if id can be safely used as a directory name.
func ValidSession(id string) bool {
	if id == "." || id == ".." {
		return false
	}
	return session.MatchString(id)
}

// ChunkName returns the filename of the chunk at the given index.
func ChunkName(index int) string {
	return ChunkPrefix + strconv.Itoa(index)
}

// ChunkIndex extracts the index from a chunk filename.
// It returns false for any file that is not a chunk.
func ChunkIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, ChunkPrefix) {
		return 0, false
	}

	digits := strings.TrimPrefix(name, ChunkPrefix)
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0, false
	}
	if len(digits) > 1 && digits[0] == '0' {
		return 0, false
	}

	index, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return index, true
}
