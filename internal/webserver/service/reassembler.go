package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/mdouchement/chunkd/internal/storage"
	"github.com/mdouchement/chunkd/internal/xpath"
)

type (
	// A Manifest describes the file expected from a reassembly.
	Manifest struct {
		SessionID   string
		FileName    string
		FileSize    int64
		ContentType string
		TotalChunks int
		// Checksum is the optional hex SHA-256 digest of the whole file.
		Checksum string
	}

	// A ReassembledFile is the in-memory concatenation of all the chunks of a session.
	ReassembledFile struct {
		SessionID   string
		FileName    string
		FileSize    int64
		ContentType string
		TotalChunks int
		Checksum    string
		Data        []byte
	}
)

// A Reassembler concatenates the chunks of a session in index order.
type Reassembler struct {
	storage storage.Backend
}

// NewReassembler returns a new Reassembler.
func NewReassembler(storage storage.Backend) *Reassembler {
	return &Reassembler{
		storage: storage,
	}
}

// Reassemble reads every chunk from 0 to TotalChunks-1 and verifies the result against the manifest.
// It does not remove the chunks.
func (s *Reassembler) Reassemble(m Manifest) (*ReassembledFile, error) {
	for index := 0; index < m.TotalChunks; index++ {
		if !s.storage.Exist(m.SessionID, xpath.ChunkName(index)) {
			return nil, &MissingChunkError{Index: index}
		}
	}

	// The buffer grows with the stored bytes, never with the declared size.
	var buf bytes.Buffer
	h := sha256.New()
	w := io.MultiWriter(&buf, h)

	for index := 0; index < m.TotalChunks; index++ {
		if err := s.copyChunk(w, m.SessionID, index); err != nil {
			return nil, err
		}
	}

	if int64(buf.Len()) != m.FileSize {
		return nil, &SizeMismatchError{
			Expected: m.FileSize,
			Actual:   int64(buf.Len()),
		}
	}

	checksum := hex.EncodeToString(h.Sum(nil))
	if m.Checksum != "" && m.Checksum != checksum {
		return nil, &ChecksumMismatchError{
			Expected: m.Checksum,
			Actual:   checksum,
		}
	}

	return &ReassembledFile{
		SessionID:   m.SessionID,
		FileName:    m.FileName,
		FileSize:    int64(buf.Len()),
		ContentType: m.ContentType,
		TotalChunks: m.TotalChunks,
		Checksum:    checksum,
		Data:        buf.Bytes(),
	}, nil
}

func (s *Reassembler) copyChunk(w io.Writer, session string, index int) error {
	rc, err := s.storage.Reader(session, xpath.ChunkName(index))
	if err != nil {
		if !s.storage.Exist(session, xpath.ChunkName(index)) {
			return &MissingChunkError{Index: index}
		}
		return &StorageError{Op: "read chunk", Err: err}
	}
	defer rc.Close()

	if _, err = io.Copy(w, rc); err != nil {
		return &StorageError{Op: "read chunk", Err: err}
	}
	return nil
}
