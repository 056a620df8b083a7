package service

import (
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mdouchement/chunkd/internal/database"
	"github.com/mdouchement/chunkd/internal/metrics"
	"github.com/mdouchement/chunkd/internal/model"
	"github.com/mdouchement/chunkd/internal/storage"
	"github.com/mdouchement/chunkd/internal/xpath"
	"github.com/mdouchement/logger"
)

// DefaultContentType is used when a chunk request does not declare any mime type.
const DefaultContentType = "application/octet-stream"

type (
	// A ChunkRequest carries one chunk of a session and the declared file properties.
	ChunkRequest struct {
		SessionID string
		FileName  string
		// FileSize is negative when undeclared.
		FileSize    int64
		ContentType string
		ChunkIndex  int
		TotalChunks int
		IsLastChunk bool
		// Checksum is the optional hex SHA-256 digest of the whole file.
		Checksum string
		Body     io.Reader
	}

	// A Receipt acknowledges a stored chunk.
	// File is set when the chunk was the last one and the reassembly succeeded.
	Receipt struct {
		ChunkIndex  int
		TotalChunks int
		File        *ReassembledFile
	}
)

// A ChunkReceiver persists the chunks and triggers the reassembly on the last one.
type ChunkReceiver struct {
	logger      logger.Logger
	database    database.Client
	storage     storage.Backend
	locker      *Locker
	checker     *CompletenessChecker
	reassembler *Reassembler
	cleanup     *SessionCleanup
	maxFileSize int64

	metamu sync.Mutex
}

// NewChunkReceiver returns a new ChunkReceiver.
// A maxFileSize of zero disables the declared size limit.
func NewChunkReceiver(log logger.Logger, database database.Client, storage storage.Backend, cleanup *SessionCleanup, maxFileSize int64) *ChunkReceiver {
	return &ChunkReceiver{
		logger:      log.WithPrefix("[upload]"),
		database:    database,
		storage:     storage,
		locker:      cleanup.locker,
		checker:     NewCompletenessChecker(storage),
		reassembler: NewReassembler(storage),
		cleanup:     cleanup,
		maxFileSize: maxFileSize,
	}
}

// Receive stores the chunk and, when it is flagged as the last one, reassembles the session.
func (s *ChunkReceiver) Receive(r ChunkRequest) (*Receipt, error) {
	if err := s.validate(&r); err != nil {
		return nil, err
	}

	session, err := s.store(r)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		ChunkIndex:  r.ChunkIndex,
		TotalChunks: r.TotalChunks,
	}
	if !r.IsLastChunk {
		return receipt, nil
	}

	receipt.File, err = s.complete(session)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *ChunkReceiver) validate(r *ChunkRequest) error {
	var missing []string
	if r.SessionID == "" {
		missing = append(missing, "sessionId")
	}
	if r.FileName == "" {
		missing = append(missing, "fileName")
	}
	if r.Body == nil {
		missing = append(missing, "chunk")
	}
	if len(missing) > 0 {
		return NewMissingFieldsError(missing...)
	}

	var invalid []string
	if !xpath.ValidSession(r.SessionID) {
		invalid = append(invalid, "sessionId")
	}
	r.FileName = filepath.Base(strings.ReplaceAll(r.FileName, "\\", "/"))
	if r.FileName == "." || r.FileName == "/" || r.FileName == ".." {
		invalid = append(invalid, "fileName")
	}
	if r.TotalChunks < 1 {
		invalid = append(invalid, "totalChunks")
	}
	if r.ChunkIndex < 0 || r.ChunkIndex >= r.TotalChunks {
		invalid = append(invalid, "chunkIndex")
	}
	if s.maxFileSize > 0 && r.FileSize > s.maxFileSize {
		invalid = append(invalid, "fileSize")
	}
	if len(invalid) > 0 {
		return NewInvalidFieldsError(invalid...)
	}

	if r.ContentType == "" {
		r.ContentType = DefaultContentType
	}
	r.Checksum = strings.ToLower(r.Checksum)
	return nil
}

func (s *ChunkReceiver) store(r ChunkRequest) (*model.Session, error) {
	unlock := s.locker.RLock(r.SessionID)
	defer unlock()

	session, err := s.touch(r)
	if err != nil {
		return nil, err
	}

	if err = s.storage.MkdirAll(r.SessionID); err != nil {
		return nil, &StorageError{Op: "create session", Err: err}
	}

	wc, err := s.storage.Writer(r.SessionID, xpath.ChunkName(r.ChunkIndex))
	if err != nil {
		return nil, &StorageError{Op: "write chunk", Err: err}
	}

	n, err := io.Copy(wc, r.Body)
	if err != nil {
		if aborter, ok := wc.(storage.Aborter); ok {
			aborter.Abort()
		} else {
			wc.Close()
		}
		return nil, &StorageError{Op: "write chunk", Err: err}
	}

	if err = wc.Close(); err != nil {
		return nil, &StorageError{Op: "write chunk", Err: err}
	}

	metrics.ChunksReceived.Inc()
	metrics.ChunkBytes.Add(float64(n))
	s.logger.Debugf("%s: stored chunk %d/%d (%s)", r.SessionID, r.ChunkIndex+1, r.TotalChunks, humanize.Bytes(uint64(n)))
	return session, nil
}

// touch creates or refreshes the session metadata.
// The declared totalChunks, fileSize and checksum are fixed once known.
func (s *ChunkReceiver) touch(r ChunkRequest) (*model.Session, error) {
	s.metamu.Lock()
	defer s.metamu.Unlock()

	session, err := s.database.FindSession(r.SessionID)
	if err != nil && !s.database.IsNotFound(err) {
		return nil, &StorageError{Op: "load session", Err: err}
	}

	if s.database.IsNotFound(err) {
		session = &model.Session{
			SessionID:   r.SessionID,
			TotalChunks: r.TotalChunks,
			FileSize:    -1,
		}
	}

	var invalid []string
	if session.TotalChunks != r.TotalChunks {
		invalid = append(invalid, "totalChunks")
	}
	if session.FileSize >= 0 && r.FileSize >= 0 && session.FileSize != r.FileSize {
		invalid = append(invalid, "fileSize")
	}
	if session.Checksum != "" && r.Checksum != "" && session.Checksum != r.Checksum {
		invalid = append(invalid, "checksum")
	}
	if len(invalid) > 0 {
		return nil, NewInvalidFieldsError(invalid...)
	}

	session.FileName = r.FileName
	session.ContentType = r.ContentType
	if r.FileSize >= 0 {
		session.FileSize = r.FileSize
	}
	if r.Checksum != "" {
		session.Checksum = r.Checksum
	}
	session.LastSeenAt = time.Now()

	if err = s.database.Save(session); err != nil {
		return nil, &StorageError{Op: "save session", Err: err}
	}
	return session, nil
}

// complete runs the completeness gate then the reassembly.
// Once the gate is passed, the session is cleaned up whatever the outcome.
func (s *ChunkReceiver) complete(session *model.Session) (*ReassembledFile, error) {
	unlock := s.locker.Lock(session.SessionID)
	defer unlock()

	// Refreshed with the properties declared by the concurrent chunks.
	if fresh, err := s.database.FindSession(session.SessionID); err == nil {
		session = fresh
	}

	if session.FileSize < 0 {
		return nil, NewMissingFieldsError("fileSize")
	}

	c, err := s.checker.Check(session.SessionID, session.TotalChunks)
	if err != nil {
		metrics.Merges.WithLabelValues(metrics.OutcomeStorage).Inc()
		return nil, err
	}
	if !c.Complete {
		metrics.Merges.WithLabelValues(metrics.OutcomeIncomplete).Inc()
		return nil, &IncompleteUploadError{
			Received: c.Received,
			Total:    c.TotalChunks,
			Missing:  c.Missing,
		}
	}

	defer s.cleanup.cleanup(session.SessionID)

	start := time.Now()
	file, err := s.reassembler.Reassemble(Manifest{
		SessionID:   session.SessionID,
		FileName:    session.FileName,
		FileSize:    session.FileSize,
		ContentType: session.ContentType,
		TotalChunks: session.TotalChunks,
		Checksum:    session.Checksum,
	})
	metrics.MergeDuration.Observe(time.Since(start).Seconds())
	metrics.Merges.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		s.logger.Errorf("%s: reassembly failed: %s", session.SessionID, err)
		return nil, err
	}

	s.logger.Infof("%s: merged %d chunks into %s (%s)", session.SessionID, file.TotalChunks, file.FileName, humanize.Bytes(uint64(file.FileSize)))
	return file, nil
}

func outcome(err error) string {
	switch err.(type) {
	case nil:
		return metrics.OutcomeSuccess
	case *MissingChunkError:
		return metrics.OutcomeMissingChunk
	case *SizeMismatchError:
		return metrics.OutcomeSizeMismatch
	case *ChecksumMismatchError:
		return metrics.OutcomeChecksumMismatch
	default:
		return metrics.OutcomeStorage
	}
}
