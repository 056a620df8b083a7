package service

import (
	"bytes"
	"context"
	"path"

	"github.com/mdouchement/chunkd/internal/database"
	"github.com/mdouchement/chunkd/internal/model"
	"github.com/mdouchement/chunkd/internal/sink"
	"github.com/mdouchement/logger"
)

// A HandOff forwards the reassembled files to their permanent sink and records them as artifacts.
type HandOff struct {
	logger   logger.Logger
	database database.Client
	sink     sink.Sink
}

// NewHandOff returns a new HandOff. A nil sink disables the forwarding.
func NewHandOff(log logger.Logger, database database.Client, s sink.Sink) *HandOff {
	return &HandOff{
		logger:   log.WithPrefix("[sink]"),
		database: database,
		sink:     s,
	}
}

// Enabled returns true when a sink is configured.
func (s *HandOff) Enabled() bool {
	return s.sink != nil
}

// Forward stores the file in the sink. It returns nil when no sink is configured.
func (s *HandOff) Forward(ctx context.Context, file *ReassembledFile) (*model.Artifact, error) {
	if !s.Enabled() {
		return nil, nil
	}

	key := path.Join(file.SessionID, file.FileName)
	location, err := s.sink.Put(ctx, key, file.ContentType, bytes.NewReader(file.Data), file.FileSize)
	if err != nil {
		return nil, &StorageError{Op: "hand off", Err: err}
	}

	artifact := &model.Artifact{
		SessionID:   file.SessionID,
		Key:         key,
		Sink:        s.sink.Name(),
		Location:    location,
		Size:        file.FileSize,
		ContentType: file.ContentType,
		Checksum:    file.Checksum,
	}
	if err = s.database.Save(artifact); err != nil {
		return nil, &StorageError{Op: "save artifact", Err: err}
	}

	s.logger.Infof("%s: stored as %s", key, location)
	return artifact, nil
}
