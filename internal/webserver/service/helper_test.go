package service_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mdouchement/chunkd/internal/database"
	"github.com/mdouchement/chunkd/internal/storage"
	"github.com/mdouchement/chunkd/internal/webserver/service"
	"github.com/mdouchement/logger"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	workspace string
	db        database.Client
	storage   storage.Backend
	locker    *service.Locker
	cleanup   *service.SessionCleanup
	receiver  *service.ChunkReceiver
	checker   *service.CompletenessChecker
}

func setup(t *testing.T) *fixture {
	dir, err := os.MkdirTemp(os.TempDir(), "chunkd.")
	require.NoError(t, err)

	db, err := database.StormOpen(filepath.Join(dir, "chunkd.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
		os.RemoveAll(dir)
	})

	log := logger.WrapLogrus(logrus.New())

	f := &fixture{
		workspace: filepath.Join(dir, "storage"),
		db:        db,
		locker:    service.NewLocker(),
	}
	f.storage = storage.NewFileSystem(f.workspace)
	f.cleanup = service.NewSessionCleanup(log, db, f.storage, f.locker)
	f.receiver = service.NewChunkReceiver(log, db, f.storage, f.cleanup, 1<<20)
	f.checker = service.NewCompletenessChecker(f.storage)
	return f
}

func (f *fixture) send(session string, index, total int, size int64, last bool, payload []byte) (*service.Receipt, error) {
	return f.receiver.Receive(service.ChunkRequest{
		SessionID:   session,
		FileName:    "file.bin",
		FileSize:    size,
		ContentType: "application/pdf",
		ChunkIndex:  index,
		TotalChunks: total,
		IsLastChunk: last,
		Body:        bytes.NewReader(payload),
	})
}

// chunks returns the three chunks of the reference scenario: 1024, 1024 and 512 bytes.
func chunks() [][]byte {
	return [][]byte{
		bytes.Repeat([]byte{'a'}, 1024),
		bytes.Repeat([]byte{'b'}, 1024),
		bytes.Repeat([]byte{'c'}, 512),
	}
}

func (f *fixture) sessionFiles(t *testing.T, session string) []string {
	entries, err := os.ReadDir(filepath.Join(f.workspace, session))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}
