package service_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"

	"github.com/mdouchement/chunkd/internal/webserver/service"
	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiveInOrder(t *testing.T) {
	f := setup(t)
	parts := chunks()

	for i, part := range parts[:2] {
		receipt, err := f.send("s1", i, 3, 2560, false, part)
		require.NoError(t, err)
		assert.Equal(t, i, receipt.ChunkIndex)
		assert.Equal(t, 3, receipt.TotalChunks)
		assert.Nil(t, receipt.File)
	}

	receipt, err := f.send("s1", 2, 3, 2560, true, parts[2])
	require.NoError(t, err)
	require.NotNil(t, receipt.File)

	file := receipt.File
	assert.Equal(t, int64(2560), file.FileSize)
	assert.Equal(t, "file.bin", file.FileName)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, 3, file.TotalChunks)
	assert.Equal(t, bytes.Join(parts, nil), file.Data)

	sum := sha256.Sum256(file.Data)
	assert.Equal(t, hex.EncodeToString(sum[:]), file.Checksum)

	assert.Empty(t, f.sessionFiles(t, "s1"))
	_, err = f.db.FindSession("s1")
	assert.True(t, f.db.IsNotFound(err))
}

func TestReceiveOutOfOrder(t *testing.T) {
	f := setup(t)
	parts := chunks()

	_, err := f.send("s1", 2, 3, 2560, false, parts[2])
	require.NoError(t, err)
	_, err = f.send("s1", 1, 3, 2560, false, parts[1])
	require.NoError(t, err)
	receipt, err := f.send("s1", 0, 3, 2560, true, parts[0])
	require.NoError(t, err)

	assert.Equal(t, bytes.Join(parts, nil), receipt.File.Data)
}

func TestReceiveConcurrently(t *testing.T) {
	f := setup(t)

	var parts [][]byte
	for i := 0; i < 16; i++ {
		parts = append(parts, bytes.Repeat([]byte{byte('A' + i)}, 100+i))
	}
	total := bytes.Join(parts, nil)

	var wg sync.WaitGroup
	for i := len(parts) - 2; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.send("s1", i, len(parts), int64(len(total)), false, parts[i])
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	last := len(parts) - 1
	receipt, err := f.send("s1", last, len(parts), int64(len(total)), true, parts[last])
	require.NoError(t, err)
	assert.Equal(t, total, receipt.File.Data)
	assert.Equal(t, 0, f.locker.Len())
}

func TestReceiveReupload(t *testing.T) {
	f := setup(t)
	parts := chunks()

	_, err := f.send("s1", 0, 3, 2560, false, parts[0])
	require.NoError(t, err)
	_, err = f.send("s1", 1, 3, 2560, false, parts[1])
	require.NoError(t, err)

	replacement := bytes.Repeat([]byte{'z'}, 1024)
	_, err = f.send("s1", 1, 3, 2560, false, replacement)
	require.NoError(t, err)

	receipt, err := f.send("s1", 2, 3, 2560, true, parts[2])
	require.NoError(t, err)
	assert.Equal(t, bytes.Join([][]byte{parts[0], replacement, parts[2]}, nil), receipt.File.Data)
}

func TestReceiveIdenticalReuploadIsNoop(t *testing.T) {
	f := setup(t)
	parts := chunks()

	for i, part := range parts[:2] {
		_, err := f.send("s1", i, 3, 2560, false, part)
		require.NoError(t, err)
	}
	_, err := f.send("s1", 0, 3, 2560, false, parts[0])
	require.NoError(t, err)

	receipt, err := f.send("s1", 2, 3, 2560, true, parts[2])
	require.NoError(t, err)
	assert.Equal(t, bytes.Join(parts, nil), receipt.File.Data)
}

func TestReceiveIncomplete(t *testing.T) {
	f := setup(t)
	parts := chunks()

	_, err := f.send("s1", 0, 3, 2560, false, parts[0])
	require.NoError(t, err)
	_, err = f.send("s1", 1, 3, 2560, true, parts[1])

	var incomplete *service.IncompleteUploadError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, 2, incomplete.Received)
	assert.Equal(t, 3, incomplete.Total)
	assert.Equal(t, []int{2}, incomplete.Missing)
	assert.Equal(t, service.ReasonIncomplete, incomplete.Reason())

	// Chunks are kept so the missing ones can be resent.
	assert.ElementsMatch(t, []string{"chunk_0", "chunk_1"}, f.sessionFiles(t, "s1"))

	receipt, err := f.send("s1", 2, 3, 2560, true, parts[2])
	require.NoError(t, err)
	assert.Equal(t, bytes.Join(parts, nil), receipt.File.Data)
}

func TestReceiveSizeMismatch(t *testing.T) {
	f := setup(t)
	parts := chunks()

	for i, part := range parts {
		_, err := f.send("s1", i, 3, 9999, i == 2, part)
		if i < 2 {
			require.NoError(t, err)
			continue
		}

		var mismatch *service.SizeMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, int64(9999), mismatch.Expected)
		assert.Equal(t, int64(2560), mismatch.Actual)
	}

	assert.Empty(t, f.sessionFiles(t, "s1"))
}

func TestReceiveHugeDeclaredSizeWithoutLimit(t *testing.T) {
	f := setup(t)
	receiver := service.NewChunkReceiver(logger.WrapLogrus(logrus.New()), f.db, f.storage, f.cleanup, 0)

	_, err := receiver.Receive(service.ChunkRequest{
		SessionID:   "s1",
		FileName:    "file.bin",
		FileSize:    1 << 62,
		ChunkIndex:  0,
		TotalChunks: 1,
		IsLastChunk: true,
		Body:        bytes.NewReader([]byte("abc")),
	})

	var mismatch *service.SizeMismatchError
	require.True(t, errors.As(err, &mismatch), "%v", err)
	assert.Equal(t, int64(1<<62), mismatch.Expected)
	assert.Equal(t, int64(3), mismatch.Actual)
	assert.Empty(t, f.sessionFiles(t, "s1"))
}

func TestReceiveChecksum(t *testing.T) {
	f := setup(t)
	parts := chunks()
	sum := sha256.Sum256(bytes.Join(parts, nil))

	send := func(session, checksum string) (*service.Receipt, error) {
		var receipt *service.Receipt
		var err error
		for i, part := range parts {
			receipt, err = f.receiver.Receive(service.ChunkRequest{
				SessionID:   session,
				FileName:    "file.bin",
				FileSize:    2560,
				ChunkIndex:  i,
				TotalChunks: 3,
				IsLastChunk: i == 2,
				Checksum:    checksum,
				Body:        bytes.NewReader(part),
			})
			if i < 2 {
				require.NoError(t, err)
			}
		}
		return receipt, err
	}

	receipt, err := send("good", hex.EncodeToString(sum[:]))
	require.NoError(t, err)
	assert.Equal(t, service.DefaultContentType, receipt.File.ContentType)

	_, err = send("bad", hex.EncodeToString(make([]byte, 32)))
	var mismatch *service.ChecksumMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, hex.EncodeToString(sum[:]), mismatch.Actual)
	assert.Empty(t, f.sessionFiles(t, "bad"))
}

func TestReceiveValidation(t *testing.T) {
	f := setup(t)

	_, err := f.receiver.Receive(service.ChunkRequest{TotalChunks: 1})
	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, service.ReasonMissingFields, verr.Reason())
	assert.Equal(t, []string{"sessionId", "fileName", "chunk"}, verr.Fields)

	cases := []struct {
		name  string
		req   service.ChunkRequest
		field string
	}{
		{"traversal", service.ChunkRequest{SessionID: "../x", FileName: "a", TotalChunks: 1}, "sessionId"},
		{"zero total", service.ChunkRequest{SessionID: "s", FileName: "a", TotalChunks: 0}, "totalChunks"},
		{"index out of range", service.ChunkRequest{SessionID: "s", FileName: "a", ChunkIndex: 3, TotalChunks: 3}, "chunkIndex"},
		{"negative index", service.ChunkRequest{SessionID: "s", FileName: "a", ChunkIndex: -1, TotalChunks: 3}, "chunkIndex"},
		{"too large", service.ChunkRequest{SessionID: "s", FileName: "a", TotalChunks: 1, FileSize: 2 << 20}, "fileSize"},
		{"dot name", service.ChunkRequest{SessionID: "s", FileName: "..", TotalChunks: 1}, "fileName"},
	}

	for _, c := range cases {
		c.req.Body = bytes.NewReader(nil)
		_, err := f.receiver.Receive(c.req)

		var verr *service.ValidationError
		require.True(t, errors.As(err, &verr), c.name)
		assert.Equal(t, service.ReasonInvalidFields, verr.Reason(), c.name)
		assert.Contains(t, verr.Fields, c.field, c.name)
	}
}

func TestReceiveFileNameIsSanitized(t *testing.T) {
	f := setup(t)

	receipt, err := f.receiver.Receive(service.ChunkRequest{
		SessionID:   "s1",
		FileName:    "../../etc/passwd",
		FileSize:    3,
		TotalChunks: 1,
		IsLastChunk: true,
		Body:        bytes.NewReader([]byte("abc")),
	})
	require.NoError(t, err)
	assert.Equal(t, "passwd", receipt.File.FileName)
}

func TestReceiveDeclarationsAreFixed(t *testing.T) {
	f := setup(t)
	parts := chunks()

	_, err := f.send("s1", 0, 3, 2560, false, parts[0])
	require.NoError(t, err)

	_, err = f.send("s1", 1, 4, 2560, false, parts[1])
	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"totalChunks"}, verr.Fields)

	_, err = f.send("s1", 1, 3, 1234, false, parts[1])
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"fileSize"}, verr.Fields)
}

func TestReceiveFileSizeDeclaredLate(t *testing.T) {
	f := setup(t)
	parts := chunks()

	_, err := f.send("s1", 0, 3, -1, false, parts[0])
	require.NoError(t, err)
	_, err = f.send("s1", 1, 3, -1, false, parts[1])
	require.NoError(t, err)

	_, err = f.send("s1", 2, 3, -1, true, parts[2])
	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, service.ReasonMissingFields, verr.Reason())
	assert.Equal(t, []string{"fileSize"}, verr.Fields)

	receipt, err := f.send("s1", 2, 3, 2560, true, parts[2])
	require.NoError(t, err)
	assert.Equal(t, int64(2560), receipt.File.FileSize)
}
