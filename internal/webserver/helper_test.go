package webserver_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/mdouchement/chunkd/internal/database"
	"github.com/mdouchement/chunkd/internal/sink"
	"github.com/mdouchement/chunkd/internal/storage"
	"github.com/mdouchement/chunkd/internal/webserver"
	"github.com/mdouchement/logger"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type server struct {
	*httptest.Server
	workspace string
	db        database.Client
}

func setup(t *testing.T, configure func(*webserver.Controller)) *server {
	log := logrus.New()
	log.SetFormatter(&logger.LogrusTextFormatter{
		DisableColors:   false,
		ForceColors:     true,
		ForceFormatting: true,
		PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	//

	dir, err := os.MkdirTemp(os.TempDir(), "chunkd.")
	require.NoError(t, err)

	db, err := database.StormOpen(filepath.Join(dir, "chunkd.db"))
	require.NoError(t, err)

	workspace := filepath.Join(dir, "storage")

	//

	ctrl := webserver.Controller{
		Version:     "test",
		Logger:      logger.WrapLogrus(log),
		Database:    db,
		Storage:     storage.NewFileSystem(workspace),
		MaxFileSize: 1 << 20,
	}
	if configure != nil {
		configure(&ctrl)
	}
	engine := webserver.EchoEngine(ctrl)

	s := httptest.NewUnstartedServer(engine)
	s.Config.ReadTimeout = 20 * time.Second
	s.Config.WriteTimeout = 20 * time.Second
	s.Start()

	t.Cleanup(func() {
		s.Close()
		db.Close()
		os.RemoveAll(dir)
	})

	return &server{
		Server:    s,
		workspace: workspace,
		db:        db,
	}
}

// withArchive enables the file_system hand-off into dir.
func withArchive(dir string) func(*webserver.Controller) {
	return func(ctrl *webserver.Controller) {
		ctrl.Sink = sink.NewFileSystem(dir)
	}
}

type part struct {
	session string
	index   int
	total   int
	size    int64
	last    bool
	data    []byte
}

// upload posts the chunk as a multipart form and decodes the JSON response.
func (s *server) upload(t *testing.T, p part) (int, map[string]interface{}) {
	fields := map[string]string{
		"sessionId":   p.session,
		"fileName":    "report.pdf",
		"mimeType":    "application/pdf",
		"chunkIndex":  strconv.Itoa(p.index),
		"totalChunks": strconv.Itoa(p.total),
		"isLastChunk": strconv.FormatBool(p.last),
	}
	if p.size >= 0 {
		fields["fileSize"] = strconv.FormatInt(p.size, 10)
	}

	return s.post(t, fields, p.data)
}

func (s *server) post(t *testing.T, fields map[string]string, data []byte) (int, map[string]interface{}) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if data != nil {
		fw, err := w.CreateFormFile("chunk", "blob")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, s.URL+"/v1/uploads/chunks", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())

	return s.do(t, req)
}

func (s *server) do(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var m map[string]interface{}
	if len(payload) > 0 {
		require.NoError(t, json.Unmarshal(payload, &m), string(payload))
	}
	return resp.StatusCode, m
}

func (s *server) get(t *testing.T, path string) (int, map[string]interface{}) {
	req, err := http.NewRequest(http.MethodGet, s.URL+path, nil)
	require.NoError(t, err)
	return s.do(t, req)
}

func (s *server) delete(t *testing.T, path string) int {
	req, err := http.NewRequest(http.MethodDelete, s.URL+path, nil)
	require.NoError(t, err)
	code, _ := s.do(t, req)
	return code
}

func (s *server) sessionExists(session string) bool {
	_, err := os.Stat(filepath.Join(s.workspace, session))
	return err == nil
}

// chunks returns the three chunks of the reference scenario: 1024, 1024 and 512 bytes.
func chunks() [][]byte {
	return [][]byte{
		bytes.Repeat([]byte{'a'}, 1024),
		bytes.Repeat([]byte{'b'}, 1024),
		bytes.Repeat([]byte{'c'}, 512),
	}
}
