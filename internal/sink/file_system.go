package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type fs struct {
	workspace string
}

// NewFileSystem returns a Sink writing the files below workspace.
func NewFileSystem(workspace string) Sink {
	return &fs{
		workspace: workspace,
	}
}

func (s *fs) Name() string {
	return KindFileSystem
}

func (s *fs) Put(_ context.Context, key, _ string, r io.Reader, _ int64) (string, error) {
	filename := filepath.Join(s.workspace, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return "", errors.Wrap(err, "could not create archive directory")
	}

	f, err := os.Create(filename)
	if err != nil {
		return "", errors.Wrap(err, "could not create archive file")
	}
	defer f.Close()

	if _, err = io.Copy(f, r); err != nil {
		return "", errors.Wrap(err, "could not write archive file")
	}

	return filename, errors.Wrap(f.Sync(), "could not sync archive file")
}

func (s *fs) Close() error {
	return nil
}
