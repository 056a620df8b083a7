package storage

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

type fs struct {
	workspace string
}

// NewFileSystem returns a new File System backend.
func NewFileSystem(workspace string) Backend {
	return &fs{
		workspace: workspace,
	}
}

func (b *fs) Name() string {
	return "file_system"
}

func (b *fs) MkdirAll(session string) error {
	err := os.MkdirAll(filepath.Join(b.workspace, session), 0755)
	if err != nil && !os.IsExist(err) {
		return errors.Wrap(err, "could not create session directory")
	}
	return nil
}

func (b *fs) Reader(session, name string) (io.ReadCloser, error) {
	rc, err := os.Open(filepath.Join(b.workspace, session, name))
	if err != nil {
		return nil, errors.Wrap(err, "could not open file")
	}
	return rc, nil
}

func (b *fs) Writer(session, name string) (io.WriteCloser, error) {
	if err := b.MkdirAll(session); err != nil {
		return nil, err
	}

	dir := filepath.Join(b.workspace, session)
	f, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, "could not create file")
	}

	return &atomicFile{
		File: f,
		path: filepath.Join(dir, name),
	}, nil
}

func (b *fs) Exist(session, name string) bool {
	_, err := os.Stat(filepath.Join(b.workspace, session, name))
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	return true // ignoring error
}

func (b *fs) FilenamesFrom(session string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(b.workspace, session))
	if err != nil {
		return nil, err
	}

	var filenames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filenames = append(filenames, entry.Name())
	}

	return filenames, nil
}

func (b *fs) Sessions() ([]Session, error) {
	entries, err := os.ReadDir(b.workspace)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not list sessions")
	}

	var sessions []Session
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue // removed meanwhile
		}

		sessions = append(sessions, Session{
			Name:       entry.Name(),
			ModifiedAt: info.ModTime(),
		})
	}

	return sessions, nil
}

func (b *fs) Remove(session, name string) error {
	err := os.Remove(filepath.Join(b.workspace, session, name))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "could not delete file")
	}
	return nil
}

func (b *fs) RemoveDir(session string) error {
	err := os.Remove(filepath.Join(b.workspace, session))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "could not delete session directory")
	}
	return nil
}

func (b *fs) RemoveAll(session string) error {
	err := os.RemoveAll(filepath.Join(b.workspace, session))
	if err != nil {
		return errors.Wrap(err, "could not delete session")
	}
	return nil
}

func (b *fs) Cleanup(before time.Time) error {
	sessions, err := b.Sessions()
	if err != nil {
		return errors.Wrap(err, "cleanup")
	}

	for _, session := range sessions {
		if !session.ModifiedAt.Before(before) {
			continue
		}

		// Fails on non-empty directories.
		os.Remove(filepath.Join(b.workspace, session.Name))
	}
	return nil
}

//
//-----
//

// atomicFile is written under a temporary name and renamed on Close.
type atomicFile struct {
	*os.File
	path string
}

func (f *atomicFile) Close() error {
	if err := f.File.Sync(); err != nil {
		f.abort()
		return errors.Wrap(err, "could not sync file")
	}

	if err := f.File.Close(); err != nil {
		os.Remove(f.File.Name())
		return errors.Wrap(err, "could not close file")
	}

	err := os.Rename(f.File.Name(), f.path)
	if err != nil {
		os.Remove(f.File.Name())
		return errors.Wrap(err, "could not commit file")
	}
	return nil
}

// Abort discards the written content.
func (f *atomicFile) Abort() error {
	f.abort()
	return nil
}

func (f *atomicFile) abort() {
	f.File.Close()
	os.Remove(f.File.Name())
}
