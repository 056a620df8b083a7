package storage

import (
	"io"
	"time"
)

type (
	// Backend is the interface that wraps the basic chunk file operations.
	// Files are addressed by a session (a directory) and a name inside that session.
	Backend interface {
		// Name returns the name of the backend implementation.
		Name() string

		// MkdirAll creates the session directory. An existing directory is not an error.
		MkdirAll(session string) error
		// Reader returns a ReadCloser of the file.
		Reader(session, name string) (io.ReadCloser, error)
		// Writer returns a WriteCloser of the file.
		// The content becomes visible under name only once Close succeeds.
		Writer(session, name string) (io.WriteCloser, error)
		// Exist returns true if the file exists.
		Exist(session, name string) bool

		// FilenamesFrom lists all the file names of the given session.
		// It returns an error satisfying os.IsNotExist when the session does not exist.
		FilenamesFrom(session string) ([]string, error)
		// Sessions lists all the session directories.
		Sessions() ([]Session, error)

		// Remove deletes the given file.
		Remove(session, name string) error
		// RemoveDir deletes the session directory if it is empty.
		RemoveDir(session string) error
		// RemoveAll deletes the session directory and all its content.
		RemoveAll(session string) error
		// Cleanup removes the empty session directories not modified since the given time.
		Cleanup(before time.Time) error
	}

	// An Aborter is implemented by the writers able to discard their content instead of committing it.
	Aborter interface {
		Abort() error
	}

	// A Session describes a session directory.
	Session struct {
		Name       string
		ModifiedAt time.Time
	}
)
