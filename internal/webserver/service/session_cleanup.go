package service

import (
	"os"
	"time"

	"github.com/mdouchement/chunkd/internal/database"
	"github.com/mdouchement/chunkd/internal/storage"
	"github.com/mdouchement/logger"
)

// A SessionCleanup removes all the chunks and the metadata of a session.
// Failures are logged and never returned: cleanup is housekeeping.
type SessionCleanup struct {
	logger   logger.Logger
	database database.Client
	storage  storage.Backend
	locker   *Locker
}

// NewSessionCleanup returns a new SessionCleanup.
func NewSessionCleanup(log logger.Logger, database database.Client, storage storage.Backend, locker *Locker) *SessionCleanup {
	return &SessionCleanup{
		logger:   log.WithPrefix("[cleanup]"),
		database: database,
		storage:  storage,
		locker:   locker,
	}
}

// Cleanup removes the session under its exclusive lock and returns the number of removed files.
// Cleaning an unknown session is a no-op.
func (s *SessionCleanup) Cleanup(sessionID string) int {
	unlock := s.locker.Lock(sessionID)
	defer unlock()

	return s.cleanup(sessionID)
}

// CleanupExpired removes the session only if it is still expired once its exclusive lock is held.
// A session without metadata is considered expired. It returns the number of removed files
// and whether the session was removed.
func (s *SessionCleanup) CleanupExpired(sessionID string, ttl time.Duration) (int, bool) {
	unlock := s.locker.Lock(sessionID)
	defer unlock()

	session, err := s.database.FindSession(sessionID)
	switch {
	case err == nil:
		if !session.Expired(time.Now(), ttl) {
			s.logger.Debugf("%s: seen at %s, kept", sessionID, session.LastSeenAt.Format(time.RFC3339))
			return 0, false
		}
	case !s.database.IsNotFound(err):
		s.logger.Errorf("%s: could not load session: %s", sessionID, err)
		return 0, false
	}

	return s.cleanup(sessionID), true
}

// cleanup expects the caller to hold the exclusive lock of the session.
func (s *SessionCleanup) cleanup(sessionID string) int {
	var removed int

	filenames, err := s.storage.FilenamesFrom(sessionID)
	if err != nil && !os.IsNotExist(err) {
		s.logger.Errorf("%s: could not list files: %s", sessionID, err)
	}

	for _, filename := range filenames {
		if err := s.storage.Remove(sessionID, filename); err != nil {
			s.logger.Errorf("%s: %s", sessionID, err)
			continue
		}
		removed++
	}

	if err := s.storage.RemoveDir(sessionID); err != nil {
		// Leftovers such as nested directories.
		s.logger.Debugf("%s: %s, removing everything", sessionID, err)
		if err = s.storage.RemoveAll(sessionID); err != nil {
			s.logger.Errorf("%s: %s", sessionID, err)
		}
	}

	if err := s.database.DeleteSession(sessionID); err != nil && !s.database.IsNotFound(err) {
		s.logger.Errorf("%s: %s", sessionID, err)
	}

	if removed > 0 {
		s.logger.Debugf("%s: removed %d files", sessionID, removed)
	}
	return removed
}
