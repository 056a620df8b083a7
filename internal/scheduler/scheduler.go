package scheduler

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/mdouchement/chunkd/internal/database"
	"github.com/mdouchement/chunkd/internal/metrics"
	"github.com/mdouchement/chunkd/internal/storage"
	"github.com/mdouchement/chunkd/internal/webserver/service"
	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// LockFilename is the name of the lock file preventing concurrent sweeps.
const LockFilename = ".sweep.lock"

// A Controller is an Iversion Of Control pattern used to init the server package.
type Controller struct {
	Logger   logger.Logger
	Database database.Client
	Storage  storage.Backend
	// Locker must be the one used by the upload handlers of the same process.
	Locker *service.Locker
	//
	TTL           time.Duration
	Specification string
	LockFile      string
}

// Start lauches the scheduler asynchronously.
// The returned cron must be stopped on shutdown.
func Start(c Controller) (*cron.Cron, error) {
	cron := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	log := c.Logger.WithPrefix("[scheduler]")

	_, err := cron.AddFunc(c.Specification, func() {
		if _, err := Sweep(c); err != nil {
			c.Logger.WithPrefix("[reaper]").Error(err)
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "invalid sweep specification %q", c.Specification)
	}
	log.Infof("Reaper task registred (%s, ttl %s)", c.Specification, c.TTL)

	cron.Start()
	log.Info("Scheduler is running")
	return cron, nil
}

// Sweep removes the sessions not seen for longer than the TTL and returns how many were removed.
// It is a no-op when another sweep holds the lock file.
func Sweep(c Controller) (int, error) {
	log := c.Logger.WithPrefix("[reaper]")

	if err := os.MkdirAll(filepath.Dir(c.LockFile), 0755); err != nil {
		return 0, errors.Wrap(err, "could not create lock directory")
	}

	lock := flock.New(c.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return 0, errors.Wrap(err, "could not lock sweep")
	}
	if !locked {
		log.Info("Another sweep is running, skipped")
		return 0, nil
	}
	defer lock.Unlock()

	if c.Locker == nil {
		c.Locker = service.NewLocker()
	}
	cleanup := service.NewSessionCleanup(c.Logger, c.Database, c.Storage, c.Locker)
	cutoff := time.Now().Add(-c.TTL)
	var reaped int

	// Sessions with metadata.
	//

	stale, err := c.Database.FindSessionsSeenBefore(cutoff)
	if err != nil {
		return 0, err
	}
	for _, session := range stale {
		// Chunks may have arrived since the query.
		n, removed := cleanup.CleanupExpired(session.SessionID, c.TTL)
		if !removed {
			continue
		}
		log.Infof("Removed stale session %s (%d chunks, last seen %s)", session.SessionID, n, session.LastSeenAt.Format(time.RFC3339))
		reaped++
	}

	// Orphaned session directories.
	//

	sessions, err := c.Database.AllSessions()
	if err != nil {
		return reaped, err
	}
	known := make(map[string]bool, len(sessions))
	for _, session := range sessions {
		known[session.SessionID] = true
	}

	directories, err := c.Storage.Sessions()
	if err != nil {
		return reaped, errors.Wrap(err, "could not list session directories")
	}
	for _, directory := range directories {
		if known[directory.Name] || !directory.ModifiedAt.Before(cutoff) {
			continue
		}

		n, removed := cleanup.CleanupExpired(directory.Name, c.TTL)
		if !removed {
			continue
		}
		log.Infof("Removed orphaned session %s (%d chunks)", directory.Name, n)
		reaped++
	}

	//

	log.Debug("Storage cleanup")
	if err = c.Storage.Cleanup(cutoff); err != nil {
		return reaped, errors.Wrap(err, "could not cleanup storage")
	}

	metrics.SessionsReaped.Add(float64(reaped))
	if reaped > 0 {
		log.Infof("%d sessions reaped", reaped)
	}
	return reaped, nil
}
