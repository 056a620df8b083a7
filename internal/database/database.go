package database

import (
	"time"

	"github.com/mdouchement/chunkd/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is nil or a not found error.
		IsNotFound(err error) bool

		SessionInteraction
		ArtifactInteraction
	}

	// A SessionInteraction defines all the methods used to interact with a session record.
	SessionInteraction interface {
		AllSessions() ([]*model.Session, error)
		FindSession(sessionID string) (*model.Session, error)
		// FindSessionsSeenBefore returns the sessions not seen since t.
		FindSessionsSeenBefore(t time.Time) ([]*model.Session, error)
		DeleteSession(sessionID string) error
	}

	// An ArtifactInteraction defines all the methods used to interact with an artifact record.
	ArtifactInteraction interface {
		AllArtifacts() ([]*model.Artifact, error)
		FindArtifactsBySessionID(sessionID string) ([]*model.Artifact, error)
	}
)
