package database

import (
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/json"
	"github.com/asdine/storm/v3/q"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/chunkd/internal/model"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

type strm struct {
	db *storm.DB
}

var (
	// StormCodec is the format used to store data in the database.
	StormCodec = storm.Codec(json.Codec)
	// StormBolt fails fast when the database file is held by another process.
	StormBolt = storm.BoltOptions(0600, &bolt.Options{Timeout: 5 * time.Second})
)

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec, StormBolt)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.Init(&model.Session{}); err != nil {
		return errors.Wrap(err, "could not init session index")
	}

	err = db.Init(&model.Artifact{})
	return errors.Wrap(err, "could not init artifact index")
}

// StormReIndex rebuilds all the indexes.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec, StormBolt)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.ReIndex(&model.Session{}); err != nil {
		return errors.Wrap(err, "could not ReIndex sessions")
	}

	err = db.ReIndex(&model.Artifact{})
	return errors.Wrap(err, "could not ReIndex artifacts")
}

// StormOpen opens the database.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec, StormBolt)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

func (c *strm) Save(m model.Model) error {
	t := time.Now().UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
		m.SetCreatedAt(t)
	}

	return errors.Wrap(c.db.Save(m), "could not save the model")
}

func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.db.DeleteStruct(m), "could not delete the model")
}

func (c *strm) Close() error {
	return c.db.Close()
}

func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

//
// Session
//

func (c *strm) AllSessions() ([]*model.Session, error) {
	sessions := make([]*model.Session, 0)
	err := c.db.All(&sessions)
	return sessions, errors.Wrap(err, "could not get all sessions")
}

func (c *strm) FindSession(sessionID string) (*model.Session, error) {
	var session model.Session
	err := c.db.One("SessionID", sessionID, &session)
	return &session, errors.Wrap(err, "could not find session")
}

func (c *strm) FindSessionsSeenBefore(t time.Time) ([]*model.Session, error) {
	sessions := make([]*model.Session, 0)
	err := c.db.Select(q.Lt("LastSeenAt", t)).Find(&sessions)
	if errors.Cause(err) == storm.ErrNotFound {
		err = nil
	}
	return sessions, errors.Wrap(err, "could not get sessions by last_seen_at")
}

func (c *strm) DeleteSession(sessionID string) error {
	session, err := c.FindSession(sessionID)
	if err != nil {
		return err
	}
	return errors.Wrap(c.Delete(session), "could not delete session")
}

//
// Artifact
//

func (c *strm) AllArtifacts() ([]*model.Artifact, error) {
	artifacts := make([]*model.Artifact, 0)
	err := c.db.All(&artifacts)
	return artifacts, errors.Wrap(err, "could not get all artifacts")
}

func (c *strm) FindArtifactsBySessionID(sessionID string) ([]*model.Artifact, error) {
	artifacts := make([]*model.Artifact, 0)
	err := c.db.Select(q.Eq("SessionID", sessionID)).OrderBy("CreatedAt").Find(&artifacts)
	if errors.Cause(err) == storm.ErrNotFound {
		err = nil
	}
	return artifacts, errors.Wrap(err, "could not get artifacts by session_id")
}
