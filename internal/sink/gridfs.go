package sink

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type grid struct {
	client *mongo.Client
	bucket *gridfs.Bucket
	name   string
}

// NewGridFS returns a Sink storing the files in a MongoDB GridFS bucket.
func NewGridFS(ctx context.Context, cfg Config) (Sink, error) {
	if cfg.MongoURI == "" || cfg.MongoDatabase == "" {
		return nil, errors.New("gridfs: uri and database are required")
	}

	name := cfg.MongoBucket
	if name == "" {
		name = "fs"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, errors.Wrap(err, "gridfs: could not connect")
	}

	bucket, err := gridfs.NewBucket(client.Database(cfg.MongoDatabase), options.GridFSBucket().SetName(name))
	if err != nil {
		client.Disconnect(ctx)
		return nil, errors.Wrap(err, "gridfs: could not open bucket")
	}

	return &grid{
		client: client,
		bucket: bucket,
		name:   name,
	}, nil
}

func (s *grid) Name() string {
	return KindGridFS
}

func (s *grid) Put(_ context.Context, key, contentType string, r io.Reader, _ int64) (string, error) {
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})

	id, err := s.bucket.UploadFromStream(key, r, opts)
	if err != nil {
		return "", errors.Wrap(err, "gridfs: could not upload file")
	}
	return s.name + "/" + id.Hex(), nil
}

func (s *grid) Close() error {
	return s.client.Disconnect(context.Background())
}
