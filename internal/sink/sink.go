package sink

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// Sink kinds.
const (
	KindNone       = "none"
	KindFileSystem = "file_system"
	KindSwift      = "swift"
	KindS3         = "s3"
	KindGridFS     = "gridfs"
)

type (
	// A Sink is the permanent home of the reassembled files.
	Sink interface {
		// Name returns the name of the sink implementation.
		Name() string
		// Put stores the content under key and returns its location.
		Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error)
		// Close releases the sink resources.
		Close() error
	}

	// A Config selects and configures a Sink.
	Config struct {
		Kind string

		ArchivePath string

		SwiftAuthURL   string
		SwiftUsername  string
		SwiftAPIKey    string
		SwiftTenant    string
		SwiftDomain    string
		SwiftContainer string

		S3Endpoint        string
		S3Region          string
		S3AccessKeyID     string
		S3SecretAccessKey string
		S3Bucket          string

		MongoURI      string
		MongoDatabase string
		MongoBucket   string
	}
)

// New returns the Sink described by cfg, or nil when no sink is configured.
func New(ctx context.Context, cfg Config) (Sink, error) {
	switch cfg.Kind {
	case "", KindNone:
		return nil, nil
	case KindFileSystem:
		return NewFileSystem(cfg.ArchivePath), nil
	case KindSwift:
		return NewSwift(ctx, cfg)
	case KindS3:
		return NewS3(cfg)
	case KindGridFS:
		return NewGridFS(ctx, cfg)
	default:
		return nil, errors.Errorf("unsupported sink: %s", cfg.Kind)
	}
}
