package sink

import (
	"context"
	"io"
	"path"

	"github.com/ncw/swift/v2"
	"github.com/pkg/errors"
)

type swft struct {
	conn      *swift.Connection
	container string
}

// NewSwift returns a Sink storing the files in an OpenStack Swift container.
// The container is created if needed.
func NewSwift(ctx context.Context, cfg Config) (Sink, error) {
	conn := &swift.Connection{
		AuthUrl:  cfg.SwiftAuthURL,
		UserName: cfg.SwiftUsername,
		ApiKey:   cfg.SwiftAPIKey,
		Tenant:   cfg.SwiftTenant,
		Domain:   cfg.SwiftDomain,
	}

	return NewSwiftWithConnection(ctx, conn, cfg.SwiftContainer)
}

// NewSwiftWithConnection returns a Sink using an existing Swift connection.
func NewSwiftWithConnection(ctx context.Context, conn *swift.Connection, container string) (Sink, error) {
	if container == "" {
		return nil, errors.New("swift: container is required")
	}

	if err := conn.Authenticate(ctx); err != nil {
		return nil, errors.Wrap(err, "swift: could not authenticate")
	}

	if err := conn.ContainerCreate(ctx, container, nil); err != nil {
		return nil, errors.Wrap(err, "swift: could not create container")
	}

	return &swft{
		conn:      conn,
		container: container,
	}, nil
}

func (s *swft) Name() string {
	return KindSwift
}

func (s *swft) Put(ctx context.Context, key, contentType string, r io.Reader, _ int64) (string, error) {
	_, err := s.conn.ObjectPut(ctx, s.container, key, r, false, "", contentType, nil)
	if err != nil {
		return "", errors.Wrap(err, "swift: could not put object")
	}
	return path.Join(s.container, key), nil
}

func (s *swft) Close() error {
	return nil
}
