// Package gotd implements the platform contract over the MTProto client
// github.com/gotd/td.
package gotd

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"

	"github.com/edgard/tgcollector/internal/logger"
	"github.com/edgard/tgcollector/internal/platform"
)

// Connector opens a fresh MTProto connection for every Run.
type Connector struct {
	logger *slog.Logger
}

var _ platform.Connector = (*Connector)(nil)

// NewConnector creates a Connector.
func NewConnector(log *slog.Logger) *Connector {
	if log == nil {
		log = logger.Discard()
	}
	return &Connector{logger: log.With("component", "gotd_connector")}
}

// Run implements platform.Connector.
func (c *Connector) Run(ctx context.Context, creds platform.Credentials, blob []byte,
	fn func(ctx context.Context, c platform.Client) error,
) ([]byte, error) {
	storage := &memorySession{data: bytes.Clone(blob)}
	client := telegram.NewClient(creds.AppID, creds.AppHash, telegram.Options{
		SessionStorage: storage,
		NoUpdates:      true,
	})

	connected := false
	err := client.Run(ctx, func(ctx context.Context) error {
		connected = true
		return fn(ctx, newClient(client, creds, c.logger))
	})
	if !connected {
		c.logger.WarnContext(ctx, "Connection failed", "error", err)
		return nil, err
	}

	out := storage.bytes()
	if len(out) == 0 {
		out = blob
	}
	return out, err
}

// memorySession is a session.Storage over an in-memory blob.
type memorySession struct {
	mu   sync.Mutex
	data []byte
}

func (s *memorySession) LoadSession(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return nil, session.ErrNotFound
	}
	return bytes.Clone(s.data), nil
}

func (s *memorySession) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = bytes.Clone(data)
	return nil
}

func (s *memorySession) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.data)
}
