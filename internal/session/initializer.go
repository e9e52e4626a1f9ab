// Package session pushes per-document metadata to the language server once
// the protocol handshake has completed, and supervises one language client
// per transport connection.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

// Connection is the remote side as seen by the initializer.
type Connection interface {
	// Ready is closed once the handshake completes.
	Ready() <-chan struct{}
	// Done is closed when the connection is terminally closed.
	Done() <-chan struct{}
	// Send issues a request without waiting for its response.
	Send(ctx context.Context, method string, payload any) error
}

// MetadataSource supplies the snapshot sent to the server.
type MetadataSource interface {
	AllMetadata() []models.MetadataEntry
}

// Initializer delivers the authoring keys of every known document in a
// single initializeLuis request. It sends at most once.
type Initializer struct {
	source MetadataSource
	logger *slog.Logger
	sent   atomic.Bool
}

// NewInitializer creates an initializer reading from source.
func NewInitializer(source MetadataSource, logger *slog.Logger) *Initializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Initializer{source: source, logger: logger}
}

// OnSessionReady waits until conn is ready and then sends the metadata of
// every document. It has no timeout of its own: it returns ctx.Err() when ctx
// ends and apperr.ErrSessionClosed when conn closes before becoming ready.
// Calls after the first successful wake-up return nil without sending.
//
// The send is fire-and-forget; a transport write error is returned to the
// caller for logging and is not retried.
func (i *Initializer) OnSessionReady(ctx context.Context, conn Connection) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-conn.Done():
		return apperr.ErrSessionClosed
	case <-conn.Ready():
	}

	if !i.sent.CompareAndSwap(false, true) {
		i.logger.Debug("session: authoring keys already sent")
		return nil
	}

	params := NewInitializeLuisParams(i.source.AllMetadata())
	if err := conn.Send(ctx, MethodInitializeLuis, params); err != nil {
		return fmt.Errorf("session: send %s: %w", MethodInitializeLuis, err)
	}
	i.logger.Info("session: authoring keys sent", slog.Int("documents", len(params.Data)))
	return nil
}

// Sent reports whether the initializeLuis request has been issued.
func (i *Initializer) Sent() bool {
	return i.sent.Load()
}
