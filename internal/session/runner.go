package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/langclient"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/transport"
)

// Journal persists session lifecycle and deliveries.
type Journal interface {
	OpenSession(ctx context.Context, id, url string) error
	MarkReady(ctx context.Context, id string) error
	CloseSession(ctx context.Context, id string) error
	RecordDelivery(ctx context.Context, sessionID, method string, uris []string) error
	Sessions(ctx context.Context, limit int) ([]journal.SessionRow, error)
}

// Events receives session notifications for the view.
type Events interface {
	PublishSessionState(id, state string)
	PublishDiagnostics(params json.RawMessage)
}

// Status describes the current session.
type Status struct {
	ID    string    `json:"id,omitempty"`
	URL   string    `json:"url"`
	State string    `json:"state"`
	Since time.Time `json:"since"`
}

// Config holds everything needed to reach the language server.
type Config struct {
	URL       string
	Transport transport.Options
	Client    langclient.Config
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithJournal records sessions in j.
func WithJournal(j Journal) RunnerOption {
	return func(r *Runner) {
		r.journal = j
	}
}

// WithEvents publishes state changes to ev.
func WithEvents(ev Events) RunnerOption {
	return func(r *Runner) {
		r.events = ev
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// Runner starts a fresh language client on every transport connection and
// delivers the registry's authoring keys once per session.
type Runner struct {
	cfg     Config
	reg     *registry.Registry
	journal Journal
	events  Events
	logger  *slog.Logger

	mu     sync.RWMutex
	status Status
}

// NewRunner creates a runner for reg.
func NewRunner(cfg Config, reg *registry.Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:    cfg,
		reg:    reg,
		logger: slog.Default(),
		status: Status{URL: cfg.URL, State: langclient.StateClosed.String(), Since: time.Now()},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run keeps sessions going until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("session: connecting", slog.String("url", r.cfg.URL))
	return transport.Listen(ctx, r.cfg.URL, r.cfg.Transport, r.logger, r.serve)
}

// Status returns the current session state.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// History returns recent sessions, newest first.
func (r *Runner) History(ctx context.Context, limit int) ([]journal.SessionRow, error) {
	if r.journal == nil {
		return []journal.SessionRow{}, nil
	}
	return r.journal.Sessions(ctx, limit)
}

func (r *Runner) serve(ctx context.Context, stream jsonrpc2.ObjectStream) {
	id := uuid.NewString()
	logger := r.logger.With(slog.String("session_id", id))

	r.setState(id, langclient.StateConnecting)
	if r.journal != nil {
		if err := r.journal.OpenSession(ctx, id, r.cfg.URL); err != nil {
			logger.Warn("session: journal open failed", slog.String("error", err.Error()))
		}
	}

	client := langclient.Start(ctx, stream, r.cfg.Client, logger,
		langclient.WithNotificationHandler(r.onNotification))
	client.OnClose(func() {
		r.setState(id, langclient.StateClosed)
		if r.journal != nil {
			if err := r.journal.CloseSession(context.Background(), id); err != nil {
				logger.Warn("session: journal close failed", slog.String("error", err.Error()))
			}
		}
	})
	defer client.Dispose()

	keys := NewInitializer(r.reg, logger)
	err := keys.OnSessionReady(ctx, client)
	switch {
	case errors.Is(err, apperr.ErrSessionClosed), ctx.Err() != nil:
		return
	case err != nil:
		logger.Warn("session: authoring keys not delivered", slog.String("error", err.Error()))
	default:
		r.recordDelivery(ctx, logger, id)
	}
	if client.State() == langclient.StateClosed {
		return
	}

	r.setState(id, langclient.StateReady)
	if r.journal != nil {
		if err := r.journal.MarkReady(ctx, id); err != nil {
			logger.Warn("session: journal ready failed", slog.String("error", err.Error()))
		}
	}
	r.openDocuments(ctx, logger, client)

	select {
	case <-client.Done():
	case <-ctx.Done():
	}
}

func (r *Runner) recordDelivery(ctx context.Context, logger *slog.Logger, id string) {
	if r.journal == nil {
		return
	}
	entries := r.reg.AllMetadata()
	uris := make([]string, len(entries))
	for i, e := range entries {
		uris[i] = e.URI
	}
	if err := r.journal.RecordDelivery(ctx, id, MethodInitializeLuis, uris); err != nil {
		logger.Warn("session: journal delivery failed", slog.String("error", err.Error()))
	}
}

func (r *Runner) openDocuments(ctx context.Context, logger *slog.Logger, client *langclient.Client) {
	for _, doc := range r.reg.Documents() {
		if !client.Selects(doc.Kind) {
			continue
		}
		if err := client.DidOpen(ctx, doc); err != nil {
			logger.Warn("session: didOpen failed",
				slog.String("uri", doc.URI),
				slog.String("error", err.Error()))
			return
		}
	}
}

func (r *Runner) onNotification(method string, params json.RawMessage) {
	if method == langclient.MethodPublishDiagnostics && r.events != nil {
		r.events.PublishDiagnostics(params)
	}
}

func (r *Runner) setState(id string, state langclient.State) {
	r.mu.Lock()
	// A late close from an earlier session must not clobber the current one.
	if state == langclient.StateClosed && r.status.ID != id {
		r.mu.Unlock()
		return
	}
	r.status = Status{ID: id, URL: r.cfg.URL, State: state.String(), Since: time.Now()}
	r.mu.Unlock()

	if r.events != nil {
		r.events.PublishSessionState(id, state.String())
	}
}
