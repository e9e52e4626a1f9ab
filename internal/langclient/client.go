// Package langclient is a minimal language server client: it performs the
// initialize handshake over a JSON-RPC stream, exposes a one-shot ready
// signal, and sends requests and notifications without awaiting replies.
package langclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

// State is the lifecycle position of a client.
type State int32

const (
	StateConnecting State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config describes the client identity and handshake.
type Config struct {
	Name                  string
	DocumentSelector      []string
	InitializationOptions any
	HandshakeTimeout      time.Duration
}

// NotificationHandler receives server notifications the client does not
// consume itself.
type NotificationHandler func(method string, params json.RawMessage)

// Option configures a Client.
type Option func(*Client)

// WithNotificationHandler forwards unhandled server notifications to h.
func WithNotificationHandler(h NotificationHandler) Option {
	return func(c *Client) {
		c.notify = h
	}
}

// Client is one language client bound to one connection. Once closed it is
// never restarted; a new connection gets a new Client.
type Client struct {
	cfg    Config
	logger *slog.Logger
	notify NotificationHandler
	conn   *jsonrpc2.Conn

	state     atomic.Int32
	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	onClose    []func()
	serverInfo *ServerInfo
}

// Start wraps stream in a JSON-RPC connection and begins the handshake in
// the background. Ready is closed when it completes. A failed handshake
// closes the client.
func Start(ctx context.Context, stream jsonrpc2.ObjectStream, cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.conn = jsonrpc2.NewConn(ctx, stream, c)

	go func() {
		select {
		case <-c.conn.DisconnectNotify():
			c.markClosed()
		case <-c.done:
		}
	}()

	go func() {
		if err := c.initialize(ctx); err != nil {
			c.logger.Error("langclient: handshake failed", slog.String("error", err.Error()))
			c.Dispose()
			return
		}
		if c.state.CompareAndSwap(int32(StateConnecting), int32(StateReady)) {
			close(c.ready)
		}
	}()

	return c
}

func (c *Client) initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	params := initializeParams{
		ProcessID:             os.Getpid(),
		Capabilities:          clientCapabilities(),
		InitializationOptions: c.cfg.InitializationOptions,
	}
	if c.cfg.Name != "" {
		params.ClientInfo = &ClientInfo{Name: c.cfg.Name}
	}

	var result initializeResult
	if err := c.conn.Call(ctx, MethodInitialize, params, &result); err != nil {
		return fmt.Errorf("initialize request: %w", err)
	}

	c.mu.Lock()
	c.serverInfo = result.ServerInfo
	c.mu.Unlock()

	if err := c.conn.Notify(ctx, MethodInitialized, struct{}{}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}

	attrs := []any{slog.String("client", c.cfg.Name)}
	if result.ServerInfo != nil {
		attrs = append(attrs, slog.String("server", result.ServerInfo.Name))
	}
	c.logger.Info("langclient: ready", attrs...)
	return nil
}

// Ready is closed once the handshake has completed.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// ServerInfo returns what the server reported during initialize, or nil.
func (c *Client) ServerInfo() *ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// Send issues a request and returns as soon as it is written. The response,
// if any, is discarded.
func (c *Client) Send(ctx context.Context, method string, payload any) error {
	if c.State() == StateClosed {
		return apperr.ErrSessionClosed
	}
	if _, err := c.conn.DispatchCall(ctx, method, payload); err != nil {
		return fmt.Errorf("langclient: dispatch %s: %w", method, err)
	}
	return nil
}

// Notify sends a notification.
func (c *Client) Notify(ctx context.Context, method string, payload any) error {
	if c.State() == StateClosed {
		return apperr.ErrSessionClosed
	}
	if err := c.conn.Notify(ctx, method, payload); err != nil {
		return fmt.Errorf("langclient: notify %s: %w", method, err)
	}
	return nil
}

// Selects reports whether documents of the given kind are handled by the
// server. An empty selector matches everything.
func (c *Client) Selects(kind string) bool {
	return len(c.cfg.DocumentSelector) == 0 || slices.Contains(c.cfg.DocumentSelector, kind)
}

// DidOpen announces doc to the server.
func (c *Client) DidOpen(ctx context.Context, doc models.Document) error {
	return c.Notify(ctx, MethodDidOpen, didOpenParams{
		TextDocument: TextDocumentItem{
			URI:        doc.URI,
			LanguageID: doc.Kind,
			Version:    1,
			Text:       doc.Content,
		},
	})
}

// OnClose registers fn to run once when the client closes. If the client is
// already closed fn runs immediately.
func (c *Client) OnClose(fn func()) {
	c.mu.Lock()
	if c.State() != StateClosed {
		c.onClose = append(c.onClose, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

// Dispose closes the connection. It is safe to call more than once.
func (c *Client) Dispose() {
	if err := c.conn.Close(); err != nil && !errors.Is(err, jsonrpc2.ErrClosed) {
		c.logger.Debug("langclient: close", slog.String("error", err.Error()))
	}
	c.markClosed()
}

func (c *Client) markClosed() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state.Store(int32(StateClosed))
		callbacks := c.onClose
		c.onClose = nil
		c.mu.Unlock()

		close(c.done)
		c.logger.Info("langclient: closed")
		for _, fn := range callbacks {
			fn()
		}
	})
}

// Handle serves requests and notifications from the server. Notifications
// run on the read loop so they are delivered in arrival order; requests are
// answered in their own goroutine. Protocol errors are logged and the
// connection stays up.
func (c *Client) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params json.RawMessage
	if req.Params != nil {
		params = *req.Params
	}

	if req.Notif {
		c.handleNotification(req.Method, params)
		return
	}
	go c.reply(ctx, conn, req, params)
}

func (c *Client) reply(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params json.RawMessage) {
	var (
		result any
		rpcErr *jsonrpc2.Error
	)
	switch req.Method {
	case MethodRegisterCapability, MethodWorkDoneCreate:
		result = nil
	case MethodConfiguration:
		var p configurationParams
		if err := json.Unmarshal(params, &p); err != nil {
			rpcErr = &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
			break
		}
		result = make([]any, len(p.Items))
	default:
		rpcErr = &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not supported: " + req.Method}
	}

	var err error
	if rpcErr != nil {
		err = conn.ReplyWithError(ctx, req.ID, rpcErr)
	} else {
		err = conn.Reply(ctx, req.ID, result)
	}
	if err != nil {
		c.logger.Warn("langclient: reply failed",
			slog.String("method", req.Method),
			slog.String("error", err.Error()))
	}
}

func (c *Client) handleNotification(method string, params json.RawMessage) {
	switch method {
	case MethodLogMessage, MethodShowMessage:
		var p logMessageParams
		if err := json.Unmarshal(params, &p); err != nil {
			c.logger.Warn("langclient: bad message params", slog.String("method", method), slog.String("error", err.Error()))
			return
		}
		c.logger.Log(context.Background(), messageLevel(p.Type), "langclient: server message",
			slog.String("method", method),
			slog.String("message", p.Message))
	default:
		if c.notify != nil {
			c.notify(method, params)
			return
		}
		c.logger.Debug("langclient: unhandled notification", slog.String("method", method))
	}
}

// messageLevel maps an LSP MessageType to a log level.
func messageLevel(t int) slog.Level {
	switch t {
	case 1:
		return slog.LevelError
	case 2:
		return slog.LevelWarn
	case 3:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
