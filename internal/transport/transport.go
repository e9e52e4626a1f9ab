// Package transport keeps a WebSocket connection to the language server
// open, redialing with exponential backoff whenever it drops.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	jsonrpc2ws "github.com/sourcegraph/jsonrpc2/websocket"
)

// Options controls dialing and reconnection.
type Options struct {
	MinReconnectDelay time.Duration
	MaxReconnectDelay time.Duration
	GrowFactor        float64
	ConnectTimeout    time.Duration
	// MaxRetries bounds consecutive failed dials; 0 retries forever.
	MaxRetries int
	Header     http.Header
}

// DefaultOptions mirrors the usual browser reconnecting-socket policy.
func DefaultOptions() Options {
	return Options{
		MinReconnectDelay: time.Second,
		MaxReconnectDelay: 10 * time.Second,
		GrowFactor:        1.3,
		ConnectTimeout:    10 * time.Second,
	}
}

// ConnectionHandler serves one open socket. It must return once it is
// finished with the stream; Listen then redials.
type ConnectionHandler func(ctx context.Context, stream jsonrpc2.ObjectStream)

// ErrRetriesExhausted is returned when MaxRetries consecutive dials fail.
var ErrRetriesExhausted = errors.New("transport: reconnect retries exhausted")

// Listen dials url and hands every opened socket to onConnection, one at a
// time, until ctx is cancelled. It returns nil on cancellation.
func Listen(ctx context.Context, url string, opts Options, logger *slog.Logger, onConnection ConnectionHandler) error {
	if logger == nil {
		logger = slog.Default()
	}
	opts = withDefaults(opts)

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.ConnectTimeout,
	}

	for {
		conn, err := dial(ctx, dialer, url, opts, logger)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		logger.Info("transport: connected", slog.String("url", url))
		onConnection(ctx, jsonrpc2ws.NewObjectStream(conn))
		_ = conn.Close()

		if ctx.Err() != nil {
			return nil
		}
		logger.Info("transport: connection closed, reconnecting",
			slog.String("url", url),
			slog.Duration("delay", opts.MinReconnectDelay))

		t := time.NewTimer(opts.MinReconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func dial(ctx context.Context, dialer *websocket.Dialer, url string, opts Options, logger *slog.Logger) (*websocket.Conn, error) {
	var conn *websocket.Conn
	attempts := 0

	op := func() error {
		attempts++
		dctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()

		c, resp, err := dialer.DialContext(dctx, url, opts.Header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		conn = c
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("transport: dial failed",
			slog.String("url", url),
			slog.Int("attempt", attempts),
			slog.Duration("retry_in", wait),
			slog.String("error", err.Error()))
	}

	var b backoff.BackOff = newBackOff(opts)
	if opts.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, uint64(opts.MaxRetries))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrRetriesExhausted, url, attempts, err)
	}
	return conn, nil
}

func newBackOff(opts Options) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.MinReconnectDelay
	b.MaxInterval = opts.MaxReconnectDelay
	b.Multiplier = opts.GrowFactor
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.MinReconnectDelay <= 0 {
		opts.MinReconnectDelay = def.MinReconnectDelay
	}
	if opts.MaxReconnectDelay <= 0 {
		opts.MaxReconnectDelay = def.MaxReconnectDelay
	}
	if opts.MaxReconnectDelay < opts.MinReconnectDelay {
		opts.MaxReconnectDelay = opts.MinReconnectDelay
	}
	if opts.GrowFactor < 1 {
		opts.GrowFactor = def.GrowFactor
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	return opts
}
