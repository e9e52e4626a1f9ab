package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	jsonrpc2ws "github.com/sourcegraph/jsonrpc2/websocket"
)

// Request is one message received by LanguageServer. Params holds the exact
// bytes sent on the wire.
type Request struct {
	Method string
	Params json.RawMessage
	Notif  bool
}

// LanguageServer is an in-process WebSocket JSON-RPC peer that answers the
// initialize handshake and records everything the client sends.
type LanguageServer struct {
	URL string

	// FailInitialize makes the initialize request return an error.
	FailInitialize atomic.Bool

	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	requests []Request
	conns    []*jsonrpc2.Conn
	held     map[string]chan struct{}
	accepted int
}

// NewLanguageServer starts a server that is shut down when t ends.
func NewLanguageServer(t *testing.T) *LanguageServer {
	t.Helper()
	s := &LanguageServer{held: make(map[string]chan struct{})}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serveWS))
	s.URL = "ws" + strings.TrimPrefix(s.srv.URL, "http")
	t.Cleanup(func() {
		s.ReleaseAll()
		s.DropConnections()
		s.srv.Close()
	})
	return s
}

func (s *LanguageServer) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	stream := &recordingStream{ObjectStream: jsonrpc2ws.NewObjectStream(ws), ws: ws, server: s}
	conn := jsonrpc2.NewConn(context.Background(), stream, jsonrpc2.HandlerWithError(s.handle))
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.accepted++
	s.mu.Unlock()
	<-conn.DisconnectNotify()
}

// recordingStream keeps every inbound frame byte for byte before handing it
// to jsonrpc2, whose Request decoder re-marshals params with sorted keys.
type recordingStream struct {
	jsonrpc2.ObjectStream
	ws     *websocket.Conn
	server *LanguageServer
}

func (r *recordingStream) ReadObject(v any) error {
	_, data, err := r.ws.ReadMessage()
	if err != nil {
		return err
	}
	var envelope struct {
		Method string           `json:"method"`
		Params json.RawMessage  `json:"params"`
		ID     *json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Method != "" {
		r.server.mu.Lock()
		r.server.requests = append(r.server.requests, Request{
			Method: envelope.Method,
			Params: envelope.Params,
			Notif:  envelope.ID == nil,
		})
		r.server.mu.Unlock()
	}
	return json.Unmarshal(data, v)
}

func (s *LanguageServer) handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	s.mu.Lock()
	hold := s.held[req.Method]
	s.mu.Unlock()

	if hold != nil {
		<-hold
	}

	if req.Method == "initialize" {
		if s.FailInitialize.Load() {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: "initialize refused"}
		}
		return map[string]any{
			"capabilities": map[string]any{"textDocumentSync": 1},
			"serverInfo":   map[string]any{"name": "fake-luis", "version": "0.0.1"},
		}, nil
	}
	return nil, nil
}

// Hold makes the server stall before answering method until Release.
func (s *LanguageServer) Hold(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.held[method]; !ok {
		s.held[method] = make(chan struct{})
	}
}

// Release lets stalled calls of method complete.
func (s *LanguageServer) Release(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.held[method]; ok {
		close(ch)
		delete(s.held, method)
	}
}

// ReleaseAll releases every held method.
func (s *LanguageServer) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for m, ch := range s.held {
		close(ch)
		delete(s.held, m)
	}
}

// Requests returns the recorded messages with the given method.
func (s *LanguageServer) Requests(method string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// Methods returns the method names of all recorded messages in arrival order.
func (s *LanguageServer) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	for i, r := range s.requests {
		out[i] = r.Method
	}
	return out
}

// Accepted returns how many sockets the server has accepted.
func (s *LanguageServer) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// WaitFor polls until at least n messages of method arrived.
func (s *LanguageServer) WaitFor(t *testing.T, method string, n int) []Request {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := s.Requests(method); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d %q messages, got %v", n, method, s.Methods())
	return nil
}

// Notify sends a notification to every connected client.
func (s *LanguageServer) Notify(ctx context.Context, method string, params any) error {
	for _, c := range s.connections() {
		if err := c.Notify(ctx, method, params); err != nil {
			return err
		}
	}
	return nil
}

// Call issues a request to the most recently connected client.
func (s *LanguageServer) Call(ctx context.Context, method string, params, result any) error {
	conns := s.connections()
	if len(conns) == 0 {
		return jsonrpc2.ErrClosed
	}
	return conns[len(conns)-1].Call(ctx, method, params, result)
}

// DropConnections closes every server-side socket.
func (s *LanguageServer) DropConnections() {
	for _, c := range s.connections() {
		_ = c.Close()
	}
}

func (s *LanguageServer) connections() []*jsonrpc2.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*jsonrpc2.Conn, len(s.conns))
	copy(out, s.conns)
	return out
}

// DialStream opens a client socket to the server.
func (s *LanguageServer) DialStream(t *testing.T) jsonrpc2.ObjectStream {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial(s.URL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", s.URL, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return jsonrpc2ws.NewObjectStream(ws)
}
