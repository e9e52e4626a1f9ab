package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/starford/raido/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func next(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestSetDocumentDelivery(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.SetDocument(models.Document{URI: "inmemory://model2.json", Kind: "json", Content: "{}", Metadata: "secret-key"})

	s := next(t, ch)
	if !strings.Contains(s, "event: document.active") {
		t.Errorf("missing event type in %q", s)
	}
	if !strings.Contains(s, `"uri":"inmemory://model2.json"`) {
		t.Errorf("missing uri in %q", s)
	}
	if strings.Contains(s, "secret-key") {
		t.Errorf("metadata leaked to the view: %q", s)
	}
}

func TestRetainedEventsReplayedToNewSubscriber(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	// The first subscriber observes all four events, which guarantees the
	// loop has processed them before the second subscriber arrives.
	early := b.Subscribe()
	defer b.Unsubscribe(early)

	b.SetDocument(models.Document{URI: "inmemory://model1.json"})
	b.SetDocument(models.Document{URI: "inmemory://model2.json"})
	b.PublishSessionState("s1", "ready")
	b.PublishStale("inmemory://model1.json")
	for i := 0; i < 4; i++ {
		next(t, early)
	}

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	first := next(t, ch)
	if !strings.Contains(first, "document.active") || !strings.Contains(first, "model2.json") {
		t.Errorf("first replay = %q, want latest active document", first)
	}
	second := next(t, ch)
	if !strings.Contains(second, "session.state") || !strings.Contains(second, `"state":"ready"`) {
		t.Errorf("second replay = %q, want session state", second)
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected replay %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDiagnosticsRaw(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDiagnostics(json.RawMessage(`{"uri":"inmemory://model1.json","diagnostics":[]}`))
	s := next(t, ch)
	if !strings.Contains(s, "event: diagnostics") || !strings.Contains(s, `"diagnostics":[]`) {
		t.Errorf("diagnostics event = %q", s)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishSessionState("s1", "connecting")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: session.state") {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.PublishStale("inmemory://x.json")
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Safe no-ops after close.
	b.SetDocument(models.Document{URI: "x"})
	b.PublishSessionState("s1", "closed")
	b.Close()
}
