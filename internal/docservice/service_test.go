package docservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/editor"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/session"
)

type nopSurface struct{}

func (nopSurface) SetDocument(models.Document) {}

type fakeSessions struct {
	status session.Status
	rows   []journal.SessionRow
	err    error
}

func (f *fakeSessions) Status() session.Status { return f.status }

func (f *fakeSessions) History(_ context.Context, limit int) ([]journal.SessionRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func testService(t *testing.T, sessions Sessions) *Service {
	t.Helper()
	reg, err := registry.New([]models.Document{
		{URI: "inmemory://model1.json", Kind: "json", Content: "{}", Version: "v1"},
		{URI: "inmemory://model2.json", Kind: "json", Content: "[]", Version: "v2", Metadata: "secret"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return NewService(editor.New(reg, nopSurface{}), sessions)
}

func TestListDocuments(t *testing.T) {
	svc := testService(t, nil)
	items := svc.ListDocuments(context.Background())
	if len(items) != 2 {
		t.Fatalf("len = %d", len(items))
	}
	if !items[0].Active || items[1].Active {
		t.Errorf("active flags = %v, %v", items[0].Active, items[1].Active)
	}
	if items[1].Index != 1 || items[1].Version != "v2" {
		t.Errorf("item 1 = %+v", items[1])
	}
}

func TestToggleAndActivate(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	got := svc.ToggleActive(ctx)
	if got.URI != "inmemory://model2.json" || got.Index != 1 || got.Content != "[]" {
		t.Errorf("toggle = %+v", got)
	}
	if svc.GetActive(ctx).URI != "inmemory://model2.json" {
		t.Error("active did not follow toggle")
	}

	got, err := svc.Activate(ctx, "inmemory://model1.json")
	if err != nil {
		t.Fatal(err)
	}
	if got.Index != 0 {
		t.Errorf("index = %d", got.Index)
	}

	if _, err := svc.Activate(ctx, "inmemory://missing.json"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSessionWithoutRunner(t *testing.T) {
	svc := testService(t, nil)
	if st := svc.SessionStatus(context.Background()); st.State != "disabled" {
		t.Errorf("state = %q", st.State)
	}
	rows, err := svc.SessionHistory(context.Background(), 10)
	if err != nil || rows == nil || len(rows) != 0 {
		t.Errorf("history = %v, %v", rows, err)
	}
}

func TestSessionHistory(t *testing.T) {
	now := time.Now()
	fs := &fakeSessions{
		status: session.Status{ID: "s2", State: "ready"},
		rows: []journal.SessionRow{
			{ID: "s2", State: "ready", OpenedAt: now},
			{ID: "s1", State: "closed", OpenedAt: now.Add(-time.Minute)},
		},
	}
	svc := testService(t, fs)
	if st := svc.SessionStatus(context.Background()); st.ID != "s2" {
		t.Errorf("status = %+v", st)
	}
	rows, err := svc.SessionHistory(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != "s2" {
		t.Errorf("rows = %+v", rows)
	}

	fs.err = errors.New("boom")
	if _, err := svc.SessionHistory(context.Background(), 1); err == nil {
		t.Error("expected error")
	}
}
