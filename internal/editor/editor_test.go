package editor

import (
	"errors"
	"testing"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/registry"
)

type recordingSurface struct {
	shown []string
}

func (s *recordingSurface) SetDocument(doc models.Document) {
	s.shown = append(s.shown, doc.URI)
}

func testEditor(t *testing.T) (*Editor, *recordingSurface) {
	t.Helper()
	reg, err := registry.New([]models.Document{
		{URI: "inmemory://model1.json", Kind: "json"},
		{URI: "inmemory://model2.json", Kind: "json", Metadata: "0d4991873f334685a9686d1b48e0ff48"},
	})
	if err != nil {
		t.Fatal(err)
	}
	s := &recordingSurface{}
	return New(reg, s), s
}

func TestNew_ShowsInitialDocument(t *testing.T) {
	_, s := testEditor(t)
	if len(s.shown) != 1 || s.shown[0] != "inmemory://model1.json" {
		t.Fatalf("shown = %v", s.shown)
	}
}

func TestToggle_DisplaysEachTransition(t *testing.T) {
	e, s := testEditor(t)

	if got := e.Toggle().URI; got != "inmemory://model2.json" {
		t.Fatalf("first toggle = %q", got)
	}
	if got := e.Toggle().URI; got != "inmemory://model1.json" {
		t.Fatalf("second toggle = %q", got)
	}

	want := []string{"inmemory://model1.json", "inmemory://model2.json", "inmemory://model1.json"}
	if len(s.shown) != len(want) {
		t.Fatalf("shown = %v, want %v", s.shown, want)
	}
	for i := range want {
		if s.shown[i] != want[i] {
			t.Errorf("shown[%d] = %q, want %q", i, s.shown[i], want[i])
		}
	}
	if e.Active().URI != "inmemory://model1.json" {
		t.Errorf("active = %q", e.Active().URI)
	}
}

func TestActivate_UnknownDoesNotDisplay(t *testing.T) {
	e, s := testEditor(t)
	if _, err := e.Activate("inmemory://nope.json"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if len(s.shown) != 1 {
		t.Errorf("shown = %v, want only the initial document", s.shown)
	}

	doc, err := e.Activate("inmemory://model2.json")
	if err != nil {
		t.Fatal(err)
	}
	if doc.URI != "inmemory://model2.json" || e.ActiveIndex() != 1 {
		t.Errorf("doc = %q, index = %d", doc.URI, e.ActiveIndex())
	}
	if s.shown[len(s.shown)-1] != "inmemory://model2.json" {
		t.Errorf("last shown = %q", s.shown[len(s.shown)-1])
	}
}
