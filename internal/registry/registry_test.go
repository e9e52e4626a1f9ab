package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

func sampleDocs() []models.Document {
	return []models.Document{
		{URI: "inmemory://model1.json", Kind: "json", Content: `{"line_endings": "unix"}`, Metadata: ""},
		{URI: "inmemory://model2.json", Kind: "json", Content: `{"line_endings": "linux"}`, Metadata: "0d4991873f334685a9686d1b48e0ff48"},
	}
}

func TestNew_DuplicateIdentityAllOrders(t *testing.T) {
	a := models.Document{URI: "inmemory://a.json"}
	b := models.Document{URI: "inmemory://b.json"}
	dup := models.Document{URI: "inmemory://a.json", Metadata: "other"}

	orders := [][]models.Document{
		{a, b, dup},
		{a, dup, b},
		{b, a, dup},
		{b, dup, a},
		{dup, a, b},
		{dup, b, a},
	}
	for i, docs := range orders {
		_, err := New(docs)
		if !errors.Is(err, apperr.ErrDuplicateIdentity) {
			t.Errorf("order %d: err = %v, want ErrDuplicateIdentity", i, err)
		}
	}
}

func TestNew_Empty(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, apperr.ErrEmptyRegistry) {
		t.Fatalf("err = %v, want ErrEmptyRegistry", err)
	}
}

func TestNew_EmptyURI(t *testing.T) {
	if _, err := New([]models.Document{{URI: ""}}); err == nil {
		t.Fatal("expected error for empty uri")
	}
}

func TestNew_DefaultActiveIsFirst(t *testing.T) {
	for n := 1; n <= 4; n++ {
		docs := make([]models.Document, n)
		for i := range docs {
			docs[i] = models.Document{URI: "inmemory://" + string(rune('a'+i))}
		}
		r, err := New(docs)
		if err != nil {
			t.Fatal(err)
		}
		if got := r.Active(); got.URI != docs[0].URI {
			t.Errorf("n=%d: active = %q, want %q", n, got.URI, docs[0].URI)
		}
		if r.ActiveIndex() != 0 {
			t.Errorf("n=%d: active index = %d", n, r.ActiveIndex())
		}
	}
}

func TestNew_CopiesInput(t *testing.T) {
	docs := sampleDocs()
	r, err := New(docs)
	if err != nil {
		t.Fatal(err)
	}
	docs[0].URI = "mutated"
	if r.Active().URI != "inmemory://model1.json" {
		t.Error("registry shares backing array with caller")
	}
}

func TestToggle_TwoDocumentsAlternates(t *testing.T) {
	r, err := New(sampleDocs())
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 0, 1, 0, 1, 0}
	for step, idx := range want {
		doc := r.Toggle()
		if r.ActiveIndex() != idx {
			t.Fatalf("step %d: index = %d, want %d", step, r.ActiveIndex(), idx)
		}
		if doc.URI != r.Active().URI {
			t.Fatalf("step %d: Toggle returned %q, Active is %q", step, doc.URI, r.Active().URI)
		}
	}
}

func TestToggle_CyclesNDocuments(t *testing.T) {
	docs := []models.Document{{URI: "a"}, {URI: "b"}, {URI: "c"}}
	r, err := New(docs)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"b", "c", "a", "b"} {
		if got := r.Toggle().URI; got != want {
			t.Fatalf("toggle = %q, want %q", got, want)
		}
	}
}

func TestToggle_SingleDocumentStays(t *testing.T) {
	r, err := New([]models.Document{{URI: "only"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Toggle().URI; got != "only" {
		t.Fatalf("toggle = %q", got)
	}
}

func TestAllMetadata_CompleteAndOrdered(t *testing.T) {
	r, err := New(sampleDocs())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		got := r.AllMetadata()
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].URI != "inmemory://model1.json" || got[0].Metadata != "" {
			t.Errorf("entry 0 = %+v", got[0])
		}
		if got[1].URI != "inmemory://model2.json" || got[1].Metadata != "0d4991873f334685a9686d1b48e0ff48" {
			t.Errorf("entry 1 = %+v", got[1])
		}
		r.Toggle()
	}
}

func TestActivate(t *testing.T) {
	r, err := New(sampleDocs())
	if err != nil {
		t.Fatal(err)
	}
	doc, err := r.Activate("inmemory://model2.json")
	if err != nil {
		t.Fatal(err)
	}
	if doc.URI != "inmemory://model2.json" || r.ActiveIndex() != 1 {
		t.Errorf("activate: doc = %q, index = %d", doc.URI, r.ActiveIndex())
	}
	if _, err := r.Activate("inmemory://missing.json"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if r.ActiveIndex() != 1 {
		t.Error("failed activate changed the active index")
	}
}

func TestConcurrentToggle(t *testing.T) {
	r, err := New(sampleDocs())
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Toggle()
			_ = r.Active()
			_ = r.AllMetadata()
		}()
	}
	wg.Wait()
	// 100 toggles from index 0 lands back on 0.
	if r.ActiveIndex() != 0 {
		t.Errorf("index = %d, want 0", r.ActiveIndex())
	}
}
