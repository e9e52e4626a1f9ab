package journal

import (
	"context"
	"os"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "raido-journal-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.OpenSession(ctx, "s1", "ws://localhost:3000/sampleServer"); err != nil {
		t.Fatal(err)
	}
	rows, err := db.Sessions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].State != "connecting" || rows[0].ReadyAt != nil {
		t.Fatalf("after open: %+v", rows)
	}

	if err := db.MarkReady(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordDelivery(ctx, "s1", "initializeLuis", []string{"inmemory://model1.json", "inmemory://model2.json"}); err != nil {
		t.Fatal(err)
	}
	if err := db.CloseSession(ctx, "s1"); err != nil {
		t.Fatal(err)
	}

	rows, err = db.Sessions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	r := rows[0]
	if r.State != "closed" {
		t.Errorf("state = %q, want closed", r.State)
	}
	if r.ReadyAt == nil || r.ClosedAt == nil {
		t.Errorf("timestamps missing: ready=%v closed=%v", r.ReadyAt, r.ClosedAt)
	}
	if r.Deliveries != 1 {
		t.Errorf("deliveries = %d, want 1", r.Deliveries)
	}

	ds, err := db.Deliveries(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 1 || ds[0].Documents != 2 || ds[0].URIs[1] != "inmemory://model2.json" {
		t.Errorf("deliveries = %+v", ds)
	}
}

func TestClosedSessionIsTerminal(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_ = db.OpenSession(ctx, "s1", "ws://x")
	if err := db.CloseSession(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkReady(ctx, "s1"); err == nil {
		t.Error("MarkReady on a closed session should fail")
	}
	if err := db.CloseSession(ctx, "unknown"); err == nil {
		t.Error("closing an unknown session should fail")
	}
}

func TestSessionsNewestFirstAndLimit(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := db.OpenSession(ctx, id, "ws://x"); err != nil {
			t.Fatal(err)
		}
	}
	rows, err := db.Sessions(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].ID != "c" || rows[1].ID != "b" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestRecordDeliveryNoDocuments(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.OpenSession(ctx, "s1", "ws://x")

	if err := db.RecordDelivery(ctx, "s1", "initializeLuis", nil); err != nil {
		t.Fatal(err)
	}
	ds, err := db.Deliveries(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 1 || ds[0].Documents != 0 || ds[0].URIs == nil {
		t.Errorf("deliveries = %+v", ds)
	}
}
