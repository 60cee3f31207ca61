package gallery

import (
	"context"
	"errors"
	"testing"
)

func testEntries() []Entry {
	return []Entry{
		{ID: "a@corp", Name: "A", Embedding: []float32{1, 0, 0}},
		{ID: "b@corp", Name: "B", Embedding: []float32{0, 1, 0}},
	}
}

func TestMemoryStoreReplaceAndRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := s.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("fresh store has %d entries, want 0", len(got))
	}

	if err := s.ReplaceAll(ctx, testEntries()); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}

	got, err = s.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if got[0].ID != "a@corp" || got[1].ID != "b@corp" {
		t.Errorf("ids = %q, %q", got[0].ID, got[1].ID)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.ReplaceAll(ctx, testEntries()); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}

	snap, _ := s.ReadAll(ctx)
	snap[0].ID = "mutated"

	got, _ := s.ReadAll(ctx)
	if got[0].ID != "a@corp" {
		t.Errorf("store entry mutated through snapshot: id = %q", got[0].ID)
	}
}

func TestMemoryStoreReplaceClearsOldEntries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.ReplaceAll(ctx, testEntries()); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}
	if err := s.ReplaceAll(ctx, []Entry{{ID: "c@corp", Name: "C", Embedding: []float32{0, 0, 1}}}); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}

	got, _ := s.ReadAll(ctx)
	if len(got) != 1 || got[0].ID != "c@corp" {
		t.Errorf("entries after replace = %+v, want only c@corp", got)
	}
}

func TestMemoryStoreErrorInjection(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	wantErr := errors.New("boom")

	s.ReadError = wantErr
	if _, err := s.ReadAll(ctx); !errors.Is(err, wantErr) {
		t.Errorf("ReadAll() error = %v, want %v", err, wantErr)
	}

	s.ReplaceError = wantErr
	if err := s.ReplaceAll(ctx, nil); !errors.Is(err, wantErr) {
		t.Errorf("ReplaceAll() error = %v, want %v", err, wantErr)
	}
}
