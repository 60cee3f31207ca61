package gallery

import "testing"

func axisEntry(id, name string, axis int) Entry {
	emb := make([]float32, 8)
	emb[axis] = 1
	return Entry{ID: id, Name: name, Embedding: emb}
}

func TestIndexNearest(t *testing.T) {
	idx := NewIndex([]Entry{
		axisEntry("a@corp", "A", 0),
		axisEntry("b@corp", "B", 1),
		axisEntry("c@corp", "C", 2),
	})

	if idx.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", idx.Len())
	}

	// Query close to axis 1 with a small axis-0 component.
	query := []float32{0.2, 0.9, 0, 0, 0, 0, 0, 0}
	got, err := idx.Nearest(query, 2)
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("neighbors = %d, want 2", len(got))
	}
	if got[0].Entry.ID != "b@corp" {
		t.Errorf("nearest = %q, want b@corp", got[0].Entry.ID)
	}
	if got[0].Similarity <= got[1].Similarity {
		t.Errorf("similarities not ordered: %v then %v", got[0].Similarity, got[1].Similarity)
	}
}

func TestIndexEmpty(t *testing.T) {
	idx := NewIndex(nil)
	if idx.Len() != 0 {
		t.Errorf("Len() = %d, want 0", idx.Len())
	}
	if _, err := idx.Nearest([]float32{1, 0}, 1); err == nil {
		t.Error("Nearest() on empty index should fail")
	}
}

func TestIndexSkipsEntriesWithoutEmbedding(t *testing.T) {
	idx := NewIndex([]Entry{
		axisEntry("a@corp", "A", 0),
		{ID: "broken@corp", Name: "Broken"},
	})
	if idx.Len() != 1 {
		t.Errorf("Len() = %d, want 1", idx.Len())
	}
}
