package match

import (
	"math"
	"testing"

	"github.com/diemxuan/face-attendance/internal/gallery"
)

// unitVec builds an embedding pointing along one axis so cosine
// similarities between test vectors are exactly predictable.
func unitVec(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

// vecWithSimilarity builds a unit vector whose cosine similarity to
// unitVec(dim, 0) is exactly sim.
func vecWithSimilarity(dim int, sim float64) []float32 {
	v := make([]float32, dim)
	v[0] = float32(sim)
	v[1] = float32(math.Sqrt(1 - sim*sim))
	return v
}

func TestNormalize(t *testing.T) {
	v, ok := Normalize([]float32{3, 4})
	if !ok {
		t.Fatal("Normalize() ok = false, want true")
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("Normalize() = %v, want [0.6 0.8]", v)
	}

	if _, ok := Normalize([]float32{0, 0, 0}); ok {
		t.Error("Normalize() of zero vector should report ok = false")
	}
}

func TestCosineSimilaritySelf(t *testing.T) {
	v, _ := Normalize([]float32{0.3, -1.2, 0.7, 2.5})
	if sim := CosineSimilarity(v, v); math.Abs(sim-1) > 1e-6 {
		t.Errorf("CosineSimilarity(v, v) = %v, want 1", sim)
	}
}

func TestMatchEmptyGallery(t *testing.T) {
	res := Match(unitVec(4, 0), nil, DefaultThreshold, DefaultMinMargin)
	if res.Matched {
		t.Error("Match() against empty gallery should not accept")
	}
	if res.Name != UnknownLabel {
		t.Errorf("Name = %q, want %q", res.Name, UnknownLabel)
	}
	if res.Similarity != 0 || res.Margin != 0 {
		t.Errorf("Similarity, Margin = %v, %v, want 0, 0", res.Similarity, res.Margin)
	}
}

func TestMatchZeroProbe(t *testing.T) {
	entries := []gallery.Entry{{ID: "a", Name: "A", Embedding: unitVec(4, 0)}}
	res := Match(make([]float32, 4), entries, DefaultThreshold, DefaultMinMargin)
	if res.Matched {
		t.Error("Match() with zero probe should not accept")
	}
}

func TestMatchDecisions(t *testing.T) {
	probe := unitVec(8, 0)

	tests := []struct {
		name         string
		similarities []float64
		threshold    float64
		minMargin    float64
		wantMatched  bool
		wantID       string
	}{
		{
			name:         "margin rejection despite threshold pass",
			similarities: []float64{0.50, 0.48},
			threshold:    0.45,
			minMargin:    0.10,
			wantMatched:  false,
		},
		{
			name:         "clear margin acceptance",
			similarities: []float64{0.80, 0.20},
			threshold:    0.45,
			minMargin:    0.10,
			wantMatched:  true,
			wantID:       "id0",
		},
		{
			name:         "below threshold",
			similarities: []float64{0.40, 0.10},
			threshold:    0.45,
			minMargin:    0.10,
			wantMatched:  false,
		},
		{
			name:         "tie at maximum never accepts",
			similarities: []float64{0.90, 0.90, 0.10},
			threshold:    0.45,
			minMargin:    0.10,
			wantMatched:  false,
		},
		{
			name:         "single entry uses threshold only",
			similarities: []float64{0.46},
			threshold:    0.45,
			minMargin:    0.10,
			wantMatched:  true,
			wantID:       "id0",
		},
		{
			name:         "single entry below threshold",
			similarities: []float64{0.44},
			threshold:    0.45,
			minMargin:    0.10,
			wantMatched:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := make([]gallery.Entry, len(tt.similarities))
			for i, sim := range tt.similarities {
				entries[i] = gallery.Entry{
					ID:        "id" + string(rune('0'+i)),
					Name:      "user" + string(rune('0'+i)),
					Embedding: vecWithSimilarity(8, sim),
				}
			}

			res := Match(probe, entries, tt.threshold, tt.minMargin)
			if res.Matched != tt.wantMatched {
				t.Fatalf("Matched = %v, want %v (result %+v)", res.Matched, tt.wantMatched, res)
			}
			if tt.wantMatched && res.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", res.ID, tt.wantID)
			}
			if !tt.wantMatched && res.Name != UnknownLabel {
				t.Errorf("Name = %q, want %q", res.Name, UnknownLabel)
			}
		})
	}
}

func TestMatchMarginValues(t *testing.T) {
	probe := unitVec(8, 0)
	entries := []gallery.Entry{
		{ID: "a", Name: "A", Embedding: vecWithSimilarity(8, 0.80)},
		{ID: "b", Name: "B", Embedding: vecWithSimilarity(8, 0.20)},
	}

	res := Match(probe, entries, DefaultThreshold, DefaultMinMargin)
	if math.Abs(res.Similarity-0.80) > 1e-5 {
		t.Errorf("Similarity = %v, want 0.80", res.Similarity)
	}
	if math.Abs(res.Margin-0.60) > 1e-5 {
		t.Errorf("Margin = %v, want 0.60", res.Margin)
	}
}
