// Package match implements margin-thresholded nearest-neighbor matching
// of a probe embedding against a gallery snapshot.
package match

import (
	"math"

	"github.com/diemxuan/face-attendance/internal/gallery"
)

// UnknownLabel is the display label used whenever no entry is accepted.
const UnknownLabel = "Unknown"

// Defaults from tuning against the w600k_r50 embedding model.
const (
	DefaultThreshold = 0.45
	DefaultMinMargin = 0.10
)

// Result is the outcome of one match call. Matched is false for every
// rejection reason: empty gallery, below threshold, or ambiguous margin.
type Result struct {
	ID         string
	Name       string
	Similarity float64
	Margin     float64
	Matched    bool
}

// Normalize returns a unit-length copy of v, or ok=false for the zero
// vector, which carries no direction to compare.
func Normalize(v []float32) ([]float32, bool) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil, false
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out, true
}

// CosineSimilarity computes the cosine similarity between two vectors,
// clamped to [-1, 1]. Returns 0 for mismatched or zero-norm inputs.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

// Match scores the probe against every gallery entry and accepts the best
// one only when it clears both the absolute threshold and the margin over
// the runner-up.
//
// The margin test intentionally collapses to zero when two entries tie at
// the maximum: an ambiguous top match must never auto-accept. With fewer
// than two entries the runner-up score is -1, degrading the margin test
// to a threshold-only check.
func Match(probe []float32, entries []gallery.Entry, threshold, minMargin float64) Result {
	unknown := Result{Name: UnknownLabel}
	if len(entries) == 0 {
		return unknown
	}

	normProbe, ok := Normalize(probe)
	if !ok {
		return unknown
	}

	best, second := math.Inf(-1), math.Inf(-1)
	bestIdx := -1
	for i, e := range entries {
		sim := CosineSimilarity(normProbe, e.Embedding)
		if sim > best {
			second = best
			best = sim
			bestIdx = i
		} else if sim > second {
			second = sim
		}
	}
	if len(entries) < 2 {
		second = -1
	}

	margin := best - second
	res := Result{
		Name:       UnknownLabel,
		Similarity: best,
		Margin:     margin,
	}
	if best > threshold && margin > minMargin {
		res.ID = entries[bestIdx].ID
		res.Name = entries[bestIdx].Name
		res.Matched = true
	}
	return res
}
