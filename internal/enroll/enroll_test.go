package enroll

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/diemxuan/face-attendance/internal/align"
	"github.com/diemxuan/face-attendance/internal/gallery"
	"github.com/diemxuan/face-attendance/internal/hr"
	"github.com/diemxuan/face-attendance/internal/vision"
)

type fakeDetector struct {
	dets []vision.Detection
	err  error
}

func (f *fakeDetector) DetectFaces(ctx context.Context, imageData []byte) ([]vision.Detection, error) {
	return f.dets, f.err
}

type fakeEmbedder struct {
	emb []float32
	err error
}

func (f *fakeEmbedder) EmbedFace(ctx context.Context, crop image.Image) ([]float32, error) {
	return f.emb, f.err
}

func portraitJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 320, 320))
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func detections(scores ...float64) []vision.Detection {
	out := make([]vision.Detection, 0, len(scores))
	for i, s := range scores {
		out = append(out, vision.Detection{
			Box: [4]float64{float64(i * 10), 0, float64(i*10 + 50), 60},
			Landmarks: align.LandmarkSet{
				{X: 130, Y: 140}, {X: 190, Y: 138}, {X: 160, Y: 170}, {X: 140, Y: 200}, {X: 185, Y: 198},
			},
			Score: s,
		})
	}
	return out
}

func fullEmbedding() []float32 {
	emb := make([]float32, gallery.EmbeddingDim)
	emb[0] = 1
	return emb
}

func TestPortrait(t *testing.T) {
	e := New(
		&fakeDetector{dets: detections(0.9)},
		&fakeEmbedder{emb: fullEmbedding()},
		gallery.NewMemoryStore(),
		nil,
	)

	entry, err := e.Portrait(context.Background(), "a@corp", "A", portraitJPEG(t))
	require.NoError(t, err)
	assert.Equal(t, "a@corp", entry.ID)
	assert.Equal(t, "A", entry.Name)
	assert.Len(t, entry.Embedding, gallery.EmbeddingDim)
}

func TestPortraitNoFace(t *testing.T) {
	e := New(&fakeDetector{}, &fakeEmbedder{}, gallery.NewMemoryStore(), nil)

	_, err := e.Portrait(context.Background(), "a@corp", "A", portraitJPEG(t))
	assert.ErrorIs(t, err, ErrNoFace)
}

func TestPortraitNotAnImage(t *testing.T) {
	e := New(&fakeDetector{dets: detections(0.9)}, &fakeEmbedder{emb: fullEmbedding()}, gallery.NewMemoryStore(), nil)

	_, err := e.Portrait(context.Background(), "a@corp", "A", []byte("not a jpeg"))
	assert.Error(t, err)
}

func TestPortraitWrongEmbeddingDim(t *testing.T) {
	e := New(&fakeDetector{dets: detections(0.9)}, &fakeEmbedder{emb: []float32{1, 2}}, gallery.NewMemoryStore(), nil)

	_, err := e.Portrait(context.Background(), "a@corp", "A", portraitJPEG(t))
	assert.Error(t, err)
}

func TestSyncRosterSkipsBadPortraits(t *testing.T) {
	store := gallery.NewMemoryStore()
	e := New(&fakeDetector{dets: detections(0.9)}, &fakeEmbedder{emb: fullEmbedding()}, store, nil)

	good := portraitJPEG(t)
	employees := []hr.Employee{
		{ID: "a@corp", Name: "A", Portrait: good},
		{ID: "broken@corp", Name: "Broken", Portrait: []byte("garbage")},
		{ID: "b@corp", Name: "B", Portrait: good},
	}

	var progress int
	res, err := e.SyncRoster(context.Background(), employees, func() { progress++ })
	require.NoError(t, err)

	assert.Equal(t, 2, res.Enrolled)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 3, progress)

	n, _ := store.Count(context.Background())
	assert.Equal(t, 2, n)
}

func TestSyncRosterAllBadFails(t *testing.T) {
	store := gallery.NewMemoryStore()
	_ = store.ReplaceAll(context.Background(), []gallery.Entry{
		{ID: "keep@corp", Name: "Keep", Embedding: fullEmbedding()},
	})
	e := New(&fakeDetector{err: errors.New("sidecar down")}, &fakeEmbedder{}, store, nil)

	_, err := e.SyncRoster(context.Background(), []hr.Employee{
		{ID: "a@corp", Name: "A", Portrait: portraitJPEG(t)},
	}, nil)
	require.Error(t, err)

	// A failed sync never wipes the existing gallery.
	n, _ := store.Count(context.Background())
	assert.Equal(t, 1, n)
}

func TestSyncRosterWarnsOnAmbiguousNames(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := gallery.NewMemoryStore()
	e := New(&fakeDetector{dets: detections(0.9)}, &fakeEmbedder{emb: fullEmbedding()}, store, zap.New(core))

	good := portraitJPEG(t)
	res, err := e.SyncRoster(context.Background(), []hr.Employee{
		{ID: "a@corp", Name: "Nguyễn Văn An", Portrait: good},
		{ID: "b@corp", Name: "Nguyen van an", Portrait: good},
		{ID: "c@corp", Name: "Trần Thị Bích", Portrait: good},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Enrolled, "ambiguous names still enroll")

	warns := logs.FilterMessage("ambiguous display name in roster").All()
	require.Len(t, warns, 1)
	assert.Equal(t, "b@corp", warns[0].ContextMap()["identity"])
	assert.Equal(t, "a@corp", warns[0].ContextMap()["conflicts_with"])
}

func TestSyncRosterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(&fakeDetector{dets: detections(0.9)}, &fakeEmbedder{emb: fullEmbedding()}, gallery.NewMemoryStore(), nil)
	_, err := e.SyncRoster(ctx, []hr.Employee{{ID: "a@corp", Portrait: portraitJPEG(t)}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
