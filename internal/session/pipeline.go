package session

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"time"

	"go.uber.org/zap"

	"github.com/diemxuan/face-attendance/internal/align"
	"github.com/diemxuan/face-attendance/internal/gallery"
	"github.com/diemxuan/face-attendance/internal/match"
	"github.com/diemxuan/face-attendance/internal/metrics"
	"github.com/diemxuan/face-attendance/internal/vision"
)

// Detector is the face detection half of the vision sidecar.
type Detector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]vision.Detection, error)
}

// Embedder is the embedding half of the vision sidecar.
type Embedder interface {
	EmbedFace(ctx context.Context, crop image.Image) ([]float32, error)
}

// Pipeline is the per-frame recognition path: detect, frontalize, embed,
// match against the gallery. It implements Recognizer. Every failure
// along the way degrades to an Unknown candidate so that one bad frame
// never takes down the session.
type Pipeline struct {
	detector  Detector
	embedder  Embedder
	store     gallery.Store
	threshold float64
	minMargin float64
	logger    *zap.Logger
}

// NewPipeline wires the recognition pipeline.
func NewPipeline(det Detector, emb Embedder, store gallery.Store, threshold, minMargin float64, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		detector:  det,
		embedder:  emb,
		store:     store,
		threshold: threshold,
		minMargin: minMargin,
		logger:    logger,
	}
}

// Recognize resolves one frame to a candidate. When multiple faces are
// detected only the first is considered; the device points at a doorway,
// not a crowd.
func (p *Pipeline) Recognize(ctx context.Context, frame image.Image) Candidate {
	start := time.Now()
	defer func() {
		metrics.MatchDuration.Observe(time.Since(start).Seconds())
	}()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 90}); err != nil {
		return p.degrade("encode", err)
	}

	dets, err := p.detector.DetectFaces(ctx, buf.Bytes())
	if err != nil {
		return p.degrade("detect", err)
	}
	if len(dets) == 0 {
		return Unknown()
	}
	det := dets[0]

	crop, _, err := align.Frontalize(frame, det.Landmarks)
	if err != nil {
		// Collinear or coincident landmarks. The box is still real,
		// so keep it for the overlay.
		metrics.FrameFailures.WithLabelValues("align").Inc()
		p.logger.Debug("frontalization failed", zap.Error(err))
		c := Unknown()
		c.Box = det.Box
		c.HasBox = true
		return c
	}

	emb, err := p.embedder.EmbedFace(ctx, crop)
	if err != nil {
		return p.degrade("embed", err)
	}

	entries, err := p.store.ReadAll(ctx)
	if err != nil {
		return p.degrade("gallery", err)
	}

	res := match.Match(emb, entries, p.threshold, p.minMargin)
	cand := Candidate{Name: res.Name, Box: det.Box, HasBox: true}
	if res.Matched {
		cand.ID = res.ID
	}
	return cand
}

func (p *Pipeline) degrade(kind string, err error) Candidate {
	metrics.FrameFailures.WithLabelValues(kind).Inc()
	p.logger.Debug("frame degraded to unknown", zap.String("kind", kind), zap.Error(err))
	return Unknown()
}
