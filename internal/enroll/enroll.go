// Package enroll builds gallery entries from portrait photos, either a
// local directory or the HR roster.
package enroll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"

	"github.com/diemxuan/face-attendance/internal/align"
	"github.com/diemxuan/face-attendance/internal/gallery"
	"github.com/diemxuan/face-attendance/internal/hr"
	"github.com/diemxuan/face-attendance/internal/match"
	"github.com/diemxuan/face-attendance/internal/metrics"
	"github.com/diemxuan/face-attendance/internal/session"
)

// ErrNoFace means the portrait contains no detectable face.
var ErrNoFace = errors.New("no face detected in portrait")

// Enroller turns portraits into gallery entries through the same
// detect-align-embed path the recognition pipeline uses.
type Enroller struct {
	detector session.Detector
	embedder session.Embedder
	store    gallery.Store
	logger   *zap.Logger
}

// New creates an enroller.
func New(det session.Detector, emb session.Embedder, store gallery.Store, logger *zap.Logger) *Enroller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enroller{detector: det, embedder: emb, store: store, logger: logger}
}

// Portrait embeds one portrait photo. The photo must contain exactly one
// usable face; when the detector finds several, the highest-confidence
// one wins, as enrollment photos are ID-style portraits.
func (e *Enroller) Portrait(ctx context.Context, id, name string, imageData []byte) (gallery.Entry, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return gallery.Entry{}, fmt.Errorf("decode portrait for %q: %w", id, err)
	}

	dets, err := e.detector.DetectFaces(ctx, imageData)
	if err != nil {
		return gallery.Entry{}, fmt.Errorf("detect face for %q: %w", id, err)
	}
	if len(dets) == 0 {
		return gallery.Entry{}, fmt.Errorf("portrait %q: %w", id, ErrNoFace)
	}
	best := dets[0]
	for _, d := range dets[1:] {
		if d.Score > best.Score {
			best = d
		}
	}

	crop, _, err := align.Frontalize(img, best.Landmarks)
	if err != nil {
		return gallery.Entry{}, fmt.Errorf("align portrait %q: %w", id, err)
	}

	emb, err := e.embedder.EmbedFace(ctx, crop)
	if err != nil {
		return gallery.Entry{}, fmt.Errorf("embed portrait %q: %w", id, err)
	}
	if len(emb) != gallery.EmbeddingDim {
		return gallery.Entry{}, fmt.Errorf("portrait %q: embedding dim %d, want %d", id, len(emb), gallery.EmbeddingDim)
	}

	return gallery.Entry{ID: id, Name: name, Embedding: emb}, nil
}

// SyncResult summarizes a roster sync.
type SyncResult struct {
	Enrolled int
	Skipped  int // portraits that failed detection or embedding
}

// SyncRoster enrolls every employee portrait and atomically replaces the
// gallery. A portrait that cannot be enrolled is logged and skipped; the
// sync itself only fails when nothing can be stored. onProgress, when
// set, is called once per processed employee.
func (e *Enroller) SyncRoster(ctx context.Context, employees []hr.Employee, onProgress func()) (SyncResult, error) {
	var res SyncResult
	entries := make([]gallery.Entry, 0, len(employees))
	// Overlay labels collide when two employees share a name up to case
	// and diacritics. Worth a warning: the terminal shows only the name.
	names := make(map[string]string, len(employees))
	for _, emp := range employees {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		entry, err := e.Portrait(ctx, emp.ID, emp.Name, emp.Portrait)
		if err != nil {
			res.Skipped++
			e.logger.Warn("skipping portrait", zap.String("identity", emp.ID), zap.Error(err))
		} else {
			if key := match.NormalizeName(entry.Name); key != "" {
				if other, ok := names[key]; ok {
					e.logger.Warn("ambiguous display name in roster",
						zap.String("name", entry.Name),
						zap.String("identity", entry.ID),
						zap.String("conflicts_with", other))
				} else {
					names[key] = entry.ID
				}
			}
			entries = append(entries, entry)
		}
		if onProgress != nil {
			onProgress()
		}
	}

	if len(entries) == 0 {
		return res, errors.New("no employee portrait could be enrolled")
	}
	if err := e.store.ReplaceAll(ctx, entries); err != nil {
		return res, fmt.Errorf("replace gallery: %w", err)
	}
	res.Enrolled = len(entries)
	metrics.GallerySize.Set(float64(res.Enrolled))

	e.logger.Info("gallery synced",
		zap.Int("enrolled", res.Enrolled),
		zap.Int("skipped", res.Skipped))
	return res, nil
}
