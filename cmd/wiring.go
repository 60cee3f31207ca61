package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/diemxuan/face-attendance/internal/config"
	"github.com/diemxuan/face-attendance/internal/enroll"
	"github.com/diemxuan/face-attendance/internal/gallery"
	"github.com/diemxuan/face-attendance/internal/logging"
	"github.com/diemxuan/face-attendance/internal/vision"
)

// buildLogger creates the process logger from config.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.NewLogger(logging.Config{
		Format: cfg.Log.Format,
		Level:  cfg.Log.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// buildStore opens the gallery backend. With DATABASE_URL set this is
// PostgreSQL; without it the gallery lives in memory and is lost on
// restart, which is fine for kiosk trials.
func buildStore(cfg *config.Config, logger *zap.Logger) (gallery.Store, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory gallery")
		return gallery.NewMemoryStore(), func() {}, nil
	}

	store, err := gallery.NewPostgresStore(gallery.PostgresConfig{
		URL:          cfg.Database.URL,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

// buildEnroller wires the vision sidecar into an enroller over the store.
func buildEnroller(cfg *config.Config, store gallery.Store, logger *zap.Logger) *enroll.Enroller {
	vc := vision.NewClient(cfg.Vision.URL)
	return enroll.New(vc, vc, store, logger)
}
