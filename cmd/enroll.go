package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/diemxuan/face-attendance/internal/config"
	"github.com/diemxuan/face-attendance/internal/gallery"
	"github.com/diemxuan/face-attendance/internal/match"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll portraits from a local directory",
	Long: `Enroll every portrait photo in a directory into the gallery. The file
name (without extension) becomes the identity key and, cleaned up, the
display name: "jan.novak@corp.jpg" enrolls identity
"jan.novak@corp" labeled "jan novak".

This replaces the whole gallery, like a roster sync does.

Examples:
  face-attendance enroll --dir ./portraits`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("dir", "", "Directory with portrait photos (required)")
	enrollCmd.MarkFlagRequired("dir")
}

func isPortraitFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}

func runEnroll(cmd *cobra.Command, args []string) error {
	dir := mustGetString(cmd, "dir")

	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading portrait directory: %w", err)
	}
	var portraits []string
	for _, f := range files {
		if !f.IsDir() && isPortraitFile(f.Name()) {
			portraits = append(portraits, f.Name())
		}
	}
	if len(portraits) == 0 {
		return fmt.Errorf("no portrait images found in %s", dir)
	}

	cfg := config.Load()
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, cleanup, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	enroller := buildEnroller(cfg, store, logger)
	ctx := context.Background()

	bar := progressbar.NewOptions(len(portraits),
		progressbar.OptionSetDescription("Enrolling portraits"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("portraits"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var entries []gallery.Entry
	var skipped int
	for _, name := range portraits {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}

		id := strings.TrimSuffix(name, filepath.Ext(name))
		entry, err := enroller.Portrait(ctx, id, match.DisplayName(id), data)
		if err != nil {
			skipped++
			fmt.Printf("\nSkipping %s: %v\n", name, err)
		} else {
			entries = append(entries, entry)
		}
		_ = bar.Add(1)
	}
	fmt.Println()

	if len(entries) == 0 {
		return fmt.Errorf("no portrait could be enrolled")
	}
	if err := store.ReplaceAll(ctx, entries); err != nil {
		return fmt.Errorf("replacing gallery: %w", err)
	}

	fmt.Printf("Gallery enrolled: %d entries, %d skipped\n", len(entries), skipped)
	return nil
}
