package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/diemxuan/face-attendance/internal/config"
	"github.com/diemxuan/face-attendance/internal/hr"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the gallery from the HR employee roster",
	Long: `Download the employee roster with portrait photos from the HR backend,
run every portrait through the detection and embedding pipeline and
replace the gallery with the result.

The replace is atomic: a sync that fails part-way leaves the previous
gallery untouched.

Examples:
  face-attendance sync`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.HR.URL == "" {
		return errors.New("HR_URL environment variable is required")
	}

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

	ctx := context.Background()
	hrClient := hr.NewClient(cfg.HR.URL, cfg.HR.APIKey)

	fmt.Println("Fetching employee roster...")
	employees, err := hrClient.FetchEmployees(ctx)
	if err != nil {
		return fmt.Errorf("fetching roster: %w", err)
	}
	if len(employees) == 0 {
		return errors.New("roster contains no enrollable employees")
	}
	fmt.Printf("Roster has %d employees with portraits\n", len(employees))

	bar := progressbar.NewOptions(len(employees),
		progressbar.OptionSetDescription("Enrolling portraits"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("portraits"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	enroller := buildEnroller(cfg, store, logger)
	res, err := enroller.SyncRoster(ctx, employees, func() { _ = bar.Add(1) })
	fmt.Println()
	if err != nil {
		return fmt.Errorf("syncing gallery: %w", err)
	}

	fmt.Printf("Gallery synced: %d enrolled, %d skipped\n", res.Enrolled, res.Skipped)
	return nil
}
