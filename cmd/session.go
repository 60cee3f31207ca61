package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diemxuan/face-attendance/internal/capture"
	"github.com/diemxuan/face-attendance/internal/config"
	"github.com/diemxuan/face-attendance/internal/hr"
	"github.com/diemxuan/face-attendance/internal/session"
	"github.com/diemxuan/face-attendance/internal/vision"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run one attendance session from the camera",
	Long: `Run a single attendance session: claim the camera, wait through the
warm-up window, recognize the face in front of the terminal and record
the attendance event in the HR backend.

The session ends with exactly one of: an accepted identity, a timeout
when nobody was recognized, or a cancellation via Ctrl+C.

Examples:
  # Morning check-in
  face-attendance session --action check-in

  # Check-out without posting to the HR backend
  face-attendance session --action check-out --dry-run`,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(sessionCmd)

	sessionCmd.Flags().String("action", "check-in", "Attendance action: check-in or check-out")
	sessionCmd.Flags().Bool("async", false, "Run recognition in a background worker to keep the frame cadence")
	sessionCmd.Flags().Bool("dry-run", false, "Recognize but do not post the attendance event")
}

func runSession(cmd *cobra.Command, args []string) error {
	action, err := hr.ParseAction(mustGetString(cmd, "action"))
	if err != nil {
		return err
	}
	asyncMode := mustGetBool(cmd, "async")
	dryRun := mustGetBool(cmd, "dry-run")

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

	vc := vision.NewClient(cfg.Vision.URL)
	pipeline := session.NewPipeline(vc, vc, store,
		cfg.Recognition.Threshold, cfg.Recognition.MinMargin, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recognizer session.Recognizer = pipeline
	if asyncMode {
		async := session.NewAsyncRecognizer(ctx, pipeline)
		defer async.Close()
		recognizer = async
	}

	var sink session.Sink
	if dryRun {
		fmt.Println("Dry run: attendance will not be posted")
	} else {
		if cfg.HR.URL == "" {
			return errors.New("HR_URL environment variable is required (or use --dry-run)")
		}
		sink = hr.NewClient(cfg.HR.URL, cfg.HR.APIKey)
	}

	loop, err := session.NewLoop(session.LoopConfig{
		Action:     action,
		Source:     capture.NewMJPEGSource(cfg.Capture.URL),
		Recognizer: recognizer,
		Sink:       sink,
		Timezone:   cfg.HR.Timezone,
		Params: session.NewParams(
			cfg.Session.WarmupFrames,
			cfg.Session.AcceptAfter,
			cfg.Session.TimeoutAfter,
		),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Session %s started (%s), look at the camera...\n", loop.ID(), action)

	out, err := loop.Run(ctx)
	if err != nil {
		if errors.Is(err, session.ErrCancelled) {
			fmt.Println("Session cancelled")
			return nil
		}
		return err
	}

	switch out.Phase {
	case session.PhaseAccepted:
		fmt.Printf("Accepted: %s (%s) after %d frames\n", out.Name, out.Identity, out.Frames)
		switch {
		case dryRun:
		case out.Recorded:
			fmt.Printf("Recorded %s at %s\n", out.Action, out.Timestamp.Format("2006-01-02 15:04:05"))
		default:
			fmt.Printf("Warning: attendance was NOT recorded: %v\n", out.SinkErr)
		}
	case session.PhaseTimedOut:
		cmd.SilenceUsage = true
		return fmt.Errorf("no face recognized within %d frames", out.Frames)
	}
	return nil
}
