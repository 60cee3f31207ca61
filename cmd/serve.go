package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/diemxuan/face-attendance/internal/capture"
	"github.com/diemxuan/face-attendance/internal/config"
	"github.com/diemxuan/face-attendance/internal/hr"
	"github.com/diemxuan/face-attendance/internal/metrics"
	"github.com/diemxuan/face-attendance/internal/session"
	"github.com/diemxuan/face-attendance/internal/vision"
	"github.com/diemxuan/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance device API server",
	Long: `Start the device HTTP API. The API starts and cancels attendance
sessions, reports their progress for the kiosk frontend, lists the
gallery and triggers roster syncs. Prometheus metrics are exposed on
/metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
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

	if n, err := store.Count(context.Background()); err == nil {
		metrics.GallerySize.Set(float64(n))
		fmt.Printf("Gallery has %d enrolled identities\n", n)
	}

	vc := vision.NewClient(cfg.Vision.URL)
	hrClient := hr.NewClient(cfg.HR.URL, cfg.HR.APIKey)
	enroller := buildEnroller(cfg, store, logger)
	manager := session.NewManager(logger)

	params := session.NewParams(
		cfg.Session.WarmupFrames,
		cfg.Session.AcceptAfter,
		cfg.Session.TimeoutAfter,
	)
	newLoop := func(action hr.Action) (*session.Loop, error) {
		return session.NewLoop(session.LoopConfig{
			Action: action,
			Source: capture.NewMJPEGSource(cfg.Capture.URL),
			Recognizer: session.NewPipeline(vc, vc, store,
				cfg.Recognition.Threshold, cfg.Recognition.MinMargin, logger),
			Sink:     hrClient,
			Timezone: cfg.HR.Timezone,
			Params:   params,
			Logger:   logger,
		})
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(host, port, manager, store, enroller, hrClient, newLoop, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting attendance device API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
