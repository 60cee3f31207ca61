package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Face recognition attendance terminal",
	Long: `Face Attendance runs a camera-based attendance terminal. It matches
faces against a gallery of enrolled employees and records check-in and
check-out events in the HR backend. Detection and embedding run in a
separate vision sidecar; this binary drives the camera, the decision
loop and the gallery.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
