package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "duet-client",
	Short: "Headless two-party WebRTC call client",
	Long: `duet-client joins a room on a Duet signaling server and holds a
peer-to-peer call with the other member, using synthetic audio and video.
Lines typed on stdin are sent as chat.`,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err.Error())
		cancel()
		os.Exit(1)
	}
}
