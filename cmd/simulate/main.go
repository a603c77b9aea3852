package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"voice-assistant/internal/observability"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var rootCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive simulated phone calls against a running voice assistant",
	Long: `simulate plays the provider's part of a call: it posts the call start, the PIN
and a recording URL to the webhook, follows the <Play> URL of the reply and saves the audio.`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	rootCmd.Flags().String("base-url", "http://localhost:8000", "base URL of the voice assistant")
	rootCmd.Flags().String("pin", "1234", "PIN entered after the call starts")
	rootCmd.Flags().String("recording-url", "", "URL of the caller utterance to send (required)")
	rootCmd.Flags().String("out", ".", "directory the reply audio is written to")
	rootCmd.Flags().Int("calls", 1, "number of concurrent calls")
	rootCmd.Flags().Duration("timeout", time.Minute, "timeout for each call")
	_ = rootCmd.MarkFlagRequired("recording-url")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	baseURL, _ := cmd.Flags().GetString("base-url")
	pin, _ := cmd.Flags().GetString("pin")
	recordingURL, _ := cmd.Flags().GetString("recording-url")
	outDir, _ := cmd.Flags().GetString("out")
	calls, _ := cmd.Flags().GetInt("calls")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if calls < 1 {
		return fmt.Errorf("--calls must be at least 1, got %d", calls)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	sim := &simulator{
		baseURL:      baseURL,
		pin:          pin,
		recordingURL: recordingURL,
		outDir:       outDir,
		client:       &http.Client{Timeout: timeout},
		logger:       observability.NewLogger(),
	}

	runID := time.Now().UTC().Format("20060102T150405")
	g, ctx := errgroup.WithContext(cmd.Context())
	for i := 0; i < calls; i++ {
		callSID := fmt.Sprintf("CASIM%s%03d", runID, i)
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			path, err := sim.run(callCtx, callSID)
			if err != nil {
				return fmt.Errorf("call %s: %w", callSID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: reply audio saved to %s\n", callSID, path)
			return nil
		})
	}
	return g.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
