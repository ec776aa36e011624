package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"doclingd/internal/doctags"
)

var (
	transcribeInstruction string
	transcribeFormat      string
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <image>",
	Short: "Transcribe one page image",
	Long: `Transcribe a page image. With --format doctags fragments stream to stdout
as they decode; other formats print the converted page when generation ends.
Download progress goes to stderr.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)
	transcribeCmd.Flags().StringVar(&transcribeInstruction, "instruction", "", "instruction sent with the image (default: Convert this page to docling.)")
	transcribeCmd.Flags().StringVarP(&transcribeFormat, "format", "f", "doctags", "output format (doctags, markdown or html)")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return transcribe(ctx, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
}

func transcribe(ctx context.Context, path string, stdout, stderr io.Writer) error {
	format, err := doctags.ParseFormat(transcribeFormat)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, newLogger(cfg.LogLevel, cfg.LogFormat, stderr))
	if err != nil {
		return err
	}
	defer a.Close()

	out := io.Discard
	if format == doctags.FormatDocTags {
		out = stdout
	}
	sink := cliSink{out: out, progress: newProgressPrinter(stderr)}
	text, err := a.session.RunBytes(ctx, data, transcribeInstruction, sink)
	if err != nil {
		return err
	}
	if format == doctags.FormatDocTags {
		_, err = fmt.Fprintln(stdout)
		return err
	}
	rendered, err := doctags.Render(text, format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, rendered)
	return err
}
