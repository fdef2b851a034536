package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/grabber/internal/config"
	"github.com/italolelis/grabber/internal/logctx"
	"github.com/italolelis/grabber/internal/storage"
	"github.com/italolelis/grabber/internal/telemetry"
	"github.com/italolelis/grabber/internal/transfer"
	"github.com/spf13/cobra"
)

const (
	dirPerm        = 0755
	fallbackOutput = "download"
)

func newGetCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Download URL in the foreground; press Enter to pause or resume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), a.cfg, args[0], output, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (defaults to the last URL path segment)")

	return cmd
}

func runGet(ctx context.Context, cfg *config.Config, rawURL, output string, in io.Reader, out io.Writer) error {
	s, err := newSession(ctx, cfg, in, out)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.Get(ctx, rawURL, output)
}

// session is a terminal shell: one engine, one pause control shared by every
// transfer it runs, and the history store.
type session struct {
	cfg          *config.Config
	tel          *telemetry.Telemetry
	history      storage.HistoryRepository
	closeHistory func() error
	engine       *transfer.Engine
	pause        *transfer.PauseControl
	printer      *printer
	out          io.Writer
}

func newSession(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*session, error) {
	// One-shot runs only export metrics when a collector is configured.
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled && cfg.Telemetry.OTLPEndpoint != "",
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	history, closeHistory, err := openHistory(ctx, cfg, tel)
	if err != nil {
		_ = tel.Shutdown(ctx)

		return nil, err
	}

	s := &session{
		cfg:          cfg,
		tel:          tel,
		history:      history,
		closeHistory: closeHistory,
		engine: transfer.NewEngine(transfer.Config{
			UserAgent:      cfg.Transfer.UserAgent,
			ConnectTimeout: cfg.Transfer.ConnectTimeout,
			ChunkSize:      cfg.Transfer.ChunkSize,
		}, nil, tel),
		pause:   transfer.NewPauseControl(),
		printer: &printer{out: out},
		out:     out,
	}

	go togglePauseOnEnter(in, s.pause)

	return s, nil
}

// Get runs one transfer to completion and records it in the history.
func (s *session) Get(ctx context.Context, rawURL, output string) error {
	logger := logctx.LoggerFromContext(ctx)

	target := resolveOutput(s.cfg.TargetDir, rawURL, output)
	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	s.pause.Resume()

	result, err := s.engine.Download(ctx, transfer.Request{URL: rawURL, Destination: target}, s.pause, transfer.Hooks{
		OnLog: s.printer.Print,
	})
	s.printer.Finish()

	if err != nil {
		return err
	}

	if err := s.history.Append(ctx, storage.Record{URL: rawURL, FilePath: result.Path}); err != nil {
		logger.Error("failed to record download history", "err", err)
	}

	fmt.Fprintf(s.out, "%s in %s\n", humanize.Bytes(uint64(result.Bytes)), result.Duration.Round(time.Millisecond))

	return nil
}

func (s *session) Close() {
	if err := s.closeHistory(); err != nil {
		s.printer.Print(fmt.Sprintf("Error: %v", err))
	}

	_ = s.tel.Shutdown(context.Background())
}

// resolveOutput picks the destination path. A relative path is placed under targetDir.
func resolveOutput(targetDir, rawURL, output string) string {
	if output == "" {
		output = fallbackOutput

		if u, err := url.Parse(rawURL); err == nil {
			if base := path.Base(u.Path); base != "." && base != "/" {
				output = base
			}
		}
	}

	if filepath.IsAbs(output) {
		return output
	}

	return filepath.Join(targetDir, output)
}

func togglePauseOnEnter(in io.Reader, pause *transfer.PauseControl) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		pause.Toggle()
	}
}
