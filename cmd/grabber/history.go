package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/italolelis/grabber/internal/config"
	"github.com/italolelis/grabber/internal/logctx"
	"github.com/italolelis/grabber/internal/storage"
	"github.com/italolelis/grabber/internal/storage/bolt"
	"github.com/italolelis/grabber/internal/storage/jsonfile"
	"github.com/italolelis/grabber/internal/storage/sqlite"
	"github.com/italolelis/grabber/internal/telemetry"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newHistoryCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List completed downloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			history, closeHistory, err := openHistory(ctx, a.cfg, nil)
			if err != nil {
				return err
			}
			defer closeHistory()

			records, err := history.Load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}

			return printHistory(cmd.OutOrStdout(), format, records)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json or yaml")

	return cmd
}

func printHistory(out io.Writer, format string, records []storage.Record) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "    ")

		return enc.Encode(records)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)

		if err := enc.Encode(records); err != nil {
			return err
		}

		return enc.Close()
	case "table":
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, headerStyle.Render("URL")+"\t"+headerStyle.Render("FILE"))

		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\n", r.URL, r.FilePath)
		}

		return w.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// openHistory is an abstract factory for the history backend. The returned
// close function releases the backend's file handles.
func openHistory(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry) (storage.HistoryRepository, func() error, error) {
	logger := logctx.LoggerFromContext(ctx)

	var (
		repo    storage.HistoryRepository
		closeFn = func() error { return nil }
	)

	switch cfg.HistoryBackend {
	case "json":
		repo = jsonfile.NewStore(cfg.HistoryPath)
	case "sqlite":
		db, err := sqlite.InitDB(cfg.HistoryPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite history: %w", err)
		}

		repo, closeFn = sqlite.NewHistoryRepository(db), db.Close
	case "bolt":
		r, err := bolt.NewHistoryRepository(cfg.HistoryPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open bolt history: %w", err)
		}

		repo, closeFn = r, r.Close
	default:
		return nil, nil, fmt.Errorf("invalid history backend: %s", cfg.HistoryBackend)
	}

	logger.Debug("history store opened", "backend", cfg.HistoryBackend, "path", cfg.HistoryPath)

	if tel == nil {
		return repo, closeFn, nil
	}

	return storage.NewInstrumentedHistoryRepository(repo, tel, cfg.HistoryBackend), closeFn, nil
}
