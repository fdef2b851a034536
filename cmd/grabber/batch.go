package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/italolelis/grabber/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// BatchEntry is one item of a batch file.
type BatchEntry struct {
	URL    string `yaml:"url"`
	Output string `yaml:"output"`
}

func newBatchCmd(a *app) *cobra.Command {
	var keepGoing bool

	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Download every entry of a YAML batch file, one at a time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readBatchFile(args[0])
			if err != nil {
				return err
			}

			return runBatch(cmd.Context(), a.cfg, entries, keepGoing, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "continue with the next entry after a failure")

	return cmd
}

func readBatchFile(path string) ([]BatchEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var entries []BatchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("batch file %s has no entries", path)
	}

	return entries, nil
}

func runBatch(ctx context.Context, cfg *config.Config, entries []BatchEntry, keepGoing bool, in io.Reader, out io.Writer) error {
	s, err := newSession(ctx, cfg, in, out)
	if err != nil {
		return err
	}
	defer s.Close()

	var errs []error

	for i, entry := range entries {
		s.printer.Header(fmt.Sprintf("[%d/%d] %s", i+1, len(entries), entry.URL))

		if err := s.Get(ctx, entry.URL, entry.Output); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.URL, err))

			if !keepGoing || ctx.Err() != nil {
				break
			}
		}
	}

	return errors.Join(errs...)
}
