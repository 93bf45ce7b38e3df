package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/feedlens/feedlens/internal/discover"
	"github.com/feedlens/feedlens/internal/pipeline"
)

// newExtractCmd creates the 'extract' subcommand: extraction only, over
// an explicit URL list, skipping feed discovery.
func newExtractCmd() *cobra.Command {
	var inputFile string

	cmd := &cobra.Command{
		Use:   "extract [url ...]",
		Short: "Extract engagement metrics from explicit post URLs",
		Long: `Fetches and parses the given post URLs through the rotating
backends without running feed discovery. URLs are read from arguments,
or one per line from --input (use "-" for stdin). Results are printed
as JSON in input order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.Context(), args, inputFile)
		},
	}
	cmd.Flags().StringVar(&inputFile, "input", "", "file with one post URL per line (\"-\" for stdin)")
	return cmd
}

func runExtract(parent context.Context, args []string, inputFile string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	urls, err := collectURLs(args, inputFile)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given")
	}

	// Post IDs are derived from the link pattern when one is configured.
	var pattern *discover.LinkPattern
	if cfg.Discovery.LinkPattern != "" {
		pattern, err = discover.NewLinkPattern(cfg.Discovery.LinkPattern)
		if err != nil {
			return err
		}
	}

	discovered := make([]pipeline.DiscoveredURL, len(urls))
	for i, u := range urls {
		item := pipeline.DiscoveredURL{URL: u, DiscoveryRank: i}
		if pattern != nil {
			if id, ok := pattern.Match(u); ok {
				item.PostID = id
			}
		}
		discovered[i] = item
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler, cleanup, err := buildScheduler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	results := scheduler.Run(ctx, discovered)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return nil
}

// collectURLs merges argument URLs with the optional input file,
// preserving order and skipping blanks and comment lines.
func collectURLs(args []string, inputFile string) ([]string, error) {
	urls := append([]string(nil), args...)
	if inputFile == "" {
		return urls, nil
	}

	var reader *bufio.Scanner
	if inputFile == "-" {
		reader = bufio.NewScanner(os.Stdin)
	} else {
		f, err := os.Open(inputFile) // #nosec G304 -- path comes from the operator
		if err != nil {
			return nil, fmt.Errorf("open input file: %w", err)
		}
		defer f.Close() //nolint:errcheck // read-only file
		reader = bufio.NewScanner(f)
	}

	for reader.Scan() {
		line := strings.TrimSpace(reader.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return urls, nil
}
