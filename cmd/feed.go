package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/feed"
	"github.com/sells-group/contractor-cli/internal/fetcher"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Import the license registry snapshot",
	Long: `Download the license registry snapshot (CSV or XLSX), strip its
metadata preamble, classify license codes and upsert every row.

--url overrides feed.url; --file imports a local snapshot instead.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		file, _ := cmd.Flags().GetString("file")
		if u, _ := cmd.Flags().GetString("url"); u != "" {
			cfg.Feed.URL = u
		}
		if file == "" {
			if err := cfg.Validate("feed"); err != nil {
				return err
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := runFeed(ctx, st, file)
		if run != nil {
			printImportRun(cmd.OutOrStdout(), run)
		}
		return err
	},
}

func init() {
	feedCmd.Flags().String("url", "", "snapshot URL (overrides feed.url)")
	feedCmd.Flags().String("file", "", "import a local snapshot file")
	feedCmd.MarkFlagsMutuallyExclusive("url", "file")
	rootCmd.AddCommand(feedCmd)
}

func newImporter(st contractor.Store) *feed.Importer {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Scrape.UserAgent,
		Timeout:      time.Duration(cfg.Feed.TimeoutSecs) * time.Second,
		MaxRedirects: cfg.Feed.MaxRedirects,
	})
	return feed.New(st, newReconciler(st), f, nil, feed.OptionsFromConfig(cfg.Feed))
}

// runFeed imports file when set, else downloads the configured URL.
func runFeed(ctx context.Context, st contractor.Store, file string) (*contractor.ImportRun, error) {
	im := newImporter(st)
	if file != "" {
		return im.ImportFile(ctx, file)
	}
	return im.Run(ctx)
}

func printImportRun(out io.Writer, run *contractor.ImportRun) {
	fmt.Fprintf(out, "import %s: %s\n", run.ID, run.Status)
	fmt.Fprintf(out, "  source:    %s\n", run.Source)
	fmt.Fprintf(out, "  processed: %d\n", run.Processed)
	fmt.Fprintf(out, "  new:       %d\n", run.New)
	fmt.Fprintf(out, "  updated:   %d\n", run.Updated)
	fmt.Fprintf(out, "  errors:    %d\n", run.Errors)
	fmt.Fprintf(out, "  skipped:   %d\n", run.Skipped)
	if run.Error != "" {
		fmt.Fprintf(out, "  failure:   %s\n", run.Error)
	}
}
