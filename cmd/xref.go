package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/scraper"
	"github.com/sells-group/contractor-cli/internal/session"
	"github.com/sells-group/contractor-cli/internal/xref"
	"github.com/sells-group/contractor-cli/pkg/google"
)

var xrefCmd = &cobra.Command{
	Use:   "xref",
	Short: "Fill missing contact data on license-verified contractors",
	Long: `Page through license-verified contractors missing a phone, email or
website and search for them by license number, business name and display
name, stopping at the first key that fills a gap.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
			cfg.Xref.Limit = limit
		}
		if err := cfg.Validate("xref"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := runXref(ctx, st)
		fmt.Fprintf(cmd.OutOrStdout(), "processed %d, updated %d, not found %d, errors %d\n",
			sum.Processed, sum.Updated, sum.NotFound, sum.Errors)
		return err
	},
}

func init() {
	xrefCmd.Flags().Int("limit", 0, "maximum records to process (0 = all)")
	rootCmd.AddCommand(xrefCmd)
}

// buildLookup chains the configured lookups: Places first, then the
// directory search. The returned func releases the directory session.
func buildLookup(ctx context.Context) (xref.Lookup, func(), error) {
	var chain xref.Chain
	closeFn := func() {}

	if cfg.Google.PlacesAPIKey != "" {
		chain = append(chain, xref.NewPlacesLookup(google.NewClient(cfg.Google.PlacesAPIKey)))
	}
	if cfg.Xref.SearchURL != "" {
		opts := scraper.EngineOptionsFromConfig(cfg.Scrape).Session
		opts.Name = "xref"
		sess, err := (&session.HTTPOpener{}).Open(ctx, opts)
		if err != nil {
			return nil, closeFn, err
		}
		closeFn = func() { _ = sess.Close() }
		chain = append(chain, xref.NewDirectoryLookup(sess, cfg.Xref.SearchURL, cfg.Xref.ResultSelector))
	}
	if len(chain) == 0 {
		return nil, closeFn, eris.New("xref: no lookup configured")
	}
	return chain, closeFn, nil
}

func runXref(ctx context.Context, st contractor.Store) (xref.Summary, error) {
	lookup, closeFn, err := buildLookup(ctx)
	defer closeFn()
	if err != nil {
		return xref.Summary{}, err
	}
	return xref.New(st, lookup, xref.OptionsFromConfig(cfg.Xref)).Run(ctx)
}
