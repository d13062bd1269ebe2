package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/reconcile"
	"github.com/sells-group/contractor-cli/internal/scraper"
	"github.com/sells-group/contractor-cli/internal/scraper/site"
	"github.com/sells-group/contractor-cli/internal/session"
)

// scrapeSelection is the run the operator asked for.
type scrapeSelection struct {
	category      string
	authenticated bool
	publicRecords bool
	sources       []string
	location      string
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run source adapters and reconcile their records",
	Long: `Run contractor source adapters and reconcile the results into the store.

By default every enabled source runs. Use --category to restrict to one
category, --authenticated or --public-records for the interactive groups,
or --sources for specific adapters. --location overrides the search
location ("Tempe, AZ", "85281").`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sel, err := scrapeFlags(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return runScrape(ctx, cmd.OutOrStdout(), st, sel)
	},
}

func init() {
	f := scrapeCmd.Flags()
	f.String("category", "", "run one category (manufacturer, directory, association, local, authenticated, public_records)")
	f.Bool("authenticated", false, "run member-only sources")
	f.Bool("public-records", false, "run public-records sources")
	f.StringSlice("sources", nil, "run specific sources by name")
	f.String("location", "", "search location override")
	scrapeCmd.MarkFlagsMutuallyExclusive("category", "authenticated", "public-records", "sources")
	rootCmd.AddCommand(scrapeCmd)
}

func scrapeFlags(cmd *cobra.Command) (scrapeSelection, error) {
	var sel scrapeSelection
	var err error
	f := cmd.Flags()
	if sel.category, err = f.GetString("category"); err != nil {
		return sel, err
	}
	if sel.authenticated, err = f.GetBool("authenticated"); err != nil {
		return sel, err
	}
	if sel.publicRecords, err = f.GetBool("public-records"); err != nil {
		return sel, err
	}
	if sel.sources, err = f.GetStringSlice("sources"); err != nil {
		return sel, err
	}
	if sel.location, err = f.GetString("location"); err != nil {
		return sel, err
	}
	return sel, nil
}

// buildEngine assembles the registry from the site catalog.
func buildEngine() (*scraper.Engine, *scraper.Registry, error) {
	catalog, err := site.LoadCatalog(cfg.Scrape.SitesFile)
	if err != nil {
		return nil, nil, err
	}
	opts := scraper.EngineOptionsFromConfig(cfg.Scrape)
	if catalog.DefaultLocation != "" && cfg.Scrape.DefaultLocation == "" {
		opts.DefaultLocation = scraper.ParseLocation(catalog.DefaultLocation)
	}

	reg := scraper.NewRegistry()
	if err := site.Register(reg, catalog, site.Options{
		Credentials:          cfg.Scrape.Credentials,
		AllowUnverifiedLogin: cfg.Scrape.AllowUnverifiedLogin,
		DefaultLocation:      opts.DefaultLocation,
	}); err != nil {
		return nil, nil, err
	}

	opener := &session.HTTPOpener{Base: opts.Session}
	return scraper.NewEngine(reg, opener, opts), reg, nil
}

// runScrape runs the selected adapters and reconciles what they found.
func runScrape(ctx context.Context, out io.Writer, st contractor.Store, sel scrapeSelection) error {
	log := zap.L().With(zap.String("command", "scrape"))

	engine, _, err := buildEngine()
	if err != nil {
		return err
	}
	loc := scraper.ParseLocation(sel.location)

	start := time.Now()
	var result *scraper.RunResult
	switch {
	case len(sel.sources) > 0:
		result, err = engine.RunSources(ctx, sel.sources, loc)
	case sel.authenticated:
		result, err = engine.RunAuthenticated(ctx, loc)
	case sel.publicRecords:
		result, err = engine.RunPublicRecords(ctx, loc)
	case sel.category != "":
		cat, cerr := scraper.ParseCategory(sel.category)
		if cerr != nil {
			return cerr
		}
		result, err = engine.RunCategory(ctx, cat, loc)
	default:
		result, err = engine.RunAll(ctx, loc)
	}
	if result == nil {
		return err
	}
	if err != nil {
		// A cancelled run still reconciles what finished.
		log.Warn("scrape ended early", zap.Error(err))
	}

	sum, rerr := newReconciler(st).ReconcileAll(context.WithoutCancel(ctx), result.Candidates)
	printScrapeReport(out, result, sum)
	log.Info("scrape complete",
		zap.Int("adapters", len(result.Adapters)),
		zap.Int("failed", result.Failed()),
		zap.Int("candidates", len(result.Candidates)),
		zap.Int("created", sum.Created),
		zap.Int("updated", sum.Updated),
		zap.Int("errors", sum.Errors),
		zap.Duration("elapsed", time.Since(start)),
	)
	if rerr != nil {
		return eris.Wrap(rerr, "scrape: reconcile")
	}
	return err
}

func printScrapeReport(out io.Writer, result *scraper.RunResult, sum reconcile.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tCATEGORY\tRECORDS\tELAPSED\tSTATUS")
	for _, a := range result.Adapters {
		status := "ok"
		switch {
		case a.Skipped:
			status = "skipped"
		case a.Err != nil:
			status = "error: " + a.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", a.Name, a.Category, a.Records, a.Elapsed.Round(time.Millisecond), status)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "\nraw %d, duplicates %d, invalid %d, candidates %d\n",
		result.Raw, result.Duplicates, result.Invalid, len(result.Candidates))
	fmt.Fprintf(out, "created %d, updated %d, errors %d\n", sum.Created, sum.Updated, sum.Errors)
}
