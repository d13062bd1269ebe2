package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-cli/internal/contractor"
	"github.com/sells-group/contractor-cli/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the feed import, cross-reference and scrape on cron schedules",
	Long: `Run the recurring jobs until interrupted. Specs come from
schedule.feed, schedule.xref and schedule.scrape (six fields, seconds
first); an empty spec disables that job. --list prints the next run times
and exits.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("schedule"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		s, err := buildScheduler(st)
		if err != nil {
			return err
		}

		if list, _ := cmd.Flags().GetBool("list"); list {
			s.Start()
			defer s.Stop(context.Background()) //nolint:errcheck
			printEntries(cmd.OutOrStdout(), s.Entries())
			return nil
		}

		grace, _ := cmd.Flags().GetDuration("grace")
		zap.L().Info("scheduler running", zap.Int("jobs", len(s.Entries())))
		return s.Run(ctx, grace)
	},
}

func init() {
	scheduleCmd.Flags().Bool("list", false, "print scheduled jobs and exit")
	scheduleCmd.Flags().Duration("grace", 30*time.Second, "how long to wait for running jobs on shutdown")
	rootCmd.AddCommand(scheduleCmd)
}

func buildScheduler(st contractor.Store) (*schedule.Scheduler, error) {
	loc, err := schedule.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, err
	}
	s := schedule.New(loc)

	jobs := []schedule.Job{
		{Name: "feed", Spec: feedSpec(), Run: func(ctx context.Context) error {
			_, err := runFeed(ctx, st, "")
			return err
		}},
		{Name: "xref", Spec: cfg.Schedule.Xref, Run: func(ctx context.Context) error {
			_, err := runXref(ctx, st)
			return err
		}},
		{Name: "scrape", Spec: cfg.Schedule.Scrape, Run: func(ctx context.Context) error {
			return runScrape(ctx, io.Discard, st, scrapeSelection{})
		}},
	}
	for _, j := range jobs {
		if err := s.Add(j); err != nil {
			return nil, eris.Wrap(err, "schedule: build")
		}
	}
	return s, nil
}

// feedSpec disables the feed job when no snapshot URL is configured.
func feedSpec() string {
	if cfg.Feed.URL == "" {
		return ""
	}
	return cfg.Schedule.Feed
}

func printEntries(out io.Writer, entries []schedule.Entry) {
	for _, e := range entries {
		fmt.Fprintf(out, "%-8s %-20s next %s\n", e.Name, e.Spec, e.Next.Format(time.RFC3339))
	}
}
