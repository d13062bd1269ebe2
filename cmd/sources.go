package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/contractor-cli/internal/scraper"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured source adapters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, reg, err := buildEngine()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tCATEGORY\tDEFAULT LOCATION")
		for _, cat := range scraper.Categories {
			for _, a := range reg.ByCategory(cat) {
				loc := ""
				if dl, ok := a.(scraper.DefaultLocator); ok {
					loc = dl.DefaultLocation().String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name(), cat, loc)
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
