package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brensch/ificstats/internal/catalog"
)

var (
	fromYear int
	toYear   int
)

var yearsCmd = &cobra.Command{
	Use:   "years",
	Short: "List the years that have a catalog page",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		to := toYear
		if to == 0 {
			to = time.Now().Year() + 1
		}
		years, err := catalog.AvailableYears(cmd.Context(), catalog.NewReader(cfg.Catalog, logger), fromYear, to, logger)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(years) == 0 {
			fmt.Fprintln(out, "No catalog years available.")
			return nil
		}
		for _, y := range years {
			fmt.Fprintln(out, y)
		}
		return nil
	},
}

func init() {
	yearsCmd.Flags().IntVar(&fromYear, "from", catalog.FirstYear, "First year to probe")
	yearsCmd.Flags().IntVar(&toYear, "to", 0, "Last year to probe (default current year + 1)")
}
