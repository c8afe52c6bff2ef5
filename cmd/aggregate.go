package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brensch/ificstats/internal/catalog"
	"github.com/brensch/ificstats/internal/orchestrator"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate the already extracted databases and write the report",
	Long: `Reads every payload database in the extract directory and writes the
notice report, without touching the catalog or downloading anything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		deps, err := buildDeps(cfg, catalog.NewReader(cfg.Catalog, logger), orchestrator.FixedAnswers{Aggregate: true}, cmd.OutOrStdout(), logger)
		if err != nil {
			return err
		}
		if _, err := orchestrator.RunAggregate(cmd.Context(), cfg, deps); err != nil {
			return fmt.Errorf("aggregate failed: %w", err)
		}
		return nil
	},
}
