package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgx-cds-server/internal/database"
	"github.com/pgx-cds-server/internal/rules"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage the CPIC guideline rule store",
	}

	cmd.AddCommand(newRulesMigrateCmd())
	cmd.AddCommand(newRulesSeedCmd())
	cmd.AddCommand(newRulesCountCmd())
	return cmd
}

func newRulesMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply rule store schema migrations (postgres backend only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.RuleStore.Backend != "postgres" {
				return fmt.Errorf("migrations apply to the postgres backend; sqlite creates its schema on open")
			}

			runner, err := database.NewMigrationRunner(cfg.RuleStore.PostgresURL, cfg.RuleStore.MigrationsPath, logger)
			if err != nil {
				return err
			}
			defer runner.Close()

			if down {
				return runner.Down()
			}
			return runner.Up()
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back one migration instead of applying")
	return cmd
}

func newRulesSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the baseline CPIC rule set into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openRuleStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := rules.Seed(cmd.Context(), store)
			if err != nil {
				return err
			}
			logger.WithField("rules", n).Info("Rule store seeded")
			return nil
		},
	}
}

func newRulesCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Report the number of stored rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openRuleStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
}
