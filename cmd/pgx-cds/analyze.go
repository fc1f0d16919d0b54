package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pgx-cds-server/internal/analysis"
	"github.com/pgx-cds-server/internal/database"
	"github.com/pgx-cds-server/internal/domain"
	"github.com/pgx-cds-server/internal/drug"
	"github.com/pgx-cds-server/internal/haplotype"
	"github.com/pgx-cds-server/internal/pipeline"
	"github.com/pgx-cds-server/internal/rules"
	"github.com/pgx-cds-server/internal/tables"
	"github.com/pgx-cds-server/internal/tooling"
)

func newAnalyzeCmd() *cobra.Command {
	var drugList []string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "analyze <vcf-file>",
		Short: "Analyze a VCF file against requested drugs",
		Example: `  pgx-cds analyze patient.vcf.gz --drugs codeine,warfarin
  pgx-cds analyze patient.vcf --drugs simvastatin --output result.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(drugList) == 0 {
				return fmt.Errorf("at least one drug is required (--drugs)")
			}
			return runAnalyze(cmd, args[0], drugList, outputPath)
		},
	}

	cmd.Flags().StringSliceVar(&drugList, "drugs", nil, "comma-separated drug names to assess")
	cmd.Flags().StringVar(&outputPath, "output", "", "write the JSON result to a file instead of stdout")
	return cmd
}

func runAnalyze(cmd *cobra.Command, vcfPath string, drugList []string, outputPath string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	service, cleanup, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	f, err := os.Open(vcfPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	result, err := service.Analyze(cmd.Context(), f, filepath.Base(vcfPath), drugList)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, append(encoded, '\n'), 0644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		logger.WithField("path", outputPath).Info("Result written")
		return nil
	}
	fmt.Println(string(encoded))
	return nil
}

// buildService wires the full analysis stack from configuration. The
// returned cleanup closes the rule store.
func buildService(cfg *domain.Config, logger *logrus.Logger) (*analysis.Service, func(), error) {
	tbl, err := tables.Load(cfg.Pipeline.TablesDir)
	if err != nil {
		return nil, nil, err
	}

	registry, err := drug.NewRegistry()
	if err != nil {
		return nil, nil, err
	}

	store, err := openRuleStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { store.Close() }

	var opts []rules.ClassifierOption
	if cfg.Cache.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("parse redis URL: %w", err)
		}
		opts = append(opts, rules.WithRedisCache(redis.NewClient(redisOpts), cfg.Cache.TTL))
	}
	classifier := rules.NewClassifier(store, logger, cfg.Cache.Size, cfg.Cache.TTL, opts...)

	runner := tooling.NewRunner(logger, cfg.Tools.Timeout)
	processor := pipeline.NewProcessor(logger, cfg.Pipeline, runner, tbl)

	callerRunner := tooling.NewRunner(logger, callerTimeout(cfg))
	pharmcat := tooling.NewPharmCAT(callerRunner, logger, cfg.Tools.PharmCATContainer, cfg.Tools.PharmCATExecutable)
	caller := haplotype.NewCaller(pharmcat, logger)

	service := analysis.NewService(
		logger,
		cfg.Analysis,
		processor,
		caller,
		haplotype.NewScorer(tbl),
		haplotype.NewMapper(tbl),
		registry,
		classifier,
		tbl,
	)
	return service, cleanup, nil
}

func callerTimeout(cfg *domain.Config) time.Duration {
	if cfg.Tools.CallerTimeout > 0 {
		return cfg.Tools.CallerTimeout
	}
	return cfg.Tools.Timeout
}

func openRuleStore(cfg *domain.Config, logger *logrus.Logger) (rules.Store, error) {
	switch cfg.RuleStore.Backend {
	case "postgres":
		db, err := database.NewConnection(context.Background(), cfg.RuleStore.PostgresURL, logger)
		if err != nil {
			return nil, err
		}
		return rules.NewPostgresStore(db.Conn)
	default:
		return rules.NewSQLiteStore(cfg.RuleStore.SQLitePath)
	}
}
