// Package main provides the pgx-cds command-line tool.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pgx-cds-server/internal/config"
	"github.com/pgx-cds-server/internal/domain"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pgx-cds",
		Short:        "Pharmacogenomic clinical decision support pipeline",
		Long:         "Processes patient VCF files into star-allele diplotypes, phenotypes, and deterministic CPIC drug risk assessments.",
		SilenceUsage: true,
	}

	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newRulesCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pgx-cds version %s (%s) built %s\n", version, commit, date)
		},
	}
}

// loadConfig loads and validates configuration, returning it with a
// logger configured per its logging section.
func loadConfig() (*domain.Config, *logrus.Logger, error) {
	manager, err := config.NewManager()
	if err != nil {
		return nil, nil, err
	}
	if err := manager.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg := manager.GetConfig()
	return cfg, newLogger(cfg.Logging), nil
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if strings.ToLower(cfg.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
