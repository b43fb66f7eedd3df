// Command valdex serves the query validation API and indexes datasets into the vector index.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/valdex/internal/config"
	logpkg "github.com/kailas-cloud/valdex/internal/logger"
	"github.com/kailas-cloud/valdex/internal/version"
)

// app carries what every subcommand needs after flag parsing.
type app struct {
	env        string
	configPath string
	logLevel   string
	dataDir    string

	cfg    config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "valdex",
		Short: "Validate free-text queries against indexed datasets",
		Long: `valdex indexes JSON datasets into a vector index and serves POST /validate,
which retrieves candidate values, lets a language model pick the ones matching
the query and suggests related values it did not pick.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version.Version, version.Commit, version.Date),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.env, "env", "", "environment name, selects config/<env>.yaml (default $ENV or local)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "explicit config file path (overrides --env lookup)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "dataset directory (overrides indexer.data_dir)")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newIndexCmd(a))
	return root
}

// setup loads .env, configuration and the logger, in that order.
func (a *app) setup() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if a.env == "" {
		a.env = config.GetEnv()
	}

	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load(a.env)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.dataDir != "" {
		a.cfg.Indexer.DataDir = a.dataDir
	}

	level := a.cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.logger, err = logpkg.NewLogger(a.env, level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	return nil
}
