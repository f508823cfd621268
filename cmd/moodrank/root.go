package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/zoobzio/moodrank/internal/config"
	"github.com/zoobzio/moodrank/internal/logger"
	"go.uber.org/zap"
)

// app holds state shared by subcommands once the root has loaded config.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "moodrank",
		Short: "Mood-based game re-ranking backed by an LLM",
		Long: `moodrank - rank a short list of games against the moods you pick.

The model's output is parsed, sanitized and, when unusable, repaired or
replaced by a locally generated ranking, so every call returns a list.

Examples:
  # Rank a catalog with the mock provider
  moodrank rank -f games.yaml -m Cozy -m Nostalgic

  # Serve the HTTP API with OpenAI
  MOODRANK_PROVIDER=openai MOODRANK_API_KEY=sk-... moodrank serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (overrides "+config.PathEnvVar+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newRankCmd(a), newServeCmd(a))
	return root
}

func (a *app) init() error {
	if a.configPath != "" {
		if err := os.Setenv(config.PathEnvVar, a.configPath); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	return nil
}
