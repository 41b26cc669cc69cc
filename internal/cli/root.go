// Package cli implements the docbot command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/teilomillet/docbot"
	"github.com/teilomillet/docbot/config"
	"github.com/teilomillet/docbot/rag"
)

var (
	configPath string
	logLevel   string
	logJSON    bool
)

var rootCmd = &cobra.Command{
	Use:   "docbot",
	Short: "Chat with your documents",
	Long: `docbot ingests PDF, text, Markdown, HTML and JSON files, answers questions
about them and cites its sources by the page numbers printed in the documents.

Settings come from the first config file found (see --config), then from
DOCBOT_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (JSON or TOML); defaults to $DOCBOT_CONFIG or ~/.docbot/config.json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON lines to stderr")
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// openBot loads the configuration and wires a Bot. The caller closes it.
func openBot(ctx context.Context) (*docbot.Bot, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if logJSON {
		level, err := docbot.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		docbot.SetLogger(rag.NewJSONLogger(os.Stderr, level))
	}
	return docbot.New(ctx, cfg)
}
