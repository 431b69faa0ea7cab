// Package cli holds the cobra commands behind cmd/preprocess.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/app"
	"github.com/markdave123-py/cortexprep/internal/config"
	"github.com/markdave123-py/cortexprep/internal/logger"
)

type rootOptions struct {
	logLevel  string
	logFormat string
	asJSON    bool
}

// NewRootCmd builds the command tree. Each command connects through app.NewApp.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "preprocess",
		Short:         "Prepare documents and tables for the agent runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "json or console (overrides LOG_FORMAT)")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		newSearchCmd(opts),
		newAnalystCmd(opts),
		newQueryCmd(opts),
		newAgentCmd(opts),
		newPingCmd(opts),
	)
	return root
}

// Execute runs the CLI against ctx.
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	root.SetOut(os.Stdout)
	return root.ExecuteContext(ctx)
}

// connect loads the environment config and opens every dependency.
func (o *rootOptions) connect(ctx context.Context) (*app.App, error) {
	cfg := config.LoadConfig()
	level, format := cfg.LogLevel, cfg.LogFormat
	if o.logLevel != "" {
		level = o.logLevel
	}
	if o.logFormat != "" {
		format = o.logFormat
	}
	log, err := logger.New(level, format)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return a, nil
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		a.Log.Warn("closing app", zap.Error(err))
	}
	_ = a.Log.Sync()
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
