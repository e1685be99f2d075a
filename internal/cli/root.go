package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"incident-search/internal/app"
	"incident-search/internal/config"
	"incident-search/internal/logging"
)

type cli struct {
	cfgPath  string
	logLevel string
	stdout   io.Writer
	stderr   io.Writer
}

// NewRootCommand builds the incident-search command tree on the process stdio.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithIO(os.Stdout, os.Stderr)
}

// NewRootCommandWithIO builds the command tree writing to out and errOut.
func NewRootCommandWithIO(out, errOut io.Writer) *cobra.Command {
	c := &cli{stdout: out, stderr: errOut}
	cmd := &cobra.Command{
		Use:           "incident-search",
		Short:         "Find historical incidents similar to a new description",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.PersistentFlags().StringVar(&c.cfgPath, "config", "", "path to YAML config file (defaults to ./config.yaml or ~/.config/incident-search/config.yaml)")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSearchCmd(c),
		newTUICmd(c),
		newRecordsCmd(c),
		newInsightsCmd(c),
		newServeCmd(c),
	)
	return cmd
}

func (c *cli) loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if c.cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(c.cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	return cfg, nil
}

// open loads config, builds the logger and assembles a ready application.
func (c *cli) open(ctx context.Context, reg prometheus.Registerer) (*app.App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, log, reg)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		_ = log.Sync()
		return nil, err
	}
	return a, nil
}

func (c *cli) close(a *app.App) {
	if err := a.Close(); err != nil {
		a.Log.Warn("close failed", zap.Error(err))
	}
	_ = a.Log.Sync()
}
