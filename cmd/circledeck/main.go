package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/waabox/circledeck/internal/config"
	"github.com/waabox/circledeck/internal/failures"
	"github.com/waabox/circledeck/internal/refresh"
	"github.com/waabox/circledeck/internal/tui"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// options holds the flags shared by every command.
type options struct {
	configPath string
	slug       string
	logFile    string
	mine       bool
	mineSet    bool
}

func newRootCmd() *cobra.Command {
	var opts options
	rootCmd := &cobra.Command{
		Use:   "circledeck",
		Short: "Terminal dashboard for CircleCI pipelines",
		Long: `circledeck polls CircleCI for the pipelines of one project, shows their
workflows and jobs, and lets you retry failed workflows and read failing tests.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.mineSet = cmd.Flags().Changed("mine")
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context(), opts)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (default ~/.config/circledeck/config.toml)")
	rootCmd.PersistentFlags().StringVar(&opts.slug, "slug", "", "project slug, e.g. gh/org/repo (default: detected from the origin remote)")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "write diagnostics to this file")
	rootCmd.PersistentFlags().BoolVar(&opts.mine, "mine", false, "only show pipelines triggered by you")

	rootCmd.AddCommand(newStatusCmd(&opts))
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "circledeck: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// runDashboard starts the refresh loop and the TUI and blocks until the user quits.
func runDashboard(ctx context.Context, opts options) error {
	a, err := setup(opts)
	if err != nil {
		return err
	}
	defer a.close()

	orchestrator := refresh.New(a.provider, a.refreshOptions)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go orchestrator.Run(runCtx)

	model := tui.NewAppModel(a.project, orchestrator, failures.NewLoader(a.provider, a.project))
	model.OnFilterChanged = func(onlyMine bool) error {
		a.logger.Info("filter changed", "only_mine", onlyMine)
		return config.SaveOnlyMine(a.configPath, onlyMine)
	}

	err = tui.Run(model)
	cancel()
	orchestrator.Stop()
	return err
}
