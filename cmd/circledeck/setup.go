package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/waabox/circledeck/internal/config"
	"github.com/waabox/circledeck/internal/domain"
	"github.com/waabox/circledeck/internal/git"
	"github.com/waabox/circledeck/internal/provider"
	"github.com/waabox/circledeck/internal/provider/circleci"
	"github.com/waabox/circledeck/internal/refresh"
)

// app is everything the commands need, built from flags and config.
type app struct {
	configPath     string
	project        domain.Project
	provider       domain.PipelineProvider
	refreshOptions refresh.Options
	logger         *slog.Logger
	close          func()
}

func setup(opts options) (*app, error) {
	configPath := opts.configPath
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", configPath, err)
	}

	if cfg.CircleCI.Token == "" {
		return nil, fmt.Errorf("%w: set circleci.token in %s or export CIRCLECI_TOKEN", domain.ErrMissingToken, configPath)
	}

	project, err := resolveProject(opts.slug, cfg.CircleCI.ProjectSlug)
	if err != nil {
		return nil, err
	}

	schedule, err := refresh.ParseSchedule(cfg.RefreshOrDefault())
	if err != nil {
		return nil, fmt.Errorf("parsing refresh schedule %q: %w", cfg.RefreshOrDefault(), err)
	}
	jitter, err := cfg.JitterOrDefault()
	if err != nil {
		return nil, err
	}

	logFile := opts.logFile
	if logFile == "" {
		logFile = cfg.LogFile
	}
	logger, closeLog, err := openLogger(logFile)
	if err != nil {
		return nil, err
	}

	onlyMine := cfg.CircleCI.OnlyMine
	if opts.mineSet {
		onlyMine = opts.mine
	}

	logger.Info("starting", "version", version, "project", project.Slug(), "only_mine", onlyMine)
	client := circleci.NewClient(cfg.CircleCI.Token, "")
	return &app{
		configPath: configPath,
		project:    project,
		provider:   provider.NewLoggingProvider(client, "circleci", logger),
		refreshOptions: refresh.Options{
			Project:     project,
			OnlyMine:    onlyMine,
			Schedule:    schedule,
			Jitter:      jitter,
			Concurrency: cfg.ConcurrencyOrDefault(),
			Logger:      logger,
		},
		logger: logger,
		close:  closeLog,
	}, nil
}

// resolveProject picks the flag slug, then the configured one, then the
// slug derived from the working directory's origin remote.
func resolveProject(flagSlug, configSlug string) (domain.Project, error) {
	for _, slug := range []string{flagSlug, configSlug} {
		if slug != "" {
			return domain.ParseProjectSlug(slug)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return domain.Project{}, fmt.Errorf("getting current directory: %w", err)
	}
	project, err := git.DetectProject(cwd)
	if err != nil {
		return domain.Project{}, fmt.Errorf("no project slug configured and none detected: %w", err)
	}
	return project, nil
}

// openLogger returns a debug-level text logger writing to path, or a
// discarding logger when path is empty.
func openLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { f.Close() }, nil
}
