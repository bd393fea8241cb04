package main

import (
	"fmt"

	"github.com/kingrea/carryover/internal/carryover"
	"github.com/kingrea/carryover/internal/config"
	"github.com/kingrea/carryover/internal/logging"
	"github.com/kingrea/carryover/internal/manifest"
	"github.com/kingrea/carryover/internal/memento"
	"github.com/kingrea/carryover/internal/tag"
)

// session bundles everything one command needs from the project directory.
type session struct {
	cfg    *config.Config
	logger *logging.Logger
	engine *carryover.Engine
	repo   memento.StateStore
}

func openSession(build string) (*session, error) {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(projectDir)
	if err != nil {
		return nil, err
	}
	m, err := manifest.LoadFile(cfg.ManifestPath())
	if err != nil {
		logger.Close()
		return nil, err
	}
	defaults, err := cfg.DefaultIndicators()
	if err != nil {
		logger.Close()
		return nil, err
	}
	kind := cfg.Build()
	if build != "" {
		kind = tag.Build(build)
	}
	engine, err := carryover.New(
		carryover.WithLogger(logger),
		carryover.WithBuild(kind),
		carryover.WithManifest(m),
		carryover.WithDefaults(defaults...),
		carryover.WithExcluded(cfg.ExcludedContexts()...),
	)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("configure engine: %w", err)
	}
	return &session{
		cfg:    cfg,
		logger: logger,
		engine: engine,
		repo:   memento.NewRepository(cfg.StateDir()),
	}, nil
}

func (s *session) Close() error {
	return s.logger.Close()
}
