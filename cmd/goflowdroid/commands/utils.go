/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared utilities for the goflowdroid commands. Provides configuration
loading, logging setup and archival of run artifacts used across all commands.
*/

package commands

import (
	"context"
	"fmt"

	"github.com/gvieralopez/goflowdroid/pkg/config"
	"github.com/gvieralopez/goflowdroid/pkg/logging"
	"github.com/gvieralopez/goflowdroid/pkg/store"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from flags, environment and config files
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SetupLogging configures the logging system
func SetupLogging(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.NewLogger(cfg.Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return logger, nil
}

// setup loads the configuration and creates the logger
func setup() (*config.Config, *logging.Logger, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := SetupLogging(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// archive uploads files to the configured store, if any, keyed relative to
// root. Failures are logged.
func archive(ctx context.Context, cfg *config.Config, logger *logging.Logger, prefix, root string, paths []string) {
	if cfg.Store.Bucket == "" || len(paths) == 0 {
		return
	}
	s := store.New(cfg.Store.Bucket, logger, store.BasePath(cfg.Store.BasePath))
	if err := s.Archive(ctx, prefix, root, paths); err != nil {
		logger.Error("Archival failed", map[string]interface{}{"store": s.String(), "error": err})
	}
}
