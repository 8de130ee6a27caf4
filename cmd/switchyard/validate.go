package main

import (
	"context"
	"fmt"

	"github.com/switchyard-ai/switchyard/pkg/config"
)

// ValidateCmd checks a configuration file without starting the server.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := config.LoadFile(context.Background(), cli.Config)
	if err != nil {
		return fmt.Errorf("%s: %w", cli.Config, err)
	}

	enabled := 0
	for _, r := range cfg.Routes {
		if r.IsEnabled() {
			enabled++
		}
	}
	fmt.Printf("%s is valid: %d providers, %d routes (%d enabled)\n",
		cli.Config, len(cfg.Providers), len(cfg.Routes), enabled)
	return nil
}
