package main

import (
	"fmt"
	"os"

	"github.com/switchyard-ai/switchyard/pkg/config"
	"github.com/switchyard-ai/switchyard/pkg/logger"
)

// initLogger configures the process logger. CLI flags win over the
// configuration file. The returned cleanup closes a log file when one
// was opened.
func initLogger(cli *CLI, cfg *config.Config) (func(), error) {
	levelStr := cli.LogLevel
	if levelStr == "" {
		levelStr = cfg.Global.Logging.Level
	}
	format := cli.LogFormat
	if format == "" {
		format = cfg.Global.Logging.Format
	}
	output := cli.LogFile
	if output == "" {
		output = cfg.Global.Logging.Output
	}

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var file *os.File
	cleanup := func() {}
	switch output {
	case "", "stdout":
		file = os.Stdout
	case "stderr":
		file = os.Stderr
	default:
		f, closeFn, err := logger.OpenLogFile(output)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file, cleanup = f, closeFn
	}

	logger.Init(level, file, format)
	return cleanup, nil
}
