// Command switchyard is a local gateway that accepts chat-completion
// requests in one LLM provider's dialect and forwards them to another
// provider, translating requests, responses, streams, and errors in
// both directions.
//
// Usage:
//
//	switchyard serve --config switchyard.yaml --watch
//	switchyard validate --config switchyard.yaml
//	switchyard schema
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/switchyard-ai/switchyard/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the gateway."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Print the configuration JSON schema."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"switchyard.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error). Overrides config."`
	LogFile   string `help:"Log file path (empty = config output)."`
	LogFormat string `help:"Log format (simple, verbose, json). Overrides config."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("switchyard version %s\n", version)
	return nil
}

func main() {
	// .env.local and .env feed ${VAR} expansion in the config file.
	_ = config.LoadEnvFiles()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("switchyard"),
		kong.Description("A local gateway that translates between LLM provider dialects."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
