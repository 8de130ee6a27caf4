package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/switchyard-ai/switchyard/pkg/config"
)

// SchemaCmd prints the configuration JSON schema to stdout, for
// editor completion and CI validation.
type SchemaCmd struct{}

func (c *SchemaCmd) Run() error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://switchyard.dev/schemas/config.json"
	schema.Title = "Switchyard Configuration Schema"
	schema.Description = "Configuration schema for the switchyard LLM gateway"

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
