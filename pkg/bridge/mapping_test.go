package bridge

import (
	"testing"

	"github.com/switchyard-ai/switchyard/pkg/adapters"
	"github.com/switchyard-ai/switchyard/pkg/config"
)

var testCatalog = []adapters.Family{
	{Name: "gpt-4o", Keywords: []string{"gpt-4o"}},
	{Name: "gpt-4", Keywords: []string{"gpt-4"}},
	{Name: "o-series", Keywords: []string{"o1", "o3"}},
}

func TestResolveModel(t *testing.T) {
	mappings := []config.ModelMapping{
		{SourceModel: "gpt-4o", TargetModel: "claude-sonnet-4", Type: config.MappingExact},
		{SourceModel: "gpt-4", TargetModel: "claude-opus-4", Type: config.MappingFamily},
		{TargetModel: "claude-opus-thinking", Type: config.MappingReasoning},
		{TargetModel: "claude-haiku", Type: config.MappingDefault},
	}

	tests := []struct {
		name     string
		model    string
		thinking bool
		want     string
	}{
		{"exact match", "gpt-4o", false, "claude-sonnet-4"},
		{"exact beats reasoning", "gpt-4o", true, "claude-sonnet-4"},
		{"reasoning", "o1-preview", true, "claude-opus-thinking"},
		{"family by keyword", "gpt-4-turbo", false, "claude-opus-4"},
		{"family is case-insensitive", "GPT-4-Turbo", false, "claude-opus-4"},
		{"default catch-all", "mystery-model", false, "claude-haiku"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveModel(tt.model, mappings, tt.thinking, testCatalog)
			if got != tt.want {
				t.Errorf("ResolveModel(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestResolveModelPassthrough(t *testing.T) {
	mappings := []config.ModelMapping{
		{SourceModel: "gpt-4o", TargetModel: "claude-sonnet-4", Type: config.MappingExact},
	}
	if got := ResolveModel("llama-3", mappings, false, testCatalog); got != "llama-3" {
		t.Errorf("unmatched model = %q, want passthrough", got)
	}
	if got := ResolveModel("anything", nil, false, testCatalog); got != "anything" {
		t.Errorf("empty mappings = %q, want passthrough", got)
	}
}

func TestResolveModelIdempotent(t *testing.T) {
	mappings := []config.ModelMapping{
		{SourceModel: "gpt-4o", TargetModel: "claude-sonnet-4", Type: config.MappingExact},
	}
	once := ResolveModel("gpt-4o", mappings, false, testCatalog)
	twice := ResolveModel(once, mappings, false, testCatalog)
	if once != twice {
		t.Errorf("resolution not stable: %q then %q", once, twice)
	}
}

func TestResolveModelFamilyOrder(t *testing.T) {
	// "gpt-4o-mini" contains both "gpt-4o" and "gpt-4"; the catalog
	// lists the narrower family first so it must win.
	mappings := []config.ModelMapping{
		{SourceModel: "gpt-4o", TargetModel: "narrow", Type: config.MappingFamily},
		{SourceModel: "gpt-4", TargetModel: "broad", Type: config.MappingFamily},
	}
	if got := ResolveModel("gpt-4o-mini", mappings, false, testCatalog); got != "narrow" {
		t.Errorf("family resolution = %q, want %q", got, "narrow")
	}
}
