package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"my-openai": {Type: "openai", APIKey: "sk-test"},
		},
		Routes: map[string]RouteConfig{
			"claude": {
				Dialect:  "anthropic",
				Provider: "my-openai",
				ModelMappings: []ModelMapping{
					{SourceModel: "claude-3-5-sonnet-20241022", TargetModel: "gpt-4o", Type: MappingExact},
					{TargetModel: "gpt-4o-mini", Type: MappingDefault},
				},
			},
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	assert.Equal(t, "127.0.0.1", cfg.Global.Server.Host)
	assert.Equal(t, 9527, cfg.Global.Server.Port)
	assert.Equal(t, "127.0.0.1:9527", cfg.Global.Server.Address())
	assert.Equal(t, 300, cfg.Global.Proxy.RequestTimeout)
	assert.Equal(t, 4, cfg.Global.Proxy.MaxChainDepth)
	assert.Equal(t, "info", cfg.Global.Logging.Level)
	assert.True(t, cfg.Global.Observability.Metrics.IsEnabled())
	assert.False(t, cfg.Global.Observability.Tracing.Enabled)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestRouteDefaultsProxyPathFromID(t *testing.T) {
	cfg := validConfig()
	route := cfg.Routes["claude"]
	assert.Equal(t, "claude", route.ProxyPath)
	assert.True(t, route.IsEnabled())
	assert.False(t, route.IsChained())
}

func TestConfigValidateRejectsUnknownProviderRef(t *testing.T) {
	cfg := validConfig()
	route := cfg.Routes["claude"]
	route.Provider = "nope"
	cfg.Routes["claude"] = route

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestConfigValidateRejectsSelfChain(t *testing.T) {
	cfg := validConfig()
	cfg.Routes["loop"] = RouteConfig{Dialect: "openai", Route: "loop", ProxyPath: "loop"}
	cfg.SetDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chains to itself")
}

func TestConfigValidateRejectsRouteCycle(t *testing.T) {
	cfg := validConfig()
	cfg.Routes["a"] = RouteConfig{Dialect: "openai", Route: "b", ProxyPath: "a"}
	cfg.Routes["b"] = RouteConfig{Dialect: "openai", Route: "a", ProxyPath: "b"}
	cfg.SetDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "routing cycle")
}

func TestConfigValidateRejectsDuplicateProxyPath(t *testing.T) {
	cfg := validConfig()
	cfg.Routes["other"] = RouteConfig{Dialect: "openai", Provider: "my-openai", ProxyPath: "claude"}
	cfg.SetDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share proxy path")
}

func TestConfigValidateAllowsDuplicatePathOnDisabledRoute(t *testing.T) {
	cfg := validConfig()
	disabled := false
	cfg.Routes["other"] = RouteConfig{
		Dialect: "openai", Provider: "my-openai", ProxyPath: "claude", Enabled: &disabled,
	}

	require.NoError(t, cfg.Validate())
}

func TestProviderValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       ProviderConfig
		wantErr string
	}{
		{"valid", ProviderConfig{Type: "anthropic"}, ""},
		{"missing type", ProviderConfig{}, "type is required"},
		{"unknown dialect", ProviderConfig{Type: "cohere"}, "unknown dialect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRouteValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       RouteConfig
		wantErr string
	}{
		{"provider outbound", RouteConfig{Dialect: "openai", Provider: "p"}, ""},
		{"route outbound", RouteConfig{Dialect: "openai", Route: "r"}, ""},
		{"neither outbound", RouteConfig{Dialect: "openai"}, "exactly one of provider and route"},
		{"both outbounds", RouteConfig{Dialect: "openai", Provider: "p", Route: "r"}, "exactly one of provider and route"},
		{"missing dialect", RouteConfig{Provider: "p"}, "dialect is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestModelMappingValidate(t *testing.T) {
	tests := []struct {
		name    string
		m       ModelMapping
		wantErr string
	}{
		{"exact", ModelMapping{SourceModel: "gpt-4o", TargetModel: "claude", Type: MappingExact}, ""},
		{"family", ModelMapping{SourceModel: "sonnet", TargetModel: "gpt-4o", Type: MappingFamily}, ""},
		{"default", ModelMapping{TargetModel: "gpt-4o", Type: MappingDefault}, ""},
		{"reasoning", ModelMapping{TargetModel: "o3", Type: MappingReasoning}, ""},
		{"exact without source", ModelMapping{TargetModel: "x", Type: MappingExact}, "source_model is required"},
		{"default with source", ModelMapping{SourceModel: "x", TargetModel: "y", Type: MappingDefault}, "source_model must be empty"},
		{"missing target", ModelMapping{SourceModel: "x", Type: MappingExact}, "target_model is required"},
		{"unknown type", ModelMapping{SourceModel: "x", TargetModel: "y", Type: "fuzzy"}, "unknown mapping type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRouteValidateRejectsDuplicateMappings(t *testing.T) {
	r := RouteConfig{
		Dialect:  "openai",
		Provider: "p",
		ModelMappings: []ModelMapping{
			{TargetModel: "a", Type: MappingDefault},
			{TargetModel: "b", Type: MappingDefault},
		},
	}
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
