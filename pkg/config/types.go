package config

import (
	"fmt"
)

// Dialects the gateway can speak, inbound and outbound.
var KnownDialects = []string{
	"openai", "anthropic", "gemini", "deepseek", "moonshot", "qwen", "zhipu",
}

func isKnownDialect(name string) bool {
	for _, d := range KnownDialects {
		if d == name {
			return true
		}
	}
	return false
}

// LoggingConfig controls the global slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"enum=simple,enum=verbose,enum=json"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// Validate validates the logging configuration.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	switch c.Format {
	case "simple", "verbose", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Format)
	}
	return nil
}

// SetDefaults sets logging defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host,omitempty" json:"host,omitempty"`
	Port int    `yaml:"port,omitempty" json:"port,omitempty"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// SetDefaults sets server defaults. The gateway binds loopback by
// default; it fronts upstream credentials and is not meant to be
// reachable from other hosts unless the operator says so.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 9527
	}
}

// Address returns the host:port bind address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ProxySettings controls request forwarding behavior.
type ProxySettings struct {
	// RequestTimeout is the per-request upstream deadline in seconds.
	RequestTimeout int `yaml:"request_timeout,omitempty" json:"request_timeout,omitempty"`

	// MaxChainDepth bounds route-to-route chaining.
	MaxChainDepth int `yaml:"max_chain_depth,omitempty" json:"max_chain_depth,omitempty"`

	// LogBodies includes request and response bodies in request logs.
	LogBodies bool `yaml:"log_bodies,omitempty" json:"log_bodies,omitempty"`
}

// Validate validates the proxy settings.
func (c *ProxySettings) Validate() error {
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	if c.MaxChainDepth < 1 {
		return fmt.Errorf("max_chain_depth must be at least 1")
	}
	return nil
}

// SetDefaults sets proxy defaults.
func (c *ProxySettings) SetDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 300
	}
	if c.MaxChainDepth == 0 {
		c.MaxChainDepth = 4
	}
}

// ObservabilityConfig controls metrics and tracing.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`
}

// Validate validates the observability configuration.
func (c *ObservabilityConfig) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing config validation failed: %w", err)
	}
	return nil
}

// SetDefaults sets observability defaults.
func (c *ObservabilityConfig) SetDefaults() {
	c.Metrics.SetDefaults()
	c.Tracing.SetDefaults()
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// SetDefaults sets metrics defaults. Metrics are on unless disabled.
func (c *MetricsConfig) SetDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

// IsEnabled reports whether the metrics endpoint is enabled.
func (c *MetricsConfig) IsEnabled() bool {
	return c.Enabled != nil && *c.Enabled
}

// TracingConfig controls the OpenTelemetry trace exporter. Tracing is
// opt-in.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Exporter string `yaml:"exporter,omitempty" json:"exporter,omitempty" jsonschema:"enum=stdout,enum=otlp"`
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// Validate validates the tracing configuration.
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Exporter {
	case "stdout":
	case "otlp":
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("invalid tracing exporter: %s", c.Exporter)
	}
	return nil
}

// SetDefaults sets tracing defaults.
func (c *TracingConfig) SetDefaults() {
	if c.Exporter == "" {
		c.Exporter = "stdout"
	}
}

// ProviderConfig describes an HTTP upstream speaking one of the known
// dialects. Endpoint fields left empty inherit the dialect's defaults.
type ProviderConfig struct {
	Name       string `yaml:"name,omitempty" json:"name,omitempty"`
	Type       string `yaml:"type" json:"type" jsonschema:"enum=openai,enum=anthropic,enum=gemini,enum=deepseek,enum=moonshot,enum=qwen,enum=zhipu"`
	BaseURL    string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	ChatPath   string `yaml:"chat_path,omitempty" json:"chat_path,omitempty"`
	ModelsPath string `yaml:"models_path,omitempty" json:"models_path,omitempty"`
	APIKey     string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Enabled    *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// MaxRetries overrides the transport's retry budget for this
	// upstream.
	MaxRetries *int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	// TLS tunes certificate handling for self-hosted upstreams.
	TLS *TLSSettings `yaml:"tls,omitempty" json:"tls,omitempty"`
}

// TLSSettings configures TLS for one upstream connection.
type TLSSettings struct {
	// InsecureSkipVerify disables certificate verification. Dev/test
	// only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty" json:"insecure_skip_verify,omitempty"`
	// CACertificate is a path to a custom CA bundle in PEM form.
	CACertificate string `yaml:"ca_certificate,omitempty" json:"ca_certificate,omitempty"`
}

// Validate validates the provider configuration.
func (c *ProviderConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("type is required")
	}
	if !isKnownDialect(c.Type) {
		return fmt.Errorf("unknown dialect: %s", c.Type)
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}

// SetDefaults sets provider defaults.
func (c *ProviderConfig) SetDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
}

// IsEnabled reports whether the provider is enabled.
func (c *ProviderConfig) IsEnabled() bool {
	return c.Enabled != nil && *c.Enabled
}

// MappingType selects the resolution rule for a model mapping.
type MappingType string

const (
	MappingExact     MappingType = "exact"
	MappingFamily    MappingType = "family"
	MappingReasoning MappingType = "reasoning"
	MappingDefault   MappingType = "default"
)

// ModelMapping rewrites an inbound model name to an upstream one.
// For exact mappings source_model is the full inbound name; for family
// mappings it is the family name from the inbound adapter's catalog;
// reasoning and default mappings have no source_model.
type ModelMapping struct {
	SourceModel string      `yaml:"source_model,omitempty" json:"source_model,omitempty"`
	TargetModel string      `yaml:"target_model" json:"target_model"`
	Type        MappingType `yaml:"type" json:"type" jsonschema:"enum=exact,enum=family,enum=reasoning,enum=default"`
}

// Validate validates a model mapping.
func (m *ModelMapping) Validate() error {
	if m.TargetModel == "" {
		return fmt.Errorf("target_model is required")
	}
	switch m.Type {
	case MappingExact, MappingFamily:
		if m.SourceModel == "" {
			return fmt.Errorf("source_model is required for %s mappings", m.Type)
		}
	case MappingReasoning, MappingDefault:
		if m.SourceModel != "" {
			return fmt.Errorf("source_model must be empty for %s mappings", m.Type)
		}
	default:
		return fmt.Errorf("unknown mapping type: %s", m.Type)
	}
	return nil
}

// RouteConfig describes one proxy route. The route accepts requests in
// the dialect's wire format under /<proxy_path>/ and forwards them to
// either a provider or another route.
type RouteConfig struct {
	// ProxyPath is the URL segment the route listens under. Defaults
	// to the route id.
	ProxyPath string `yaml:"proxy_path,omitempty" json:"proxy_path,omitempty"`

	// Dialect is the inbound wire format.
	Dialect string `yaml:"dialect" json:"dialect" jsonschema:"enum=openai,enum=anthropic,enum=gemini,enum=deepseek,enum=moonshot,enum=qwen,enum=zhipu"`

	// Exactly one of Provider and Route is set: Provider terminates at
	// an upstream, Route chains to another route.
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`
	Route    string `yaml:"route,omitempty" json:"route,omitempty"`

	ModelMappings []ModelMapping `yaml:"model_mappings,omitempty" json:"model_mappings,omitempty"`

	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Validate validates the route configuration.
func (c *RouteConfig) Validate() error {
	if c.Dialect == "" {
		return fmt.Errorf("dialect is required")
	}
	if !isKnownDialect(c.Dialect) {
		return fmt.Errorf("unknown dialect: %s", c.Dialect)
	}
	if (c.Provider == "") == (c.Route == "") {
		return fmt.Errorf("exactly one of provider and route must be set")
	}

	// Mappings are keyed by (source_model, type); reasoning and
	// default may appear at most once.
	seen := make(map[string]bool)
	for i := range c.ModelMappings {
		m := &c.ModelMappings[i]
		if err := m.Validate(); err != nil {
			return fmt.Errorf("model mapping %d: %w", i, err)
		}
		key := m.SourceModel + "|" + string(m.Type)
		if seen[key] {
			return fmt.Errorf("duplicate %s mapping for '%s'", m.Type, m.SourceModel)
		}
		seen[key] = true
	}
	return nil
}

// SetDefaults sets route defaults.
func (c *RouteConfig) SetDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
}

// IsEnabled reports whether the route is enabled.
func (c *RouteConfig) IsEnabled() bool {
	return c.Enabled != nil && *c.Enabled
}

// IsChained reports whether the route forwards to another route rather
// than terminating at a provider.
func (c *RouteConfig) IsChained() bool {
	return c.Route != ""
}
