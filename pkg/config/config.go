// Package config provides the gateway's configuration types and
// loading utilities. A config file declares upstream providers, proxy
// routes with their model mappings, and global server settings. Every
// config type implements Validate and SetDefaults.
package config

import (
	"fmt"
)

// Config is the complete gateway configuration and the single entry
// point for a config file.
type Config struct {
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
	Name    string `yaml:"name,omitempty" json:"name,omitempty"`

	// Global settings
	Global GlobalSettings `yaml:"global,omitempty" json:"global,omitempty"`

	// Upstream provider definitions, keyed by id
	Providers map[string]ProviderConfig `yaml:"providers,omitempty" json:"providers,omitempty"`

	// Proxy route definitions, keyed by id
	Routes map[string]RouteConfig `yaml:"routes,omitempty" json:"routes,omitempty"`
}

// GlobalSettings contains settings that apply gateway-wide.
type GlobalSettings struct {
	Logging       LoggingConfig       `yaml:"logging,omitempty" json:"logging,omitempty"`
	Server        ServerConfig        `yaml:"server,omitempty" json:"server,omitempty"`
	Proxy         ProxySettings       `yaml:"proxy,omitempty" json:"proxy,omitempty"`
	Observability ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// Validate implements validation for GlobalSettings.
func (c *GlobalSettings) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}
	if err := c.Proxy.Validate(); err != nil {
		return fmt.Errorf("proxy config validation failed: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability config validation failed: %w", err)
	}
	return nil
}

// SetDefaults implements defaulting for GlobalSettings.
func (c *GlobalSettings) SetDefaults() {
	c.Logging.SetDefaults()
	c.Server.SetDefaults()
	c.Proxy.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate validates the complete configuration, including the
// cross-references between routes and providers.
func (c *Config) Validate() error {
	if err := c.Global.Validate(); err != nil {
		return fmt.Errorf("global settings validation failed: %w", err)
	}

	for id, p := range c.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider '%s' validation failed: %w", id, err)
		}
	}

	proxyPaths := make(map[string]string)
	for id, r := range c.Routes {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("route '%s' validation failed: %w", id, err)
		}

		if r.Provider != "" {
			if _, ok := c.Providers[r.Provider]; !ok {
				return fmt.Errorf("route '%s' references unknown provider '%s'", id, r.Provider)
			}
		}
		if r.Route != "" {
			if _, ok := c.Routes[r.Route]; !ok {
				return fmt.Errorf("route '%s' references unknown route '%s'", id, r.Route)
			}
			if r.Route == id {
				return fmt.Errorf("route '%s' chains to itself", id)
			}
		}

		if !r.IsEnabled() {
			continue
		}
		// proxy_path must be unique among enabled routes
		if other, taken := proxyPaths[r.ProxyPath]; taken {
			return fmt.Errorf("routes '%s' and '%s' share proxy path '%s'", other, id, r.ProxyPath)
		}
		proxyPaths[r.ProxyPath] = id
	}

	// Every chain must terminate; walking the links from each route
	// catches multi-route cycles at load time.
	for id := range c.Routes {
		visited := make(map[string]bool)
		for cur := id; ; {
			if visited[cur] {
				return fmt.Errorf("route '%s' is part of a routing cycle", id)
			}
			visited[cur] = true
			next := c.Routes[cur].Route
			if next == "" {
				break
			}
			if _, ok := c.Routes[next]; !ok {
				break
			}
			cur = next
		}
	}

	return nil
}

// SetDefaults sets defaults for the complete configuration. Route and
// provider entries inherit their map key as id-derived defaults.
func (c *Config) SetDefaults() {
	c.Global.SetDefaults()

	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	if c.Routes == nil {
		c.Routes = make(map[string]RouteConfig)
	}

	for id := range c.Providers {
		p := c.Providers[id]
		if p.Name == "" {
			p.Name = id
		}
		p.SetDefaults()
		c.Providers[id] = p
	}

	for id := range c.Routes {
		r := c.Routes[id]
		if r.ProxyPath == "" {
			r.ProxyPath = id
		}
		r.SetDefaults()
		c.Routes[id] = r
	}
}

// GetProvider returns a provider configuration by id.
func (c *Config) GetProvider(id string) (*ProviderConfig, bool) {
	p, ok := c.Providers[id]
	return &p, ok
}

// GetRoute returns a route configuration by id.
func (c *Config) GetRoute(id string) (*RouteConfig, bool) {
	r, ok := c.Routes[id]
	return &r, ok
}

// ListRoutes returns all route ids.
func (c *Config) ListRoutes() []string {
	routes := make([]string, 0, len(c.Routes))
	for id := range c.Routes {
		routes = append(routes, id)
	}
	return routes
}
