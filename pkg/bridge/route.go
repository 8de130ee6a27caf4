// Package bridge is the translation core of the gateway. It resolves
// an ingress proxy path to an upstream provider, carries the request
// through the neutral representation from the ingress dialect to the
// upstream dialect, and relays unary bodies and stream frames back in
// the ingress dialect.
package bridge

import (
	"fmt"
	"sort"
	"time"

	"github.com/switchyard-ai/switchyard/pkg/adapters"
	"github.com/switchyard-ai/switchyard/pkg/config"
	"github.com/switchyard-ai/switchyard/pkg/httpclient"
	"github.com/switchyard-ai/switchyard/pkg/ir"
)

// Upstream is a resolved provider endpoint: the outbound adapter plus
// the connection details a request needs to reach it.
type Upstream struct {
	ProviderID string
	Adapter    adapters.Adapter
	BaseURL    string
	ChatPath   string // empty means the adapter's default path
	ModelsPath string
	APIKey     string

	// Client retries transient failures; StreamClient never retries
	// because a half-relayed stream cannot be restarted.
	Client       *httpclient.Client
	StreamClient *httpclient.Client
}

// Route is one ingress listener: the dialect it accepts, its model
// mappings, and either a terminal upstream or a link to another route.
type Route struct {
	ID        string
	ProxyPath string
	Inbound   adapters.Adapter
	Mappings  []config.ModelMapping

	// Exactly one of NextRoute and Upstream is set.
	NextRoute string
	Upstream  *Upstream
}

// Table is an immutable snapshot of the routing configuration. Config
// reloads build a fresh table and swap it in atomically.
type Table struct {
	byPath        map[string]*Route
	byID          map[string]*Route
	maxChainDepth int
}

// BuildTable compiles the routes and providers of a configuration into
// a lookup table. Disabled routes and routes whose provider is disabled
// are left out.
func BuildTable(cfg *config.Config, reg *adapters.Registry) (*Table, error) {
	t := &Table{
		byPath:        make(map[string]*Route),
		byID:          make(map[string]*Route),
		maxChainDepth: cfg.Global.Proxy.MaxChainDepth,
	}
	timeout := time.Duration(cfg.Global.Proxy.RequestTimeout) * time.Second

	upstreams := make(map[string]*Upstream)
	for id, p := range cfg.Providers {
		if !p.IsEnabled() {
			continue
		}
		adapter, err := reg.Lookup(p.Type)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", id, err)
		}

		baseURL := p.BaseURL
		if baseURL == "" {
			baseURL = adapter.BaseURL()
		}

		var tlsCfg *httpclient.TLSConfig
		if p.TLS != nil {
			tlsCfg = &httpclient.TLSConfig{
				InsecureSkipVerify: p.TLS.InsecureSkipVerify,
				CACertificate:      p.TLS.CACertificate,
			}
		}

		clientOpts := []httpclient.Option{
			httpclient.WithTimeout(timeout),
			httpclient.WithHeaderParser(adapter.RateLimitParser()),
			httpclient.WithTLSConfig(tlsCfg),
		}
		if p.MaxRetries != nil {
			clientOpts = append(clientOpts, httpclient.WithMaxRetries(*p.MaxRetries))
		}
		streamOpts := []httpclient.Option{
			// Streams run as long as the upstream keeps talking; the
			// per-request context carries cancellation.
			httpclient.WithTimeout(0),
			httpclient.WithRetryStrategy(httpclient.NoRetryStrategy),
			httpclient.WithTLSConfig(tlsCfg),
		}

		upstreams[id] = &Upstream{
			ProviderID:   id,
			Adapter:      adapter,
			BaseURL:      baseURL,
			ChatPath:     p.ChatPath,
			ModelsPath:   p.ModelsPath,
			APIKey:       p.APIKey,
			Client:       httpclient.New(clientOpts...),
			StreamClient: httpclient.New(streamOpts...),
		}
	}

	for id, rc := range cfg.Routes {
		if !rc.IsEnabled() {
			continue
		}
		inbound, err := reg.Lookup(rc.Dialect)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", id, err)
		}

		route := &Route{
			ID:        id,
			ProxyPath: rc.ProxyPath,
			Inbound:   inbound,
			Mappings:  rc.ModelMappings,
			NextRoute: rc.Route,
		}
		if rc.Provider != "" {
			up, ok := upstreams[rc.Provider]
			if !ok {
				// Provider exists but is disabled; the route cannot
				// serve, so it is dropped from the snapshot.
				continue
			}
			route.Upstream = up
		}

		t.byID[id] = route
		t.byPath[rc.ProxyPath] = route
	}

	return t, nil
}

// ByPath looks a route up by its proxy path.
func (t *Table) ByPath(proxyPath string) (*Route, bool) {
	r, ok := t.byPath[proxyPath]
	return r, ok
}

// ByID looks a route up by its configuration id.
func (t *Table) ByID(id string) (*Route, bool) {
	r, ok := t.byID[id]
	return r, ok
}

// Routes returns the active routes ordered by proxy path.
func (t *Table) Routes() []*Route {
	out := make([]*Route, 0, len(t.byPath))
	for _, r := range t.byPath {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProxyPath < out[j].ProxyPath })
	return out
}

// ResolveChain walks route-to-route links until it reaches a terminal
// upstream. It returns the ordered hop list starting at the given
// route. A cycle, a dangling link, or a chain deeper than the
// configured maximum is a validation error.
func (t *Table) ResolveChain(start *Route) ([]*Route, *Upstream, error) {
	visited := make(map[string]bool)
	chain := make([]*Route, 0, 2)

	current := start
	for {
		if visited[current.ID] {
			return nil, nil, ir.NewErrorf(ir.ErrValidation,
				"route %q is part of a routing cycle", start.ID)
		}
		visited[current.ID] = true
		chain = append(chain, current)

		if len(chain) > t.maxChainDepth {
			return nil, nil, ir.NewErrorf(ir.ErrValidation,
				"route chain from %q exceeds maximum depth %d", start.ID, t.maxChainDepth)
		}

		if current.Upstream != nil {
			return chain, current.Upstream, nil
		}

		next, ok := t.byID[current.NextRoute]
		if !ok {
			return nil, nil, ir.NewErrorf(ir.ErrValidation,
				"route %q forwards to unknown or disabled route %q", current.ID, current.NextRoute)
		}
		current = next
	}
}
