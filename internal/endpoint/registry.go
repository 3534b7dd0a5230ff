// Package endpoint resolves configured logical endpoints to their upstream
// origins. The registry is built once at startup and is read-only afterwards,
// so lookups need no locking.
package endpoint

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/dnscache"
	"github.com/rs/zerolog"

	"rpcshield/internal/config"
)

// resolveTimeout bounds the startup DNS check per endpoint
const resolveTimeout = 5 * time.Second

// Endpoint is one configured upstream, immutable for the process lifetime
type Endpoint struct {
	Name   string
	Origin *url.URL
	Host   string // virtual-host identity expected by the upstream
	TTL    time.Duration
}

// WSOrigin returns the origin with the scheme swapped to its WebSocket
// counterpart, for passthrough dialing.
func (e *Endpoint) WSOrigin() *url.URL {
	ws := *e.Origin
	switch ws.Scheme {
	case "https":
		ws.Scheme = "wss"
	default:
		ws.Scheme = "ws"
	}
	return &ws
}

// Registry maps endpoint names to validated endpoints
type Registry struct {
	endpoints map[string]*Endpoint
}

// NewRegistry validates the configured endpoints and builds the registry.
// An endpoint whose URL is malformed or whose host does not resolve is
// dropped with a log entry; one bad entry never prevents the others from
// serving.
func NewRegistry(cfgs []config.EndpointConfig, defaultTTL time.Duration, resolver *dnscache.Resolver, logger zerolog.Logger) *Registry {
	log := logger.With().Str("component", "registry").Logger()
	endpoints := make(map[string]*Endpoint, len(cfgs))

	for _, cfg := range cfgs {
		ep, err := build(cfg, defaultTTL, resolver)
		if err != nil {
			log.Warn().
				Err(err).
				Str("endpoint", cfg.Name).
				Str("url", cfg.URL).
				Msg("excluding misconfigured endpoint")
			continue
		}
		endpoints[ep.Name] = ep
		log.Info().
			Str("endpoint", ep.Name).
			Str("origin", ep.Origin.String()).
			Dur("ttl", ep.TTL).
			Msg("endpoint registered")
	}

	return &Registry{endpoints: endpoints}
}

// build validates a single endpoint configuration
func build(cfg config.EndpointConfig, defaultTTL time.Duration, resolver *dnscache.Resolver) (*Endpoint, error) {
	origin, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if origin.Scheme != "http" && origin.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", origin.Scheme)
	}
	if origin.Hostname() == "" {
		return nil, fmt.Errorf("upstream URL has no host")
	}

	if resolver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()
		addrs, err := resolver.LookupHost(ctx, origin.Hostname())
		if err != nil {
			return nil, fmt.Errorf("host does not resolve: %w", err)
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("host %q resolved to no addresses", origin.Hostname())
		}
	}

	return &Endpoint{
		Name:   cfg.Name,
		Origin: origin,
		Host:   origin.Host,
		TTL:    cfg.GetCacheTimeDuration(defaultTTL),
	}, nil
}

// Lookup returns the endpoint for the given name
func (r *Registry) Lookup(name string) (*Endpoint, bool) {
	ep, ok := r.endpoints[name]
	return ep, ok
}

// Names returns all registered endpoint names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	return names
}

// Len returns the number of registered endpoints
func (r *Registry) Len() int {
	return len(r.endpoints)
}
