package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/dnscache"
	"github.com/rs/zerolog"

	"rpcshield/internal/cache"
	"rpcshield/internal/endpoint"
)

// ErrUnavailable marks retryable upstream failures: transport errors,
// timeouts and gateway-class 5xx statuses. The coordinator answers these
// from stale cache entries when it can.
var ErrUnavailable = errors.New("upstream unavailable")

// UnavailableError carries the HTTP status to relay to the caller when no
// stale entry exists. Transport failures map to 502.
type UnavailableError struct {
	StatusCode int
	Cause      error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream unavailable: %v", e.Cause)
	}
	return fmt.Sprintf("upstream unavailable: HTTP %d", e.StatusCode)
}

func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// retryableStatus lists upstream statuses treated as retryable-via-stale
var retryableStatus = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Invoker performs the actual upstream call for one endpoint
type Invoker struct {
	endpoint *endpoint.Endpoint
	client   *http.Client
	logger   zerolog.Logger
}

// NewTransport returns a tuned *http.Transport. If resolver is non-nil, the
// dialer goes through cached DNS lookups.
func NewTransport(resolver *dnscache.Resolver) *http.Transport {
	t := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		}
	}
	return t
}

// NewInvoker creates an Invoker for the given endpoint
func NewInvoker(ep *endpoint.Endpoint, resolver *dnscache.Resolver, timeout time.Duration, logger zerolog.Logger) *Invoker {
	return &Invoker{
		endpoint: ep,
		client: &http.Client{
			Transport: NewTransport(resolver),
			Timeout:   timeout,
		},
		logger: logger.With().Str("component", "upstream").Str("endpoint", ep.Name).Logger(),
	}
}

// Fetch POSTs the body to the upstream origin plus the remaining request
// path and returns the fully read response. The body is reassembled in
// memory before returning so downstream rewriting always sees complete
// bytes. Retryable failures come back as *UnavailableError; any other
// status is authoritative and returned as an entry.
func (inv *Invoker) Fetch(ctx context.Context, remainingPath, rawQuery string, body []byte) (*cache.Entry, error) {
	target := inv.buildTarget(remainingPath, rawQuery)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}
	httpReq.Host = inv.endpoint.Host
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := inv.client.Do(httpReq)
	if err != nil {
		inv.logger.Warn().Err(err).Msg("upstream request failed")
		return nil, &UnavailableError{StatusCode: http.StatusBadGateway, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		inv.logger.Warn().Err(err).Msg("failed to read upstream response")
		return nil, &UnavailableError{StatusCode: http.StatusBadGateway, Cause: err}
	}

	if retryableStatus[resp.StatusCode] {
		inv.logger.Warn().
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msg("upstream returned retryable status")
		return nil, &UnavailableError{StatusCode: resp.StatusCode}
	}

	inv.logger.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Int("bytes", len(data)).
		Msg("upstream request completed")

	return &cache.Entry{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// buildTarget joins the endpoint origin with the remaining request path
func (inv *Invoker) buildTarget(remainingPath, rawQuery string) string {
	target := *inv.endpoint.Origin
	if remainingPath != "" {
		target.Path = strings.TrimSuffix(target.Path, "/") + "/" + strings.TrimPrefix(remainingPath, "/")
	}
	target.RawQuery = rawQuery
	return target.String()
}
