// Package proxy ties the request pipeline together: endpoint lookup,
// fingerprinting, cache coordination, upstream invocation and response
// rewriting.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/dnscache"
	"github.com/rs/zerolog"

	"rpcshield/internal/cache"
	"rpcshield/internal/config"
	"rpcshield/internal/endpoint"
	"rpcshield/internal/fingerprint"
	"rpcshield/internal/jsonrpc"
	"rpcshield/internal/rewrite"
	"rpcshield/internal/telemetry"
	"rpcshield/internal/upstream"
	"rpcshield/internal/ws"
)

// Handler serves HTTP JSON-RPC requests for all registered endpoints
type Handler struct {
	registry    *endpoint.Registry
	coordinator *cache.Coordinator
	invokers    map[string]*upstream.Invoker
	passthrough *ws.Passthrough
	ratio       *telemetry.RatioLogger
	maxBodySize int64
	logger      zerolog.Logger
}

// NewHandler creates a Handler with one invoker per registered endpoint
func NewHandler(registry *endpoint.Registry, coordinator *cache.Coordinator, resolver *dnscache.Resolver, cfg *config.Config, ratio *telemetry.RatioLogger, logger zerolog.Logger) *Handler {
	log := logger.With().Str("component", "proxy").Logger()

	invokers := make(map[string]*upstream.Invoker, registry.Len())
	for _, name := range registry.Names() {
		ep, _ := registry.Lookup(name)
		invokers[name] = upstream.NewInvoker(ep, resolver, cfg.GetUpstreamTimeoutDuration(), logger)
	}

	return &Handler{
		registry:    registry,
		coordinator: coordinator,
		invokers:    invokers,
		passthrough: ws.NewPassthrough(logger),
		ratio:       ratio,
		maxBodySize: cfg.MaxBodySize,
		logger:      log,
	}
}

// Register mounts the endpoint routes on the given router
func (h *Handler) Register(r chi.Router) {
	r.HandleFunc("/{name}", h.ServeHTTP)
	r.HandleFunc("/{name}/*", h.ServeHTTP)
}

// ServeHTTP handles one proxied request
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	name := chi.URLParam(r, "name")
	ep, ok := h.registry.Lookup(name)
	if !ok {
		h.writeRPCError(w, http.StatusNotFound, nil, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "unknown endpoint"))
		return
	}

	remaining := ""
	if wc := chi.URLParam(r, "*"); wc != "" {
		remaining = "/" + wc
	}

	// Upgraded traffic is stateful; relay it untouched.
	if ws.IsUpgrade(r) {
		telemetry.CacheRequests.WithLabelValues(ep.Name, string(cache.StatusBypass)).Inc()
		h.passthrough.Serve(w, r, ep, remaining)
		return
	}

	if r.Method != http.MethodPost {
		h.writeRPCError(w, http.StatusMethodNotAllowed, nil, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "method not allowed"))
		return
	}

	body, err := h.readBody(r)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			h.writeRPCError(w, http.StatusRequestEntityTooLarge, nil, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "request body too large"))
		} else {
			h.writeRPCError(w, http.StatusBadRequest, nil, jsonrpc.NewError(jsonrpc.CodeParseError, "failed to read request body"))
		}
		return
	}

	call := fingerprint.Compute(ep.Name, r.Method, body, r.URL.RequestURI())
	inv := h.invokers[ep.Name]

	res, err := h.coordinator.Serve(r.Context(), call.Key, ep.TTL, func(ctx context.Context) (*cache.Entry, error) {
		return inv.Fetch(ctx, remaining, r.URL.RawQuery, body)
	})
	if err != nil {
		telemetry.UpstreamErrors.WithLabelValues(ep.Name).Inc()
		status := http.StatusBadGateway
		var ue *upstream.UnavailableError
		if errors.As(err, &ue) {
			status = ue.StatusCode
		}
		h.logger.Error().
			Err(err).
			Str("endpoint", ep.Name).
			Str("method", call.Method).
			Str("cacheKey", call.Key).
			Msg("request failed with nothing stale to serve")
		h.writeRPCError(w, status, call.OriginalID, jsonrpc.NewError(jsonrpc.CodeInternalError, "upstream unavailable"))
		return
	}

	out := rewrite.Rewrite(call.OriginalID, res.Entry.Body)

	contentType := res.Entry.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Cache-Status", string(res.Status))
	w.Header().Set("X-Cache-Key", call.Key)
	w.WriteHeader(res.Entry.StatusCode)
	w.Write(out)

	telemetry.CacheRequests.WithLabelValues(ep.Name, string(res.Status)).Inc()
	if h.ratio != nil {
		h.ratio.Observe(res.Status)
	}

	h.logger.Info().
		Str("endpoint", ep.Name).
		Str("remoteAddr", remoteAddr(r)).
		Str("method", call.Method).
		Str("cacheStatus", string(res.Status)).
		Str("cacheKey", call.Key).
		Int("status", res.Entry.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request served")
}

var errBodyTooLarge = errors.New("request body too large")

// readBody reads the request body, bounded by the configured limit
func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	if h.maxBodySize <= 0 {
		return io.ReadAll(r.Body)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > h.maxBodySize {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// writeRPCError writes a proxy-generated JSON-RPC error response, echoing
// the caller's id when one was captured.
func (h *Handler) writeRPCError(w http.ResponseWriter, status int, originalID json.RawMessage, rpcErr *jsonrpc.Error) {
	id := jsonrpc.NewIDNull()
	if originalID != nil {
		if err := json.Unmarshal(originalID, &id); err != nil {
			id = jsonrpc.NewIDNull()
		}
	}

	data, err := jsonrpc.NewErrorResponse(id, rpcErr).Bytes()
	if err != nil {
		http.Error(w, rpcErr.Message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// remoteAddr prefers the forwarded client address when present
func remoteAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
