// Package ws relays WebSocket connections straight to the upstream node.
// Upgraded traffic is stateful and never cached, so both directions are
// piped byte-for-byte without inspecting the frames.
package ws

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rpcshield/internal/endpoint"
	"rpcshield/internal/telemetry"
)

const (
	writeWait      = 10 * time.Second
	dialTimeout    = 10 * time.Second
	maxMessageSize = 10 * 1024 * 1024 // 10MB
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// IsUpgrade reports whether the request asks for a WebSocket upgrade
func IsUpgrade(r *http.Request) bool {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return false
	}
	for _, v := range r.Header.Values("Connection") {
		for _, token := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
				return true
			}
		}
	}
	return false
}

// Passthrough upgrades client connections and relays them to upstreams
type Passthrough struct {
	dialer *websocket.Dialer
	logger zerolog.Logger
}

// NewPassthrough creates a new Passthrough relay
func NewPassthrough(logger zerolog.Logger) *Passthrough {
	return &Passthrough{
		dialer: &websocket.Dialer{
			HandshakeTimeout: dialTimeout,
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

// Serve upgrades the request and relays frames between the client and the
// endpoint's WebSocket origin until either side closes.
func (p *Passthrough) Serve(w http.ResponseWriter, r *http.Request, ep *endpoint.Endpoint, remainingPath string) {
	target := ep.WSOrigin()
	if remainingPath != "" {
		target.Path = strings.TrimSuffix(target.Path, "/") + remainingPath
	}
	target.RawQuery = r.URL.RawQuery

	upstream, resp, err := p.dialer.Dial(target.String(), forwardHeaders(r.Header))
	if err != nil {
		p.logger.Error().Err(err).
			Str("endpoint", ep.Name).
			Str("target", target.String()).
			Msg("failed to dial upstream")
		status := http.StatusBadGateway
		if resp != nil {
			status = resp.StatusCode
		}
		http.Error(w, "upstream unavailable", status)
		return
	}

	responseHeader := http.Header{}
	responseHeader.Set("X-Cache-Status", "BYPASS")

	client, err := upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to upgrade connection")
		upstream.Close()
		return
	}

	telemetry.PassthroughConnections.WithLabelValues(ep.Name).Inc()
	p.logger.Info().
		Str("endpoint", ep.Name).
		Str("remoteAddr", r.RemoteAddr).
		Msg("new passthrough connection")

	relay(client, upstream)

	p.logger.Debug().
		Str("endpoint", ep.Name).
		Str("remoteAddr", r.RemoteAddr).
		Msg("passthrough connection closed")
}

// forwardHeaders copies client headers to the upstream handshake, dropping
// the hop-by-hop and handshake headers the dialer manages itself.
func forwardHeaders(h http.Header) http.Header {
	out := http.Header{}
	for name, values := range h {
		switch http.CanonicalHeaderKey(name) {
		case "Upgrade", "Connection", "Sec-Websocket-Key", "Sec-Websocket-Version",
			"Sec-Websocket-Extensions", "Sec-Websocket-Protocol", "Host":
			continue
		}
		out[name] = values
	}
	return out
}

// relay pipes frames in both directions until either side errors or closes
func relay(client, upstream *websocket.Conn) {
	client.SetReadLimit(maxMessageSize)
	upstream.SetReadLimit(maxMessageSize)

	var once sync.Once
	closeBoth := func() {
		client.Close()
		upstream.Close()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pipe(client, upstream)
		once.Do(closeBoth)
	}()
	go func() {
		defer wg.Done()
		pipe(upstream, client)
		once.Do(closeBoth)
	}()
	wg.Wait()
}

// pipe copies messages from src to dst preserving the message type
func pipe(src, dst *websocket.Conn) {
	for {
		msgType, data, err := src.ReadMessage()
		if err != nil {
			return
		}
		dst.SetWriteDeadline(time.Now().Add(writeWait))
		if err := dst.WriteMessage(msgType, data); err != nil {
			return
		}
	}
}
