package relay

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ProxyPrefix is the path prefix under which traffic is forwarded to the
// model provider.
const ProxyPrefix = "/api-proxy"

// bridgeQueueSize bounds client frames held while the upstream dial is still
// in flight.
const bridgeQueueSize = 64

// Proxy forwards HTTP requests and bridges WebSocket upgrades to the model
// provider, substituting the server-held credential in both cases.
type Proxy struct {
	cfg    Config
	logger *slog.Logger

	httpClient *http.Client
	upgrader   websocket.Upgrader
	dialer     *websocket.Dialer
}

func NewProxy(cfg Config, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		dialer: websocket.DefaultDialer,
	}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		p.bridge(w, r)
		return
	}
	p.forward(w, r)
}

// hop-by-hop headers never cross the proxy in either direction.
var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// forward relays one HTTP request to the upstream model API with the server
// credential injected. Any client-supplied key is discarded.
func (p *Proxy) forward(w http.ResponseWriter, r *http.Request) {
	target := p.upstreamURL(p.cfg.UpstreamHTTP, r)

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		http.Error(w, "bad proxy request", http.StatusBadGateway)
		return
	}
	req.Header = r.Header.Clone()
	for _, h := range hopByHop {
		req.Header.Del(h)
	}
	req.Header.Del("X-Goog-Api-Key")
	req.Header.Set("X-Goog-Api-Key", p.cfg.GeminiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("upstream request failed", "target", target, "error", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	metricProxiedRequests.WithLabelValues(r.Method).Inc()

	header := w.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	for _, h := range hopByHop {
		header.Del(h)
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// upstreamURL rebuilds the request URL against base, stripping the proxy
// prefix and any client-supplied key parameter.
func (p *Proxy) upstreamURL(base string, r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, ProxyPrefix)
	q := r.URL.Query()
	q.Del("key")
	target := base + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	return target
}

// bridge upgrades the client connection and pipes frames to an upstream
// WebSocket. Client frames sent while the upstream dial is still opening are
// queued and flushed once it completes.
func (p *Proxy) bridge(w http.ResponseWriter, r *http.Request) {
	client, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer client.Close()

	metricBridgeSessions.Inc()
	metricBridgeActive.Inc()
	defer metricBridgeActive.Dec()

	type frame struct {
		messageType int
		data        []byte
	}

	// Reading starts before the upstream dial so early client frames queue
	// instead of backing up the TCP connection.
	fromClient := make(chan frame, bridgeQueueSize)
	readDone := make(chan struct{})
	go func() {
		defer close(fromClient)
		for {
			mt, data, err := client.ReadMessage()
			if err != nil {
				return
			}
			select {
			case fromClient <- frame{mt, data}:
			case <-readDone:
				return
			}
		}
	}()
	defer close(readDone)

	path := strings.TrimPrefix(r.URL.Path, ProxyPrefix)
	target := p.cfg.UpstreamWS + path + "?key=" + url.QueryEscape(p.cfg.GeminiKey)

	upstream, _, err := p.dialer.DialContext(r.Context(), target, nil)
	if err != nil {
		p.logger.Warn("upstream dial failed", "error", err)
		client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "upstream unavailable"),
			time.Now().Add(time.Second))
		return
	}
	defer upstream.Close()

	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		for f := range fromClient {
			if err := upstream.WriteMessage(f.messageType, f.data); err != nil {
				return
			}
		}
	}()

	go func() {
		defer func() { done <- struct{}{} }()
		for {
			mt, data, err := upstream.ReadMessage()
			if err != nil {
				return
			}
			if err := client.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}()

	// Either side closing ends the session; the deferred closes unblock the
	// other pump.
	<-done
}
