package relay

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Addr:          ":0",
		GeminiKey:     "server-secret",
		RateLimit:     100,
		RateWindow:    15 * time.Minute,
		ShutdownGrace: time.Second,
	}
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	s, err := NewServer(cfg, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestForwardInjectsCredential(t *testing.T) {
	var gotKey, gotPath, gotClientKey, gotConnection string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Goog-Api-Key")
		gotPath = r.URL.Path
		gotClientKey = r.URL.Query().Get("key")
		gotConnection = r.Header.Get("Connection")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	cfg := testConfig(t)
	cfg.UpstreamHTTP = upstream.URL
	srv := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodPost,
		"/api-proxy/v1beta/models/gemini:generateContent?key=client-key&alt=json",
		strings.NewReader(`{}`))
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("X-Goog-Api-Key", "client-supplied")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotKey != "server-secret" {
		t.Fatalf("upstream saw key %q, want injected server credential", gotKey)
	}
	if gotClientKey != "" {
		t.Fatal("client-supplied key parameter must be stripped")
	}
	if gotPath != "/v1beta/models/gemini:generateContent" {
		t.Fatalf("upstream path = %q", gotPath)
	}
	if gotConnection != "" {
		t.Fatalf("hop-by-hop header crossed the proxy: %q", gotConnection)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"ok":true`) {
		t.Fatalf("body not forwarded: %s", body)
	}
}

func TestProxyRateLimit(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	cfg := testConfig(t)
	cfg.UpstreamHTTP = upstream.URL
	cfg.RateLimit = 2
	srv := newTestServer(t, cfg)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api-proxy/v1beta/models", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	do()
	do()
	rec := do()

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Error.Message != RateLimitMessage {
		t.Fatalf("message = %q, want fixed warning", envelope.Error.Message)
	}

	// The aggregation endpoints are not behind the proxy limit.
	req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	aggRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(aggRec, req)
	if aggRec.Code != http.StatusOK {
		t.Fatalf("aggregation endpoint limited: %d", aggRec.Code)
	}
}

func TestBridgeInjectsCredentialAndPipes(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotKey := make(chan string, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey <- r.URL.Query().Get("key")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// echo until the peer closes
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	defer upstream.Close()

	cfg := testConfig(t)
	cfg.UpstreamWS = "ws" + strings.TrimPrefix(upstream.URL, "http")
	srv := newTestServer(t, cfg)

	relaySrv := httptest.NewServer(srv.Handler())
	defer relaySrv.Close()

	wsTarget := "ws" + strings.TrimPrefix(relaySrv.URL, "http") + "/api-proxy/ws/live?key=client-key"
	client, _, err := websocket.DefaultDialer.Dial(wsTarget, nil)
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}
	defer client.Close()

	if err := client.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("echo = %q", data)
	}

	select {
	case key := <-gotKey:
		if key != "server-secret" {
			t.Fatalf("upstream dialed with key %q, want server credential", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("upstream never dialed")
	}
}

func TestForwardUpstreamDown(t *testing.T) {
	cfg := testConfig(t)
	cfg.UpstreamHTTP = "http://127.0.0.1:1" // nothing listens here
	srv := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api-proxy/v1beta/models", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	body, _ := io.ReadAll(rec.Result().Body)
	if !strings.Contains(string(body), "upstream unavailable") {
		t.Fatalf("body = %s", body)
	}
}
