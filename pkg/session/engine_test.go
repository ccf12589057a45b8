package session

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aura-voice/aura/pkg/audio"
	"github.com/aura-voice/aura/pkg/core"
	"github.com/aura-voice/aura/pkg/session/protocol"
	"github.com/aura-voice/aura/pkg/state"
	"github.com/aura-voice/aura/pkg/tools"
)

type fakeMic struct {
	pipeline *audio.Pipeline
	closed   bool
}

func (f *fakeMic) Pipeline() *audio.Pipeline { return f.pipeline }
func (f *fakeMic) Close()                    { f.closed = true }

type fakePlayer struct {
	mu       sync.Mutex
	enqueued [][]byte
	stops    int
}

func (f *fakePlayer) Enqueue(pcm []byte) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, pcm)
	return time.Now()
}

func (f *fakePlayer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakePlayer) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *fakePlayer) enqueueCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enqueued)
}

type fakeShopping struct {
	mu    sync.Mutex
	added []string
}

func (f *fakeShopping) AddItem(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, name)
	return nil
}

// liveServer scripts the model side of the wire for engine tests. It always
// consumes the setup frame and answers setupComplete before running script.
func liveServer(t *testing.T, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var setup protocol.ClientMessage
		if err := conn.ReadJSON(&setup); err != nil {
			t.Errorf("reading setup: %v", err)
			return
		}
		if setup.Setup == nil {
			t.Errorf("first frame was not setup: %+v", setup)
			return
		}
		if err := conn.WriteJSON(&protocol.ServerMessage{SetupComplete: &struct{}{}}); err != nil {
			return
		}
		if script != nil {
			script(conn)
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestEngine(t *testing.T, cfg Config, st *state.Store, deps tools.Deps) (*Engine, *fakePlayer) {
	t.Helper()
	if deps.State == nil {
		deps.State = st
	}
	registry := tools.New(nil)
	tools.RegisterBuiltins(registry, deps)

	player := &fakePlayer{}
	eng := NewEngine(cfg, st, registry, Options{
		Player:    player,
		MicOpener: func() (MicSource, error) { return &fakeMic{pipeline: audio.NewPipeline()}, nil },
	})
	return eng, player
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConnectWithoutCredential(t *testing.T) {
	st := state.New()
	dialed := false
	cfg := Config{Profile: Profile{UsePlatformVoice: true}} // no platform key
	eng, _ := newTestEngine(t, cfg, st, tools.Deps{})
	eng.dial = func(ctx context.Context, rawURL string) (Conn, error) {
		dialed = true
		return nil, errors.New("should not dial")
	}

	err := eng.Connect(context.Background())
	if core.TypeOf(err) != core.ErrCredentialMissing {
		t.Fatalf("expected credential missing, got %v", err)
	}
	if st.Status() != state.StatusDisconnected {
		t.Fatalf("expected disconnected, got %q", st.Status())
	}
	if dialed {
		t.Fatal("transport must not be dialed without a credential")
	}
	if st.LastError() == "" {
		t.Fatal("expected a surfaced error message")
	}
}

func TestConnectHandshake(t *testing.T) {
	srv := liveServer(t, func(conn *websocket.Conn) {
		// hold the connection open until the client closes
		conn.ReadMessage()
	})
	defer srv.Close()

	st := state.New()
	cfg := Config{
		Endpoint:    wsURL(srv),
		PlatformKey: "platform-key",
		Profile:     Profile{UsePlatformVoice: true, WebSearchEnabled: true},
	}
	eng, _ := newTestEngine(t, cfg, st, tools.Deps{})

	if err := eng.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer eng.Disconnect()

	if st.Status() != state.StatusOpen {
		t.Fatalf("expected open, got %q", st.Status())
	}
	if st.LastError() != "" {
		t.Fatalf("error banner should be cleared, got %q", st.LastError())
	}
}

func TestSetupFrameContents(t *testing.T) {
	cfg := Config{
		PlatformKey: "k",
		Profile: Profile{
			UsePlatformVoice: true,
			WebSearchEnabled: true,
			VoiceGender:      "male",
		},
	}
	st := state.New()
	eng, _ := newTestEngine(t, cfg, st, tools.Deps{})

	msg := eng.setupMessage()
	setup := msg.Setup
	if setup.Model != DefaultModel {
		t.Fatalf("model = %q", setup.Model)
	}
	if got := setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName; got != "Puck" {
		t.Fatalf("voice = %q, want Puck", got)
	}
	var hasDecls, hasSearch, hasMaps bool
	for _, tool := range setup.Tools {
		if len(tool.FunctionDeclarations) > 0 {
			hasDecls = true
		}
		if tool.GoogleSearch != nil {
			hasSearch = true
		}
		if tool.GoogleMaps != nil {
			hasMaps = true
		}
	}
	if !hasDecls || !hasSearch || !hasMaps {
		t.Fatalf("missing capability groups: decls=%v search=%v maps=%v", hasDecls, hasSearch, hasMaps)
	}
}

func TestToolCallBatchResponse(t *testing.T) {
	responses := make(chan protocol.ClientMessage, 1)
	srv := liveServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(&protocol.ServerMessage{
			ToolCall: &protocol.ToolCall{FunctionCalls: []protocol.FunctionCall{
				{ID: "1", Name: "addShoppingItem", Args: map[string]any{"item": "leite"}},
				{ID: "2", Name: "updateSurface", Args: map[string]any{"surface": "UNKNOWN_VALUE"}},
			}},
		})
		var msg protocol.ClientMessage
		if err := conn.ReadJSON(&msg); err == nil {
			responses <- msg
		}
	})
	defer srv.Close()

	st := state.New()
	shop := &fakeShopping{}
	cfg := Config{Endpoint: wsURL(srv), UserKey: "user-key"}
	eng, _ := newTestEngine(t, cfg, st, tools.Deps{State: st, Shopping: shop})

	if err := eng.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer eng.Disconnect()

	var msg protocol.ClientMessage
	select {
	case msg = <-responses:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tool response")
	}

	tr := msg.ToolResponse
	if tr == nil || len(tr.FunctionResponses) != 2 {
		t.Fatalf("expected batched response with 2 results, got %+v", msg)
	}
	if tr.FunctionResponses[0].ID != "1" || tr.FunctionResponses[1].ID != "2" {
		t.Fatalf("results out of order: %+v", tr.FunctionResponses)
	}
	if tr.FunctionResponses[0].Response["result"] != "ok" {
		t.Fatalf("expected success payload, got %v", tr.FunctionResponses[0].Response)
	}

	waitFor(t, "shopping surface", func() bool { return st.ActiveSurface() == state.SurfaceShopping })
	shop.mu.Lock()
	defer shop.mu.Unlock()
	if len(shop.added) != 1 || shop.added[0] != "leite" {
		t.Fatalf("collaborator not called: %v", shop.added)
	}
}

func TestInboundAudioAndInterruption(t *testing.T) {
	pcm := base64.StdEncoding.EncodeToString(make([]byte, 4800))
	srv := liveServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(&protocol.ServerMessage{ServerContent: &protocol.ServerContent{
			ModelTurn: &protocol.Content{Parts: []protocol.Part{
				{InlineData: &protocol.Blob{MimeType: "audio/pcm;rate=24000", Data: pcm}},
			}},
		}})
		conn.WriteJSON(&protocol.ServerMessage{ServerContent: &protocol.ServerContent{
			TurnComplete: true,
			Interrupted:  true,
		}})
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.Close()

	st := state.New()
	cfg := Config{Endpoint: wsURL(srv), UserKey: "user-key"}
	eng, player := newTestEngine(t, cfg, st, tools.Deps{})

	if err := eng.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer eng.Disconnect()

	waitFor(t, "audio enqueue", func() bool { return player.enqueueCount() == 1 })
	waitFor(t, "interruption stop", func() bool { return player.stopCount() >= 1 })
	waitFor(t, "speaking cleared", func() bool { return !st.Snapshot().Speaking })
}

func TestTranscriptFlushOnTurnComplete(t *testing.T) {
	srv := liveServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(&protocol.ServerMessage{ServerContent: &protocol.ServerContent{
			InputTranscription: &protocol.Transcription{Text: "obrigado "},
		}})
		conn.WriteJSON(&protocol.ServerMessage{ServerContent: &protocol.ServerContent{
			InputTranscription:  &protocol.Transcription{Text: "pela ajuda"},
			OutputTranscription: &protocol.Transcription{Text: "de nada!"},
		}})
		conn.WriteJSON(&protocol.ServerMessage{ServerContent: &protocol.ServerContent{
			TurnComplete: true,
		}})
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.Close()

	st := state.New()
	cfg := Config{Endpoint: wsURL(srv), UserKey: "user-key"}
	eng, _ := newTestEngine(t, cfg, st, tools.Deps{})

	if err := eng.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer eng.Disconnect()

	waitFor(t, "transcript entries", func() bool { return len(st.Transcript()) == 2 })

	entries := st.Transcript()
	if entries[0].Role != state.RoleUser || entries[0].Text != "obrigado pela ajuda" {
		t.Fatalf("user entry = %+v", entries[0])
	}
	if entries[1].Role != state.RoleModel || entries[1].Text != "de nada!" {
		t.Fatalf("model entry = %+v", entries[1])
	}
	if st.Emotion() != "happy" {
		t.Fatalf("emotion = %q, want happy", st.Emotion())
	}
	if st.LastActivity().IsZero() {
		t.Fatal("activity should have been registered")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	srv := liveServer(t, func(conn *websocket.Conn) {
		// hold the connection open until the client closes
		conn.ReadMessage()
	})
	defer srv.Close()

	st := state.New()
	cfg := Config{Endpoint: wsURL(srv), UserKey: "user-key"}
	eng, player := newTestEngine(t, cfg, st, tools.Deps{})

	if err := eng.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	eng.Disconnect()
	stopsAfterFirst := player.stopCount()
	eng.Disconnect()

	if st.Status() != state.StatusDisconnected {
		t.Fatalf("expected disconnected, got %q", st.Status())
	}
	if player.stopCount() != stopsAfterFirst {
		t.Fatal("second disconnect must be a no-op")
	}
	if eng.current() != nil {
		t.Fatal("no transport handle may survive disconnect")
	}
}

func TestRemoteCloseTearsDown(t *testing.T) {
	srv := liveServer(t, func(conn *websocket.Conn) {
		// script returns immediately; the deferred close drops the peer
	})
	defer srv.Close()

	st := state.New()
	cfg := Config{Endpoint: wsURL(srv), UserKey: "user-key"}
	eng, _ := newTestEngine(t, cfg, st, tools.Deps{})

	if err := eng.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	waitFor(t, "teardown after remote close", func() bool {
		return st.Status() == state.StatusDisconnected
	})
	if st.LastError() == "" {
		t.Fatal("remote close should surface a transport error")
	}
}

func TestSendTextRequiresConnection(t *testing.T) {
	st := state.New()
	eng, _ := newTestEngine(t, Config{UserKey: "k"}, st, tools.Deps{})
	if err := eng.SendText("olá"); err == nil {
		t.Fatal("expected error when not connected")
	}
}

func TestResolveCredential(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"platform voice uses platform key", Config{PlatformKey: "p", UserKey: "u", Profile: Profile{UsePlatformVoice: true}}, "p", false},
		{"opted out uses user key", Config{PlatformKey: "p", UserKey: "u"}, "u", false},
		{"platform voice without platform key", Config{UserKey: "u", Profile: Profile{UsePlatformVoice: true}}, "", true},
		{"opted out without user key", Config{PlatformKey: "p"}, "", true},
	}
	for _, tc := range cases {
		got, err := tc.cfg.ResolveCredential()
		if tc.wantErr {
			if core.TypeOf(err) != core.ErrCredentialMissing {
				t.Fatalf("%s: expected credential missing, got %v", tc.name, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%s: got %q, %v", tc.name, got, err)
		}
	}
}

func TestVoiceName(t *testing.T) {
	if got := VoiceName(Profile{PreferredVoice: "Charon"}); got != "Charon" {
		t.Fatalf("preferred voice ignored: %q", got)
	}
	if got := VoiceName(Profile{VoiceGender: "male"}); got != "Puck" {
		t.Fatalf("male voice = %q", got)
	}
	if got := VoiceName(Profile{VoiceGender: "neutral"}); got != "Aoede" {
		t.Fatalf("neutral voice = %q", got)
	}
	if got := VoiceName(Profile{}); got != "Kore" {
		t.Fatalf("default voice = %q", got)
	}
}

func TestBuildSystemInstruction(t *testing.T) {
	text := BuildSystemInstruction(Profile{
		Name:     "Maria",
		Language: "Portuguese",
		Location: "Lisboa",
		Tier:     "premium",
	})
	for _, want := range []string{"Maria", "Portuguese", "Lisboa", "premium"} {
		if !strings.Contains(text, want) {
			t.Fatalf("instruction missing %q: %s", want, text)
		}
	}
}
