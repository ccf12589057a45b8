package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aura-voice/aura/pkg/audio"
	"github.com/aura-voice/aura/pkg/core"
	"github.com/aura-voice/aura/pkg/session/protocol"
	"github.com/aura-voice/aura/pkg/state"
	"github.com/aura-voice/aura/pkg/tools"
)

// Conn is the subset of *websocket.Conn the engine uses, abstracted so
// transport tests can substitute it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens the duplex transport.
type Dialer func(ctx context.Context, rawURL string) (Conn, error)

func defaultDialer(ctx context.Context, rawURL string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// MicSource is the capture device handle held for the session's lifetime.
type MicSource interface {
	Pipeline() *audio.Pipeline
	Close()
}

// MicOpener acquires the capture device.
type MicOpener func() (MicSource, error)

// Player is the playback side the engine drives from inbound audio.
type Player interface {
	Enqueue(pcm []byte) time.Time
	Stop()
}

// Engine owns at most one live session at a time. Connect supersedes any
// prior session; Disconnect is idempotent. Inbound messages are dispatched
// strictly in arrival order by a single read loop.
type Engine struct {
	cfg        Config
	st         *state.Store
	registry   *tools.Registry
	classifier state.EmotionClassifier
	logger     *slog.Logger

	dial    Dialer
	openMic MicOpener
	player  Player

	mu   sync.Mutex
	sess *liveSession
}

// Options inject the engine's collaborators. Zero-value fields get production
// defaults; Player is required.
type Options struct {
	Dialer     Dialer
	MicOpener  MicOpener
	Player     Player
	Classifier state.EmotionClassifier
	Logger     *slog.Logger
}

func NewEngine(cfg Config, st *state.Store, registry *tools.Registry, opts Options) *Engine {
	e := &Engine{
		cfg:        cfg,
		st:         st,
		registry:   registry,
		classifier: opts.Classifier,
		logger:     opts.Logger,
		dial:       opts.Dialer,
		openMic:    opts.MicOpener,
		player:     opts.Player,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.classifier == nil {
		e.classifier = state.KeywordClassifier{}
	}
	if e.dial == nil {
		e.dial = defaultDialer
	}
	if e.openMic == nil {
		e.openMic = func() (MicSource, error) { return audio.OpenMic() }
	}
	return e
}

// liveSession is one connection lifetime. All writes go through writeMu; the
// closed flag makes post-close sends drop silently instead of erroring.
type liveSession struct {
	conn Conn
	mic  MicSource

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}

	userAcc  strings.Builder
	modelAcc strings.Builder
}

func (s *liveSession) close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		if s.mic != nil {
			s.mic.Close()
		}
		s.conn.Close()
	})
}

func (s *liveSession) writeJSON(v any) error {
	if s.closed.Load() {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// Connect tears down any existing session and establishes a new one: resolve
// the credential, acquire the mic, dial, then complete the setup handshake.
// Any failure resets status to disconnected and surfaces a single error
// message; retrying Connect is always safe.
func (e *Engine) Connect(ctx context.Context) error {
	e.Disconnect()

	e.st.SetStatus(state.StatusConnecting)

	cred, err := e.cfg.ResolveCredential()
	if err != nil {
		return e.failConnect(err)
	}

	mic, err := e.openMic()
	if err != nil {
		return e.failConnect(err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.dialTimeout())
	defer cancel()

	conn, err := e.dial(dialCtx, e.dialURL(cred))
	if err != nil {
		mic.Close()
		return e.failConnect(core.NewTransportOpenError(err))
	}

	sess := &liveSession{conn: conn, mic: mic, done: make(chan struct{})}

	if err := sess.writeJSON(e.setupMessage()); err != nil {
		sess.close()
		return e.failConnect(core.NewTransportOpenError(err))
	}
	if err := awaitSetupComplete(conn, e.cfg.dialTimeout()); err != nil {
		sess.close()
		return e.failConnect(core.NewTransportOpenError(err))
	}

	e.mu.Lock()
	e.sess = sess
	e.mu.Unlock()

	e.st.SetLastError("")
	e.st.SetStatus(state.StatusOpen)
	e.logger.Info("session open", "model", e.cfg.model(), "voice", VoiceName(e.cfg.Profile))

	go e.readLoop(sess)
	go e.captureLoop(sess)
	return nil
}

func (e *Engine) failConnect(err error) error {
	e.st.SetLastError(err.Error())
	e.st.SetStatus(state.StatusDisconnected)
	e.logger.Warn("connect failed", "error", err)
	return err
}

func (e *Engine) dialURL(cred string) string {
	return e.cfg.Endpoint + "?key=" + url.QueryEscape(cred)
}

func (e *Engine) setupMessage() *protocol.ClientMessage {
	var decls []protocol.FunctionDeclaration
	for _, d := range e.registry.Declarations() {
		decls = append(decls, protocol.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	sessionTools := []protocol.Tool{{FunctionDeclarations: decls}}
	if e.cfg.Profile.WebSearchEnabled {
		sessionTools = append(sessionTools, protocol.Tool{GoogleSearch: &struct{}{}})
	}
	sessionTools = append(sessionTools, protocol.Tool{GoogleMaps: &struct{}{}})

	return &protocol.ClientMessage{
		Setup: &protocol.Setup{
			Model: e.cfg.model(),
			GenerationConfig: &protocol.GenerationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &protocol.SpeechConfig{
					VoiceConfig: &protocol.VoiceConfig{
						PrebuiltVoiceConfig: &protocol.PrebuiltVoiceConfig{
							VoiceName: VoiceName(e.cfg.Profile),
						},
					},
				},
			},
			SystemInstruction: &protocol.Content{
				Parts: []protocol.Part{{Text: BuildSystemInstruction(e.cfg.Profile)}},
			},
			Tools: sessionTools,
		},
	}
}

func awaitSetupComplete(conn Conn, timeout time.Duration) error {
	conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	var msg protocol.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	if msg.SetupComplete == nil {
		return core.NewInvalidRequestError("expected setupComplete as first frame")
	}
	return nil
}

// Disconnect gracefully tears the session down: stop capture, close the
// transport, discard in-flight playback, and reset session-scoped state.
// Calling it with no session open is a no-op.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	sess := e.sess
	e.sess = nil
	e.mu.Unlock()

	if sess == nil {
		return
	}
	e.st.SetStatus(state.StatusClosing)
	sess.close()
	e.player.Stop()
	e.st.Reset()
	e.logger.Info("session closed")
}

// readLoop processes inbound messages one at a time, in arrival order. A read
// error after a local close is the expected shutdown path; otherwise it is a
// transport failure that tears the session down.
func (e *Engine) readLoop(sess *liveSession) {
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if !sess.closed.Load() {
				e.st.SetLastError(core.NewTransportError(err).Error())
				e.Disconnect()
			}
			return
		}
		var msg protocol.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			e.logger.Warn("undecodable server frame", "error", err)
			continue
		}
		e.handleServerMessage(sess, &msg)
	}
}

// handleServerMessage applies one inbound message's effects before the next
// is read: tool calls first, then audio, then transcript deltas, then the
// turn boundary.
func (e *Engine) handleServerMessage(sess *liveSession, msg *protocol.ServerMessage) {
	if msg.ToolCall != nil && len(msg.ToolCall.FunctionCalls) > 0 {
		e.handleToolCall(sess, msg.ToolCall)
	}

	sc := msg.ServerContent
	if sc == nil {
		if msg.GoAway != nil {
			e.logger.Warn("server going away", "timeLeft", msg.GoAway.TimeLeft)
		}
		return
	}

	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				e.logger.Warn("undecodable audio chunk", "error", err)
				continue
			}
			e.st.SetSpeaking(true)
			e.player.Enqueue(pcm)
		}
	}

	if sc.InputTranscription != nil {
		sess.userAcc.WriteString(sc.InputTranscription.Text)
	}
	if sc.OutputTranscription != nil {
		sess.modelAcc.WriteString(sc.OutputTranscription.Text)
	}

	if sc.Interrupted {
		e.player.Stop()
		e.st.SetSpeaking(false)
	}
	if sc.TurnComplete {
		e.completeTurn(sess)
	}
}

// completeTurn flushes non-empty accumulators into transcript entries and
// clears them. A finalized user utterance also feeds the emotion classifier
// and resets the idle clock.
func (e *Engine) completeTurn(sess *liveSession) {
	if text := strings.TrimSpace(sess.userAcc.String()); text != "" {
		e.st.AppendTranscriptEntry(state.TranscriptEntry{Role: state.RoleUser, Text: text})
		e.st.SetEmotion(e.classifier.Classify(text))
		e.st.RegisterActivity()
	}
	if text := strings.TrimSpace(sess.modelAcc.String()); text != "" {
		e.st.AppendTranscriptEntry(state.TranscriptEntry{Role: state.RoleModel, Text: text})
	}
	sess.userAcc.Reset()
	sess.modelAcc.Reset()
	e.st.SetSpeaking(false)
}

func (e *Engine) handleToolCall(sess *liveSession, tc *protocol.ToolCall) {
	calls := make([]tools.Call, 0, len(tc.FunctionCalls))
	for _, fc := range tc.FunctionCalls {
		calls = append(calls, tools.Call{ID: fc.ID, Name: fc.Name, Args: fc.Args})
	}
	results := e.registry.Dispatch(context.Background(), calls)

	responses := make([]protocol.FunctionResponse, 0, len(results))
	for _, r := range results {
		responses = append(responses, protocol.FunctionResponse{
			ID:       r.ID,
			Name:     r.Name,
			Response: r.Response,
		})
	}
	if err := sess.writeJSON(&protocol.ClientMessage{
		ToolResponse: &protocol.ToolResponse{FunctionResponses: responses},
	}); err != nil {
		e.logger.Warn("tool response send failed", "error", err)
	}
}

// captureLoop forwards encoded mic frames as realtime input. Frames arriving
// after close are dropped; transmission is fire-and-forget.
func (e *Engine) captureLoop(sess *liveSession) {
	frames := sess.mic.Pipeline().Frames()
	for {
		select {
		case <-sess.done:
			return
		case frame := <-frames:
			e.st.SetListening(frame.RMS > audio.ListeningThreshold)
			msg := &protocol.ClientMessage{
				RealtimeInput: &protocol.RealtimeInput{
					MediaChunks: []protocol.Blob{{
						MimeType: protocol.AudioMimeType,
						Data:     base64.StdEncoding.EncodeToString(frame.PCM),
					}},
				},
			}
			if err := sess.writeJSON(msg); err != nil {
				e.logger.Warn("audio frame send failed", "error", err)
			}
		}
	}
}

// SendText submits typed user input as a completed turn.
func (e *Engine) SendText(text string) error {
	sess := e.current()
	if sess == nil {
		return core.NewTransportError(errNotConnected)
	}
	return sess.writeJSON(&protocol.ClientMessage{
		ClientContent: &protocol.ClientContent{
			Turns: []protocol.Content{{
				Role:  "user",
				Parts: []protocol.Part{{Text: text}},
			}},
			TurnComplete: true,
		},
	})
}

// SendVisionFrame streams one captured JPEG frame into the conversation.
func (e *Engine) SendVisionFrame(jpeg []byte) error {
	sess := e.current()
	if sess == nil {
		return core.NewTransportError(errNotConnected)
	}
	return sess.writeJSON(&protocol.ClientMessage{
		RealtimeInput: &protocol.RealtimeInput{
			MediaChunks: []protocol.Blob{{
				MimeType: protocol.ImageMimeType,
				Data:     base64.StdEncoding.EncodeToString(jpeg),
			}},
		},
	})
}

// StopPlayback force-stops the playback scheduler, for caller-driven barge-in.
func (e *Engine) StopPlayback() {
	e.player.Stop()
	e.st.SetSpeaking(false)
}

func (e *Engine) current() *liveSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

var errNotConnected = &notConnectedError{}

type notConnectedError struct{}

func (*notConnectedError) Error() string { return "session is not connected" }
