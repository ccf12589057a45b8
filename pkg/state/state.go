// Package state holds the observable session state that the realtime engine
// mutates and UI consumers read. All writes go through named setters; there is
// no direct field access from other packages.
package state

import (
	"sync"
	"time"
)

// ConnectionStatus tracks the session lifecycle.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusOpen         ConnectionStatus = "open"
	StatusClosing      ConnectionStatus = "closing"
)

// Surface identifies a UI view the assistant can activate.
type Surface string

const (
	SurfaceHome      Surface = "home"
	SurfaceShopping  Surface = "shopping"
	SurfaceAgenda    Surface = "agenda"
	SurfaceTasks     Surface = "tasks"
	SurfaceNews      Surface = "news"
	SurfaceWeather   Surface = "weather"
	SurfaceDocuments Surface = "documents"
	SurfaceVision    Surface = "vision"
	SurfaceSettings  Surface = "settings"
)

// KnownSurface reports whether s names a registered surface.
func KnownSurface(s Surface) bool {
	switch s {
	case SurfaceHome, SurfaceShopping, SurfaceAgenda, SurfaceTasks,
		SurfaceNews, SurfaceWeather, SurfaceDocuments, SurfaceVision,
		SurfaceSettings:
		return true
	}
	return false
}

// VisionMode selects the camera capture mode.
type VisionMode string

const (
	VisionOff   VisionMode = "off"
	VisionImage VisionMode = "image"
	VisionVideo VisionMode = "video"
	VisionLive  VisionMode = "live"
)

// Role distinguishes transcript speakers.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// TranscriptEntry is one completed utterance turn. Entries are immutable once
// appended.
type TranscriptEntry struct {
	Role Role
	Text string
}

// transcriptRetention is how many completed turns the log keeps.
const transcriptRetention = 5

// NewsItem is a single headline pushed into state by the news tool.
type NewsItem struct {
	Title       string
	Description string
	URL         string
	Source      string
}

// Weather is the current conditions snapshot pushed by the weather tool.
type Weather struct {
	Location    string
	TempC       float64
	Description string
	Humidity    int
	WindKMH     float64
}

// Update is a best-effort change notification. Field names the setter that
// fired; consumers re-read the store rather than trusting a payload.
type Update struct {
	Field string
}

// Snapshot is a point-in-time copy of the full state.
type Snapshot struct {
	Status        ConnectionStatus
	Speaking      bool
	Listening     bool
	ActiveSurface Surface
	Transcript    []TranscriptEntry
	Emotion       string
	LastError     string
	LastActivity  time.Time
	NewsTopic     string
	News          []NewsItem
	Weather       *Weather
	DocumentDraft string
	VisionMode    VisionMode
}

// Store is the shared session state container. Each setter is independently
// atomic; subscribers receive non-blocking notifications and must tolerate
// dropped updates.
type Store struct {
	mu sync.Mutex

	status        ConnectionStatus
	speaking      bool
	listening     bool
	activeSurface Surface
	transcript    []TranscriptEntry
	emotion       string
	lastError     string
	lastActivity  time.Time
	newsTopic     string
	news          []NewsItem
	weather       *Weather
	documentDraft string
	visionMode    VisionMode

	subs []chan Update

	now func() time.Time
}

// New returns a Store in its initial disconnected state.
func New() *Store {
	return &Store{
		status:        StatusDisconnected,
		activeSurface: SurfaceHome,
		emotion:       "neutral",
		visionMode:    VisionOff,
		now:           time.Now,
	}
}

// Subscribe registers a change listener. The returned channel has a small
// buffer; when the consumer lags, notifications are dropped, never blocked on.
func (s *Store) Subscribe() <-chan Update {
	ch := make(chan Update, 16)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// notifyLocked fans an update out to subscribers. Callers hold s.mu.
func (s *Store) notifyLocked(field string) {
	for _, ch := range s.subs {
		select {
		case ch <- Update{Field: field}:
		default:
		}
	}
}

// SetStatus moves the connection through its lifecycle.
func (s *Store) SetStatus(st ConnectionStatus) {
	s.mu.Lock()
	s.status = st
	s.notifyLocked("status")
	s.mu.Unlock()
}

// Status returns the current connection status.
func (s *Store) Status() ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetSpeaking flags that model audio is playing.
func (s *Store) SetSpeaking(v bool) {
	s.mu.Lock()
	s.speaking = v
	s.notifyLocked("speaking")
	s.mu.Unlock()
}

// SetListening flags that the mic loudness crossed the voice threshold.
func (s *Store) SetListening(v bool) {
	s.mu.Lock()
	s.listening = v
	s.notifyLocked("listening")
	s.mu.Unlock()
}

// SetActiveSurface switches the visible UI surface.
func (s *Store) SetActiveSurface(surface Surface) {
	s.mu.Lock()
	s.activeSurface = surface
	s.notifyLocked("activeSurface")
	s.mu.Unlock()
}

// ActiveSurface returns the visible surface.
func (s *Store) ActiveSurface() Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeSurface
}

// AppendTranscriptEntry records a completed turn, evicting beyond the
// retention window. Empty text is the caller's responsibility to filter.
func (s *Store) AppendTranscriptEntry(e TranscriptEntry) {
	s.mu.Lock()
	if len(s.transcript) >= transcriptRetention {
		// keep the most recent retention-1 and append
		s.transcript = append(s.transcript[:0], s.transcript[len(s.transcript)-(transcriptRetention-1):]...)
	}
	s.transcript = append(s.transcript, e)
	s.notifyLocked("transcript")
	s.mu.Unlock()
}

// Transcript returns a copy of the retained transcript, oldest first.
func (s *Store) Transcript() []TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TranscriptEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// SetEmotion records the classifier's latest label.
func (s *Store) SetEmotion(emotion string) {
	s.mu.Lock()
	s.emotion = emotion
	s.notifyLocked("emotion")
	s.mu.Unlock()
}

// Emotion returns the current emotion label.
func (s *Store) Emotion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emotion
}

// SetLastError replaces the user-visible error banner. Empty clears it.
func (s *Store) SetLastError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.notifyLocked("lastError")
	s.mu.Unlock()
}

// LastError returns the current error banner text.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// RegisterActivity resets the idle clock.
func (s *Store) RegisterActivity() {
	s.mu.Lock()
	s.lastActivity = s.now()
	s.notifyLocked("lastActivity")
	s.mu.Unlock()
}

// LastActivity returns the most recent activity timestamp.
func (s *Store) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// SetNews replaces the news headlines and their topic.
func (s *Store) SetNews(topic string, items []NewsItem) {
	s.mu.Lock()
	s.newsTopic = topic
	s.news = append(s.news[:0:0], items...)
	s.notifyLocked("news")
	s.mu.Unlock()
}

// News returns the current topic and headlines.
func (s *Store) News() (string, []NewsItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newsTopic, append([]NewsItem(nil), s.news...)
}

// SetWeather replaces the weather snapshot.
func (s *Store) SetWeather(w *Weather) {
	s.mu.Lock()
	s.weather = w
	s.notifyLocked("weather")
	s.mu.Unlock()
}

// SetDocumentDraft replaces the editor draft content.
func (s *Store) SetDocumentDraft(content string) {
	s.mu.Lock()
	s.documentDraft = content
	s.notifyLocked("documentDraft")
	s.mu.Unlock()
}

// SetVisionMode opens or closes a camera capture mode.
func (s *Store) SetVisionMode(m VisionMode) {
	s.mu.Lock()
	s.visionMode = m
	s.notifyLocked("visionMode")
	s.mu.Unlock()
}

// Reset restores all session-scoped fields to their initial values. Transcript
// and fetched content survive a reconnect.
func (s *Store) Reset() {
	s.mu.Lock()
	s.status = StatusDisconnected
	s.speaking = false
	s.listening = false
	s.notifyLocked("reset")
	s.mu.Unlock()
}

// Snapshot returns a copy of the full state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Status:        s.status,
		Speaking:      s.speaking,
		Listening:     s.listening,
		ActiveSurface: s.activeSurface,
		Transcript:    append([]TranscriptEntry(nil), s.transcript...),
		Emotion:       s.emotion,
		LastError:     s.lastError,
		LastActivity:  s.lastActivity,
		NewsTopic:     s.newsTopic,
		News:          append([]NewsItem(nil), s.news...),
		Weather:       s.weather,
		DocumentDraft: s.documentDraft,
		VisionMode:    s.visionMode,
	}
}
