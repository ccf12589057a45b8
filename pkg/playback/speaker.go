package playback

import (
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Speaker is the production Sink, backed by an oto player. It buffers PCM and
// feeds the device through its pull-based Read.
type Speaker struct {
	otoCtx  *oto.Context
	player  *oto.Player
	buf     []byte
	mu      sync.Mutex
	cond    *sync.Cond
	playing bool
	closed  bool
}

// OpenSpeaker initializes the output device at the model's PCM rate with a
// ~100ms buffer.
func OpenSpeaker() (*Speaker, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   4800,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, err
	}
	<-ready

	s := &Speaker{otoCtx: ctx, buf: make([]byte, 0, SampleRate*4)}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Play appends pcm and starts the player on first use.
func (s *Speaker) Play(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, pcm...)
	if !s.playing && !s.closed {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Signal()
}

// Read implements io.Reader for oto.Player.
func (s *Speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed && len(s.buf) == 0 {
		// silence lets oto drain gracefully
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Flush discards pending audio and tears the player down so the next Play
// starts clean. Pause then Reset clears oto's internal buffer too.
func (s *Speaker) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	if s.player != nil && s.playing {
		s.playing = false
		player := s.player
		s.player = nil
		s.mu.Unlock()

		player.Pause()
		player.Reset()
		player.Close()
		return
	}
	s.mu.Unlock()
}

// Close releases the device.
func (s *Speaker) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	if s.player != nil {
		s.player.Close()
	}
}
