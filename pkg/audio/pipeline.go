// Package audio implements the capture side of the realtime pipeline:
// microphone sampling, fixed-size frame accumulation, loudness measurement,
// and encoding to the 16-bit PCM wire format.
package audio

import (
	"math"
)

const (
	// FrameSamples is the accumulator size; one Frame is emitted per fill.
	FrameSamples = 4096

	// CaptureSampleRate is the wire format's input rate in Hz.
	CaptureSampleRate = 16000

	// ListeningThreshold is the RMS level above which the consumer flips the
	// listening indicator. It gates nothing else; frames are always sent.
	ListeningThreshold = 0.01
)

// Frame is one encoded capture buffer with its loudness measurement. Once
// handed to the consumer the pipeline retains no reference to it.
type Frame struct {
	PCM []byte  // s16le mono
	RMS float64 // computed over the float samples before encoding
}

// Pipeline accumulates float samples into fixed-size frames. It communicates
// with its consumer only through the Frames channel, which holds at most one
// frame; if the consumer lags, the newest frame is dropped rather than queued.
type Pipeline struct {
	acc    []float32
	frames chan Frame
}

func NewPipeline() *Pipeline {
	return &Pipeline{
		acc:    make([]float32, 0, FrameSamples),
		frames: make(chan Frame, 1),
	}
}

// Frames is the single in-flight handoff channel to the consumer.
func (p *Pipeline) Frames() <-chan Frame {
	return p.frames
}

// Push appends captured samples, emitting a Frame each time the accumulator
// fills. It is called from the device's real-time callback and never blocks.
func (p *Pipeline) Push(samples []float32) {
	for len(samples) > 0 {
		n := FrameSamples - len(p.acc)
		if n > len(samples) {
			n = len(samples)
		}
		p.acc = append(p.acc, samples[:n]...)
		samples = samples[n:]

		if len(p.acc) == FrameSamples {
			f := Frame{
				PCM: EncodeS16LE(p.acc),
				RMS: RMS(p.acc),
			}
			select {
			case p.frames <- f:
			default:
			}
			p.acc = p.acc[:0]
		}
	}
}

// RMS returns the root-mean-square amplitude of normalized float samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// EncodeS16LE converts normalized float samples to 16-bit signed little-endian
// PCM, clamping out-of-range values.
func EncodeS16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
