package audio

import (
	"math"
	"testing"
)

func TestPipelineEmitsOnFill(t *testing.T) {
	p := NewPipeline()

	// Less than one frame: nothing emitted.
	p.Push(make([]float32, FrameSamples-1))
	select {
	case <-p.Frames():
		t.Fatal("frame emitted before accumulator filled")
	default:
	}

	// One more sample completes the frame.
	p.Push([]float32{0.5})
	f := <-p.Frames()
	if len(f.PCM) != FrameSamples*2 {
		t.Fatalf("expected %d PCM bytes, got %d", FrameSamples*2, len(f.PCM))
	}
}

func TestPipelineSingleInFlight(t *testing.T) {
	p := NewPipeline()

	// Fill three frames with nobody reading: only one may be retained.
	p.Push(make([]float32, FrameSamples*3))

	<-p.Frames()
	select {
	case <-p.Frames():
		t.Fatal("more than one frame queued")
	default:
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Fatalf("RMS of empty buffer = %v, want 0", got)
	}

	// Constant 0.5 amplitude has RMS 0.5.
	buf := make([]float32, 1024)
	for i := range buf {
		buf[i] = 0.5
	}
	if got := RMS(buf); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("RMS = %v, want 0.5", got)
	}

	// Silence stays below the listening threshold.
	for i := range buf {
		buf[i] = 0.001
	}
	if got := RMS(buf); got >= ListeningThreshold {
		t.Fatalf("near-silence RMS %v crossed threshold", got)
	}
}

func TestEncodeS16LE(t *testing.T) {
	pcm := EncodeS16LE([]float32{0, 1, -1, 2, -2})
	want := []int16{0, 32767, -32767, 32767, -32767}
	for i, w := range want {
		got := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		if got != w {
			t.Fatalf("sample %d = %d, want %d", i, got, w)
		}
	}
}
