package audio

import (
	"encoding/binary"
	"math"

	"github.com/gen2brain/malgo"

	"github.com/aura-voice/aura/pkg/core"
)

// Mic owns the capture device and feeds a Pipeline from the device callback.
type Mic struct {
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	pipeline *Pipeline
}

// OpenMic acquires the default capture device at the wire format's rate
// (float32 mono) and starts streaming into a fresh Pipeline. A permission or
// device failure surfaces as DeviceAccessDenied.
func OpenMic() (*Mic, error) {
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime

	mctx, err := malgo.InitContext(nil, cfg, nil)
	if err != nil {
		return nil, core.NewDeviceAccessDeniedError(err)
	}

	m := &Mic{ctx: mctx, pipeline: NewPipeline()}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = CaptureSampleRate
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			m.pipeline.Push(decodeF32LE(input))
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		mctx.Uninit()
		return nil, core.NewDeviceAccessDeniedError(err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return nil, core.NewDeviceAccessDeniedError(err)
	}
	return m, nil
}

// Pipeline returns the frame source fed by the device.
func (m *Mic) Pipeline() *Pipeline {
	return m.pipeline
}

// Close stops capture and releases the device. Safe to call more than once.
func (m *Mic) Close() {
	if m.device != nil {
		m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		m.ctx.Uninit()
		m.ctx = nil
	}
}

func decodeF32LE(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
