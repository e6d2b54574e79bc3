// Package device captures microphone audio through PortAudio.
package device

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"ptt/internal/record"
)

// maxDefaultChannels caps devices that advertise large channel counts when no
// explicit channel count is configured.
const maxDefaultChannels = 2

// PortAudio opens the default input device at its native rate. PortAudio is
// initialized per stream and terminated when the stream closes, so a device
// plugged in between sessions is picked up.
type PortAudio struct {
	Format   record.Format
	Channels int
}

// Open implements record.Backend.
func (p *PortAudio) Open(newSink func(record.DeviceInfo) record.Sink) (record.Stream, record.DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, record.DeviceInfo{}, fmt.Errorf("portaudio init failed: %w", err)
	}

	dev, err := portaudio.DefaultInputDevice()
	if err != nil || dev == nil {
		_ = portaudio.Terminate()
		return nil, record.DeviceInfo{}, fmt.Errorf("%w: %v", record.ErrNoInputDevice, err)
	}
	if dev.MaxInputChannels < 1 {
		_ = portaudio.Terminate()
		return nil, record.DeviceInfo{}, fmt.Errorf("%w: %s has no input channels", record.ErrNoInputDevice, dev.Name)
	}

	channels := min(dev.MaxInputChannels, maxDefaultChannels)
	if p.Channels > 0 {
		channels = min(dev.MaxInputChannels, p.Channels)
	}
	info := record.DeviceInfo{
		Name:       dev.Name,
		SampleRate: int(dev.DefaultSampleRate),
		Channels:   channels,
		Format:     p.Format,
	}

	sink := newSink(info)
	var callback interface{}
	switch p.Format {
	case record.FormatFloat32:
		callback = func(in []float32) { sink.WriteFloat32(in) }
	case record.FormatInt16:
		callback = func(in []int16) { sink.WriteInt16(in) }
	case record.FormatInt32:
		callback = func(in []int32) { sink.WriteInt32(in) }
	default:
		_ = portaudio.Terminate()
		return nil, info, fmt.Errorf("%w: %s", record.ErrUnsupportedFormat, p.Format)
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = channels
	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, info, fmt.Errorf("open stream failed: %w", err)
	}
	return &paStream{s: stream}, info, nil
}

type paStream struct {
	s *portaudio.Stream
}

func (p *paStream) Start() error { return p.s.Start() }

func (p *paStream) Stop() error { return p.s.Stop() }

func (p *paStream) Close() error {
	err := p.s.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}
