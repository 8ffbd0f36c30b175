package capture

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioOpener opens capture lines through PortAudio. A single opener
// owns the library initialization; Terminate must be called once all
// lines opened through it are closed.
type PortAudioOpener struct {
	initOnce    sync.Once
	initErr     error
	initialized bool
}

// NewPortAudioOpener creates an opener; PortAudio itself is initialized
// lazily on first use.
func NewPortAudioOpener() *PortAudioOpener {
	return &PortAudioOpener{}
}

func (o *PortAudioOpener) init() error {
	o.initOnce.Do(func() {
		o.initErr = portaudio.Initialize()
		o.initialized = o.initErr == nil
	})
	return o.initErr
}

// Terminate releases PortAudio. Safe to call when init never ran or failed.
func (o *PortAudioOpener) Terminate() {
	if o.initialized {
		portaudio.Terminate()
	}
}

// Open opens a mono int16 input stream on the named device. An empty name
// or a name matching no device selects the default input device; otherwise
// the first input-capable device whose name contains the given string
// (case-insensitive) is used.
func (o *PortAudioOpener) Open(device string, sampleRate, blockFrames int) (Line, error) {
	if err := o.init(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	info, err := o.findDevice(device)
	if err != nil {
		return nil, err
	}

	params := portaudio.LowLatencyParameters(info, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = blockFrames

	buf := make([]int16, blockFrames)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("open stream on %q: %w", info.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start stream on %q: %w", info.Name, err)
	}

	return &portAudioLine{stream: stream, buf: buf}, nil
}

func (o *PortAudioOpener) findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		return portaudio.DefaultInputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	needle := strings.ToLower(name)
	for _, d := range devices {
		if d == nil || d.MaxInputChannels <= 0 {
			continue
		}
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return d, nil
		}
	}
	return portaudio.DefaultInputDevice()
}

// Devices lists input-capable devices.
func (o *PortAudioOpener) Devices() ([]Device, error) {
	if err := o.init(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	var devices []Device
	for i, d := range infos {
		if d == nil || d.MaxInputChannels <= 0 {
			continue
		}
		devices = append(devices, Device{
			ID:                i,
			Name:              d.Name,
			Channels:          d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		})
	}
	return devices, nil
}

type portAudioLine struct {
	stream *portaudio.Stream
	buf    []int16
}

func (l *portAudioLine) Read(dst []int16) error {
	if err := l.stream.Read(); err != nil {
		return err
	}
	copy(dst, l.buf)
	return nil
}

func (l *portAudioLine) Close() error {
	if err := l.stream.Stop(); err != nil {
		l.stream.Close()
		return err
	}
	return l.stream.Close()
}
