package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	SampleRate     = 16000
	bytesPerSample = 2
	fragmentBytes  = 640 // 20ms @ 16kHz mono s16

	// maxCaptureBytes caps one recording at ten minutes of audio.
	maxCaptureBytes = 10 * 60 * SampleRate * bytesPerSample
)

// ErrPermissionDenied is returned when the sound server refuses capture.
var ErrPermissionDenied = errors.New("microphone access denied")

// Capture accumulates PCM from one selected Pulse source until stopped.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	mu        sync.Mutex
	pcm       []byte
	stopped   bool
	truncated bool
}

// StartCapture opens a 16kHz mono s16 record stream on selected.
func StartCapture(ctx context.Context, selected Device) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, classifyPulseError(err)
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, classifyPulseError(fmt.Errorf("resolve source %q: %w", selected.ID, err))
	}

	capture := &Capture{device: selected, client: client}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(fragmentBytes),
		pulse.RecordMediaName("dictum dictation"),
	)
	if err != nil {
		capture.Close()
		return nil, classifyPulseError(fmt.Errorf("create pulse record stream: %w", err))
	}

	capture.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		_ = capture.Stop()
	}()

	return capture, nil
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// PCM returns a copy of everything captured so far.
func (c *Capture) PCM() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.pcm...)
}

// Truncated reports whether the capture hit maxCaptureBytes.
func (c *Capture) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}

// Stop halts the stream. It is safe to call more than once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

// Close is a convenience alias for Stop.
func (c *Capture) Close() {
	_ = c.Stop()
}

func (c *Capture) onPCM(buffer []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return 0, io.EOF
	}
	room := maxCaptureBytes - len(c.pcm)
	if room <= 0 {
		c.truncated = true
		return len(buffer), nil
	}
	if len(buffer) > room {
		c.truncated = true
		c.pcm = append(c.pcm, buffer[:room]...)
		return len(buffer), nil
	}
	c.pcm = append(c.pcm, buffer...)
	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

// classifyPulseError tags refusals from the sound server so callers can
// tell a permission problem from a broken device.
func classifyPulseError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if errors.Is(err, os.ErrPermission) || strings.Contains(msg, "access denied") || strings.Contains(msg, "permission denied") {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return err
}
