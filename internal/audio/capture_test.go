package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCaptureOnPCMAccumulates(t *testing.T) {
	capture := &Capture{}

	n, err := capture.onPCM([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, 4, n)
	_, err = capture.onPCM([]byte{5, 6})
	require.NoError(t, err)

	pcm := capture.PCM()
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, pcm)

	pcm[0] = 99
	require.Equal(t, byte(1), capture.PCM()[0], "PCM must return a copy")
}

func TestCaptureOnPCMReturnsEOFWhenStopped(t *testing.T) {
	capture := &Capture{}
	require.NoError(t, capture.Stop())
	require.NoError(t, capture.Stop())

	n, err := capture.onPCM([]byte{1, 2, 3})
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
	require.Empty(t, capture.PCM())
}

func TestCaptureOnPCMCapsLength(t *testing.T) {
	capture := &Capture{pcm: make([]byte, maxCaptureBytes-2)}

	n, err := capture.onPCM([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.True(t, capture.Truncated())
	require.Len(t, capture.PCM(), maxCaptureBytes)
}

func TestCaptureDeviceAndCloseAlias(t *testing.T) {
	capture := &Capture{device: Device{ID: "mic-1", Description: "Mic"}}
	require.Equal(t, "mic-1", capture.Device().ID)
	capture.Close()
	_, err := capture.onPCM([]byte{1})
	require.ErrorIs(t, err, io.EOF)
}

func TestWriterFuncDelegatesWrite(t *testing.T) {
	called := false
	writer := writerFunc(func(b []byte) (int, error) {
		called = true
		require.Equal(t, []byte{1, 2, 3}, b)
		return len(b), nil
	})

	n, err := writer.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.True(t, called)
}

func TestClassifyPulseError(t *testing.T) {
	require.NoError(t, classifyPulseError(nil))

	denied := classifyPulseError(fmt.Errorf("create pulse record stream: %s", "pulse: access denied"))
	require.ErrorIs(t, denied, ErrPermissionDenied)

	perm := classifyPulseError(fmt.Errorf("dial: %w", os.ErrPermission))
	require.ErrorIs(t, perm, ErrPermissionDenied)

	other := errors.New("no such entity")
	require.Equal(t, other, classifyPulseError(other))
}
