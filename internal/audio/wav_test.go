package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

func TestPCMDuration(t *testing.T) {
	require.Equal(t, time.Second, PCMDuration(make([]byte, SampleRate*bytesPerSample)))
	require.Equal(t, 50*time.Millisecond, PCMDuration(make([]byte, 1600)))
	require.Zero(t, PCMDuration(nil))
}

func TestWriteWAVProducesMono16kFile(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, WriteWAV(path, pcm))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	require.EqualValues(t, SampleRate, dec.SampleRate)
	require.EqualValues(t, 1, dec.NumChans)
	require.EqualValues(t, 16, dec.BitDepth)
	require.Equal(t, []int{0, 1000, -1000, 32767, -32768}, buf.Data)
}
