package audio

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	goaudio "github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/readaloud/internal/domain/speech"
)

func wavAudio(samples []int16, sampleRate int) *speech.Audio {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return &speech.Audio{
		Data:   speech.WrapPCM(pcm, sampleRate, 1, 16),
		Format: speech.FormatWAV,
	}
}

func TestNew_Backends(t *testing.T) {
	p, err := New(BackendNone, Config{})
	require.NoError(t, err)
	assert.Equal(t, BackendNone, p.Name())

	p, err = New(BackendBeep, Config{SampleRate: 44100, BufferMs: 100})
	require.NoError(t, err)
	assert.Equal(t, BackendBeep, p.Name())

	_, err = New("alsa", Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported audio backend")
}

func TestDecodePCM16_WAV(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}
	pcm, err := decodePCM16(wavAudio(samples, 8000))
	require.NoError(t, err)

	assert.Equal(t, samples, pcm.Samples)
	assert.Equal(t, 8000, pcm.SampleRate)
	assert.Equal(t, 1, pcm.Channels)
}

func TestDecodePCM16_Errors(t *testing.T) {
	tests := []struct {
		name    string
		audio   *speech.Audio
		wantErr error
	}{
		{name: "nil audio", audio: nil, wantErr: ErrNoAudio},
		{name: "empty data", audio: &speech.Audio{Format: speech.FormatWAV}, wantErr: ErrNoAudio},
		{name: "unknown format", audio: &speech.Audio{Data: []byte{1}, Format: "ogg"}, wantErr: ErrUnsupportedFormat},
		{name: "garbage wav", audio: &speech.Audio{Data: []byte("not a wave file at all"), Format: speech.FormatWAV}, wantErr: ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodePCM16(tt.audio)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestPCM16_Duration(t *testing.T) {
	p := pcm16{Samples: make([]int16, 16000), SampleRate: 8000, Channels: 2}
	assert.Equal(t, time.Second, p.Duration())
	assert.Equal(t, time.Duration(0), pcm16{}.Duration())
}

func TestNonePlayer_UsesReportedDuration(t *testing.T) {
	a := wavAudio(make([]int16, 80), 8000)
	a.Duration = 30 * time.Millisecond

	start := time.Now()
	require.NoError(t, NewNonePlayer().Play(context.Background(), a))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestNonePlayer_Cancel(t *testing.T) {
	// Ten seconds of silence.
	a := wavAudio(make([]int16, 80000), 8000)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := NewNonePlayer().Play(ctx, a)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNonePlayer_NoAudio(t *testing.T) {
	err := NewNonePlayer().Play(context.Background(), &speech.Audio{})
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestIntBufferToPCM16(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		in    int
		want  int16
	}{
		{name: "8 bit unsigned midpoint", depth: 8, in: 128, want: 0},
		{name: "8 bit max", depth: 8, in: 255, want: 127 << 8},
		{name: "16 bit passthrough", depth: 16, in: -1234, want: -1234},
		{name: "24 bit", depth: 24, in: 0x123400, want: 0x1234},
		{name: "32 bit", depth: 32, in: 0x12340000, want: 0x1234},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := intBufferToPCM16(&goaudio.IntBuffer{
				Data:           []int{tt.in},
				Format:         &goaudio.Format{NumChannels: 1, SampleRate: 22050},
				SourceBitDepth: tt.depth,
			})
			require.Len(t, got.Samples, 1)
			assert.Equal(t, tt.want, got.Samples[0])
			assert.Equal(t, 22050, got.SampleRate)
			assert.Equal(t, 1, got.Channels)
		})
	}

	t.Run("missing format", func(t *testing.T) {
		got := intBufferToPCM16(&goaudio.IntBuffer{Data: []int{1}, SourceBitDepth: 16})
		assert.Zero(t, got.SampleRate)
		assert.Zero(t, got.Duration())
	})
}
