package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/osa030/readaloud/internal/domain/speech"
)

// pcm16 is interleaved signed 16-bit audio.
type pcm16 struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration returns the playing time.
func (p pcm16) Duration() time.Duration {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	frames := len(p.Samples) / p.Channels
	return time.Duration(frames) * time.Second / time.Duration(p.SampleRate)
}

// decodePCM16 decodes WAV or MP3 data into 16-bit samples.
func decodePCM16(a *speech.Audio) (pcm16, error) {
	if a == nil || len(a.Data) == 0 {
		return pcm16{}, ErrNoAudio
	}
	switch a.Format {
	case speech.FormatWAV, "":
		return decodeWAV(a.Data)
	case speech.FormatMP3:
		return decodeMP3(a.Data)
	default:
		return pcm16{}, errors.Wrapf(ErrUnsupportedFormat, "%s", a.Format)
	}
}

func decodeWAV(data []byte) (pcm16, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return pcm16{}, errors.Wrap(ErrUnsupportedFormat, "invalid wav data")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return pcm16{}, errors.Wrap(err, "failed to decode wav")
	}

	return intBufferToPCM16(buf), nil
}

// intBufferToPCM16 scales samples of any source bit depth to 16 bits.
func intBufferToPCM16(buf *goaudio.IntBuffer) pcm16 {
	out := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch buf.SourceBitDepth {
		case 8:
			out[i] = int16((v - 128) << 8)
		case 24:
			out[i] = int16(v >> 8)
		case 32:
			out[i] = int16(v >> 16)
		default:
			out[i] = int16(v)
		}
	}

	p := pcm16{Samples: out}
	if buf.Format != nil {
		p.SampleRate = buf.Format.SampleRate
		p.Channels = buf.Format.NumChannels
	}
	return p
}

// decodeMP3 decodes MP3 data; go-mp3 always yields 16-bit stereo.
func decodeMP3(data []byte) (pcm16, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return pcm16{}, errors.Wrap(err, "failed to open mp3")
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return pcm16{}, errors.Wrap(err, "failed to decode mp3")
	}

	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return pcm16{
		Samples:    out,
		SampleRate: dec.SampleRate(),
		Channels:   2,
	}, nil
}

// duration returns the playing time of a, decoding headers when the
// synthesizer did not report it.
func duration(a *speech.Audio) time.Duration {
	if a.Duration > 0 {
		return a.Duration
	}
	switch a.Format {
	case speech.FormatWAV, "":
		dec := wav.NewDecoder(bytes.NewReader(a.Data))
		if d, err := dec.Duration(); err == nil && d > 0 {
			return d
		}
	case speech.FormatMP3:
		if dec, err := mp3.NewDecoder(bytes.NewReader(a.Data)); err == nil && dec.SampleRate() > 0 {
			return time.Duration(dec.Length()) * time.Second / time.Duration(4*dec.SampleRate())
		}
	}
	if p, err := decodePCM16(a); err == nil {
		return p.Duration()
	}
	return 0
}
