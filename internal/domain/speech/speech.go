// Package speech provides the utterance and audio value types shared by
// synthesizers and players.
package speech

import "time"

// NormalRate is the reading rate, in words per minute, that engines treat as
// their neutral speed.
const NormalRate = 175

// Format identifies the container of synthesized audio.
type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// Request describes one utterance to synthesize.
type Request struct {
	Text  string
	Rate  int    // Words per minute
	Voice string // Engine-specific voice name ("" = engine default)
}

// SpeedFactor returns the rate relative to NormalRate (1.0 = normal speed).
func (r Request) SpeedFactor() float64 {
	if r.Rate <= 0 {
		return 1.0
	}
	return float64(r.Rate) / NormalRate
}

// Audio is synthesized speech ready for playback.
type Audio struct {
	Data       []byte
	Format     Format
	SampleRate int           // Hz (0 if unknown, e.g. for MP3 before decoding)
	Channels   int           // 0 if unknown
	Duration   time.Duration // 0 if unknown
	Engine     string        // Name of the synthesizer that produced it
}

// RateRange bounds the reading rate and the step a slider moves it by.
type RateRange struct {
	Min  int
	Max  int
	Step int
}

// Clamp limits rate to the range and snaps it to the nearest step above Min.
func (r RateRange) Clamp(rate int) int {
	if rate < r.Min {
		rate = r.Min
	}
	if rate > r.Max {
		rate = r.Max
	}
	if r.Step > 0 {
		offset := rate - r.Min
		steps := (offset + r.Step/2) / r.Step
		rate = r.Min + steps*r.Step
		if rate > r.Max {
			rate -= r.Step
		}
	}
	return rate
}
