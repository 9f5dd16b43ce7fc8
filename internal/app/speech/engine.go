package speech

import (
	"context"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/domain/speech"
)

// Config holds engine configuration.
type Config struct {
	Rate          int    // Initial rate in words per minute
	Voice         string // Voice passed to synthesizers ("" = engine default)
	MaxChunkChars int    // Upper bound for one synthesis request (0 = no limit)
}

// Engine speaks text: it synthesizes and plays one chunk at a time.
type Engine struct {
	synth  Synthesizer
	player Player
	config Config
	rate   atomic.Int64
}

// NewEngine creates a new speech engine.
func NewEngine(synth Synthesizer, player Player, config Config) *Engine {
	e := &Engine{
		synth:  synth,
		player: player,
		config: config,
	}
	e.rate.Store(int64(config.Rate))
	return e
}

// SetRate sets the reading rate used by the next utterance.
func (e *Engine) SetRate(rate int) {
	e.rate.Store(int64(rate))
}

// Rate returns the current reading rate.
func (e *Engine) Rate() int {
	return int(e.rate.Load())
}

// Speak synthesizes and plays text, returning once it has been heard in full.
// Cancelling ctx interrupts synthesis or playback immediately.
func (e *Engine) Speak(ctx context.Context, text string) error {
	rate := e.Rate()
	chunks := splitChunks(text, e.config.MaxChunkChars)

	zlog.Debug().Msgf("speech: speaking: rate=%d chars=%d chunks=%d", rate, len(text), len(chunks))

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}

		audio, err := e.synth.Synthesize(ctx, speech.Request{
			Text:  chunk,
			Rate:  rate,
			Voice: e.config.Voice,
		})
		if err != nil {
			return errors.Wrapf(err, "synthesize chunk %d/%d", i+1, len(chunks))
		}

		if err := e.player.Play(ctx, audio); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrapf(err, "play chunk %d/%d", i+1, len(chunks))
		}
	}
	return nil
}

// splitChunks splits text into pieces of at most limit characters, breaking
// after sentence punctuation where possible, then at whitespace.
func splitChunks(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		return []string{text}
	}

	var chunks []string
	rest := []rune(text)
	for len(rest) > limit {
		cut := lastBreak(rest[:limit], isSentenceEnd)
		if cut <= 0 {
			cut = lastBreak(rest[:limit], unicode.IsSpace)
		}
		if cut <= 0 {
			cut = limit
		}
		if chunk := strings.TrimSpace(string(rest[:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		rest = []rune(strings.TrimLeftFunc(string(rest[cut:]), unicode.IsSpace))
	}
	if chunk := strings.TrimSpace(string(rest)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// lastBreak returns the position just after the last rune matching fn.
func lastBreak(runes []rune, fn func(rune) bool) int {
	for i := len(runes) - 1; i > 0; i-- {
		if fn(runes[i]) {
			return i + 1
		}
	}
	return 0
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '\n':
		return true
	}
	return false
}
