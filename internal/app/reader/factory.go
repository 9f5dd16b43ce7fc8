package reader

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/app/filter"
	"github.com/osa030/readaloud/internal/app/speech"
	"github.com/osa030/readaloud/internal/domain/document"
	"github.com/osa030/readaloud/internal/infra/audio"
	"github.com/osa030/readaloud/internal/infra/config"
	"github.com/osa030/readaloud/internal/infra/pdf"
)

// NewSourceFromConfig returns the PDF source with the configured text
// filters applied to every page.
func NewSourceFromConfig(cfg *config.Config) (document.Source, error) {
	filters, err := filter.NewChainFromConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create text filter chain")
	}
	zlog.Debug().Msgf("text filters: count=%d", len(filters.Filters()))
	return filter.NewSource(pdf.NewSource(), filters), nil
}

// NewFromConfig builds the PDF source, the synthesizer chain, the audio
// player and the speech engine described by cfg.
func NewFromConfig(cfg *config.Config) (*App, error) {
	source, err := NewSourceFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	chain, err := speech.NewChainFromConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create synthesizer chain")
	}

	player, err := audio.New(cfg.Audio.Backend, audio.Config{
		SampleRate: cfg.Audio.SampleRate,
		BufferMs:   cfg.Audio.BufferMs,
	})
	if err != nil {
		_ = chain.Close()
		return nil, errors.Wrap(err, "failed to create audio player")
	}
	zlog.Info().Msgf("audio backend: %s", player.Name())

	engine := speech.NewEngine(chain, player, speech.Config{
		Rate:          cfg.Speech.Rate,
		Voice:         cfg.Speech.Voice,
		MaxChunkChars: cfg.Speech.MaxChunkChars,
	})

	app, err := New(cfg, source, engine, chain, player)
	if err != nil {
		_ = chain.Close()
		_ = player.Close()
		return nil, err
	}
	return app, nil
}

// Extract opens path and returns the text of every page. Pages that cannot
// be decoded are returned blank and reported in the combined error.
func Extract(source document.Source, path string) ([]document.Page, error) {
	doc, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	var (
		pages []document.Page
		errs  error
	)
	for i := 0; i < doc.PageCount(); i++ {
		text, err := doc.PageText(i)
		if err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "page %d", i+1))
		}
		pages = append(pages, document.Page{Index: i, Text: text})
	}
	return pages, errs
}
