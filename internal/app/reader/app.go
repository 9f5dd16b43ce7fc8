// Package reader wires the playback controller, the display hub and the
// document watcher into one application object driven by the surfaces.
package reader

import (
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/app/display"
	"github.com/osa030/readaloud/internal/app/playback"
	"github.com/osa030/readaloud/internal/domain/document"
	"github.com/osa030/readaloud/internal/infra/config"
	"github.com/osa030/readaloud/internal/infra/watcher"
)

var ErrUnsupportedFile = errors.New("unsupported file type")

// App is the application state shared by every display surface.
type App struct {
	config   *config.Config
	playback *playback.Controller
	hub      *display.Hub
	watcher  *watcher.Watcher
	closers  []io.Closer

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates an application around the given document source and speaker.
// closers are released by Close after the controller has stopped.
func New(cfg *config.Config, source document.Source, speaker playback.Speaker, closers ...io.Closer) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		config: cfg,
		playback: playback.NewController(source, speaker, playback.Config{
			Rate:      cfg.Speech.Rate,
			RateRange: cfg.RateRange(),
		}),
		hub:     display.NewHub(),
		closers: closers,
		ctx:     ctx,
		cancel:  cancel,
	}

	if cfg.Document.Watch {
		w, err := watcher.New(0)
		if err != nil {
			cancel()
			_ = a.playback.Close()
			return nil, errors.Wrap(err, "failed to create document watcher")
		}
		a.watcher = w
	}

	a.hub.Subscribe(display.SurfaceFunc(a.follow))
	return a, nil
}

// Start runs the event pump and, when enabled, the document watcher.
func (a *App) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.hub.Run(a.ctx, a.playback.Events())
		zlog.Debug().Msg("reader: event pump stopped")
	}()

	if a.watcher != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.watcher.Run(a.ctx, a.reload); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error().Msgf("reader: watcher stopped: %v", err)
			}
		}()
	}
}

// Attach subscribes a surface and renders the current status on it.
func (a *App) Attach(surface display.Surface) (string, error) {
	id := a.hub.Subscribe(surface)
	err := a.hub.Send(id, display.Update{
		Kind:   playback.EventStateChanged,
		Status: a.playback.Status(),
	})
	if err != nil {
		a.hub.Unsubscribe(id)
		return "", errors.Wrap(err, "failed to render initial status")
	}
	return id, nil
}

// Detach unsubscribes a surface.
func (a *App) Detach(id string) {
	a.hub.Unsubscribe(id)
}

// Select opens a document with the configured extension.
func (a *App) Select(path string) error {
	if !a.config.AcceptsDocument(path) {
		return errors.Wrapf(ErrUnsupportedFile, "%s (expected %s)", path, a.config.Document.Extension)
	}
	return a.playback.Select(path)
}

// Play starts or resumes narration.
func (a *App) Play() error {
	return a.playback.Play()
}

// Pause pauses narration.
func (a *App) Pause() error {
	return a.playback.Pause()
}

// Stop stops narration.
func (a *App) Stop() error {
	return a.playback.Stop()
}

// Next shows the next page.
func (a *App) Next() error {
	return a.playback.Next()
}

// Prev shows the previous page.
func (a *App) Prev() error {
	return a.playback.Prev()
}

// SetRate sets the reading rate and returns the effective one.
func (a *App) SetRate(rate int) int {
	return a.playback.SetRate(rate)
}

// Faster raises the reading rate by one step.
func (a *App) Faster() int {
	return a.playback.SetRate(a.playback.Status().Rate + a.config.Speech.RateStep)
}

// Slower lowers the reading rate by one step.
func (a *App) Slower() int {
	return a.playback.SetRate(a.playback.Status().Rate - a.config.Speech.RateStep)
}

// Status returns the controller status.
func (a *App) Status() playback.Status {
	return a.playback.Status()
}

// Config returns the application configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// follow keeps the watcher on the selected document.
func (a *App) follow(u display.Update) error {
	if a.watcher == nil || u.Kind != playback.EventDocumentOpened {
		return nil
	}
	if err := a.watcher.Follow(u.Status.Path); err != nil {
		zlog.Warn().Msgf("reader: cannot watch document: path=%s error=%v", u.Status.Path, err)
	}
	return nil
}

func (a *App) reload(path string) {
	if err := a.playback.Reload(); err != nil {
		zlog.Warn().Msgf("reader: reload failed: path=%s error=%v", path, err)
	}
}

// Close stops narration and releases every resource.
func (a *App) Close() error {
	var errs error
	a.closeOnce.Do(func() {
		errs = errors.CombineErrors(errs, a.playback.Close())
		a.cancel()
		if a.watcher != nil {
			errs = errors.CombineErrors(errs, a.watcher.Close())
		}
		a.wg.Wait()
		a.hub.Close()
		for _, c := range a.closers {
			errs = errors.CombineErrors(errs, c.Close())
		}
	})
	return errs
}
