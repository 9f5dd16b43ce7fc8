package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/domain/document"
	"github.com/osa030/readaloud/internal/domain/speech"
)

// Errors
var (
	ErrNoDocument = errors.New("no document selected")
	ErrNotPlaying = errors.New("not playing")
	ErrBusy       = errors.New("narration in progress")
	ErrClosed     = errors.New("controller closed")
)

const closeTimeout = 2 * time.Second

// Speaker reads text aloud, blocking until the utterance has been played.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	SetRate(rate int)
}

// Config holds controller configuration.
type Config struct {
	Rate        int              // Initial reading rate
	RateRange   speech.RateRange // Allowed reading rates
	EventBuffer int              // Capacity of the event channel
}

// Controller owns the selected document and the page cursor, and runs at
// most one narration loop at a time.
type Controller struct {
	mu   sync.Mutex
	cond *sync.Cond

	source  document.Source
	speaker Speaker
	config  Config

	// Document state
	path    string
	doc     document.Document
	pages   int
	current int
	text    string
	navSeq  uint64 // Incremented whenever the cursor is moved from outside the loop

	state   State
	rate    int
	lastErr error

	// Narration loop
	running         bool
	workersStarted  int
	cancelUtterance context.CancelFunc

	// Events
	seq          uint64
	pending      []Event
	wake         chan struct{}
	eventCh      chan Event
	dispatchDone chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// NewController creates a new playback controller.
func NewController(source document.Source, speaker Speaker, config Config) *Controller {
	if config.EventBuffer <= 0 {
		config.EventBuffer = 32
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		source:       source,
		speaker:      speaker,
		config:       config,
		state:        StateStopped,
		rate:         config.RateRange.Clamp(config.Rate),
		wake:         make(chan struct{}, 1),
		eventCh:      make(chan Event, config.EventBuffer),
		dispatchDone: make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
	c.cond = sync.NewCond(&c.mu)
	speaker.SetRate(c.rate)

	go c.dispatch()
	return c
}

// Events returns the event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Select opens the document at path and moves the cursor to its first page.
// It is only allowed while stopped or after a failure. On failure no
// document remains selected.
func (c *Controller) Select(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !c.canSelectLocked() {
		return ErrBusy
	}
	// A stopped loop may still be unwinding. Play or Close may run meanwhile.
	for c.running && !c.closed && c.canSelectLocked() {
		c.cond.Wait()
	}
	if c.closed {
		return ErrClosed
	}
	if c.running || !c.canSelectLocked() {
		return ErrBusy
	}

	c.closeDocumentLocked()
	c.path, c.pages, c.current, c.text = "", 0, 0, ""
	c.navSeq++
	c.lastErr = nil
	c.setStateLocked(StateStopped)

	doc, err := c.open(path)
	if err != nil {
		err = errors.Wrapf(err, "select %s", path)
		zlog.Warn().Msgf("playback: select failed: path=%s error=%v", path, err)
		c.lastErr = err
		c.emitErrorLocked(err)
		return err
	}

	c.path = path
	c.doc = doc
	c.pages = doc.PageCount()
	zlog.Info().Msgf("playback: document selected: path=%s pages=%d", path, c.pages)
	c.emitLocked(EventDocumentOpened)

	if err := c.showPageLocked(0); err != nil {
		zlog.Warn().Msgf("playback: first page unavailable: path=%s error=%v", path, err)
	}
	return nil
}

// Play starts or resumes narration from the current page. Calling Play while
// playing does nothing.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.path == "" {
		return ErrNoDocument
	}
	if c.state == StatePlaying {
		return nil
	}

	c.lastErr = nil
	c.setStateLocked(StatePlaying)
	c.cond.Broadcast()

	if !c.running {
		c.running = true
		c.workersStarted++
		go c.narrate()
	}
	return nil
}

// Pause stops narration after interrupting the utterance in progress. The
// interrupted page is read again on resume.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePlaying {
		return ErrNotPlaying
	}
	c.setStateLocked(StatePaused)
	c.interruptLocked()
	return nil
}

// Stop ends narration. The cursor stays on the current page.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped {
		return nil
	}
	c.lastErr = nil
	c.setStateLocked(StateStopped)
	c.interruptLocked()
	c.cond.Broadcast()
	return nil
}

// Next moves the cursor to the next page. It does nothing on the last page.
func (c *Controller) Next() error {
	return c.move(1)
}

// Prev moves the cursor to the previous page. It does nothing on the first page.
func (c *Controller) Prev() error {
	return c.move(-1)
}

func (c *Controller) move(delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.path == "" {
		return ErrNoDocument
	}

	target := min(max(c.current+delta, 0), c.pages-1)
	if target == c.current {
		return nil
	}

	if err := c.showPageLocked(target); err != nil {
		c.emitErrorLocked(err)
		return err
	}
	c.navSeq++
	if c.state == StatePlaying {
		c.interruptLocked()
	}
	return nil
}

// SetRate clamps rate to the configured range and applies it from the next
// utterance on. It returns the effective rate.
func (c *Controller) SetRate(rate int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate = c.config.RateRange.Clamp(rate)
	if rate == c.rate {
		return rate
	}
	c.rate = rate
	c.speaker.SetRate(rate)
	zlog.Debug().Msgf("playback: rate changed: rate=%d", rate)
	c.emitLocked(EventRateChanged)
	return rate
}

// Reload reopens the selected document after it changed on disk. While
// playing, the current page is read again from the new content.
func (c *Controller) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.path == "" {
		return ErrNoDocument
	}

	c.closeDocumentLocked()
	doc, err := c.open(c.path)
	if err != nil {
		err = errors.Wrapf(err, "reload %s", c.path)
		c.failLocked(err)
		return err
	}

	c.doc = doc
	c.pages = doc.PageCount()
	c.current = min(c.current, c.pages-1)
	c.navSeq++
	zlog.Info().Msgf("playback: document reloaded: path=%s pages=%d page=%d", c.path, c.pages, c.current)
	c.emitLocked(EventDocumentReloaded)

	if err := c.showPageLocked(c.current); err != nil {
		zlog.Warn().Msgf("playback: page unavailable after reload: page=%d error=%v", c.current, err)
	}
	if c.state == StatePlaying {
		c.interruptLocked()
	}
	return nil
}

// Close stops narration, waits for the narration loop to exit, releases the
// document and closes the event channel.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.state != StateStopped {
		c.setStateLocked(StateStopped)
	}
	c.interruptLocked()
	c.cond.Broadcast()
	for c.running {
		c.cond.Wait()
	}
	c.closeDocumentLocked()
	c.signalLocked()
	c.mu.Unlock()

	select {
	case <-c.dispatchDone:
	case <-time.After(closeTimeout):
		zlog.Warn().Msgf("playback: dropping undelivered events on close")
	}
	c.cancel()
	<-c.dispatchDone
	close(c.eventCh)
	return nil
}

// narrate is the narration loop. It reads pages from the cursor until the
// document ends, the controller leaves the playing state, or a step fails.
func (c *Controller) narrate() {
	c.mu.Lock()
	defer func() {
		c.closeDocumentLocked()
		c.running = false
		c.cond.Broadcast()
		c.mu.Unlock()
	}()

	zlog.Debug().Msgf("playback: narration started: path=%s page=%d", c.path, c.current)

	for {
		for c.state == StatePaused {
			c.cond.Wait()
		}
		if c.state != StatePlaying {
			zlog.Debug().Msgf("playback: narration ended: state=%s", c.state)
			return
		}

		if c.current >= c.pages {
			c.setStateLocked(StateStopped)
			if err := c.showPageLocked(0); err != nil {
				zlog.Warn().Msgf("playback: first page unavailable: path=%s error=%v", c.path, err)
				c.current, c.text = 0, ""
			}
			zlog.Info().Msgf("playback: document finished: path=%s", c.path)
			c.emitLocked(EventFinished)
			return
		}

		index := c.current
		nav := c.navSeq
		if err := c.showPageLocked(index); err != nil {
			c.failLocked(err)
			return
		}
		if (document.Page{Index: index, Text: c.text}).IsBlank() {
			zlog.Debug().Msgf("playback: skipping blank page: page=%d", index)
			c.current++
			continue
		}

		text := c.text
		ctx, cancel := context.WithCancel(c.ctx)
		c.cancelUtterance = cancel
		c.emitLocked(EventUtteranceStarted)

		c.mu.Unlock()
		err := c.speaker.Speak(ctx, text)
		c.mu.Lock()

		cancel()
		c.cancelUtterance = nil

		if err != nil {
			if ctx.Err() != nil {
				zlog.Debug().Msgf("playback: utterance interrupted: page=%d state=%s", index, c.state)
				continue
			}
			c.failLocked(errors.Wrapf(err, "speak page %d", index+1))
			return
		}

		c.emitLocked(EventUtteranceFinished)
		if c.navSeq == nav && c.current == index {
			c.current++
		}
	}
}

// canSelectLocked reports whether another document may be selected.
// Must be called with lock held.
func (c *Controller) canSelectLocked() bool {
	return c.state == StateStopped || c.state == StateError
}

// ensureOpenLocked reopens the selected document if the narration loop
// released it. Must be called with lock held.
func (c *Controller) ensureOpenLocked() error {
	if c.doc != nil {
		return nil
	}
	doc, err := c.open(c.path)
	if err != nil {
		return errors.Wrapf(err, "reopen %s", c.path)
	}
	c.doc = doc
	c.pages = doc.PageCount()
	c.current = min(c.current, c.pages-1)
	return nil
}

// showPageLocked loads the text of page index, moves the cursor there and
// announces it. On error the cursor does not move.
// Must be called with lock held.
func (c *Controller) showPageLocked(index int) error {
	if err := c.ensureOpenLocked(); err != nil {
		return err
	}
	text, err := c.doc.PageText(index)
	if err != nil {
		return errors.Wrapf(err, "page %d", index+1)
	}

	c.text = text
	c.current = index
	c.emitLocked(EventPageShown)
	return nil
}

// open opens path and rejects documents without pages.
func (c *Controller) open(path string) (document.Document, error) {
	doc, err := c.source.Open(path)
	if err != nil {
		return nil, err
	}
	if doc.PageCount() == 0 {
		_ = doc.Close()
		return nil, document.ErrEmptyDocument
	}
	return doc, nil
}

// closeDocumentLocked releases the document handle; the path stays selected.
// Must be called with lock held.
func (c *Controller) closeDocumentLocked() {
	if c.doc == nil {
		return
	}
	if err := c.doc.Close(); err != nil {
		zlog.Warn().Msgf("playback: failed to close document: path=%s error=%v", c.path, err)
	}
	c.doc = nil
}

// interruptLocked cancels the utterance in progress, if any.
// Must be called with lock held.
func (c *Controller) interruptLocked() {
	if c.cancelUtterance != nil {
		c.cancelUtterance()
	}
}

// failLocked records err and moves to the error state.
// Must be called with lock held.
func (c *Controller) failLocked(err error) {
	zlog.Error().Msgf("playback: narration failed: path=%s page=%d error=%v", c.path, c.current, err)
	c.lastErr = err
	c.interruptLocked()
	c.setStateLocked(StateError)
	c.emitErrorLocked(err)
}

// setStateLocked changes the state and emits EventStateChanged.
// Must be called with lock held.
func (c *Controller) setStateLocked(state State) {
	if c.state == state {
		return
	}
	zlog.Debug().Msgf("playback: state changed: from=%s to=%s", c.state, state)
	c.state = state
	c.emitLocked(EventStateChanged)
}

func (c *Controller) statusLocked() Status {
	return Status{
		State: c.state,
		Path:  c.path,
		Page:  c.current,
		Pages: c.pages,
		Text:  c.text,
		Rate:  c.rate,
		Err:   c.lastErr,
	}
}

// emitLocked queues an event for the dispatcher.
// Must be called with lock held.
func (c *Controller) emitLocked(t EventType) {
	c.queueLocked(Event{Type: t})
}

func (c *Controller) emitErrorLocked(err error) {
	c.queueLocked(Event{Type: EventFailed, Err: err})
}

func (c *Controller) queueLocked(e Event) {
	c.seq++
	e.Seq = c.seq
	e.Status = c.statusLocked()
	e.Time = time.Now()
	c.pending = append(c.pending, e)
	c.signalLocked()
}

func (c *Controller) signalLocked() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// dispatch delivers queued events in order until the controller is closed
// and the queue is drained.
func (c *Controller) dispatch() {
	defer close(c.dispatchDone)

	for {
		select {
		case <-c.wake:
		case <-c.ctx.Done():
			return
		}

		c.mu.Lock()
		batch := c.pending
		c.pending = nil
		closed := c.closed
		c.mu.Unlock()

		for _, e := range batch {
			select {
			case c.eventCh <- e:
			case <-c.ctx.Done():
				return
			}
		}

		if closed {
			c.mu.Lock()
			drained := len(c.pending) == 0
			c.mu.Unlock()
			if drained {
				return
			}
		}
	}
}
