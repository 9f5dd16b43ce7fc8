package playback

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/readaloud/internal/domain/document"
	"github.com/osa030/readaloud/internal/domain/speech"
)

const waitTimeout = 2 * time.Second

type fakeDocument struct {
	mu       sync.Mutex
	pages    []string
	badPages map[int]bool
	closed   bool
}

func (d *fakeDocument) PageCount() int {
	return len(d.pages)
}

func (d *fakeDocument) PageText(index int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", document.ErrClosed
	}
	if index < 0 || index >= len(d.pages) {
		return "", document.ErrPageRange
	}
	if d.badPages[index] {
		return "", errors.Mark(errors.Newf("bad content on page %d", index), document.ErrExtraction)
	}
	return d.pages[index], nil
}

func (d *fakeDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDocument) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type fakeSource struct {
	mu       sync.Mutex
	files    map[string][]string
	badPages map[int]bool
	opened   []*fakeDocument
}

func newFakeSource() *fakeSource {
	return &fakeSource{files: map[string][]string{
		"two.pdf":   {"page one text", "page two text"},
		"three.pdf": {"alpha", "beta", "gamma"},
		"blank.pdf": {"first", "   ", "third"},
		"empty.pdf": {},
	}}
}

func (s *fakeSource) Open(path string) (document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pages, ok := s.files[path]
	if !ok {
		return nil, errors.Mark(errors.Newf("open %s: no such file", path), document.ErrOpen)
	}
	doc := &fakeDocument{pages: append([]string(nil), pages...), badPages: s.badPages}
	s.opened = append(s.opened, doc)
	return doc, nil
}

func (s *fakeSource) setFile(path string, pages []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = pages
}

func (s *fakeSource) removeFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}

func (s *fakeSource) allClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.opened {
		if !d.isClosed() {
			return false
		}
	}
	return true
}

// fakeSpeaker records utterances. When blocking is set each Speak waits for
// release or cancellation; a stubborn speaker waits for release only.
type fakeSpeaker struct {
	mu       sync.Mutex
	blocking bool
	stubborn bool
	err      error
	spoken   []string
	rates    []int
	release  chan struct{}
}

func newFakeSpeaker(blocking bool) *fakeSpeaker {
	return &fakeSpeaker{blocking: blocking, release: make(chan struct{})}
}

func (s *fakeSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	err := s.err
	blocking := s.blocking
	stubborn := s.stubborn
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if stubborn {
		<-s.release
		return nil
	}
	if blocking {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *fakeSpeaker) SetRate(rate int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates = append(s.rates, rate)
}

func (s *fakeSpeaker) utterances() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func (s *fakeSpeaker) lastRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rates[len(s.rates)-1]
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	done   chan struct{}
}

func record(c *Controller) *recorder {
	r := &recorder{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for e := range c.Events() {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
		}
	}()
	return r
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) ofType(t EventType) []Event {
	var out []Event
	for _, e := range r.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) waitFor(t *testing.T, et EventType, count int) []Event {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(r.ofType(et)) >= count
	}, waitTimeout, 5*time.Millisecond, "waiting for %d %s events", count, et)
	return r.ofType(et)
}

func newTestController(t *testing.T, speaker *fakeSpeaker) (*Controller, *fakeSource, *recorder) {
	t.Helper()
	source := newFakeSource()
	c := NewController(source, speaker, Config{
		Rate:      300,
		RateRange: speech.RateRange{Min: 50, Max: 500, Step: 50},
	})
	r := record(c)
	t.Cleanup(func() {
		require.NoError(t, c.Close())
		<-r.done
	})
	return c, source, r
}

func (c *Controller) startedWorkers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workersStarted
}

func waitUtterances(t *testing.T, s *fakeSpeaker, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(s.utterances()) >= n
	}, waitTimeout, 5*time.Millisecond, "waiting for %d utterances", n)
}

func waitState(t *testing.T, c *Controller, state State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Status().State == state
	}, waitTimeout, 5*time.Millisecond, "waiting for state %s", state)
}

func TestController_SelectShowsFirstPage(t *testing.T) {
	c, _, r := newTestController(t, newFakeSpeaker(false))

	require.NoError(t, c.Select("two.pdf"))

	status := c.Status()
	assert.Equal(t, StateStopped, status.State)
	assert.Equal(t, "two.pdf", status.Path)
	assert.Equal(t, 0, status.Page)
	assert.Equal(t, 2, status.Pages)
	assert.Equal(t, "page one text", status.Text)
	assert.True(t, status.CanPlay())
	assert.True(t, status.CanNext())
	assert.False(t, status.CanPrev())

	opened := r.waitFor(t, EventDocumentOpened, 1)
	assert.Equal(t, 2, opened[0].Status.Pages)
	shown := r.waitFor(t, EventPageShown, 1)
	assert.Equal(t, "page one text", shown[0].Status.Text)
}

func TestController_SelectInvalidKeepsPlayDisabled(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "missing file", path: "missing.pdf", wantErr: document.ErrOpen},
		{name: "empty document", path: "empty.pdf", wantErr: document.ErrEmptyDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, r := newTestController(t, newFakeSpeaker(false))

			err := c.Select(tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))

			status := c.Status()
			assert.False(t, status.HasDocument())
			assert.False(t, status.CanPlay())
			assert.Error(t, status.Err)
			assert.ErrorIs(t, c.Play(), ErrNoDocument)
			assert.ErrorIs(t, c.Next(), ErrNoDocument)

			failed := r.waitFor(t, EventFailed, 1)
			assert.True(t, errors.Is(failed[0].Err, tt.wantErr))
		})
	}
}

func TestController_SelectReplacesPreviousDocument(t *testing.T) {
	c, source, _ := newTestController(t, newFakeSpeaker(false))

	require.NoError(t, c.Select("three.pdf"))
	require.NoError(t, c.Next())
	require.Error(t, c.Select("missing.pdf"))

	assert.True(t, source.allClosed())
	assert.False(t, c.Status().HasDocument())

	require.NoError(t, c.Select("two.pdf"))
	assert.Equal(t, 0, c.Status().Page)
	assert.Equal(t, "page one text", c.Status().Text)
}

func TestController_NextPrevRoundTrip(t *testing.T) {
	c, _, _ := newTestController(t, newFakeSpeaker(false))
	require.NoError(t, c.Select("three.pdf"))

	for index := 0; index < 2; index++ {
		t.Run(fmt.Sprintf("page %d", index), func(t *testing.T) {
			before := c.Status()
			require.Equal(t, index, before.Page)

			require.NoError(t, c.Next())
			assert.Equal(t, index+1, c.Status().Page)
			require.NoError(t, c.Prev())

			after := c.Status()
			assert.Equal(t, before.Page, after.Page)
			assert.Equal(t, before.Text, after.Text)

			require.NoError(t, c.Next())
		})
	}
}

func TestController_NavigationBounds(t *testing.T) {
	c, _, r := newTestController(t, newFakeSpeaker(false))
	require.NoError(t, c.Select("two.pdf"))
	r.waitFor(t, EventPageShown, 1)

	require.NoError(t, c.Prev())
	assert.Equal(t, 0, c.Status().Page)

	require.NoError(t, c.Next())
	assert.Equal(t, 1, c.Status().Page)
	assert.Equal(t, "page two text", c.Status().Text)

	require.NoError(t, c.Next())
	assert.Equal(t, 1, c.Status().Page)
	assert.False(t, c.Status().CanNext())

	r.waitFor(t, EventPageShown, 2)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, r.ofType(EventPageShown), 2)
}

func TestController_NavigationExtractionFailure(t *testing.T) {
	c, source, r := newTestController(t, newFakeSpeaker(false))
	source.badPages = map[int]bool{1: true}
	require.NoError(t, c.Select("three.pdf"))

	err := c.Next()
	require.Error(t, err)
	assert.True(t, errors.Is(err, document.ErrExtraction))
	assert.Equal(t, 0, c.Status().Page)
	r.waitFor(t, EventFailed, 1)
}

func TestController_PlayTwiceStartsOneWorker(t *testing.T) {
	speaker := newFakeSpeaker(true)
	c, _, _ := newTestController(t, speaker)
	require.NoError(t, c.Select("two.pdf"))

	require.NoError(t, c.Play())
	require.NoError(t, c.Play())
	waitUtterances(t, speaker, 1)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Play()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.startedWorkers())
	assert.Len(t, speaker.utterances(), 1)
	assert.Equal(t, StatePlaying, c.Status().State)
}

func TestController_PauseStopsFurtherUtterances(t *testing.T) {
	speaker := newFakeSpeaker(true)
	c, _, r := newTestController(t, speaker)
	require.NoError(t, c.Select("two.pdf"))

	require.NoError(t, c.Play())
	waitUtterances(t, speaker, 1)

	require.NoError(t, c.Pause())
	assert.Equal(t, StatePaused, c.Status().State)
	assert.ErrorIs(t, c.Pause(), ErrNotPlaying)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, speaker.utterances(), 1)
	assert.Equal(t, 0, c.Status().Page)
	assert.Empty(t, r.ofType(EventUtteranceFinished))

	require.NoError(t, c.Play())
	waitUtterances(t, speaker, 2)
	assert.Equal(t, []string{"page one text", "page one text"}, speaker.utterances())
	assert.Equal(t, 1, c.startedWorkers())
}

func TestController_PauseWithoutPlaying(t *testing.T) {
	c, _, _ := newTestController(t, newFakeSpeaker(false))
	assert.ErrorIs(t, c.Pause(), ErrNotPlaying)

	require.NoError(t, c.Select("two.pdf"))
	assert.ErrorIs(t, c.Pause(), ErrNotPlaying)
}

func TestController_ReadsTwoPageDocument(t *testing.T) {
	speaker := newFakeSpeaker(false)
	c, source, r := newTestController(t, speaker)
	require.NoError(t, c.Select("two.pdf"))
	require.NoError(t, c.Play())

	r.waitFor(t, EventFinished, 1)
	waitState(t, c, StateStopped)

	assert.Equal(t, []string{"page one text", "page two text"}, speaker.utterances())

	var shown []int
	for _, e := range r.ofType(EventPageShown) {
		if e.Status.State == StatePlaying {
			shown = append(shown, e.Status.Page)
		}
	}
	assert.Equal(t, []int{0, 1}, shown)
	assert.Len(t, r.ofType(EventUtteranceStarted), 2)
	assert.Len(t, r.ofType(EventUtteranceFinished), 2)

	status := c.Status()
	assert.Equal(t, 0, status.Page)
	assert.Equal(t, "page one text", status.Text)
	assert.True(t, status.CanPlay())

	finished := r.ofType(EventFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, 0, finished[0].Status.Page)
	assert.Equal(t, "page one text", finished[0].Status.Text)
	require.Eventually(t, source.allClosed, waitTimeout, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, speaker.utterances(), 2)
	assert.Len(t, r.ofType(EventFinished), 1)

	require.NoError(t, c.Next())
	require.NoError(t, c.Prev())
	assert.Equal(t, 0, c.Status().Page)
	assert.Equal(t, "page one text", c.Status().Text)
}

func TestController_EventsAreOrdered(t *testing.T) {
	c, _, r := newTestController(t, newFakeSpeaker(false))
	require.NoError(t, c.Select("three.pdf"))
	require.NoError(t, c.Play())
	r.waitFor(t, EventFinished, 1)

	events := r.all()
	require.NotEmpty(t, events)
	for i, e := range events {
		assert.Equal(t, uint64(i+1), e.Seq)
	}
}

func TestController_BlankPagesAreShownNotSpoken(t *testing.T) {
	speaker := newFakeSpeaker(false)
	c, _, r := newTestController(t, speaker)
	require.NoError(t, c.Select("blank.pdf"))
	require.NoError(t, c.Play())

	r.waitFor(t, EventFinished, 1)
	assert.Equal(t, []string{"first", "third"}, speaker.utterances())

	var shown []int
	for _, e := range r.ofType(EventPageShown) {
		if e.Status.State == StatePlaying {
			shown = append(shown, e.Status.Page)
		}
	}
	assert.Equal(t, []int{0, 1, 2}, shown)
}

func TestController_NextWhilePlayingContinuesFromNewPage(t *testing.T) {
	speaker := newFakeSpeaker(true)
	c, _, _ := newTestController(t, speaker)
	require.NoError(t, c.Select("three.pdf"))
	require.NoError(t, c.Play())
	waitUtterances(t, speaker, 1)

	require.NoError(t, c.Next())
	waitUtterances(t, speaker, 2)
	assert.Equal(t, []string{"alpha", "beta"}, speaker.utterances())
	assert.Equal(t, 1, c.Status().Page)

	require.NoError(t, c.Prev())
	waitUtterances(t, speaker, 3)
	assert.Equal(t, "alpha", speaker.utterances()[2])
	assert.Equal(t, StatePlaying, c.Status().State)
}

func TestController_StopInterruptsAndClosesDocument(t *testing.T) {
	speaker := newFakeSpeaker(true)
	c, source, r := newTestController(t, speaker)
	require.NoError(t, c.Select("three.pdf"))
	require.NoError(t, c.Play())
	waitUtterances(t, speaker, 1)

	require.NoError(t, c.Stop())
	assert.Equal(t, StateStopped, c.Status().State)
	require.Eventually(t, source.allClosed, waitTimeout, 5*time.Millisecond)
	assert.Empty(t, r.ofType(EventFinished))

	// Navigation reopens the released document.
	require.NoError(t, c.Next())
	assert.Equal(t, "beta", c.Status().Text)

	require.NoError(t, c.Play())
	waitUtterances(t, speaker, 2)
	assert.Equal(t, "beta", speaker.utterances()[1])
	assert.Equal(t, 2, c.startedWorkers())
}

func TestController_SelectWhilePlayingIsRejected(t *testing.T) {
	speaker := newFakeSpeaker(true)
	c, _, _ := newTestController(t, speaker)
	require.NoError(t, c.Select("two.pdf"))
	require.NoError(t, c.Play())
	waitUtterances(t, speaker, 1)

	assert.ErrorIs(t, c.Select("three.pdf"), ErrBusy)
	require.NoError(t, c.Pause())
	assert.ErrorIs(t, c.Select("three.pdf"), ErrBusy)

	require.NoError(t, c.Stop())
	require.NoError(t, c.Select("three.pdf"))
	assert.Equal(t, 3, c.Status().Pages)
}

func TestController_SelectWaitingForWorkerRejectsAfterPlay(t *testing.T) {
	speaker := newFakeSpeaker(true)
	speaker.stubborn = true
	c, _, _ := newTestController(t, speaker)
	defer close(speaker.release)

	require.NoError(t, c.Select("two.pdf"))
	require.NoError(t, c.Play())
	waitUtterances(t, speaker, 1)

	// The worker is still inside Speak after Stop.
	require.NoError(t, c.Stop())

	selected := make(chan error, 1)
	go func() {
		selected <- c.Select("three.pdf")
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Play())

	select {
	case err := <-selected:
		assert.ErrorIs(t, err, ErrBusy)
	case <-time.After(waitTimeout):
		t.Fatal("Select kept waiting after Play")
	}

	status := c.Status()
	assert.Equal(t, StatePlaying, status.State)
	assert.Equal(t, "two.pdf", status.Path)
	assert.Equal(t, 1, c.startedWorkers())
}

func TestController_SpeakFailureMovesToError(t *testing.T) {
	speaker := newFakeSpeaker(false)
	speaker.err = errors.New("audio device unavailable")
	c, source, r := newTestController(t, speaker)
	require.NoError(t, c.Select("two.pdf"))
	require.NoError(t, c.Play())

	failed := r.waitFor(t, EventFailed, 1)
	waitState(t, c, StateError)
	assert.Contains(t, failed[0].Err.Error(), "audio device unavailable")

	status := c.Status()
	require.Error(t, status.Err)
	assert.True(t, status.CanPlay())
	assert.True(t, status.CanSelect())
	require.Eventually(t, source.allClosed, waitTimeout, 5*time.Millisecond)

	speaker.mu.Lock()
	speaker.err = nil
	speaker.mu.Unlock()

	require.NoError(t, c.Play())
	r.waitFor(t, EventFinished, 1)
	assert.NoError(t, c.Status().Err)
}

func TestController_ExtractionFailureDuringNarration(t *testing.T) {
	speaker := newFakeSpeaker(false)
	c, source, r := newTestController(t, speaker)
	source.badPages = map[int]bool{1: true}
	require.NoError(t, c.Select("two.pdf"))
	require.NoError(t, c.Play())

	failed := r.waitFor(t, EventFailed, 1)
	assert.True(t, errors.Is(failed[0].Err, document.ErrExtraction))
	waitState(t, c, StateError)
	assert.Equal(t, []string{"page one text"}, speaker.utterances())
	assert.Equal(t, 1, c.Status().Page)
}

func TestController_SetRate(t *testing.T) {
	speaker := newFakeSpeaker(false)
	c, _, r := newTestController(t, speaker)
	assert.Equal(t, 300, speaker.lastRate())

	tests := []struct {
		in   int
		want int
	}{
		{in: 350, want: 350},
		{in: 1000, want: 500},
		{in: 10, want: 50},
		{in: 170, want: 150},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.SetRate(tt.in))
		assert.Equal(t, tt.want, c.Status().Rate)
		assert.Equal(t, tt.want, speaker.lastRate())
	}

	changed := r.waitFor(t, EventRateChanged, 4)
	assert.Equal(t, 150, changed[3].Status.Rate)

	c.SetRate(150)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, r.ofType(EventRateChanged), 4)
}

func TestController_Reload(t *testing.T) {
	c, source, r := newTestController(t, newFakeSpeaker(false))
	require.NoError(t, c.Select("three.pdf"))
	require.NoError(t, c.Next())
	require.NoError(t, c.Next())

	source.setFile("three.pdf", []string{"rewritten one", "rewritten two"})
	require.NoError(t, c.Reload())

	status := c.Status()
	assert.Equal(t, 2, status.Pages)
	assert.Equal(t, 1, status.Page)
	assert.Equal(t, "rewritten two", status.Text)
	r.waitFor(t, EventDocumentReloaded, 1)

	source.removeFile("three.pdf")
	require.Error(t, c.Reload())
	assert.Equal(t, StateError, c.Status().State)
}

func TestController_ReloadWithoutDocument(t *testing.T) {
	c, _, _ := newTestController(t, newFakeSpeaker(false))
	assert.ErrorIs(t, c.Reload(), ErrNoDocument)
}

func TestController_Close(t *testing.T) {
	speaker := newFakeSpeaker(true)
	source := newFakeSource()
	c := NewController(source, speaker, Config{Rate: 300, RateRange: speech.RateRange{Min: 50, Max: 500, Step: 50}})
	r := record(c)

	require.NoError(t, c.Select("two.pdf"))
	require.NoError(t, c.Play())
	waitUtterances(t, speaker, 1)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	select {
	case <-r.done:
	case <-time.After(waitTimeout):
		t.Fatal("event channel not closed")
	}
	assert.True(t, source.allClosed())
	assert.ErrorIs(t, c.Play(), ErrClosed)
	assert.ErrorIs(t, c.Select("two.pdf"), ErrClosed)
}

func TestStatus_Controls(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		play   bool
		pause  bool
		stop   bool
		sel    bool
		next   bool
		prev   bool
	}{
		{name: "no document", status: Status{State: StateStopped}, sel: true},
		{name: "stopped first page", status: Status{State: StateStopped, Path: "a.pdf", Pages: 2}, play: true, sel: true, next: true},
		{name: "playing last page", status: Status{State: StatePlaying, Path: "a.pdf", Page: 1, Pages: 2}, pause: true, stop: true, prev: true},
		{name: "paused", status: Status{State: StatePaused, Path: "a.pdf", Pages: 1}, play: true, stop: true},
		{name: "error", status: Status{State: StateError, Path: "a.pdf", Pages: 1}, play: true, sel: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.play, tt.status.CanPlay())
			assert.Equal(t, tt.pause, tt.status.CanPause())
			assert.Equal(t, tt.stop, tt.status.CanStop())
			assert.Equal(t, tt.sel, tt.status.CanSelect())
			assert.Equal(t, tt.next, tt.status.CanNext())
			assert.Equal(t, tt.prev, tt.status.CanPrev())
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "playing", StatePlaying.String())
	assert.Equal(t, "paused", StatePaused.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.Equal(t, "page_shown", EventPageShown.String())
	assert.Equal(t, "unknown", EventType(42).String())
}
