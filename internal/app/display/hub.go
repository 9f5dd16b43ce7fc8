// Package display fans playback updates out to the display surfaces.
package display

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/app/playback"
)

const (
	renderTimeout = 500 * time.Millisecond
	queueSize     = 64
)

// Update is what a surface renders: the controller status after an event.
type Update struct {
	SequenceNo uint64
	Kind       playback.EventType
	Status     playback.Status
	Err        error
}

// Surface renders updates. Implementations hand the update to their own UI
// loop instead of touching widgets from the caller's goroutine.
type Surface interface {
	Render(Update) error
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(Update) error

// Render calls f.
func (f SurfaceFunc) Render(u Update) error {
	return f(u)
}

type subscription struct {
	id      string
	surface Surface
	jobs    chan renderJob
	quit    chan struct{}
}

type renderJob struct {
	update Update
	done   chan error
}

// Hub manages surface subscriptions and broadcasting.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	order         []string

	// deliverMu keeps sequence numbers and queue order in step.
	deliverMu  sync.Mutex
	sequenceNo uint64
}

// NewHub creates a new hub.
func NewHub() *Hub {
	return &Hub{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a surface and returns its subscription ID.
func (h *Hub) Subscribe(surface Surface) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New().String()
	sub := &subscription{
		id:      id,
		surface: surface,
		jobs:    make(chan renderJob, queueSize),
		quit:    make(chan struct{}),
	}
	h.subscriptions[id] = sub
	h.order = append(h.order, id)
	go h.deliver(sub)
	return id
}

// Unsubscribe removes a subscription.
func (h *Hub) Unsubscribe(subscriptionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(subscriptionID)
}

func (h *Hub) removeLocked(subscriptionID string) {
	sub, ok := h.subscriptions[subscriptionID]
	if !ok {
		return
	}
	close(sub.quit)
	delete(h.subscriptions, subscriptionID)
	for i, id := range h.order {
		if id == subscriptionID {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// deliver renders queued updates one at a time until the subscription is
// removed. Every job taken off the queue gets a result.
func (h *Hub) deliver(sub *subscription) {
	for {
		select {
		case <-sub.quit:
			sub.drain()
			return
		case job := <-sub.jobs:
			if sub.closed() {
				job.done <- nil
				continue
			}
			err := sub.surface.Render(job.update)
			if err != nil {
				zlog.Warn().Msgf("display: dropping surface: id=%s seq=%d error=%v", sub.id, job.update.SequenceNo, err)
				h.Unsubscribe(sub.id)
			}
			job.done <- err
		}
	}
}

func (s *subscription) closed() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

func (s *subscription) drain() {
	for {
		select {
		case job := <-s.jobs:
			job.done <- nil
		default:
			return
		}
	}
}

// enqueue stamps update with the next sequence number and queues it for the
// subscriptions pick returns. pick runs with the subscription lock held, so
// nothing is queued on a removed subscription. A nil job means that surface's
// queue was full and the update was skipped for it.
func (h *Hub) enqueue(update Update, pick func() []*subscription) ([]*subscription, []*renderJob) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.sequenceNo++
	update.SequenceNo = h.sequenceNo

	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := pick()
	jobs := make([]*renderJob, len(subs))
	for i, sub := range subs {
		job := renderJob{update: update, done: make(chan error, 1)}
		select {
		case sub.jobs <- job:
			jobs[i] = &job
		default:
			zlog.Warn().Msgf("display: surface queue full, skipping: id=%s seq=%d", sub.id, update.SequenceNo)
		}
	}
	return subs, jobs
}

// Broadcast stamps update with the next sequence number and queues it on
// every surface. Each surface renders its updates one at a time in sequence
// order, so a late render delays the next one instead of racing it.
// Broadcast returns once every surface rendered the update or renderTimeout
// elapsed. A surface whose Render fails is unsubscribed.
func (h *Hub) Broadcast(update Update) {
	subs, jobs := h.enqueue(update, func() []*subscription {
		subs := make([]*subscription, 0, len(h.order))
		for _, id := range h.order {
			subs = append(subs, h.subscriptions[id])
		}
		return subs
	})

	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()
	for i, job := range jobs {
		if job == nil {
			continue
		}
		select {
		case <-job.done:
		case <-ctx.Done():
			zlog.Debug().Msgf("display: render timed out: id=%s seq=%d kind=%s", subs[i].id, job.update.SequenceNo, job.update.Kind)
		}
	}
}

// Send renders update on a single surface after anything already queued for
// it. Unknown IDs are ignored.
func (h *Hub) Send(subscriptionID string, update Update) error {
	_, jobs := h.enqueue(update, func() []*subscription {
		if sub, ok := h.subscriptions[subscriptionID]; ok {
			return []*subscription{sub}
		}
		return nil
	})
	if len(jobs) == 0 {
		return nil
	}
	if jobs[0] == nil {
		return errors.Newf("display: surface %s is not keeping up", subscriptionID)
	}
	return <-jobs[0].done
}

// Run broadcasts playback events until the channel is closed or ctx is done.
func (h *Hub) Run(ctx context.Context, events <-chan playback.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			zlog.Debug().Msgf("display: event: seq=%d type=%s state=%s page=%d/%d",
				e.Seq, e.Type, e.Status.State, e.Status.Page+1, e.Status.Pages)
			h.Broadcast(FromEvent(e))
		}
	}
}

// FromEvent converts a playback event to an update.
func FromEvent(e playback.Event) Update {
	return Update{
		Kind:   e.Type,
		Status: e.Status,
		Err:    e.Err,
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions)
}

// Close removes all subscriptions and stops their delivery.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subscriptions {
		close(sub.quit)
	}
	h.subscriptions = make(map[string]*subscription)
	h.order = nil
}
