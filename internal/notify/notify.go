// Package notify fans translation progress events out to subscribers.
//
// Delivery is ordered and lossless: Publish blocks until every subscriber
// has accepted the event (or unsubscribed, or the publisher's context ends).
// Subscribers that cannot keep up slow the driver down rather than miss
// events.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("notifier closed")

// Kind identifies an event type.
type Kind string

const (
	UnitClaimed   Kind = "unit_claimed"
	UnitChunk     Kind = "unit_chunk"
	UnitCompleted Kind = "unit_completed"
	UnitRequeued  Kind = "unit_requeued"
	UnitFailed    Kind = "unit_failed"
	JobFinished   Kind = "job_finished"
)

// Event is one progress notification. Running totals reflect the job state
// right after the event.
type Event struct {
	Kind    Kind      `json:"kind"`
	JobID   string    `json:"job_id"`
	Index   int       `json:"index"`
	Attempt int       `json:"attempt,omitempty"`
	// Text is the chunk for UnitChunk and the translation for UnitCompleted.
	Text    string    `json:"text,omitempty"`
	Err     string    `json:"error,omitempty"`
	RetryAt time.Time `json:"retry_at,omitempty"`
	// Replayed marks UnitCompleted events re-sent for units finished in an
	// earlier run.
	Replayed  bool      `json:"replayed,omitempty"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	Total     int       `json:"total"`
	Time      time.Time `json:"time"`
}

type subscription struct {
	ch   chan Event
	done chan struct{}
	once sync.Once

	// mu guards ch against a close racing a send.
	mu     sync.RWMutex
	closed bool
}

// send blocks until the subscriber takes ev, unsubscribes or ctx ends.
func (s *subscription) send(ctx context.Context, ev Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- ev:
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.done) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Notifier is a publish/subscribe hub. The zero value is not usable; call New.
type Notifier struct {
	mu     sync.Mutex
	subs   []*subscription
	closed bool
}

// New returns an empty Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Subscribe registers a subscriber with the given channel buffer. The
// returned cancel func unsubscribes and closes the channel; it is safe to
// call more than once.
func (n *Notifier) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 0 {
		buffer = 0
	}
	sub := &subscription{ch: make(chan Event, buffer), done: make(chan struct{})}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	n.subs = append(n.subs, sub)
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		for i, s := range n.subs {
			if s == sub {
				n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
				break
			}
		}
		n.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel
}

// Publish delivers ev to every current subscriber in subscription order.
// Events from one publishing goroutine arrive in the order published.
func (n *Notifier) Publish(ctx context.Context, ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrClosed
	}
	subs := n.subs
	n.mu.Unlock()

	for _, sub := range subs {
		if err := sub.send(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// Close unsubscribes everyone and closes their channels.
func (n *Notifier) Close() {
	n.mu.Lock()
	subs := n.subs
	n.subs = nil
	n.closed = true
	n.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// Listener consumes events.
type Listener interface {
	Handle(Event)
}

// Run feeds events to l until the channel is closed.
func Run(events <-chan Event, l Listener) {
	for ev := range events {
		l.Handle(ev)
	}
}
