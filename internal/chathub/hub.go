// Package chathub is the live notification channel: it fans newly appended
// messages and complaint updates out to everyone watching a complaint.
package chathub

import (
	"complaintdesk/backend/internal/models"
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrHubStopped is returned by Subscribe once the hub has shut down.
var ErrHubStopped = errors.New("live hub stopped")

// DefaultSubscriptionBuffer is how many undelivered events a viewer may lag
// behind before the hub drops it.
const DefaultSubscriptionBuffer = 64

// Hub owns the subscription registry. All registry changes and deliveries
// happen on the Run goroutine, so per-complaint delivery order equals the
// order the broker hands events over.
type Hub struct {
	Broker Broker
	Logger *slog.Logger
	Buffer int

	subs map[string]map[*Subscription]struct{}

	registerCh   chan *Subscription
	unregisterCh chan *Subscription
	done         chan struct{}
	stopOnce     sync.Once
}

// NewHub creates a hub; call Run to start delivering.
func NewHub(b Broker, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		Broker:       b,
		Logger:       logger,
		Buffer:       DefaultSubscriptionBuffer,
		subs:         make(map[string]map[*Subscription]struct{}),
		registerCh:   make(chan *Subscription),
		unregisterCh: make(chan *Subscription),
		done:         make(chan struct{}),
	}
}

// Publish sends ev to every instance's viewers of ev.ComplaintID.
func (h *Hub) Publish(ctx context.Context, ev models.LiveEvent) error {
	return h.Broker.Publish(ctx, ev)
}

// Run is the hub's main loop. It returns when ctx is done or the broker
// stream ends; all open subscriptions are closed on the way out.
func (h *Hub) Run(ctx context.Context) error {
	defer h.stop()

	events, err := h.Broker.Listen(ctx)
	if err != nil {
		return err
	}
	h.Logger.Info("live hub started")

	for {
		select {
		case <-ctx.Done():
			return nil

		case sub := <-h.registerCh:
			set, ok := h.subs[sub.ComplaintID]
			if !ok {
				set = make(map[*Subscription]struct{})
				h.subs[sub.ComplaintID] = set
			}
			set[sub] = struct{}{}

		case sub := <-h.unregisterCh:
			h.drop(sub)

		case ev, ok := <-events:
			if !ok {
				h.Logger.Warn("live event stream ended")
				return nil
			}
			h.deliver(ev)
		}
	}
}

func (h *Hub) deliver(ev models.LiveEvent) {
	for sub := range h.subs[ev.ComplaintID] {
		select {
		case sub.ch <- ev:
		default:
			// Slow viewer; it reconnects and resyncs from a fresh load.
			h.Logger.Warn("dropping slow live subscriber", "complaint_id", ev.ComplaintID)
			h.drop(sub)
		}
	}
}

func (h *Hub) drop(sub *Subscription) {
	set, ok := h.subs[sub.ComplaintID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.ComplaintID)
	}
	close(sub.ch)
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		for _, set := range h.subs {
			for sub := range set {
				close(sub.ch)
			}
		}
		h.subs = make(map[string]map[*Subscription]struct{})
		h.Logger.Info("live hub stopped")
	})
}

// Subscribe registers a viewer of complaintID. Once Subscribe returns,
// every event the hub receives for that complaint is delivered to the
// subscription. The subscription is released by Close or when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, complaintID string) (*Subscription, error) {
	buffer := h.Buffer
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}
	sub := &Subscription{
		ComplaintID: complaintID,
		ch:          make(chan models.LiveEvent, buffer),
		hub:         h,
		closed:      make(chan struct{}),
	}

	select {
	case h.registerCh <- sub:
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.closed:
		}
	}()
	return sub, nil
}

// Subscription is one viewer's live feed of a complaint.
type Subscription struct {
	ComplaintID string

	ch        chan models.LiveEvent
	hub       *Hub
	closed    chan struct{}
	closeOnce sync.Once
}

// Events yields events in delivery order. The channel is closed after
// Close, on hub shutdown, or if the viewer fell too far behind.
func (s *Subscription) Events() <-chan models.LiveEvent {
	return s.ch
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		select {
		case s.hub.unregisterCh <- s:
		case <-s.hub.done:
		}
	})
}
