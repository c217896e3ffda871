// Package thread is the append-only message log attached to each complaint.
package thread

import (
	"complaintdesk/backend/internal/chathub"
	"complaintdesk/backend/internal/identity"
	"complaintdesk/backend/internal/lifecycle"
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/storage"
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Live is the part of the hub the thread publishes to and watches.
type Live interface {
	Publish(ctx context.Context, ev models.LiveEvent) error
	Subscribe(ctx context.Context, complaintID string) (*chathub.Subscription, error)
}

type Service struct {
	Store  storage.Storage
	Live   Live
	Logger *slog.Logger
}

func NewService(store storage.Storage, live Live, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Store: store, Live: live, Logger: logger}
}

func (s *Service) authorize(ctx context.Context, actor identity.Identity, complaintID string) error {
	c, err := s.Store.GetComplaintByID(ctx, complaintID)
	if err != nil {
		return err
	}
	return lifecycle.CanView(lifecycle.ViewContext{
		ComplaintID: c.ID,
		OwnerID:     c.UserID,
		ActorID:     actor.UserID,
		ActorRole:   actor.Role,
	}).Error()
}

// Post appends text to the thread of complaintID as actor. Blank text is
// ignored and yields a nil message. The persisted message is returned; other
// viewers get it through the live channel.
func (s *Service) Post(ctx context.Context, actor identity.Identity, complaintID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if err := s.authorize(ctx, actor, complaintID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ComplaintID:     complaintID,
		UserID:          actor.UserID,
		Message:         text,
		IsStaffResponse: actor.IsStaff(),
	}
	if err := s.Store.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}

	// The message is durable at this point; viewers that miss the event pick
	// it up on their next load.
	if err := s.Live.Publish(ctx, models.MessageEvent(*msg)); err != nil {
		s.Logger.Warn("failed to publish message", "complaint_id", complaintID, "message_id", msg.ID, "error", err)
	}
	return msg, nil
}

// Load returns the whole thread ordered by created_at, then insertion.
func (s *Service) Load(ctx context.Context, actor identity.Identity, complaintID string) ([]models.Message, error) {
	if err := s.authorize(ctx, actor, complaintID); err != nil {
		return nil, err
	}
	return s.Store.GetMessages(ctx, complaintID)
}

// Watch opens a viewing session. The live subscription is registered before
// the thread is loaded, so any message saved after the load is delivered on
// Events and any message already in Initial is not delivered again. Message
// events are emitted in thread order: one that arrives ahead of a missing
// predecessor triggers a reload of everything after the last delivered
// message, so reordered or lost broker deliveries do not leave gaps.
// The session is released by Close or when ctx ends.
func (s *Service) Watch(ctx context.Context, actor identity.Identity, complaintID string) (*Session, error) {
	if err := s.authorize(ctx, actor, complaintID); err != nil {
		return nil, err
	}

	sub, err := s.Live.Subscribe(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	initial, err := s.Store.GetMessages(ctx, complaintID)
	if err != nil {
		sub.Close()
		return nil, err
	}

	sess := &Session{
		Initial:     initial,
		complaintID: complaintID,
		store:       s.Store,
		logger:      s.Logger,
		out:         make(chan models.LiveEvent),
		done:        make(chan struct{}),
		sub:         sub,
	}
	if n := len(initial); n > 0 {
		sess.last = initial[n-1]
	}
	go sess.forward(ctx)
	return sess, nil
}

// Session is one viewer's gap-free view of a thread.
type Session struct {
	Initial []models.Message

	complaintID string
	store       storage.Storage
	logger      *slog.Logger
	// last is the newest message handed to the viewer so far.
	last models.Message

	out       chan models.LiveEvent
	done      chan struct{}
	sub       *chathub.Subscription
	closeOnce sync.Once
}

// Events yields live events after Initial. It is closed when the session
// ends; a viewer dropped for being slow must reload to resync.
func (s *Session) Events() <-chan models.LiveEvent {
	return s.out
}

// Close ends the session. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.sub.Close()
	})
}

func (s *Session) forward(ctx context.Context) {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.sub.Events():
			if !ok {
				return
			}
			if ev.Type != models.EventMessage || ev.Message == nil {
				if !s.emit(ev) {
					return
				}
				continue
			}
			if ev.Message.Seq <= s.last.Seq {
				// Already delivered, either in Initial or through a catch-up.
				continue
			}
			if ev.Message.Seq > s.last.Seq+1 {
				if !s.catchUp(ctx) {
					return
				}
				continue
			}
			if !s.emitMessage(*ev.Message) {
				return
			}
		}
	}
}

// catchUp emits every stored message after the last delivered one, in
// thread order. It returns false when the session should end.
func (s *Session) catchUp(ctx context.Context) bool {
	msgs, err := s.store.GetMessages(ctx, s.complaintID)
	if err != nil {
		s.logger.Warn("live catch-up failed, closing session", "complaint_id", s.complaintID, "error", err)
		return false
	}
	for _, m := range msgs {
		if m.Seq <= s.last.Seq {
			continue
		}
		if !s.emitMessage(m) {
			return false
		}
	}
	return true
}

func (s *Session) emitMessage(m models.Message) bool {
	if !s.emit(models.MessageEvent(m)) {
		return false
	}
	s.last = m
	return true
}

func (s *Session) emit(ev models.LiveEvent) bool {
	select {
	case s.out <- ev:
		return true
	case <-s.done:
		return false
	}
}
