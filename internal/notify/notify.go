// Package notify delivers assignment notices to staff members.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNoRecipient means the notice carries no address this notifier can use.
// Callers treat it as "nothing to send", not as a failure.
var ErrNoRecipient = errors.New("recipient has no contact address")

// AssignmentNotice identifies the complaint and the staff member it was
// handed to.
type AssignmentNotice struct {
	RecipientAddress string
	RecipientName    string
	RecipientChatID  int64
	ComplaintNumber  string
	ComplaintTitle   string
	ComplaintID      string
}

// Notifier sends one notice. It is a one-shot call; retries are the
// caller's decision.
type Notifier interface {
	NotifyAssignment(ctx context.Context, n AssignmentNotice) error
}

// LogNotifier only logs notices. It is the development default.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) NotifyAssignment(ctx context.Context, n AssignmentNotice) error {
	if n.RecipientAddress == "" {
		return ErrNoRecipient
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "assignment notice",
		"to", n.RecipientAddress,
		"name", n.RecipientName,
		"complaint_id", n.ComplaintID,
		"number", n.ComplaintNumber,
	)
	return nil
}
