// Package assignment hands complaints to staff members and tells them about it.
package assignment

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/complaint"
	"complaintdesk/backend/internal/identity"
	"complaintdesk/backend/internal/lifecycle"
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/notify"
	"complaintdesk/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Assignee is a user who may be assigned complaints.
type Assignee = storage.Member

// Service is the assignment engine.
type Service struct {
	Storage    storage.Storage
	Complaints *complaint.Service
	Notifier   notify.Notifier
	Logger     *slog.Logger
}

func NewService(s storage.Storage, complaints *complaint.Service, n notify.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Storage: s, Complaints: complaints, Notifier: n, Logger: logger}
}

// ListEligibleAssignees returns every staff member and admin with their
// display name and contact details.
func (s *Service) ListEligibleAssignees(ctx context.Context) ([]Assignee, error) {
	return s.Storage.ListUsersByRoles(ctx, models.RoleStaff, models.RoleAdmin)
}

// Result reports the assignment and the notification separately. Warning is
// set, wrapping apperr.ErrNotificationFailed, when the complaint was
// assigned but the assignee could not be told.
type Result struct {
	Complaint *models.Complaint `json:"complaint"`
	Assignee  Assignee          `json:"assignee"`
	Notified  bool              `json:"notified"`
	Warning   error             `json:"-"`
}

// AssignAndNotify assigns complaintID to staffID and notifies the assignee.
// A failed notification never undoes the assignment.
func (s *Service) AssignAndNotify(ctx context.Context, actor identity.Identity, complaintID, staffID string) (*Result, error) {
	guard := lifecycle.CanAssign(lifecycle.AssignContext{ComplaintID: complaintID, AssigneeID: staffID, ActorRole: actor.Role})
	if err := guard.Error(); err != nil {
		return nil, err
	}

	assignee, err := s.eligible(ctx, staffID)
	if err != nil {
		return nil, err
	}

	c, err := s.Complaints.Mutate(ctx, actor, complaintID, func(c *models.Complaint) ([]models.FieldChange, error) {
		return s.Complaints.Machine.Assign(c, staffID, actor.Role)
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("complaint assigned", "complaint_id", c.ID, "assignee_id", staffID, "actor_id", actor.UserID)

	res := &Result{Complaint: c, Assignee: assignee}
	err = s.Notifier.NotifyAssignment(ctx, notify.AssignmentNotice{
		RecipientAddress: assignee.Email,
		RecipientName:    assignee.FullName,
		RecipientChatID:  assignee.TelegramChatID,
		ComplaintNumber:  c.ComplaintNumber,
		ComplaintTitle:   c.Title,
		ComplaintID:      c.ID,
	})
	switch {
	case err == nil:
		res.Notified = true
	case errors.Is(err, notify.ErrNoRecipient):
		s.Logger.Info("assignee has no contact address, notice skipped", "assignee_id", staffID)
	default:
		s.Logger.Warn("assignment notice failed", "complaint_id", c.ID, "assignee_id", staffID, "error", err)
		res.Warning = fmt.Errorf("%w: %v", apperr.ErrNotificationFailed, err)
	}
	return res, nil
}

func (s *Service) eligible(ctx context.Context, staffID string) (Assignee, error) {
	all, err := s.ListEligibleAssignees(ctx)
	if err != nil {
		return Assignee{}, err
	}
	for _, a := range all {
		if a.UserID == staffID {
			return a, nil
		}
	}
	return Assignee{}, fmt.Errorf("user %s is not staff: %w", staffID, apperr.ErrInvalidAssignee)
}
