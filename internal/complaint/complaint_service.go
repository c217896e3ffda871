// Package complaint provides the single-complaint operations: submission,
// visibility-scoped reads and status and priority changes.
package complaint

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/identity"
	"complaintdesk/backend/internal/lifecycle"
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/storage"
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Publisher pushes complaint updates to live viewers.
type Publisher interface {
	Publish(ctx context.Context, ev models.LiveEvent) error
}

// Service handles the business logic for complaints.
type Service struct {
	Storage storage.Storage
	Machine *lifecycle.Machine
	Live    Publisher
	Logger  *slog.Logger
}

// NewService creates a new complaint service.
func NewService(s storage.Storage, m *lifecycle.Machine, live Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Storage: s, Machine: m, Live: live, Logger: logger}
}

// NewComplaint is the submitter's input.
type NewComplaint struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority,omitempty"`
}

// Submit files a complaint owned by actor.
func (s *Service) Submit(ctx context.Context, actor identity.Identity, in NewComplaint) (*models.Complaint, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return nil, fmt.Errorf("title and description are required: %w", apperr.ErrInvalidInput)
	}
	category, err := models.ParseCategory(in.Category)
	if err != nil {
		return nil, err
	}
	priority := models.PriorityMedium
	if in.Priority != "" {
		if priority, err = models.ParsePriority(in.Priority); err != nil {
			return nil, err
		}
	}

	c := &models.Complaint{
		Title:       title,
		Description: description,
		Category:    category,
		Priority:    priority,
		Status:      models.StatusOpen,
		UserID:      actor.UserID,
	}
	if err := s.Storage.CreateComplaint(ctx, c); err != nil {
		return nil, err
	}
	s.Logger.Info("complaint submitted", "complaint_id", c.ID, "number", c.ComplaintNumber, "user_id", actor.UserID)
	return c, nil
}

// Get returns a complaint the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor identity.Identity, id string) (*models.Complaint, error) {
	c, err := s.Storage.GetComplaintByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canView(actor, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListQuery narrows List. Empty fields are ignored.
type ListQuery struct {
	Status     string
	Category   string
	AssignedTo string
	Limit      int
}

// List returns complaints newest first. Students only ever get their own;
// staff and admins see all and may filter by assignee.
func (s *Service) List(ctx context.Context, actor identity.Identity, q ListQuery) ([]models.Complaint, error) {
	f := storage.ComplaintFilter{Limit: q.Limit}
	if q.Status != "" {
		st, err := models.ParseStatus(q.Status)
		if err != nil {
			return nil, err
		}
		f.Status = st
	}
	if q.Category != "" {
		cat, err := models.ParseCategory(q.Category)
		if err != nil {
			return nil, err
		}
		f.Category = cat
	}
	if actor.IsStaff() {
		f.AssignedTo = q.AssignedTo
	} else {
		f.UserID = actor.UserID
	}
	return s.Storage.ListComplaints(ctx, f)
}

// SetStatus moves a complaint to a new status.
func (s *Service) SetStatus(ctx context.Context, actor identity.Identity, id, status string) (*models.Complaint, error) {
	next, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.Mutate(ctx, actor, id, func(c *models.Complaint) ([]models.FieldChange, error) {
		return s.Machine.SetStatus(c, next, actor.Role)
	})
}

// SetPriority changes a complaint's priority.
func (s *Service) SetPriority(ctx context.Context, actor identity.Identity, id, priority string) (*models.Complaint, error) {
	next, err := models.ParsePriority(priority)
	if err != nil {
		return nil, err
	}
	return s.Mutate(ctx, actor, id, func(c *models.Complaint) ([]models.FieldChange, error) {
		return s.Machine.SetPriority(c, next, actor.Role)
	})
}

// Mutate loads complaint id, applies fn and persists the result with its
// audit entries in one transaction, then notifies live viewers. A write
// racing another edit of the same complaint fails with
// ErrConcurrentModification.
func (s *Service) Mutate(ctx context.Context, actor identity.Identity, id string,
	fn func(c *models.Complaint) ([]models.FieldChange, error)) (*models.Complaint, error) {
	var updated *models.Complaint
	err := s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		c, err := tx.GetComplaintByID(ctx, id)
		if err != nil {
			return err
		}
		changes, err := fn(c)
		if err != nil {
			return err
		}
		if err := tx.UpdateComplaint(ctx, c); err != nil {
			return err
		}
		if err := tx.SaveHistory(ctx, models.HistoryEntries(c, actor.UserID, changes, nil)); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, updated)
	return updated, nil
}

func (s *Service) publish(ctx context.Context, c *models.Complaint) {
	if s.Live == nil {
		return
	}
	if err := s.Live.Publish(ctx, models.ComplaintEvent(*c)); err != nil {
		s.Logger.Warn("failed to publish complaint update", "complaint_id", c.ID, "error", err)
	}
}

// Attachments lists the attachment metadata of a complaint.
func (s *Service) Attachments(ctx context.Context, actor identity.Identity, id string) ([]models.Attachment, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.Storage.ListAttachments(ctx, id)
}

// AttachmentMeta describes a file already uploaded to the blob store.
type AttachmentMeta struct {
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

// AddAttachment records metadata of an uploaded file. Owners and staff may
// attach files.
func (s *Service) AddAttachment(ctx context.Context, actor identity.Identity, id string, meta AttachmentMeta) (*models.Attachment, error) {
	if strings.TrimSpace(meta.FileName) == "" || strings.TrimSpace(meta.FilePath) == "" {
		return nil, fmt.Errorf("file_name and file_path are required: %w", apperr.ErrInvalidInput)
	}
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	a := &models.Attachment{
		ComplaintID: id,
		FileName:    meta.FileName,
		FilePath:    meta.FilePath,
		FileSize:    meta.FileSize,
		MimeType:    meta.MimeType,
	}
	if err := s.Storage.SaveAttachment(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// History returns the audit trail of a complaint, oldest first.
func (s *Service) History(ctx context.Context, actor identity.Identity, id string) ([]models.ComplaintHistory, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.Storage.ListHistory(ctx, id)
}

func canView(actor identity.Identity, c *models.Complaint) error {
	return lifecycle.CanView(lifecycle.ViewContext{
		ComplaintID: c.ID,
		OwnerID:     c.UserID,
		ActorID:     actor.UserID,
		ActorRole:   actor.Role,
	}).Error()
}
