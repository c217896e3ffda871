// Package bulk applies one status or priority change to many complaints as a
// single all-or-nothing batch. Every item goes through the lifecycle machine,
// so a batch obeys exactly the rules of a single edit.
package bulk

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

	"github.com/google/uuid"
)

// Publisher pushes complaint updates to live viewers.
type Publisher interface {
	Publish(ctx context.Context, ev models.LiveEvent) error
}

// Request is one user-requested batch.
type Request struct {
	IDs   []string `json:"ids"`
	Field string   `json:"field"`
	Value string   `json:"value"`
}

// Result of a committed batch.
type Result struct {
	OperationID string             `json:"operation_id"`
	Affected    int                `json:"affected"`
	Complaints  []models.Complaint `json:"complaints"`
}

type Service struct {
	Storage storage.Storage
	Machine *lifecycle.Machine
	Live    Publisher
	Logger  *slog.Logger
}

func NewService(s storage.Storage, m *lifecycle.Machine, live Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Storage: s, Machine: m, Live: live, Logger: logger}
}

// Validate checks a request without touching the store and returns its ids
// with blanks and duplicates removed, in request order.
func Validate(actor identity.Identity, req Request) ([]string, error) {
	ids := dedupe(req.IDs)
	if len(ids) == 0 || req.Field == "" || req.Value == "" {
		return nil, fmt.Errorf("select complaints, a field and a value: %w", apperr.ErrEmptyBatch)
	}
	switch req.Field {
	case models.FieldStatus:
		if _, err := models.ParseStatus(req.Value); err != nil {
			return nil, err
		}
	case models.FieldPriority:
		if _, err := models.ParsePriority(req.Value); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("field %q cannot be bulk edited: %w", req.Field, apperr.ErrInvalidEnumValue)
	}
	if !actor.IsStaff() {
		return nil, fmt.Errorf("role %q cannot bulk edit complaints: %w", actor.Role, apperr.ErrPermissionDenied)
	}
	return ids, nil
}

// Execute applies req in one transaction. If any complaint is missing,
// refuses the transition or fails to save, nothing is written and the
// error names that complaint.
func (s *Service) Execute(ctx context.Context, actor identity.Identity, req Request) (*Result, error) {
	ids, err := Validate(actor, req)
	if err != nil {
		return nil, err
	}

	op := &models.BulkOperation{
		ID:           uuid.New().String(),
		ActorID:      actor.UserID,
		Field:        req.Field,
		Value:        req.Value,
		ComplaintIDs: models.IDList(ids),
	}
	updated := make([]models.Complaint, 0, len(ids))

	err = s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		for _, id := range ids {
			c, err := tx.GetComplaintByID(ctx, id)
			if err != nil {
				return err
			}
			changes, err := s.Machine.Apply(c, req.Field, req.Value, actor.Role)
			if err != nil {
				return fmt.Errorf("complaint %s: %w", id, err)
			}
			if err := tx.UpdateComplaint(ctx, c); err != nil {
				return err
			}
			if err := tx.SaveHistory(ctx, models.HistoryEntries(c, actor.UserID, changes, &op.ID)); err != nil {
				return err
			}
			updated = append(updated, *c)
		}
		op.Affected = len(updated)
		return tx.SaveBulkOperation(ctx, op)
	})
	if err != nil {
		s.Logger.Warn("bulk update rolled back", "actor_id", actor.UserID, "field", req.Field, "value", req.Value, "error", err)
		return nil, err
	}

	s.Logger.Info("bulk update committed", "operation_id", op.ID, "actor_id", actor.UserID,
		"field", req.Field, "value", req.Value, "affected", op.Affected)
	if s.Live != nil {
		for i := range updated {
			if err := s.Live.Publish(ctx, models.ComplaintEvent(updated[i])); err != nil {
				s.Logger.Warn("failed to publish complaint update", "complaint_id", updated[i].ID, "error", err)
			}
		}
	}
	return &Result{OperationID: op.ID, Affected: op.Affected, Complaints: updated}, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
