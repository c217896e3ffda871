package lifecycle

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/models"
	"time"
)

// Machine applies guarded changes to complaints in memory. Persisting the
// result is the caller's job.
type Machine struct {
	Policy Policy
	Now    func() time.Time
}

// NewMachine creates a machine using the wall clock.
func NewMachine(p Policy) *Machine {
	return &Machine{Policy: p, Now: func() time.Time { return time.Now().UTC() }}
}

// SetStatus moves c to next. Entering Resolved or Closed stamps ResolvedAt
// the first time only; it is never cleared. UpdatedAt is always bumped.
func (m *Machine) SetStatus(c *models.Complaint, next models.Status, actor models.Role) ([]models.FieldChange, error) {
	res := CanSetStatus(StatusContext{
		ComplaintID: c.ID,
		Current:     c.Status,
		Next:        next,
		ActorRole:   actor,
		Policy:      m.Policy,
	})
	if err := res.Error(); err != nil {
		return nil, err
	}

	now := m.Now()
	var changes []models.FieldChange
	if c.Status != next {
		changes = append(changes, models.FieldChange{Field: models.FieldStatus, Old: c.Status, New: next})
		c.Status = next
	}
	if next.IsResolution() && c.ResolvedAt == nil {
		stamp := now
		c.ResolvedAt = &stamp
		changes = append(changes, models.FieldChange{Field: models.FieldResolvedAt, Old: nil, New: stamp})
	}
	c.UpdatedAt = now
	return changes, nil
}

// SetPriority changes the priority of c.
func (m *Machine) SetPriority(c *models.Complaint, next models.Priority, actor models.Role) ([]models.FieldChange, error) {
	res := CanSetPriority(PriorityContext{ComplaintID: c.ID, Next: next, ActorRole: actor})
	if err := res.Error(); err != nil {
		return nil, err
	}

	var changes []models.FieldChange
	if c.Priority != next {
		changes = append(changes, models.FieldChange{Field: models.FieldPriority, Old: c.Priority, New: next})
		c.Priority = next
	}
	c.UpdatedAt = m.Now()
	return changes, nil
}

// Assign hands c to assigneeID. The status is left untouched.
func (m *Machine) Assign(c *models.Complaint, assigneeID string, actor models.Role) ([]models.FieldChange, error) {
	res := CanAssign(AssignContext{ComplaintID: c.ID, AssigneeID: assigneeID, ActorRole: actor})
	if err := res.Error(); err != nil {
		return nil, err
	}

	var changes []models.FieldChange
	if !c.IsAssigned() || *c.AssignedTo != assigneeID {
		var old any
		if c.AssignedTo != nil {
			old = *c.AssignedTo
		}
		changes = append(changes, models.FieldChange{Field: models.FieldAssignedTo, Old: old, New: assigneeID})
		id := assigneeID
		c.AssignedTo = &id
	}
	c.UpdatedAt = m.Now()
	return changes, nil
}

// Apply dispatches a named field change; used by the bulk engine.
func (m *Machine) Apply(c *models.Complaint, field, value string, actor models.Role) ([]models.FieldChange, error) {
	switch field {
	case models.FieldStatus:
		s, err := models.ParseStatus(value)
		if err != nil {
			return nil, err
		}
		return m.SetStatus(c, s, actor)
	case models.FieldPriority:
		p, err := models.ParsePriority(value)
		if err != nil {
			return nil, err
		}
		return m.SetPriority(c, p, actor)
	}
	return nil, deny(apperr.ErrInvalidEnumValue, "unknown field %q", field).Error()
}
