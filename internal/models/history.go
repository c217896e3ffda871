package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Audited complaint fields.
const (
	FieldStatus     = "status"
	FieldPriority   = "priority"
	FieldAssignedTo = "assigned_to"
	FieldResolvedAt = "resolved_at"
)

// ComplaintHistory is an immutable audit entry for one field change.
type ComplaintHistory struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ComplaintID string         `gorm:"type:text;not null;index" json:"complaint_id"`
	ActorID     string         `gorm:"type:text;not null" json:"actor_id"`
	Field       string         `gorm:"type:text;not null" json:"field"`
	OldValue    datatypes.JSON `json:"old_value"`
	NewValue    datatypes.JSON `json:"new_value"`
	// BulkOperationID links the entry to the batch that produced it, if any.
	BulkOperationID *string   `gorm:"type:text;index" json:"bulk_operation_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (ComplaintHistory) TableName() string { return "complaint_history" }

// FieldChange is one field mutation produced by the lifecycle machine.
type FieldChange struct {
	Field string
	Old   any
	New   any
}

// NewHistory converts a change into an audit row.
func NewHistory(complaintID, actorID string, ch FieldChange, at time.Time) ComplaintHistory {
	return ComplaintHistory{
		ComplaintID: complaintID,
		ActorID:     actorID,
		Field:       ch.Field,
		OldValue:    jsonValue(ch.Old),
		NewValue:    jsonValue(ch.New),
		CreatedAt:   at,
	}
}

// HistoryEntries converts the changes applied to c into audit rows stamped
// with c's update time. bulkID links them to a batch, if any.
func HistoryEntries(c *Complaint, actorID string, changes []FieldChange, bulkID *string) []ComplaintHistory {
	out := make([]ComplaintHistory, 0, len(changes))
	for _, ch := range changes {
		h := NewHistory(c.ID, actorID, ch, c.UpdatedAt)
		h.BulkOperationID = bulkID
		out = append(out, h)
	}
	return out
}

func jsonValue(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}

// BulkOperation records one user-requested batch mutation.
type BulkOperation struct {
	ID           string    `gorm:"primaryKey;type:text" json:"id"`
	ActorID      string    `gorm:"type:text;not null" json:"actor_id"`
	Field        string    `gorm:"type:text;not null" json:"field"`
	Value        string    `gorm:"type:text;not null" json:"value"`
	ComplaintIDs IDList    `json:"complaint_ids"`
	Affected     int       `json:"affected"`
	CreatedAt    time.Time `json:"created_at"`
}

func (BulkOperation) TableName() string { return "bulk_operations" }

func (b *BulkOperation) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return
}

// IDList is a list of ids stored as a PostgreSQL text[] column. Other
// dialects keep the array literal in a text column.
type IDList pq.StringArray

func (IDList) GormDataType() string { return "text" }

func (IDList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

func (l IDList) Value() (driver.Value, error) {
	return pq.StringArray(l).Value()
}

func (l *IDList) Scan(src any) error {
	return (*pq.StringArray)(l).Scan(src)
}
