package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Complaint is a ticket submitted by a student and triaged by staff.
// Column names match the existing complaints table.
type Complaint struct {
	// ID is the opaque UUID of the complaint.
	ID string `gorm:"primaryKey;type:text" json:"id"`
	// ComplaintNumber is the human-readable reference, immutable after creation.
	ComplaintNumber string   `gorm:"type:text;uniqueIndex;not null" json:"complaint_number"`
	Title           string   `gorm:"type:text;not null" json:"title"`
	Description     string   `gorm:"type:text;not null" json:"description"`
	Category        Category `gorm:"type:text;not null;index" json:"category"`
	Priority        Priority `gorm:"type:text;not null;default:Medium" json:"priority"`
	Status          Status   `gorm:"type:text;not null;default:Open;index" json:"status"`
	// UserID is the submitting student. Never changes.
	UserID string `gorm:"type:text;not null;index" json:"user_id"`
	// AssignedTo is the staff or admin member handling the complaint.
	AssignedTo *string `gorm:"type:text;index" json:"assigned_to"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	// ResolvedAt is stamped on the first move into Resolved or Closed and
	// never cleared afterwards.
	ResolvedAt *time.Time `json:"resolved_at"`

	// Version guards against stale writes; every update increments it.
	Version int `gorm:"not null;default:1" json:"version"`
}

func (Complaint) TableName() string { return "complaints" }

// BeforeCreate fills the identifiers and defaults of a new complaint.
func (c *Complaint) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if c.ComplaintNumber == "" {
		c.ComplaintNumber = NewComplaintNumber(c.CreatedAt, c.ID)
	}
	if c.Status == "" {
		c.Status = StatusOpen
	}
	if c.Priority == "" {
		c.Priority = PriorityMedium
	}
	if c.Version == 0 {
		c.Version = 1
	}
	return
}

// NewComplaintNumber builds a reference like CMP-20261018-3F9A1C from the
// creation date and the first hex digits of the complaint id.
func NewComplaintNumber(createdAt time.Time, id string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return fmt.Sprintf("CMP-%s-%s", createdAt.UTC().Format("20060102"), suffix)
}

// IsAssigned reports whether anyone handles the complaint.
func (c *Complaint) IsAssigned() bool {
	return c.AssignedTo != nil && *c.AssignedTo != ""
}

// Attachment is metadata about a file uploaded with a complaint. The blob
// itself lives in external storage.
type Attachment struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id"`
	ComplaintID string    `gorm:"type:text;not null;index" json:"complaint_id"`
	FileName    string    `gorm:"type:text;not null" json:"file_name"`
	FilePath    string    `gorm:"type:text;not null" json:"file_path"`
	FileSize    int64     `gorm:"not null" json:"file_size"`
	MimeType    string    `gorm:"type:text;not null" json:"mime_type"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Attachment) TableName() string { return "complaint_attachments" }

func (a *Attachment) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return
}
