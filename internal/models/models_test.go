package models_test

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/models"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestComplaintBeforeCreate_Defaults verifies ids, number and defaults are filled in.
func TestComplaintBeforeCreate_Defaults(t *testing.T) {
	// Arrange
	c := &models.Complaint{
		Title:       "Wi-Fi down",
		Description: "No signal in block B",
		Category:    models.CategoryTechnical,
		UserID:      "student-1",
	}

	// Act
	err := c.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	// Assert
	require.NoError(t, err)
	_, parseErr := uuid.Parse(c.ID)
	assert.NoError(t, parseErr, "ID must be a valid UUID string")
	assert.Equal(t, models.StatusOpen, c.Status)
	assert.Equal(t, models.PriorityMedium, c.Priority)
	assert.Equal(t, 1, c.Version)
	assert.Nil(t, c.ResolvedAt)
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)
	assert.Regexp(t, regexp.MustCompile(`^CMP-\d{8}-[0-9A-F]{6}$`), c.ComplaintNumber)
}

// TestComplaintBeforeCreate_PreservesExisting verifies the hook never overwrites set fields.
func TestComplaintBeforeCreate_PreservesExisting(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := &models.Complaint{
		ID:              "c-fixed",
		ComplaintNumber: "CMP-LEGACY-1",
		Status:          models.StatusInProgress,
		Priority:        models.PriorityHigh,
		CreatedAt:       created,
	}

	require.NoError(t, c.BeforeCreate(nil))

	assert.Equal(t, "c-fixed", c.ID)
	assert.Equal(t, "CMP-LEGACY-1", c.ComplaintNumber)
	assert.Equal(t, models.StatusInProgress, c.Status)
	assert.Equal(t, models.PriorityHigh, c.Priority)
	assert.Equal(t, created, c.CreatedAt)
}

func TestNewComplaintNumber(t *testing.T) {
	at := time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)
	got := models.NewComplaintNumber(at, "3f9a1c2b-0000-4000-8000-000000000000")
	assert.Equal(t, "CMP-20261018-3F9A1C", got)
}

// TestBeforeCreate_UniqueIDs verifies unique UUIDs for many rows.
func TestBeforeCreate_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		m := &models.Message{ComplaintID: "c1", UserID: "u1", Message: "hi"}
		require.NoError(t, m.BeforeCreate(nil))
		assert.NotContains(t, seen, m.ID, "Each message should have a unique ID")
		seen[m.ID] = true
	}

	r := &models.UserRole{UserID: "u1", Role: models.RoleStaff}
	require.NoError(t, r.BeforeCreate(nil))
	assert.NotEmpty(t, r.ID)
}

// TestStructTags guards the column names shared with the existing schema.
func TestStructTags(t *testing.T) {
	complaintType := reflect.TypeOf(models.Complaint{})

	for field, column := range map[string]string{
		"ComplaintNumber": "complaint_number",
		"AssignedTo":      "assigned_to",
		"ResolvedAt":      "resolved_at",
		"UserID":          "user_id",
	} {
		f, found := complaintType.FieldByName(field)
		require.True(t, found, "%s field should exist", field)
		assert.Equal(t, column, f.Tag.Get("json"))
	}

	numberField, _ := complaintType.FieldByName("ComplaintNumber")
	assert.Contains(t, numberField.Tag.Get("gorm"), "uniqueIndex")

	ids := models.IDList{"a", "b,c"}
	v, err := ids.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a","b,c"}`, v, "ComplaintIDs should use the PostgreSQL array literal")

	var back models.IDList
	require.NoError(t, back.Scan(v))
	assert.Equal(t, ids, back)

	assert.Equal(t, "complaint_messages", models.Message{}.TableName())
	assert.Equal(t, "complaints", models.Complaint{}.TableName())
}

func TestParseEnums(t *testing.T) {
	tests := []struct {
		name  string
		parse func(string) error
		ok    []string
		bad   []string
	}{
		{
			name:  "status",
			parse: func(v string) error { _, err := models.ParseStatus(v); return err },
			ok:    []string{"Open", "In Progress", "Resolved", "Closed"},
			bad:   []string{"", "open", "Done"},
		},
		{
			name:  "priority",
			parse: func(v string) error { _, err := models.ParsePriority(v); return err },
			ok:    []string{"Low", "Medium", "High"},
			bad:   []string{"", "Critical"},
		},
		{
			name:  "category",
			parse: func(v string) error { _, err := models.ParseCategory(v); return err },
			ok:    []string{"Technical", "Academics", "Hostel", "Canteen", "Library", "Admin", "Other"},
			bad:   []string{"Sports"},
		},
		{
			name:  "role",
			parse: func(v string) error { _, err := models.ParseRole(v); return err },
			ok:    []string{"student", "staff", "admin"},
			bad:   []string{"root"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.ok {
				assert.NoError(t, tt.parse(v), v)
			}
			for _, v := range tt.bad {
				assert.ErrorIs(t, tt.parse(v), apperr.ErrInvalidEnumValue, v)
			}
		})
	}
}

func TestRoleIsStaff(t *testing.T) {
	assert.False(t, models.RoleStudent.IsStaff())
	assert.True(t, models.RoleStaff.IsStaff())
	assert.True(t, models.RoleAdmin.IsStaff())
}

func TestNewHistory_EncodesValues(t *testing.T) {
	at := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	h := models.NewHistory("c1", "staff-1", models.FieldChange{
		Field: models.FieldStatus, Old: models.StatusOpen, New: models.StatusResolved,
	}, at)

	assert.Equal(t, "c1", h.ComplaintID)
	assert.Equal(t, `"Open"`, string(h.OldValue))
	assert.Equal(t, `"Resolved"`, string(h.NewValue))
	assert.Equal(t, at, h.CreatedAt)
}
