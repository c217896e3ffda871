package complaint_test

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/complaint"
	"complaintdesk/backend/internal/identity"
	"complaintdesk/backend/internal/lifecycle"
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/storage"
	"complaintdesk/backend/internal/storage/storagemock"
	"complaintdesk/backend/internal/storage/storagetest"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	student = identity.Identity{UserID: "student-1", Role: models.RoleStudent}
	other   = identity.Identity{UserID: "student-2", Role: models.RoleStudent}
	staff   = identity.Identity{UserID: "staff-1", Role: models.RoleStaff}
	admin   = identity.Identity{UserID: "admin-1", Role: models.RoleAdmin}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.LiveEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.LiveEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// stepClock returns t0, t0+1m, t0+2m, ...
func stepClock(t0 time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		t := t0.Add(time.Duration(n) * time.Minute)
		n++
		return t
	}
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*complaint.Service, *storage.Service, *recordingPublisher) {
	store := storagetest.New(t)
	machine := lifecycle.NewMachine(lifecycle.Policy{})
	machine.Now = stepClock(t0)
	pub := &recordingPublisher{}
	return complaint.NewService(store, machine, pub, nil), store, pub
}

func submit(t *testing.T, svc *complaint.Service) *models.Complaint {
	t.Helper()
	c, err := svc.Submit(context.Background(), student, complaint.NewComplaint{
		Title:       "Projector broken",
		Description: "Lecture hall 3 projector flickers",
		Category:    "Academics",
	})
	require.NoError(t, err)
	return c
}

func TestSubmit(t *testing.T) {
	svc, _, _ := newService(t)

	c := submit(t, svc)
	assert.NotEmpty(t, c.ID)
	assert.Regexp(t, `^CMP-\d{8}-[0-9A-F]{6}$`, c.ComplaintNumber)
	assert.Equal(t, models.StatusOpen, c.Status)
	assert.Equal(t, models.PriorityMedium, c.Priority)
	assert.Equal(t, student.UserID, c.UserID)
	assert.Nil(t, c.ResolvedAt)
	assert.Nil(t, c.AssignedTo)
}

func TestSubmit_Validation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, student, complaint.NewComplaint{Title: " ", Description: "x", Category: "Other"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = svc.Submit(ctx, student, complaint.NewComplaint{Title: "t", Description: "d", Category: "Parking"})
	assert.ErrorIs(t, err, apperr.ErrInvalidEnumValue)

	_, err = svc.Submit(ctx, student, complaint.NewComplaint{Title: "t", Description: "d", Category: "Other", Priority: "Urgent"})
	assert.ErrorIs(t, err, apperr.ErrInvalidEnumValue)
}

// Resolving stamps resolved_at once; reopening keeps it.
func TestSetStatus_ResolveThenReopenKeepsResolvedAt(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()
	c := submit(t, svc)

	resolved, err := svc.SetStatus(ctx, staff, c.ID, "Resolved")
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	t1 := *resolved.ResolvedAt

	reopened, err := svc.SetStatus(ctx, staff, c.ID, "Open")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, reopened.Status)
	require.NotNil(t, reopened.ResolvedAt)
	assert.True(t, t1.Equal(*reopened.ResolvedAt))
	assert.True(t, reopened.UpdatedAt.After(t1))

	stored, err := svc.Get(ctx, student, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, stored.Status)
	require.NotNil(t, stored.ResolvedAt)
	assert.True(t, t1.Equal(*stored.ResolvedAt))

	require.Len(t, pub.events, 2)
	assert.Equal(t, models.EventComplaint, pub.events[1].Type)
	assert.Equal(t, models.StatusOpen, pub.events[1].Complaint.Status)
}

func TestSetStatus_WritesHistory(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	c := submit(t, svc)

	_, err := svc.SetStatus(ctx, staff, c.ID, "Closed")
	require.NoError(t, err)

	hist, err := svc.History(ctx, staff, c.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, models.FieldStatus, hist[0].Field)
	assert.Equal(t, staff.UserID, hist[0].ActorID)
	var newStatus string
	require.NoError(t, json.Unmarshal(hist[0].NewValue, &newStatus))
	assert.Equal(t, "Closed", newStatus)
	assert.Equal(t, models.FieldResolvedAt, hist[1].Field)
	assert.Nil(t, hist[0].BulkOperationID)
}

func TestSetStatus_Rejections(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()
	c := submit(t, svc)

	_, err := svc.SetStatus(ctx, student, c.ID, "Resolved")
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = svc.SetStatus(ctx, staff, c.ID, "Done")
	assert.ErrorIs(t, err, apperr.ErrInvalidEnumValue)

	_, err = svc.SetStatus(ctx, staff, "missing", "Resolved")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.SetStatus(ctx, staff, c.ID, "Resolved")
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, staff, c.ID, "In Progress")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	stored, err := svc.Get(ctx, staff, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, stored.Status)
	assert.Len(t, pub.events, 1)
}

func TestSetStatus_ClosedTerminalPolicy(t *testing.T) {
	svc, _, _ := newService(t)
	svc.Machine.Policy.ClosedTerminal = true
	ctx := context.Background()
	c := submit(t, svc)

	_, err := svc.SetStatus(ctx, staff, c.ID, "Closed")
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, staff, c.ID, "Open")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestSetPriority(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	c := submit(t, svc)

	up, err := svc.SetPriority(ctx, admin, c.ID, "High")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, up.Priority)

	down, err := svc.SetPriority(ctx, staff, c.ID, "Low")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityLow, down.Priority)
	assert.Equal(t, models.StatusOpen, down.Status)

	_, err = svc.SetPriority(ctx, student, c.ID, "High")
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestSetStatus_StaleWriteIsRejected(t *testing.T) {
	store := new(storagemock.MockStorage)
	pub := &recordingPublisher{}
	svc := complaint.NewService(store, lifecycle.NewMachine(lifecycle.Policy{}), pub, nil)

	store.On("Transaction", mock.Anything).Return(nil)
	store.On("GetComplaintByID", mock.Anything, "c1").
		Return(&models.Complaint{ID: "c1", Status: models.StatusOpen, Version: 3}, nil)
	store.On("UpdateComplaint", mock.Anything, mock.AnythingOfType("*models.Complaint")).
		Return(apperr.ErrConcurrentModification)

	_, err := svc.SetStatus(context.Background(), staff, "c1", "In Progress")
	assert.ErrorIs(t, err, apperr.ErrConcurrentModification)
	store.AssertNotCalled(t, "SaveHistory", mock.Anything, mock.Anything)
	assert.Empty(t, pub.events)
}

func TestGetAndList_Visibility(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	mine := submit(t, svc)
	theirs, err := svc.Submit(ctx, other, complaint.NewComplaint{Title: "Noise", Description: "Loud music", Category: "Hostel"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, student, theirs.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	got, err := svc.Get(ctx, staff, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, theirs.ID, got.ID)

	list, err := svc.List(ctx, student, complaint.ListQuery{AssignedTo: "staff-1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	all, err := svc.List(ctx, staff, complaint.ListQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	hostel, err := svc.List(ctx, staff, complaint.ListQuery{Category: "Hostel"})
	require.NoError(t, err)
	require.Len(t, hostel, 1)
	assert.Equal(t, theirs.ID, hostel[0].ID)

	_, err = svc.List(ctx, staff, complaint.ListQuery{Status: "Pending"})
	assert.ErrorIs(t, err, apperr.ErrInvalidEnumValue)
}

func TestList_StaffQueue(t *testing.T) {
	store := new(storagemock.MockStorage)
	svc := complaint.NewService(store, nil, nil, nil)
	store.On("ListComplaints", mock.Anything, storage.ComplaintFilter{AssignedTo: "staff-1", Status: models.StatusOpen}).
		Return([]models.Complaint{{ID: "c1"}}, nil)

	out, err := svc.List(context.Background(), staff, complaint.ListQuery{AssignedTo: "staff-1", Status: "Open"})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	store.AssertExpectations(t)
}

func TestAttachments(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	c := submit(t, svc)

	_, err := svc.AddAttachment(ctx, student, c.ID, complaint.AttachmentMeta{
		FileName: "photo.jpg", FilePath: "complaints/photo.jpg", FileSize: 2048, MimeType: "image/jpeg",
	})
	require.NoError(t, err)

	_, err = svc.AddAttachment(ctx, other, c.ID, complaint.AttachmentMeta{FileName: "x", FilePath: "y"})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = svc.AddAttachment(ctx, student, c.ID, complaint.AttachmentMeta{FileName: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	list, err := svc.Attachments(ctx, staff, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "photo.jpg", list[0].FileName)

	_, err = svc.Attachments(ctx, other, c.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}
