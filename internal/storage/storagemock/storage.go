// Package storagemock provides a testify mock of storage.Storage shared by
// the service packages' tests.
package storagemock

import (
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/storage"
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a comprehensive mock implementation of the storage.Storage interface.
// It uses testify/mock to allow flexible expectation setting in tests.
type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

// Complaint operations
func (m *MockStorage) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockStorage) GetComplaintByID(ctx context.Context, id string) (*models.Complaint, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// Hand out a copy so callers mutating it do not alter the fixture.
	c := *args.Get(0).(*models.Complaint)
	return &c, args.Error(1)
}

func (m *MockStorage) ListComplaints(ctx context.Context, f storage.ComplaintFilter) ([]models.Complaint, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Complaint), args.Error(1)
}

func (m *MockStorage) UpdateComplaint(ctx context.Context, c *models.Complaint) error {
	args := m.Called(ctx, c)
	if args.Error(0) == nil {
		c.Version++
	}
	return args.Error(0)
}

// Message operations
func (m *MockStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) GetMessages(ctx context.Context, complaintID string) ([]models.Message, error) {
	args := m.Called(ctx, complaintID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

// Attachment operations
func (m *MockStorage) SaveAttachment(ctx context.Context, a *models.Attachment) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockStorage) ListAttachments(ctx context.Context, complaintID string) ([]models.Attachment, error) {
	args := m.Called(ctx, complaintID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

// User operations
func (m *MockStorage) GetUserRole(ctx context.Context, userID string) (models.Role, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Role), args.Error(1)
}

func (m *MockStorage) SetUserRole(ctx context.Context, userID string, role models.Role) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

func (m *MockStorage) ListUsersByRoles(ctx context.Context, roles ...models.Role) ([]storage.Member, error) {
	args := m.Called(ctx, roles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Member), args.Error(1)
}

func (m *MockStorage) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockStorage) SaveProfile(ctx context.Context, p *models.Profile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// Audit operations
func (m *MockStorage) SaveHistory(ctx context.Context, entries []models.ComplaintHistory) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockStorage) ListHistory(ctx context.Context, complaintID string) ([]models.ComplaintHistory, error) {
	args := m.Called(ctx, complaintID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ComplaintHistory), args.Error(1)
}

func (m *MockStorage) SaveBulkOperation(ctx context.Context, op *models.BulkOperation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

// Transaction runs fn against the mock itself; expectations set on the
// mock apply inside the transaction too.
func (m *MockStorage) Transaction(ctx context.Context, fn func(tx storage.Storage) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m)
}
