package storage

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Storage is the persistence boundary of the complaint core.
type Storage interface {
	CreateComplaint(ctx context.Context, c *models.Complaint) error
	GetComplaintByID(ctx context.Context, id string) (*models.Complaint, error)
	ListComplaints(ctx context.Context, f ComplaintFilter) ([]models.Complaint, error)
	UpdateComplaint(ctx context.Context, c *models.Complaint) error

	SaveMessage(ctx context.Context, m *models.Message) error
	GetMessages(ctx context.Context, complaintID string) ([]models.Message, error)

	SaveAttachment(ctx context.Context, a *models.Attachment) error
	ListAttachments(ctx context.Context, complaintID string) ([]models.Attachment, error)

	GetUserRole(ctx context.Context, userID string) (models.Role, error)
	SetUserRole(ctx context.Context, userID string, role models.Role) error
	ListUsersByRoles(ctx context.Context, roles ...models.Role) ([]Member, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	SaveProfile(ctx context.Context, p *models.Profile) error

	SaveHistory(ctx context.Context, entries []models.ComplaintHistory) error
	ListHistory(ctx context.Context, complaintID string) ([]models.ComplaintHistory, error)
	SaveBulkOperation(ctx context.Context, op *models.BulkOperation) error

	// Transaction runs fn against a Storage bound to one database
	// transaction. Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Storage) error) error
}

// ComplaintFilter narrows ListComplaints. Zero fields are ignored.
type ComplaintFilter struct {
	UserID     string
	AssignedTo string
	Status     models.Status
	Category   models.Category
	Limit      int
}

// Member is a user with their role and contact details.
type Member struct {
	UserID         string      `json:"user_id"`
	Role           models.Role `json:"role"`
	FullName       string      `json:"full_name"`
	Email          string      `json:"email,omitempty"`
	TelegramChatID int64       `json:"telegram_chat_id,omitempty"`
}

// Service implements Storage on top of GORM.
type Service struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{DB: db, Logger: logger}
}

// Open connects to PostgreSQL. Driver errors such as unique violations are
// translated into gorm sentinels.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	return db, nil
}

// AutoMigrate creates or updates every table the service uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Complaint{},
		&models.Message{},
		&models.Attachment{},
		&models.Profile{},
		&models.UserRole{},
		&models.ComplaintHistory{},
		&models.BulkOperation{},
	)
}

func (s *Service) db(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx)
}

// translate maps gorm and driver errors onto apperr kinds.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case apperr.IsKind(err):
		return err
	}
	return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
}

// maxNumberAttempts bounds retries when a generated complaint number is
// already taken.
const maxNumberAttempts = 5

// CreateComplaint inserts c. Ids and complaint numbers are generated; on a
// collision both are regenerated and the insert retried.
func (s *Service) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		err = s.db(ctx).Create(c).Error
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		s.Logger.Warn("complaint number taken, retrying", "complaint_number", c.ComplaintNumber)
		c.ID = ""
		c.ComplaintNumber = ""
	}
	if err != nil {
		s.Logger.Error("failed to save complaint", "user_id", c.UserID, "error", err)
		return translate(err)
	}
	return nil
}

func (s *Service) GetComplaintByID(ctx context.Context, id string) (*models.Complaint, error) {
	var c models.Complaint
	if err := s.db(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("complaint %s: %w", id, apperr.ErrNotFound)
		}
		return nil, translate(err)
	}
	return &c, nil
}

// ListComplaints returns complaints newest first.
func (s *Service) ListComplaints(ctx context.Context, f ComplaintFilter) ([]models.Complaint, error) {
	q := s.db(ctx).Model(&models.Complaint{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.AssignedTo != "" {
		q = q.Where("assigned_to = ?", f.AssignedTo)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []models.Complaint
	if err := q.Order("created_at desc").Find(&out).Error; err != nil {
		s.Logger.Error("failed to list complaints", "error", err)
		return nil, translate(err)
	}
	return out, nil
}

// UpdateComplaint writes the mutable fields of c if nobody else updated the
// row since c was read, then increments c.Version.
func (s *Service) UpdateComplaint(ctx context.Context, c *models.Complaint) error {
	res := s.db(ctx).Model(&models.Complaint{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(map[string]interface{}{
			"status":      c.Status,
			"priority":    c.Priority,
			"assigned_to": c.AssignedTo,
			"updated_at":  c.UpdatedAt,
			"resolved_at": c.ResolvedAt,
			"version":     c.Version + 1,
		})
	if res.Error != nil {
		s.Logger.Error("failed to update complaint", "complaint_id", c.ID, "error", res.Error)
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db(ctx).Model(&models.Complaint{}).Where("id = ?", c.ID).Count(&count).Error; err != nil {
			return translate(err)
		}
		if count == 0 {
			return fmt.Errorf("complaint %s: %w", c.ID, apperr.ErrNotFound)
		}
		return fmt.Errorf("complaint %s changed since version %d: %w", c.ID, c.Version, apperr.ErrConcurrentModification)
	}
	c.Version++
	return nil
}

// maxSeqAttempts bounds retries when two writers race for the same thread slot.
const maxSeqAttempts = 5

// SaveMessage appends m to its complaint's thread. It assigns the next
// sequence number and keeps created_at non-decreasing along the sequence,
// so ordering by (created_at, seq) equals insertion order.
func (s *Service) SaveMessage(ctx context.Context, m *models.Message) error {
	var err error
	for attempt := 0; attempt < maxSeqAttempts; attempt++ {
		err = s.db(ctx).Transaction(func(tx *gorm.DB) error {
			var last models.Message
			if err := tx.Where("complaint_id = ?", m.ComplaintID).
				Order("seq desc").Limit(1).Find(&last).Error; err != nil {
				return err
			}

			m.Seq = last.Seq + 1
			if m.CreatedAt.IsZero() {
				m.CreatedAt = time.Now().UTC()
			}
			if m.CreatedAt.Before(last.CreatedAt) {
				m.CreatedAt = last.CreatedAt
			}
			return tx.Create(m).Error
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		s.Logger.Warn("thread slot taken, retrying", "complaint_id", m.ComplaintID, "seq", m.Seq)
	}
	if err != nil {
		s.Logger.Error("failed to save message", "complaint_id", m.ComplaintID, "error", err)
		return translate(err)
	}
	return nil
}

// GetMessages returns the whole thread in order.
func (s *Service) GetMessages(ctx context.Context, complaintID string) ([]models.Message, error) {
	var out []models.Message
	if err := s.db(ctx).Where("complaint_id = ?", complaintID).
		Order("created_at asc").Order("seq asc").Find(&out).Error; err != nil {
		s.Logger.Error("failed to get thread", "complaint_id", complaintID, "error", err)
		return nil, translate(err)
	}
	return out, nil
}

func (s *Service) SaveAttachment(ctx context.Context, a *models.Attachment) error {
	return translate(s.db(ctx).Create(a).Error)
}

func (s *Service) ListAttachments(ctx context.Context, complaintID string) ([]models.Attachment, error) {
	var out []models.Attachment
	if err := s.db(ctx).Where("complaint_id = ?", complaintID).Order("created_at asc").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Service) GetUserRole(ctx context.Context, userID string) (models.Role, error) {
	var r models.UserRole
	if err := s.db(ctx).Where("user_id = ?", userID).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("role for user %s: %w", userID, apperr.ErrNotFound)
		}
		return "", translate(err)
	}
	return r.Role, nil
}

// SetUserRole replaces the single active role of a user.
func (s *Service) SetUserRole(ctx context.Context, userID string, role models.Role) error {
	return translate(s.db(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.UserRole
		err := tx.Where("user_id = ?", userID).First(&r).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.UserRole{UserID: userID, Role: role}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&r).Update("role", role).Error
	}))
}

// ListUsersByRoles returns every user holding one of roles, enriched with
// profile details, ordered by name.
func (s *Service) ListUsersByRoles(ctx context.Context, roles ...models.Role) ([]Member, error) {
	var out []Member
	err := s.db(ctx).Table("user_roles").
		Select("user_roles.user_id AS user_id, user_roles.role AS role, " +
			"COALESCE(profiles.full_name, '') AS full_name, " +
			"COALESCE(profiles.email, '') AS email, " +
			"COALESCE(profiles.telegram_chat_id, 0) AS telegram_chat_id").
		Joins("LEFT JOIN profiles ON profiles.id = user_roles.user_id").
		Where("user_roles.role IN ?", roles).
		Order("full_name asc").Order("user_roles.user_id asc").
		Scan(&out).Error
	if err != nil {
		s.Logger.Error("failed to list users by role", "error", err)
		return nil, translate(err)
	}
	return out, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db(ctx).Where("id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("profile %s: %w", userID, apperr.ErrNotFound)
		}
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Service) SaveProfile(ctx context.Context, p *models.Profile) error {
	return translate(s.db(ctx).Save(p).Error)
}

// MergeProfile applies the non-zero fields of patch to the stored profile
// for patch.ID, creating the profile if there is none yet.
func (s *Service) MergeProfile(ctx context.Context, patch models.Profile) (*models.Profile, error) {
	var out *models.Profile
	err := s.Transaction(ctx, func(tx Storage) error {
		p, err := tx.GetProfile(ctx, patch.ID)
		if errors.Is(err, apperr.ErrNotFound) {
			p = &models.Profile{ID: patch.ID}
		} else if err != nil {
			return err
		}
		if patch.FullName != "" {
			p.FullName = patch.FullName
		}
		if patch.Email != "" {
			p.Email = patch.Email
		}
		if patch.TelegramChatID != 0 {
			p.TelegramChatID = patch.TelegramChatID
		}
		out = p
		return tx.SaveProfile(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BootstrapAdmin makes userID an admin, but only while no admin exists.
// It is how a fresh deployment gets its first admin.
func (s *Service) BootstrapAdmin(ctx context.Context, userID string) error {
	return translate(s.db(ctx).Transaction(func(tx *gorm.DB) error {
		var admins int64
		if err := tx.Model(&models.UserRole{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error; err != nil {
			return err
		}
		if admins > 0 {
			return fmt.Errorf("an admin already exists: %w", apperr.ErrPermissionDenied)
		}
		var r models.UserRole
		err := tx.Where("user_id = ?", userID).First(&r).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.UserRole{UserID: userID, Role: models.RoleAdmin}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&r).Update("role", models.RoleAdmin).Error
	}))
}

func (s *Service) SaveHistory(ctx context.Context, entries []models.ComplaintHistory) error {
	if len(entries) == 0 {
		return nil
	}
	return translate(s.db(ctx).Create(&entries).Error)
}

func (s *Service) ListHistory(ctx context.Context, complaintID string) ([]models.ComplaintHistory, error) {
	var out []models.ComplaintHistory
	if err := s.db(ctx).Where("complaint_id = ?", complaintID).
		Order("created_at asc").Order("id asc").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *Service) SaveBulkOperation(ctx context.Context, op *models.BulkOperation) error {
	return translate(s.db(ctx).Create(op).Error)
}

func (s *Service) Transaction(ctx context.Context, fn func(tx Storage) error) error {
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Service{DB: tx, Logger: s.Logger})
	})
	return translate(err)
}
