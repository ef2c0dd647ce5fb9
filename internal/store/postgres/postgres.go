// Package postgres implements the stores on gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/store"
)

// Store implements the application, activity and user stores on one database
type Store struct {
	db *gorm.DB
}

// New wraps an open gorm connection
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var (
	_ store.ApplicationStore = (*Store)(nil)
	_ store.ActivityStore    = (*Store)(nil)
	_ store.UserStore        = (*Store)(nil)
)

// Models lists the tables this store needs, for AutoMigrate
func Models() []interface{} {
	return []interface{}{
		&models.UserAuth{},
		&models.Application{},
		&models.Review{},
		&models.ActivityLog{},
	}
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrDuplicate
	}
	return err
}

func withReviews(db *gorm.DB) *gorm.DB {
	return db.Preload("Reviews", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	})
}

func (s *Store) CreateApplication(ctx context.Context, app *models.Application) error {
	app.ReviewCount = 0
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(app).Error; err != nil {
		return fmt.Errorf("create application: %w", translate(err))
	}
	return nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	var app models.Application
	if err := withReviews(s.db.WithContext(ctx)).First(&app, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

func (s *Store) FindByVerificationCode(ctx context.Context, code string) (*models.Application, error) {
	var app models.Application
	err := withReviews(s.db.WithContext(ctx)).
		Where("verification_code = ? AND verification_code <> ''", code).
		First(&app).Error
	if err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

func (s *Store) ListApplications(ctx context.Context, filter store.ApplicationFilter) ([]models.Application, error) {
	q := withReviews(s.db.WithContext(ctx)).Order("created_at DESC")
	if filter.OwnerID != "" {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var apps []models.Application
	if err := q.Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// AppendReview guards the update on status and review_count, then inserts the
// review row in the same transaction. The unique (application_id, seq) index
// backs the guard if two writers slip past it.
func (s *Store) AppendReview(ctx context.Context, id string, a store.ReviewAppend) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Application{}).
			Where("id = ? AND status = ? AND review_count = ?", id, a.ExpectedStatus, a.ExpectedReviewCount).
			Updates(map[string]interface{}{
				"status":       a.NewStatus,
				"current_step": a.NewStep,
				"review_count": gorm.Expr("review_count + 1"),
				"updated_at":   a.At,
			})
		if res.Error != nil {
			return fmt.Errorf("update application: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return store.ErrConflict
		}

		review := a.Review
		review.ID = 0
		review.ApplicationID = id
		review.Seq = a.ExpectedReviewCount
		if err := tx.Create(&review).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return store.ErrConflict
			}
			return fmt.Errorf("insert review: %w", err)
		}
		return nil
	})
}

func (s *Store) AttachSealed(ctx context.Context, id string, sealed models.SealedDocument) error {
	res := s.db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ? AND (signed_key IS NULL OR signed_key = '')", id).
		Updates(map[string]interface{}{
			"signed_key":        sealed.Key,
			"verification_code": sealed.VerificationCode,
			"signed_digest":     sealed.Digest,
			"signed_at":         sealed.SealedAt,
			"updated_at":        sealed.SealedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("attach sealed document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missingOr(ctx, id, store.ErrConflict)
	}
	return nil
}

func (s *Store) Resubmit(ctx context.Context, id string, doc models.DocumentRef, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ? AND status = ?", id, models.StatusRejected).
		Updates(map[string]interface{}{
			"status":             models.StatusSubmitted,
			"current_step":       models.StepJunior,
			"document_key":       doc.Key,
			"document_file_name": doc.FileName,
			"document_size":      doc.Size,
			"updated_at":         at,
		})
	if res.Error != nil {
		return fmt.Errorf("resubmit application: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missingOr(ctx, id, store.ErrConflict)
	}
	return nil
}

// missingOr distinguishes "no such row" from a failed guard
func (s *Store) missingOr(ctx context.Context, id string, err error) error {
	var count int64
	if e := s.db.WithContext(ctx).Model(&models.Application{}).Where("id = ?", id).Count(&count).Error; e != nil {
		return fmt.Errorf("check application: %w", e)
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) AppendActivity(ctx context.Context, entry *models.ActivityLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func (s *Store) ListActivity(ctx context.Context, q store.ActivityQuery) ([]models.ActivityLog, error) {
	tx := s.db.WithContext(ctx).Order("timestamp DESC")
	if q.ActorID != "" {
		tx = tx.Where("actor_id = ?", q.ActorID)
	}
	if q.ActionType != "" {
		tx = tx.Where("action_type = ?", q.ActionType)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var logs []models.ActivityLog
	if err := tx.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.UserAuth) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.UserAuth, error) {
	var user models.UserAuth
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.UserAuth, error) {
	var user models.UserAuth
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) ListUsersByRole(ctx context.Context, roles ...models.Role) ([]models.UserAuth, error) {
	var users []models.UserAuth
	if err := s.db.WithContext(ctx).Where("role IN ?", roles).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.UserAuth) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("update user: %w", translate(err))
	}
	return nil
}

// DeleteUser soft-deletes; the row stays for audit joins
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.UserAuth{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
