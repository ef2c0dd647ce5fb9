// Package store defines the persistence boundary of the review workflow.
// Backends live in subpackages: postgres (gorm), dynamo (DynamoDB), memory.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/xelth-com/sealflow/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict is returned when a conditional write lost a race
	ErrConflict = errors.New("store: conditional write failed")
	// ErrDuplicate is returned when a unique key already exists
	ErrDuplicate = errors.New("store: duplicate record")
)

// ReviewAppend is a conditional transition. It only applies while the stored
// application still has ExpectedStatus and ExpectedReviewCount reviews.
type ReviewAppend struct {
	ExpectedStatus      models.ApplicationStatus
	ExpectedReviewCount int
	NewStatus           models.ApplicationStatus
	NewStep             int
	Review              models.Review
	At                  time.Time
}

// ApplicationStore persists applications and their review history
type ApplicationStore interface {
	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	FindByVerificationCode(ctx context.Context, code string) (*models.Application, error)
	ListApplications(ctx context.Context, filter ApplicationFilter) ([]models.Application, error)
	// AppendReview applies a transition atomically or returns ErrConflict
	AppendReview(ctx context.Context, id string, a ReviewAppend) error
	// AttachSealed sets the sealed reference once; a second call returns ErrConflict
	AttachSealed(ctx context.Context, id string, sealed models.SealedDocument) error
	// Resubmit replaces the document of a rejected application and resets it
	// to submitted. Reviews are kept. ErrConflict if it is not rejected.
	Resubmit(ctx context.Context, id string, doc models.DocumentRef, at time.Time) error
}

// ApplicationFilter narrows ListApplications. Zero value lists everything.
type ApplicationFilter struct {
	OwnerID string
	Status  models.ApplicationStatus
}

// ActivityStore persists audit entries. Entries are never updated.
type ActivityStore interface {
	AppendActivity(ctx context.Context, entry *models.ActivityLog) error
	ListActivity(ctx context.Context, q ActivityQuery) ([]models.ActivityLog, error)
}

// ActivityQuery selects audit entries, newest first. At most one of ActorID
// and ActionType is expected to be set.
type ActivityQuery struct {
	ActorID    string
	ActionType models.ActivityType
	Limit      int // 0 means no limit
}

// UserStore persists accounts
type UserStore interface {
	CreateUser(ctx context.Context, user *models.UserAuth) error
	GetUser(ctx context.Context, id string) (*models.UserAuth, error)
	GetUserByEmail(ctx context.Context, email string) (*models.UserAuth, error)
	ListUsersByRole(ctx context.Context, roles ...models.Role) ([]models.UserAuth, error)
	UpdateUser(ctx context.Context, user *models.UserAuth) error
	DeleteUser(ctx context.Context, id string) error
}
