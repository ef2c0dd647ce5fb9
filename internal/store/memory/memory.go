// Package memory is an in-process store used for tests and STORE_BACKEND=memory.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/store"
)

// Store implements the application, activity and user stores
type Store struct {
	mu       sync.RWMutex
	apps     map[string]*models.Application
	activity []models.ActivityLog
	users    map[string]*models.UserAuth
}

// New creates an empty store
func New() *Store {
	return &Store{
		apps:  make(map[string]*models.Application),
		users: make(map[string]*models.UserAuth),
	}
}

var (
	_ store.ApplicationStore = (*Store)(nil)
	_ store.ActivityStore    = (*Store)(nil)
	_ store.UserStore        = (*Store)(nil)
)

func (s *Store) CreateApplication(ctx context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; ok {
		return store.ErrDuplicate
	}
	c := app.Clone()
	c.ReviewCount = len(c.Reviews)
	s.apps[app.ID] = c
	return nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return app.Clone(), nil
}

func (s *Store) FindByVerificationCode(ctx context.Context, code string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, app := range s.apps {
		if app.VerificationCode != "" && app.VerificationCode == code {
			return app.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListApplications(ctx context.Context, filter store.ApplicationFilter) ([]models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Application, 0, len(s.apps))
	for _, app := range s.apps {
		if filter.OwnerID != "" && app.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		out = append(out, *app.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) AppendReview(ctx context.Context, id string, a store.ReviewAppend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return store.ErrNotFound
	}
	if app.Status != a.ExpectedStatus || len(app.Reviews) != a.ExpectedReviewCount {
		return store.ErrConflict
	}
	review := a.Review
	review.ApplicationID = id
	review.Seq = a.ExpectedReviewCount
	app.Reviews = append(app.Reviews, review)
	app.ReviewCount = len(app.Reviews)
	app.Status = a.NewStatus
	app.CurrentStep = a.NewStep
	app.UpdatedAt = a.At
	return nil
}

func (s *Store) AttachSealed(ctx context.Context, id string, sealed models.SealedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return store.ErrNotFound
	}
	if app.IsSealed() {
		return store.ErrConflict
	}
	app.ApplySealed(sealed)
	app.UpdatedAt = sealed.SealedAt
	return nil
}

func (s *Store) Resubmit(ctx context.Context, id string, doc models.DocumentRef, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return store.ErrNotFound
	}
	if app.Status != models.StatusRejected {
		return store.ErrConflict
	}
	app.Document = doc
	app.Status = models.StatusSubmitted
	app.CurrentStep = models.StepJunior
	app.UpdatedAt = at
	return nil
}

func (s *Store) AppendActivity(ctx context.Context, entry *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, *entry)
	return nil
}

func (s *Store) ListActivity(ctx context.Context, q store.ActivityQuery) ([]models.ActivityLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ActivityLog
	for _, e := range s.activity {
		if q.ActorID != "" && e.ActorID != q.ActorID {
			continue
		}
		if q.ActionType != "" && e.ActionType != q.ActionType {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.UserAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return store.ErrDuplicate
		}
	}
	c := *user
	s.users[user.ID] = &c
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.UserAuth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.UserAuth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsersByRole(ctx context.Context, roles ...models.Role) ([]models.UserAuth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.UserAuth
	for _, u := range s.users {
		for _, r := range roles {
			if u.Role == r {
				out = append(out, *u)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.UserAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return store.ErrNotFound
	}
	c := *user
	s.users[user.ID] = &c
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}
