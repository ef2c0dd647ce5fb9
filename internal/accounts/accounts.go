// Package accounts registers applicants, authenticates logins and lets
// admins and compliance officers manage reviewer accounts.
package accounts

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xelth-com/sealflow/internal/access"
	"github.com/xelth-com/sealflow/internal/apperr"
	"github.com/xelth-com/sealflow/internal/audit"
	"github.com/xelth-com/sealflow/internal/identity"
	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/store"
	"github.com/xelth-com/sealflow/internal/utils"
)

const minPasswordLength = 8

// Service manages accounts
type Service struct {
	users    store.UserStore
	resolver *identity.Resolver
	audit    *audit.Logger
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates the account service
func NewService(users store.UserStore, resolver *identity.Resolver, auditLog *audit.Logger, log *zap.Logger) *Service {
	return &Service{users: users, resolver: resolver, audit: auditLog, log: log, now: time.Now}
}

// Credentials is a sign-up or account creation request
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
}

func (c Credentials) validate() (string, error) {
	email := strings.ToLower(strings.TrimSpace(c.Email))
	if email == "" || c.Password == "" {
		return "", apperr.BadRequest("Email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperr.BadRequest("Invalid email address")
	}
	if len(c.Password) < minPasswordLength {
		return "", apperr.BadRequest("Password must be at least 8 characters")
	}
	return email, nil
}

// Register creates an applicant account
func (s *Service) Register(ctx context.Context, c Credentials) (*models.UserAuth, error) {
	email, err := c.validate()
	if err != nil {
		return nil, err
	}
	user, err := s.create(ctx, email, c.Password, c.Name, models.RoleUser, "")
	if err != nil {
		return nil, err
	}
	s.log.Info("User registered", zap.String("user", user.ID))
	return user, nil
}

// Authenticate checks email and password and stamps the login time
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.UserAuth, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthenticated("Invalid credentials")
		}
		return nil, apperr.Collaborator("Failed to fetch user", err)
	}
	if !user.IsActive || !utils.CheckPasswordHash(password, user.Password) {
		return nil, apperr.Unauthenticated("Invalid credentials")
	}

	now := s.now().UTC()
	user.LastLogin = &now
	if err := s.users.UpdateUser(ctx, user); err != nil {
		s.log.Warn("Failed to record last login", zap.String("user", user.ID), zap.Error(err))
	}
	return user, nil
}

// ListManaged returns the accounts p may manage, newest first
func (s *Service) ListManaged(ctx context.Context, p identity.Principal) ([]models.UserAuth, error) {
	roles := access.ManageableRoles(p.Role)
	if len(roles) == 0 {
		return nil, apperr.Forbidden("You do not have permission to manage accounts")
	}
	users, err := s.users.ListUsersByRole(ctx, roles...)
	if err != nil {
		return nil, apperr.Collaborator("Failed to fetch users", err)
	}
	if users == nil {
		users = []models.UserAuth{}
	}
	return users, nil
}

// CreateReviewer creates a reviewer account. A compliance officer may only
// create junior reviewers and the role defaults to that when omitted.
func (s *Service) CreateReviewer(ctx context.Context, p identity.Principal, c Credentials) (*models.UserAuth, error) {
	if !access.CanManageAccounts(p.Role) {
		return nil, apperr.Forbidden("You do not have permission to manage accounts")
	}
	email, err := c.validate()
	if err != nil {
		return nil, err
	}

	role := models.RoleJuniorReviewer
	if c.Role != "" {
		if role, err = models.ParseRole(c.Role); err != nil {
			return nil, apperr.BadRequest("Invalid role. Must be junior_reviewer or compliance_officer")
		}
	}
	if err := access.RequireManage(p.Role, role); err != nil {
		return nil, err
	}

	user, err := s.create(ctx, email, c.Password, c.Name, role, p.ID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.AccountEntry(p, user, true))
	s.log.Info("Reviewer account created",
		zap.String("user", user.ID), zap.String("role", string(role)), zap.String("by", p.ID))
	return user, nil
}

// DeleteReviewer removes a reviewer account and drops its cached role
func (s *Service) DeleteReviewer(ctx context.Context, p identity.Principal, id string) error {
	if !access.CanManageAccounts(p.Role) {
		return apperr.Forbidden("You do not have permission to manage accounts")
	}
	if id == p.ID {
		return apperr.BadRequest("You cannot delete your own account")
	}

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Collaborator("Failed to fetch user", err)
	}
	if err := access.RequireManage(p.Role, user.Role); err != nil {
		return err
	}

	if err := s.users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Collaborator("Failed to delete user", err)
	}
	s.resolver.Forget(ctx, id)
	s.audit.Record(ctx, audit.AccountEntry(p, user, false))
	s.log.Info("Reviewer account deleted",
		zap.String("user", id), zap.String("role", string(user.Role)), zap.String("by", p.ID))
	return nil
}

func (s *Service) create(ctx context.Context, email, password, name string, role models.Role, createdBy string) (*models.UserAuth, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to hash password", err)
	}
	now := s.now().UTC()
	user := &models.UserAuth{
		ID:        uuid.New().String(),
		Email:     email,
		Password:  hash,
		Name:      strings.TrimSpace(name),
		Role:      role,
		CreatedBy: createdBy,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.BadRequest("An account with this email already exists")
		}
		return nil, apperr.Collaborator("Failed to create user", err)
	}
	return user, nil
}
