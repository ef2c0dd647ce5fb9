// Package review is the access-controlled application workflow: it loads
// fresh state, asks the workflow for a decision, persists it conditionally
// and runs the best-effort side effects (sealing, audit).
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xelth-com/sealflow/internal/access"
	"github.com/xelth-com/sealflow/internal/apperr"
	"github.com/xelth-com/sealflow/internal/audit"
	"github.com/xelth-com/sealflow/internal/identity"
	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/sealing"
	"github.com/xelth-com/sealflow/internal/storage"
	"github.com/xelth-com/sealflow/internal/store"
	"github.com/xelth-com/sealflow/internal/workflow"
)

// Options tune the service
type Options struct {
	PresignTTL        time.Duration
	AllowResubmission bool
}

// Service implements the application endpoints
type Service struct {
	apps   store.ApplicationStore
	blobs  storage.BlobStore
	sealer sealing.Sealer
	audit  *audit.Logger
	log    *zap.Logger
	opts   Options
	now    func() time.Time
}

// NewService wires the workflow to its collaborators
func NewService(apps store.ApplicationStore, blobs storage.BlobStore, sealer sealing.Sealer,
	auditLog *audit.Logger, log *zap.Logger, opts Options) *Service {
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = time.Hour
	}
	return &Service{
		apps:   apps,
		blobs:  blobs,
		sealer: sealer,
		audit:  auditLog,
		log:    log,
		opts:   opts,
		now:    time.Now,
	}
}

// ResubmissionEnabled reports whether rejected applications may be resubmitted
func (s *Service) ResubmissionEnabled() bool {
	return s.opts.AllowResubmission
}

// Result is the outcome of a successful review
type Result struct {
	Application      *models.Application
	NewStatus        models.ApplicationStatus
	CurrentStep      int
	VerificationCode string
	Message          string
}

// SubmitReview runs one review action. A lost conditional write is retried
// once from a fresh read; a second loss is reported as Conflict.
func (s *Service) SubmitReview(ctx context.Context, p identity.Principal, id, actionName, comment string) (*Result, error) {
	action, err := workflow.ParseAction(actionName)
	if err != nil {
		return nil, apperr.BadRequest(`Invalid action. Must be "approved" or "rejected"`)
	}
	if err := access.RequireReviewer(p); err != nil {
		return nil, err
	}
	actor := workflow.Actor{ID: p.ID, Name: p.DisplayName(), Role: p.Role}

	for attempt := 0; attempt < 2; attempt++ {
		app, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}

		d, rej := workflow.Decide(app, actor, action, comment, s.now())
		if rej != nil {
			return nil, s.rejectionError(id, p, rej)
		}

		err = s.apps.AppendReview(ctx, id, store.ReviewAppend{
			ExpectedStatus:      d.FromStatus,
			ExpectedReviewCount: d.PriorReviewCount,
			NewStatus:           d.NewStatus,
			NewStep:             d.NewStep,
			Review:              d.Review,
			At:                  d.Review.Timestamp,
		})
		switch {
		case err == nil:
			return s.committed(ctx, p, app, d), nil
		case errors.Is(err, store.ErrConflict):
			s.log.Info("Review lost a concurrent write, retrying from fresh state",
				zap.String("application", id), zap.String("principal", p.ID), zap.Int("attempt", attempt+1))
			continue
		case errors.Is(err, store.ErrNotFound):
			return nil, apperr.NotFound("Application not found")
		default:
			return nil, apperr.Collaborator("Failed to review application", err)
		}
	}

	return nil, apperr.New(apperr.KindConflict, "Application was updated by another reviewer. Refresh and try again")
}

// committed runs the side effects of a persisted decision
func (s *Service) committed(ctx context.Context, p identity.Principal, before *models.Application, d workflow.Decision) *Result {
	app := workflow.Apply(before, d)
	s.audit.Record(ctx, audit.ReviewEntry(p, app, d))

	s.log.Info("Application reviewed",
		zap.String("application", app.ID),
		zap.String("principal", p.ID),
		zap.String("from", string(d.FromStatus)),
		zap.String("to", string(d.NewStatus)))

	res := &Result{Application: app, NewStatus: d.NewStatus, CurrentStep: d.NewStep}
	switch {
	case d.NewStatus == models.StatusRejected:
		res.Message = "Application rejected"
	case d.Seal:
		if s.seal(ctx, p, app) {
			res.VerificationCode = app.VerificationCode
			res.Message = "Application approved and document verified"
		} else {
			res.Message = "Application approved successfully"
		}
	default:
		res.Message = "Application approved successfully"
	}
	return res
}

// seal attaches a sealed copy to app. Failure leaves the approval intact.
func (s *Service) seal(ctx context.Context, p identity.Principal, app *models.Application) bool {
	reviewers := sealing.Reviewers{ComplianceOfficerName: p.DisplayName(), JuniorReviewerName: "Unknown"}
	if junior, ok := workflow.JuniorApproval(app.Reviews); ok {
		reviewers.JuniorReviewerName = junior.ReviewerName
	}

	out := sealing.TrySeal(ctx, s.sealer, app, reviewers)
	switch {
	case out.Skipped:
		s.log.Info("Document format not sealable, skipping stamp",
			zap.String("application", app.ID), zap.String("file", app.Document.FileName))
		return false
	case out.Err != nil:
		s.log.Warn("Sealing failed, approval kept without verification code",
			zap.String("application", app.ID), zap.Error(out.Err))
		return false
	}

	if err := s.apps.AttachSealed(context.WithoutCancel(ctx), app.ID, *out.Sealed); err != nil {
		s.log.Warn("Failed to attach sealed document",
			zap.String("application", app.ID), zap.String("key", out.Sealed.Key), zap.Error(err))
		return false
	}
	app.ApplySealed(*out.Sealed)
	s.audit.Record(ctx, audit.SealEntry(p, app, *out.Sealed))
	return true
}

func (s *Service) rejectionError(id string, p identity.Principal, rej *workflow.Rejection) error {
	switch rej.Reason {
	case workflow.ReasonNotFound:
		return apperr.NotFound(rej.Message)
	case workflow.ReasonAlreadyFinalized:
		return apperr.New(apperr.KindAlreadyFinalized, rej.Message)
	case workflow.ReasonDuplicateReview:
		return apperr.New(apperr.KindDuplicateReview, rej.Message)
	case workflow.ReasonWrongStage:
		return apperr.New(apperr.KindWrongStage, rej.Message)
	}
	s.log.Error("Application in invalid workflow state",
		zap.String("application", id), zap.String("principal", p.ID), zap.String("reason", rej.String()))
	return apperr.New(apperr.KindInvalidState, rej.Message)
}

func (s *Service) load(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.apps.GetApplication(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Application not found")
		}
		return nil, apperr.Collaborator("Failed to fetch application", fmt.Errorf("get %s: %w", id, err))
	}
	return app, nil
}
