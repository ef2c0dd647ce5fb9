// Package access holds the per-endpoint authorization rules that sit in
// front of the review workflow. Every function is pure.
package access

import (
	"fmt"

	"github.com/xelth-com/sealflow/internal/apperr"
	"github.com/xelth-com/sealflow/internal/identity"
	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/workflow"
)

// CanView reports whether p may see app. Applicants see their own only.
func CanView(p identity.Principal, app *models.Application) bool {
	if p.Role.CanReview() {
		return true
	}
	return app.OwnerID == p.ID
}

// RequireView is CanView as an error-returning check
func RequireView(p identity.Principal, app *models.Application) error {
	if !CanView(p, app) {
		return apperr.Forbidden("You can only view your own applications")
	}
	return nil
}

// DownloadKey returns the object key p may download for app, or "" when p
// has no download access. Reviewers get the original at any stage. The
// owner gets the sealed copy once approved, or the original when sealing
// was skipped or failed.
func DownloadKey(p identity.Principal, app *models.Application) string {
	if p.Role.CanReview() {
		return app.Document.Key
	}
	if app.OwnerID != p.ID || app.Status != models.StatusApproved {
		return ""
	}
	if app.IsSealed() {
		return app.SignedKey
	}
	return app.Document.Key
}

// RequireDownload is DownloadKey as an error-returning check
func RequireDownload(p identity.Principal, app *models.Application) (string, error) {
	if err := RequireView(p, app); err != nil {
		return "", err
	}
	key := DownloadKey(p, app)
	if key == "" {
		return "", apperr.Forbidden("Document is available for download once the application is approved")
	}
	return key, nil
}

// RequireReviewer fails fast for principals with no review capability at all.
// Stage matching happens in the workflow against the fresh record.
func RequireReviewer(p identity.Principal) error {
	if !p.Role.CanReview() {
		return apperr.Forbidden("Only reviewers can review applications")
	}
	return nil
}

// CanReview reports whether p could act on app right now
func CanReview(p identity.Principal, app *models.Application) bool {
	if !p.Role.CanReview() {
		return false
	}
	_, rej := workflow.Decide(app, workflow.Actor{ID: p.ID, Name: p.DisplayName(), Role: p.Role},
		workflow.ActionApprove, "", app.UpdatedAt)
	return rej == nil
}

// ManageableRoles lists the account roles actor may create and delete
func ManageableRoles(actor models.Role) []models.Role {
	switch actor {
	case models.RoleAdmin:
		return []models.Role{models.RoleJuniorReviewer, models.RoleComplianceOfficer}
	case models.RoleComplianceOfficer:
		return []models.Role{models.RoleJuniorReviewer}
	}
	return nil
}

// CanManageAccounts reports whether actor may manage any accounts
func CanManageAccounts(actor models.Role) bool {
	return len(ManageableRoles(actor)) > 0
}

// RequireManage checks that actor may create or delete an account of target
func RequireManage(actor, target models.Role) error {
	allowed := ManageableRoles(actor)
	if len(allowed) == 0 {
		return apperr.Forbidden("You do not have permission to manage accounts")
	}
	for _, r := range allowed {
		if r == target {
			return nil
		}
	}
	return apperr.Forbidden(fmt.Sprintf("A %s cannot manage %s accounts", actor.Label(), target.Label()))
}

// RequireAdmin guards admin-only surfaces such as the audit log
func RequireAdmin(p identity.Principal) error {
	if p.Role != models.RoleAdmin {
		return apperr.Forbidden("Admin access required")
	}
	return nil
}
