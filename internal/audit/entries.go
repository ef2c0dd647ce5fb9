package audit

import (
	"fmt"

	"github.com/xelth-com/sealflow/internal/identity"
	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/workflow"
)

// ReviewEntry describes a successful workflow decision. A junior approval
// is "reviewed", a final approval "approved", any rejection "rejected".
func ReviewEntry(actor identity.Principal, app *models.Application, d workflow.Decision) Entry {
	action, verb := models.ActivityApplicationReviewed, "approved"
	switch d.NewStatus {
	case models.StatusApproved:
		action, verb = models.ActivityApplicationApproved, "gave final approval to"
	case models.StatusRejected:
		action, verb = models.ActivityApplicationRejected, "rejected"
	}

	details := fmt.Sprintf("%s %s application %s for %s", actor.DisplayName(), verb, app.DocumentType, app.FullName)
	if d.Review.Comment != "" {
		details += ": " + d.Review.Comment
	}

	return Entry{
		Actor:      actor,
		Action:     action,
		TargetType: models.TargetApplication,
		TargetID:   app.ID,
		TargetName: app.FullName,
		Details:    details,
		Metadata: map[string]interface{}{
			"fromStatus":   string(d.FromStatus),
			"newStatus":    string(d.NewStatus),
			"step":         d.NewStep,
			"reviewerRole": string(d.Review.ReviewerRole),
		},
	}
}

// SealEntry describes a sealed document
func SealEntry(actor identity.Principal, app *models.Application, sealed models.SealedDocument) Entry {
	return Entry{
		Actor:      actor,
		Action:     models.ActivityDocumentSigned,
		TargetType: models.TargetDocument,
		TargetID:   app.ID,
		TargetName: app.Document.FileName,
		Details:    fmt.Sprintf("Verification stamp applied with code %s", sealed.VerificationCode),
		Metadata: map[string]interface{}{
			"signedKey":        sealed.Key,
			"verificationCode": sealed.VerificationCode,
			"digest":           sealed.Digest,
		},
	}
}

// AccountEntry describes creating or deleting a reviewer account
func AccountEntry(actor identity.Principal, target *models.UserAuth, created bool) Entry {
	op := "deleted"
	if created {
		op = "created"
	}
	return Entry{
		Actor:      actor,
		Action:     models.ActivityUserRoleChanged,
		TargetType: models.TargetUser,
		TargetID:   target.ID,
		TargetName: target.DisplayName(),
		Details:    fmt.Sprintf("%s %s %s account %s", actor.DisplayName(), op, target.Role.Label(), target.Email),
		Metadata: map[string]interface{}{
			"operation": op,
			"role":      string(target.Role),
		},
	}
}

// PromotionEntry describes raising an existing account to admin
func PromotionEntry(actor identity.Principal, target *models.UserAuth, from models.Role) Entry {
	return Entry{
		Actor:      actor,
		Action:     models.ActivityUserRoleChanged,
		TargetType: models.TargetUser,
		TargetID:   target.ID,
		TargetName: target.DisplayName(),
		Details:    fmt.Sprintf("%s promoted %s from %s to %s", actor.DisplayName(), target.Email, from.Label(), target.Role.Label()),
		Metadata: map[string]interface{}{
			"operation": "promoted",
			"fromRole":  string(from),
			"role":      string(target.Role),
		},
	}
}
