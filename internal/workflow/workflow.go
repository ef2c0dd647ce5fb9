// Package workflow is the review state machine. It decides whether a review
// action is legal and what state results; it never persists anything.
//
// Stage order is strict:
//
//	submitted/junior_review --approve--> compliance_review (step 2)
//	submitted/junior_review --reject---> rejected          (step 1)
//	compliance_review       --approve--> approved          (step 3, seal)
//	compliance_review       --reject---> rejected          (step 2)
//
// approved and rejected accept no further action.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/xelth-com/sealflow/internal/models"
)

// Action is a requested review action
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction accepts both the verb and the recorded form ("approved")
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved":
		return ActionApprove, nil
	case "reject", "rejected":
		return ActionReject, nil
	}
	return "", fmt.Errorf(`invalid action %q: must be "approved" or "rejected"`, s)
}

// Recorded is the review action stored for a
func (a Action) Recorded() models.ReviewAction {
	if a == ActionApprove {
		return models.ReviewApproved
	}
	return models.ReviewRejected
}

// Actor is the acting principal as seen by the state machine
type Actor struct {
	ID   string
	Name string
	Role models.Role
}

// Reason identifies why a transition was refused
type Reason int

const (
	ReasonNotFound Reason = iota + 1
	ReasonAlreadyFinalized
	ReasonDuplicateReview
	ReasonWrongStage
	ReasonInvalidState
)

func (r Reason) String() string {
	switch r {
	case ReasonNotFound:
		return "not_found"
	case ReasonAlreadyFinalized:
		return "already_finalized"
	case ReasonDuplicateReview:
		return "duplicate_review"
	case ReasonWrongStage:
		return "wrong_stage"
	case ReasonInvalidState:
		return "invalid_state"
	}
	return "unknown"
}

// Rejection is a refused transition. It is an ordinary outcome, not an error.
type Rejection struct {
	Reason  Reason
	Message string
}

func (r *Rejection) String() string {
	return r.Reason.String() + ": " + r.Message
}

// Decision is the result of a legal transition
type Decision struct {
	FromStatus models.ApplicationStatus
	NewStatus  models.ApplicationStatus
	NewStep    int
	// PriorReviewCount is the review count the decision was computed against.
	// Persistence must only succeed while the stored count still matches.
	PriorReviewCount int
	Review           models.Review
	// Seal is set when the transition reaches approved
	Seal bool
}

// IsFinal reports whether the decision ends the workflow
func (d Decision) IsFinal() bool {
	return d.NewStatus.IsTerminal()
}

type transition struct {
	status models.ApplicationStatus
	step   int
}

// stage describes who reviews at a status and where each action leads
type stage struct {
	reviewerRole models.Role
	approve      transition
	reject       transition
}

var juniorStage = stage{
	reviewerRole: models.RoleJuniorReviewer,
	approve:      transition{models.StatusComplianceReview, models.StepCompliance},
	reject:       transition{models.StatusRejected, models.StepJunior},
}

var complianceStage = stage{
	reviewerRole: models.RoleComplianceOfficer,
	approve:      transition{models.StatusApproved, models.StepCompleted},
	reject:       transition{models.StatusRejected, models.StepCompliance},
}

// stageFor returns the review stage of a non-terminal status
func stageFor(status models.ApplicationStatus) (stage, bool) {
	switch status {
	case models.StatusSubmitted, models.StatusJuniorReview:
		return juniorStage, true
	case models.StatusComplianceReview:
		return complianceStage, true
	}
	return stage{}, false
}

// StageRole returns the reviewer role recorded at status
func StageRole(status models.ApplicationStatus) (models.Role, bool) {
	st, ok := stageFor(status)
	return st.reviewerRole, ok
}

// CanActAt reports whether role may act on an application at status.
// Admin acts on behalf of either stage; the other roles only at their own.
func CanActAt(role models.Role, status models.ApplicationStatus) bool {
	st, ok := stageFor(status)
	if !ok {
		return false
	}
	return role == models.RoleAdmin || role == st.reviewerRole
}

// HasReviewed reports whether principalID already reviewed the application
func HasReviewed(app *models.Application, principalID string) bool {
	for _, r := range app.Reviews {
		if r.ReviewerID == principalID {
			return true
		}
	}
	return false
}

// Decide validates the request against the current application and computes
// the resulting state. Checks run in a fixed order: existence, terminal
// status, duplicate review (admin exempt), stage/role match.
func Decide(app *models.Application, actor Actor, action Action, comment string, now time.Time) (Decision, *Rejection) {
	if app == nil {
		return Decision{}, &Rejection{ReasonNotFound, "Application not found"}
	}

	if app.Status.IsTerminal() {
		return Decision{}, &Rejection{ReasonAlreadyFinalized,
			fmt.Sprintf("Application has already been %s and cannot be reviewed again", app.Status)}
	}

	if actor.Role != models.RoleAdmin && HasReviewed(app, actor.ID) {
		return Decision{}, &Rejection{ReasonDuplicateReview, "You have already reviewed this application"}
	}

	st, ok := stageFor(app.Status)
	if !ok {
		return Decision{}, &Rejection{ReasonInvalidState,
			fmt.Sprintf("Application has unknown status %q", app.Status)}
	}
	if !CanActAt(actor.Role, app.Status) {
		return Decision{}, &Rejection{ReasonWrongStage, wrongStageMessage(st, actor.Role)}
	}

	var next transition
	switch action {
	case ActionApprove:
		next = st.approve
	case ActionReject:
		next = st.reject
	default:
		return Decision{}, &Rejection{ReasonInvalidState, fmt.Sprintf("Unknown action %q", action)}
	}

	review := models.Review{
		ReviewerRole: st.reviewerRole,
		ReviewerID:   actor.ID,
		ReviewerName: actor.Name,
		Action:       action.Recorded(),
		Comment:      strings.TrimSpace(comment),
		Timestamp:    now.UTC(),
	}

	return Decision{
		FromStatus:       app.Status,
		NewStatus:        next.status,
		NewStep:          next.step,
		PriorReviewCount: len(app.Reviews),
		Review:           review,
		Seal:             next.status == models.StatusApproved,
	}, nil
}

func wrongStageMessage(st stage, role models.Role) string {
	if st.reviewerRole == models.RoleJuniorReviewer {
		return fmt.Sprintf("Only Junior Reviewers can review at this stage (you are a %s)", role.Label())
	}
	return fmt.Sprintf("Only Compliance Officers can review at this stage (you are a %s)", role.Label())
}

// Apply returns a copy of app with the decision applied, as it will look
// once persisted.
func Apply(app *models.Application, d Decision) *models.Application {
	next := app.Clone()
	review := d.Review
	review.ApplicationID = app.ID
	review.Seq = d.PriorReviewCount
	next.Status = d.NewStatus
	next.CurrentStep = d.NewStep
	next.Reviews = append(next.Reviews, review)
	next.ReviewCount = len(next.Reviews)
	next.UpdatedAt = d.Review.Timestamp
	return next
}

// JuniorApproval returns the junior-stage approval that opened the
// compliance stage. With resubmission or admin re-review there may be older
// ones; the latest wins.
func JuniorApproval(reviews []models.Review) (models.Review, bool) {
	for i := len(reviews) - 1; i >= 0; i-- {
		r := reviews[i]
		if r.ReviewerRole == models.RoleJuniorReviewer && r.Action == models.ReviewApproved {
			return r, true
		}
	}
	return models.Review{}, false
}
