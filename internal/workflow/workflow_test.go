package workflow

import (
	"testing"
	"time"

	"github.com/xelth-com/sealflow/internal/models"
)

var (
	now        = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	alice      = Actor{ID: "alice", Name: "Alice", Role: models.RoleJuniorReviewer}
	bob        = Actor{ID: "bob", Name: "Bob", Role: models.RoleComplianceOfficer}
	carol      = Actor{ID: "carol", Name: "Carol", Role: models.RoleAdmin}
	applicant  = Actor{ID: "dave", Name: "Dave", Role: models.RoleUser}
	allActors  = []Actor{alice, bob, carol, applicant}
	allActions = []Action{ActionApprove, ActionReject}
)

func newApplication() *models.Application {
	return &models.Application{
		ID:          "app-1",
		OwnerID:     "dave",
		Status:      models.StatusSubmitted,
		CurrentStep: models.StepJunior,
		Document:    models.DocumentRef{Key: "documents/dave/1-cert.pdf", FileName: "cert.pdf", Size: 1024},
	}
}

func mustDecide(t *testing.T, app *models.Application, actor Actor, action Action, comment string) *models.Application {
	t.Helper()
	d, rej := Decide(app, actor, action, comment, now)
	if rej != nil {
		t.Fatalf("Decide(%s, %s, %s) rejected: %s", app.Status, actor.Role, action, rej)
	}
	return Apply(app, d)
}

func TestParseAction(t *testing.T) {
	cases := map[string]Action{
		"approve":  ActionApprove,
		"approved": ActionApprove,
		"REJECTED": ActionReject,
		" reject ": ActionReject,
	}
	for in, want := range cases {
		got, err := ParseAction(in)
		if err != nil || got != want {
			t.Errorf("ParseAction(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseAction("maybe"); err == nil {
		t.Error("Expected error for unknown action")
	}
}

func TestDecideMissingApplication(t *testing.T) {
	_, rej := Decide(nil, alice, ActionApprove, "", now)
	if rej == nil || rej.Reason != ReasonNotFound {
		t.Fatalf("Expected NotFound, got %v", rej)
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	for _, status := range []models.ApplicationStatus{models.StatusApproved, models.StatusRejected} {
		app := newApplication()
		app.Status = status
		for _, actor := range allActors {
			for _, action := range allActions {
				_, rej := Decide(app, actor, action, "", now)
				if rej == nil || rej.Reason != ReasonAlreadyFinalized {
					t.Errorf("%s/%s/%s: expected AlreadyFinalized, got %v", status, actor.Role, action, rej)
				}
			}
		}
	}
}

func TestJuniorStageRoleGate(t *testing.T) {
	for _, status := range []models.ApplicationStatus{models.StatusSubmitted, models.StatusJuniorReview} {
		for _, actor := range allActors {
			app := newApplication()
			app.Status = status
			_, rej := Decide(app, actor, ActionApprove, "", now)

			allowed := actor.Role == models.RoleJuniorReviewer || actor.Role == models.RoleAdmin
			if allowed && rej != nil {
				t.Errorf("%s at %s should succeed, got %s", actor.Role, status, rej)
			}
			if !allowed && (rej == nil || rej.Reason != ReasonWrongStage) {
				t.Errorf("%s at %s should get WrongStage, got %v", actor.Role, status, rej)
			}
		}
	}
}

func TestComplianceStageRoleGate(t *testing.T) {
	for _, actor := range allActors {
		app := newApplication()
		app.Status = models.StatusComplianceReview
		app.CurrentStep = models.StepCompliance
		_, rej := Decide(app, actor, ActionReject, "", now)

		allowed := actor.Role == models.RoleComplianceOfficer || actor.Role == models.RoleAdmin
		if allowed && rej != nil {
			t.Errorf("%s at compliance stage should succeed, got %s", actor.Role, rej)
		}
		if !allowed && (rej == nil || rej.Reason != ReasonWrongStage) {
			t.Errorf("%s at compliance stage should get WrongStage, got %v", actor.Role, rej)
		}
	}
}

func TestUnknownStatusIsInvalidState(t *testing.T) {
	app := newApplication()
	app.Status = "archived"
	_, rej := Decide(app, carol, ActionApprove, "", now)
	if rej == nil || rej.Reason != ReasonInvalidState {
		t.Fatalf("Expected InvalidState, got %v", rej)
	}
}

func TestDuplicateReview(t *testing.T) {
	app := newApplication()
	app.Reviews = []models.Review{{ReviewerID: alice.ID, ReviewerRole: models.RoleJuniorReviewer, Action: models.ReviewApproved}}

	_, rej := Decide(app, alice, ActionApprove, "", now)
	if rej == nil || rej.Reason != ReasonDuplicateReview {
		t.Fatalf("Expected DuplicateReview, got %v", rej)
	}
}

func TestSamePrincipalTwice(t *testing.T) {
	// Junior approves, then tries again on the now-compliance-stage record.
	app := mustDecide(t, newApplication(), alice, ActionApprove, "")
	_, rej := Decide(app, alice, ActionApprove, "", now)
	if rej == nil || rej.Reason != ReasonDuplicateReview {
		t.Fatalf("Second call by the same reviewer should be DuplicateReview, got %v", rej)
	}
}

func TestAdminExemptFromDuplicateCheck(t *testing.T) {
	app := mustDecide(t, newApplication(), carol, ActionApprove, "on behalf of junior")
	app = mustDecide(t, app, carol, ActionApprove, "on behalf of compliance")

	if app.Status != models.StatusApproved {
		t.Fatalf("Expected approved, got %s", app.Status)
	}
	if app.Reviews[0].ReviewerRole != models.RoleJuniorReviewer || app.Reviews[1].ReviewerRole != models.RoleComplianceOfficer {
		t.Errorf("Admin reviews must record the stage role, got %s and %s",
			app.Reviews[0].ReviewerRole, app.Reviews[1].ReviewerRole)
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from     models.ApplicationStatus
		actor    Actor
		action   Action
		status   models.ApplicationStatus
		step     int
		role     models.Role
		wantSeal bool
	}{
		{models.StatusSubmitted, alice, ActionApprove, models.StatusComplianceReview, 2, models.RoleJuniorReviewer, false},
		{models.StatusJuniorReview, alice, ActionApprove, models.StatusComplianceReview, 2, models.RoleJuniorReviewer, false},
		{models.StatusSubmitted, alice, ActionReject, models.StatusRejected, 1, models.RoleJuniorReviewer, false},
		{models.StatusJuniorReview, alice, ActionReject, models.StatusRejected, 1, models.RoleJuniorReviewer, false},
		{models.StatusComplianceReview, bob, ActionApprove, models.StatusApproved, 3, models.RoleComplianceOfficer, true},
		{models.StatusComplianceReview, bob, ActionReject, models.StatusRejected, 2, models.RoleComplianceOfficer, false},
	}

	for _, tc := range cases {
		app := newApplication()
		app.Status = tc.from
		d, rej := Decide(app, tc.actor, tc.action, "", now)
		if rej != nil {
			t.Errorf("%s/%s: unexpected rejection %s", tc.from, tc.action, rej)
			continue
		}
		if d.NewStatus != tc.status || d.NewStep != tc.step {
			t.Errorf("%s/%s: got %s step %d, want %s step %d", tc.from, tc.action, d.NewStatus, d.NewStep, tc.status, tc.step)
		}
		if d.Review.ReviewerRole != tc.role {
			t.Errorf("%s/%s: recorded role %s, want %s", tc.from, tc.action, d.Review.ReviewerRole, tc.role)
		}
		if d.Seal != tc.wantSeal {
			t.Errorf("%s/%s: seal = %v, want %v", tc.from, tc.action, d.Seal, tc.wantSeal)
		}
		if d.FromStatus != tc.from {
			t.Errorf("FromStatus = %s, want %s", d.FromStatus, tc.from)
		}
	}
}

func TestScenarioJuniorApprovesComplianceRejects(t *testing.T) {
	app := mustDecide(t, newApplication(), alice, ActionApprove, "looks fine")

	if app.Status != models.StatusComplianceReview || app.CurrentStep != 2 || len(app.Reviews) != 1 {
		t.Fatalf("After junior approval: status=%s step=%d reviews=%d", app.Status, app.CurrentStep, len(app.Reviews))
	}
	first := app.Reviews[0]
	if first.ReviewerRole != models.RoleJuniorReviewer || first.ReviewerName != "Alice" ||
		first.Action != models.ReviewApproved || first.Comment != "looks fine" {
		t.Errorf("Unexpected first review: %+v", first)
	}

	app = mustDecide(t, app, bob, ActionReject, "")
	if app.Status != models.StatusRejected || app.CurrentStep != 2 || len(app.Reviews) != 2 {
		t.Fatalf("After compliance rejection: status=%s step=%d reviews=%d", app.Status, app.CurrentStep, len(app.Reviews))
	}
	second := app.Reviews[1]
	if second.ReviewerRole != models.RoleComplianceOfficer || second.ReviewerName != "Bob" || second.Action != models.ReviewRejected {
		t.Errorf("Unexpected second review: %+v", second)
	}

	for _, actor := range allActors {
		_, rej := Decide(app, actor, ActionApprove, "", now)
		if rej == nil || rej.Reason != ReasonAlreadyFinalized {
			t.Errorf("%s after rejection: expected AlreadyFinalized, got %v", actor.Role, rej)
		}
	}
}

func TestScenarioFullApproval(t *testing.T) {
	app := mustDecide(t, newApplication(), alice, ActionApprove, "looks fine")
	d, rej := Decide(app, bob, ActionApprove, "", now)
	if rej != nil {
		t.Fatalf("Compliance approval rejected: %s", rej)
	}
	if !d.Seal || !d.IsFinal() {
		t.Error("Final approval must request sealing")
	}
	if d.PriorReviewCount != 1 {
		t.Errorf("PriorReviewCount = %d, want 1", d.PriorReviewCount)
	}

	app = Apply(app, d)
	if app.Status != models.StatusApproved || app.CurrentStep != 3 {
		t.Fatalf("Expected approved step 3, got %s step %d", app.Status, app.CurrentStep)
	}
	junior, ok := JuniorApproval(app.Reviews)
	if !ok || junior.ReviewerName != "Alice" {
		t.Errorf("JuniorApproval = %+v, %v", junior, ok)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	app := newApplication()
	d, _ := Decide(app, alice, ActionApprove, "", now)
	next := Apply(app, d)

	if app.Status != models.StatusSubmitted || len(app.Reviews) != 0 {
		t.Error("Apply must not modify the input application")
	}
	if next.Reviews[0].Seq != 0 || next.ReviewCount != 1 {
		t.Errorf("Unexpected seq/count: %d/%d", next.Reviews[0].Seq, next.ReviewCount)
	}
}

func TestJuniorApprovalPicksLatest(t *testing.T) {
	reviews := []models.Review{
		{ReviewerRole: models.RoleJuniorReviewer, ReviewerName: "Old", Action: models.ReviewApproved},
		{ReviewerRole: models.RoleComplianceOfficer, ReviewerName: "Bob", Action: models.ReviewRejected},
		{ReviewerRole: models.RoleJuniorReviewer, ReviewerName: "Rejecter", Action: models.ReviewRejected},
		{ReviewerRole: models.RoleJuniorReviewer, ReviewerName: "New", Action: models.ReviewApproved},
	}
	r, ok := JuniorApproval(reviews)
	if !ok || r.ReviewerName != "New" {
		t.Errorf("Expected latest junior approval, got %+v", r)
	}
	if _, ok := JuniorApproval(nil); ok {
		t.Error("No reviews should yield no junior approval")
	}
}

func TestCanActAt(t *testing.T) {
	if CanActAt(models.RoleComplianceOfficer, models.StatusSubmitted) {
		t.Error("Compliance officer must not act at the junior stage")
	}
	if CanActAt(models.RoleJuniorReviewer, models.StatusComplianceReview) {
		t.Error("Junior reviewer must not act at the compliance stage")
	}
	if CanActAt(models.RoleAdmin, models.StatusApproved) {
		t.Error("Nobody acts on a terminal status")
	}
	if role, ok := StageRole(models.StatusJuniorReview); !ok || role != models.RoleJuniorReviewer {
		t.Errorf("StageRole(junior_review) = %s, %v", role, ok)
	}
}
