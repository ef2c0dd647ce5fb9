package models

import "testing"

func TestParseRole(t *testing.T) {
	for _, r := range Roles {
		got, err := ParseRole(string(r))
		if err != nil || got != r {
			t.Errorf("ParseRole(%q) = %q, %v", r, got, err)
		}
	}
	if _, err := ParseRole("superuser"); err == nil {
		t.Error("Unknown role should fail to parse")
	}
	if Role("").Valid() {
		t.Error("Empty role should not be valid")
	}
}

func TestCanReview(t *testing.T) {
	want := map[Role]bool{
		RoleUser:              false,
		RoleJuniorReviewer:    true,
		RoleComplianceOfficer: true,
		RoleAdmin:             true,
	}
	for role, expected := range want {
		if role.CanReview() != expected {
			t.Errorf("%s.CanReview() = %v, want %v", role, role.CanReview(), expected)
		}
	}
}

func TestApplicationClone(t *testing.T) {
	app := &Application{
		ID:      "app-1",
		Reviews: []Review{{ReviewerID: "r1", Action: ReviewApproved}},
	}
	c := app.Clone()
	c.Reviews[0].ReviewerID = "changed"
	c.Reviews = append(c.Reviews, Review{ReviewerID: "r2"})

	if app.Reviews[0].ReviewerID != "r1" || len(app.Reviews) != 1 {
		t.Error("Clone must not share review storage with the original")
	}
}

func TestStatusTerminal(t *testing.T) {
	if !StatusApproved.IsTerminal() || !StatusRejected.IsTerminal() {
		t.Error("approved and rejected are terminal")
	}
	for _, s := range []ApplicationStatus{StatusSubmitted, StatusJuniorReview, StatusComplianceReview} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
