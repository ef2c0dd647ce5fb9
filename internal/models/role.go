package models

import "fmt"

// Role is the capability level of a principal. The set is closed: every
// value outside the four constants is rejected by ParseRole.
type Role string

const (
	RoleUser              Role = "user"
	RoleJuniorReviewer    Role = "junior_reviewer"
	RoleComplianceOfficer Role = "compliance_officer"
	RoleAdmin             Role = "admin"
)

// Roles lists every valid role
var Roles = []Role{RoleUser, RoleJuniorReviewer, RoleComplianceOfficer, RoleAdmin}

// ParseRole validates a role string
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleJuniorReviewer, RoleComplianceOfficer, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Valid reports whether r is one of the four roles
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// CanReview reports whether r has any review capability
func (r Role) CanReview() bool {
	switch r {
	case RoleJuniorReviewer, RoleComplianceOfficer, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Label is the human form used in messages ("junior reviewer")
func (r Role) Label() string {
	switch r {
	case RoleJuniorReviewer:
		return "junior reviewer"
	case RoleComplianceOfficer:
		return "compliance officer"
	case RoleAdmin:
		return "admin"
	default:
		return "user"
	}
}
