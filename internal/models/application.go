package models

import (
	"time"
)

// ApplicationStatus is the workflow position of an application
type ApplicationStatus string

const (
	StatusSubmitted        ApplicationStatus = "submitted"
	StatusJuniorReview     ApplicationStatus = "junior_review"
	StatusComplianceReview ApplicationStatus = "compliance_review"
	StatusApproved         ApplicationStatus = "approved"
	StatusRejected         ApplicationStatus = "rejected"
)

// Workflow steps stored in CurrentStep
const (
	StepJunior     = 1
	StepCompliance = 2
	StepCompleted  = 3
)

// ParseStatus validates a status string
func ParseStatus(s string) (ApplicationStatus, bool) {
	switch st := ApplicationStatus(s); st {
	case StatusSubmitted, StatusJuniorReview, StatusComplianceReview, StatusApproved, StatusRejected:
		return st, true
	}
	return "", false
}

// IsTerminal reports whether no further review is possible
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ReviewAction is the recorded outcome of a single review
type ReviewAction string

const (
	ReviewApproved ReviewAction = "approved"
	ReviewRejected ReviewAction = "rejected"
)

// DocumentRef points at an uploaded artifact in object storage
type DocumentRef struct {
	Key      string `gorm:"column:key;not null" json:"key" dynamodbav:"key"`
	FileName string `gorm:"column:file_name;not null" json:"fileName" dynamodbav:"fileName"`
	Size     int64  `gorm:"column:size" json:"fileSize" dynamodbav:"fileSize"`
}

// SealedDocument is the output of the sealing service
type SealedDocument struct {
	Key              string
	VerificationCode string
	Digest           string // blake3 hex of the sealed bytes
	SealedAt         time.Time
}

// Application is one submitted document moving through review.
// Status, CurrentStep and Reviews are only changed by the review workflow.
type Application struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	OwnerID string `gorm:"column:owner_id;not null;index" json:"userId"`

	FullName             string `gorm:"not null" json:"fullName"`
	GuardianName         string `gorm:"not null" json:"fatherHusbandName"`
	Age                  int    `json:"age"`
	Phone                string `json:"phone"`
	Email                string `json:"email"`
	Address              string `gorm:"type:text" json:"address"`
	NationalID           string `gorm:"column:national_id" json:"aadharNumber"`
	DigitalSignature     string `json:"digitalSignature"`
	DocumentType         string `gorm:"not null;index" json:"documentType"`
	RequiredByDate       string `json:"requiredByDate"`
	GovernmentDepartment string `json:"governmentDepartment,omitempty"`

	Document DocumentRef `gorm:"embedded;embeddedPrefix:document_" json:"document"`

	// Set once by the sealing service after final approval
	SignedKey        string     `gorm:"column:signed_key" json:"signedKey,omitempty"`
	VerificationCode string     `gorm:"column:verification_code;index" json:"verificationCode,omitempty"`
	SignedDigest     string     `gorm:"column:signed_digest" json:"signedDigest,omitempty"`
	SignedAt         *time.Time `gorm:"column:signed_at" json:"signedAt,omitempty"`

	Status      ApplicationStatus `gorm:"not null;default:'submitted';index" json:"status"`
	CurrentStep int               `gorm:"not null;default:1" json:"currentStep"`
	ReviewCount int               `gorm:"not null;default:0" json:"-"`
	Reviews     []Review          `gorm:"foreignKey:ApplicationID" json:"reviews"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Application model
func (Application) TableName() string {
	return "applications"
}

// IsSealed reports whether a sealed artifact is attached
func (a *Application) IsSealed() bool {
	return a.SignedKey != ""
}

// ApplySealed copies a sealing result onto the record
func (a *Application) ApplySealed(s SealedDocument) {
	at := s.SealedAt
	a.SignedKey = s.Key
	a.VerificationCode = s.VerificationCode
	a.SignedDigest = s.Digest
	a.SignedAt = &at
}

// Clone returns a deep copy so callers never share the Reviews backing array
func (a *Application) Clone() *Application {
	c := *a
	c.Reviews = append([]Review(nil), a.Reviews...)
	if a.SignedAt != nil {
		at := *a.SignedAt
		c.SignedAt = &at
	}
	return &c
}

// Review is one approve/reject action. Rows are append-only; Seq is the
// zero-based position within the application's review history.
type Review struct {
	ID            uint         `gorm:"primaryKey" json:"-" dynamodbav:"-"`
	ApplicationID string       `gorm:"type:uuid;not null;uniqueIndex:idx_review_seq" json:"-" dynamodbav:"-"`
	Seq           int          `gorm:"not null;uniqueIndex:idx_review_seq" json:"-" dynamodbav:"seq"`
	ReviewerRole  Role         `gorm:"not null" json:"reviewerRole" dynamodbav:"reviewerRole"`
	ReviewerID    string       `gorm:"not null;index" json:"reviewerId" dynamodbav:"reviewerId"`
	ReviewerName  string       `json:"reviewerName" dynamodbav:"reviewerName"`
	Action        ReviewAction `gorm:"not null" json:"action" dynamodbav:"action"`
	Comment       string       `gorm:"type:text" json:"comment,omitempty" dynamodbav:"comment,omitempty"`
	Timestamp     time.Time    `gorm:"not null" json:"timestamp" dynamodbav:"timestamp"`
}

// TableName specifies the table name for Review model
func (Review) TableName() string {
	return "application_reviews"
}
