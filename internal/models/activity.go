package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityType names an audited action
type ActivityType string

const (
	ActivityApplicationReviewed ActivityType = "application_reviewed"
	ActivityApplicationApproved ActivityType = "application_approved"
	ActivityApplicationRejected ActivityType = "application_rejected"
	ActivityUserRoleChanged     ActivityType = "user_role_changed"
	ActivityDocumentSigned      ActivityType = "document_signed"
)

// ParseActivityType validates an action type filter
func ParseActivityType(s string) (ActivityType, bool) {
	switch t := ActivityType(s); t {
	case ActivityApplicationReviewed, ActivityApplicationApproved, ActivityApplicationRejected,
		ActivityUserRoleChanged, ActivityDocumentSigned:
		return t, true
	}
	return "", false
}

// TargetType names what an activity acted on
type TargetType string

const (
	TargetApplication TargetType = "application"
	TargetUser        TargetType = "user"
	TargetDocument    TargetType = "document"
)

// ActivityLog is an append-only audit entry
type ActivityLog struct {
	ID         string         `gorm:"primaryKey;type:uuid" json:"id" dynamodbav:"id"`
	Timestamp  time.Time      `gorm:"not null;index" json:"timestamp" dynamodbav:"timestamp"`
	ActorID    string         `gorm:"not null;index" json:"actorId" dynamodbav:"actorId"`
	ActorName  string         `json:"actorName" dynamodbav:"actorName"`
	ActorRole  Role           `json:"actorRole" dynamodbav:"actorRole"`
	ActorEmail string         `json:"actorEmail" dynamodbav:"actorEmail"`
	ActionType ActivityType   `gorm:"not null;index" json:"actionType" dynamodbav:"actionType"`
	TargetType TargetType     `gorm:"not null" json:"targetType" dynamodbav:"targetType"`
	TargetID   string         `gorm:"not null;index" json:"targetId" dynamodbav:"targetId"`
	TargetName string         `json:"targetName,omitempty" dynamodbav:"targetName,omitempty"`
	Details    string         `gorm:"type:text" json:"details" dynamodbav:"details"`
	Metadata   datatypes.JSON `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
}

// TableName specifies the table name for ActivityLog model
func (ActivityLog) TableName() string {
	return "activity_logs"
}
