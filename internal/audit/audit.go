// Package audit appends activity entries for workflow outcomes and account
// changes, and serves the admin log query.
//
// Record is fire-and-forget: it never returns an error to the caller. A
// failed write is logged and reported in the Result, which callers may drop.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/xelth-com/sealflow/internal/identity"
	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/store"
)

// DefaultLimit bounds the unfiltered listing
const DefaultLimit = 200

// Entry is an activity about to be recorded
type Entry struct {
	Actor      identity.Principal
	Action     models.ActivityType
	TargetType models.TargetType
	TargetID   string
	TargetName string
	Details    string
	Metadata   map[string]interface{}
}

// Result reports what happened to a Record call. Ignoring it is fine.
type Result struct {
	ID  string
	Err error
}

// OK reports whether the entry was stored
func (r Result) OK() bool { return r.Err == nil }

// Logger writes entries to an activity store
type Logger struct {
	store store.ActivityStore
	log   *zap.Logger
	now   func() time.Time
}

// New creates an audit logger
func New(s store.ActivityStore, log *zap.Logger) *Logger {
	return &Logger{store: s, log: log, now: time.Now}
}

// Record appends e. The write survives cancellation of ctx so a client
// disconnecting right after a review does not lose the entry.
func (l *Logger) Record(ctx context.Context, e Entry) Result {
	entry := models.ActivityLog{
		ID:         uuid.New().String(),
		Timestamp:  l.now().UTC(),
		ActorID:    e.Actor.ID,
		ActorName:  e.Actor.DisplayName(),
		ActorRole:  e.Actor.Role,
		ActorEmail: e.Actor.Email,
		ActionType: e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		TargetName: e.TargetName,
		Details:    e.Details,
	}
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			l.log.Warn("Dropping unserializable audit metadata", zap.String("action", string(e.Action)), zap.Error(err))
		} else {
			entry.Metadata = datatypes.JSON(raw)
		}
	}

	if err := l.store.AppendActivity(context.WithoutCancel(ctx), &entry); err != nil {
		l.log.Warn("Failed to record activity",
			zap.String("action", string(e.Action)),
			zap.String("target", e.TargetID),
			zap.String("actor", e.Actor.ID),
			zap.Error(err))
		return Result{ID: entry.ID, Err: err}
	}

	l.log.Debug("Activity recorded",
		zap.String("action", string(e.Action)),
		zap.String("actor", e.Actor.Email))
	return Result{ID: entry.ID}
}

// Query selects entries for the audit viewer. ActorID takes precedence over
// ActionType; only one filter applies.
type Query struct {
	ActorID    string
	ActionType models.ActivityType
	Limit      int
}

// List returns entries newest first. The unfiltered listing is bounded by
// DefaultLimit unless a smaller limit is given.
func (l *Logger) List(ctx context.Context, q Query) ([]models.ActivityLog, error) {
	sq := store.ActivityQuery{Limit: q.Limit}
	switch {
	case q.ActorID != "":
		sq.ActorID = q.ActorID
	case q.ActionType != "":
		sq.ActionType = q.ActionType
	default:
		if sq.Limit <= 0 || sq.Limit > DefaultLimit {
			sq.Limit = DefaultLimit
		}
	}

	logs, err := l.store.ListActivity(ctx, sq)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	if logs == nil {
		logs = []models.ActivityLog{}
	}
	return logs, nil
}
