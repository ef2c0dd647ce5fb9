package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xelth-com/sealflow/internal/identity"
	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/store"
	"github.com/xelth-com/sealflow/internal/store/memory"
	"github.com/xelth-com/sealflow/internal/workflow"
)

type failingStore struct{ store.ActivityStore }

func (failingStore) AppendActivity(context.Context, *models.ActivityLog) error {
	return errors.New("table unavailable")
}

// recordingStore captures the context it was called with
type recordingStore struct {
	*memory.Store
	ctxErr error
}

func (r *recordingStore) AppendActivity(ctx context.Context, e *models.ActivityLog) error {
	r.ctxErr = ctx.Err()
	return r.Store.AppendActivity(ctx, e)
}

var admin = identity.Principal{ID: "admin-1", Email: "root@example.com", Name: "Root", Role: models.RoleAdmin}

func TestRecordSwallowsFailures(t *testing.T) {
	l := New(failingStore{}, zap.NewNop())
	res := l.Record(context.Background(), Entry{Actor: admin, Action: models.ActivityUserRoleChanged, TargetType: models.TargetUser, TargetID: "u1"})
	if res.OK() || res.Err == nil {
		t.Error("Result should carry the failure")
	}
	if res.ID == "" {
		t.Error("Result should still carry the generated id")
	}
}

func TestRecordSurvivesCancelledContext(t *testing.T) {
	rs := &recordingStore{Store: memory.New()}
	l := New(rs, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if res := l.Record(ctx, Entry{Actor: admin, Action: models.ActivityApplicationApproved, TargetType: models.TargetApplication, TargetID: "app-1"}); !res.OK() {
		t.Fatalf("Record failed: %v", res.Err)
	}
	if rs.ctxErr != nil {
		t.Errorf("Store saw a cancelled context: %v", rs.ctxErr)
	}
}

func TestListDefaultsAndFilters(t *testing.T) {
	s := memory.New()
	l := New(s, zap.NewNop())
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	l.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	junior := identity.Principal{ID: "j1", Name: "Alice", Role: models.RoleJuniorReviewer}
	for i := 0; i < DefaultLimit+5; i++ {
		l.Record(context.Background(), Entry{Actor: junior, Action: models.ActivityApplicationReviewed, TargetType: models.TargetApplication, TargetID: "app"})
	}
	l.Record(context.Background(), Entry{Actor: admin, Action: models.ActivityUserRoleChanged, TargetType: models.TargetUser, TargetID: "j1"})

	all, err := l.List(context.Background(), Query{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != DefaultLimit {
		t.Errorf("Unfiltered listing should be bounded to %d, got %d", DefaultLimit, len(all))
	}
	if all[0].ActorID != "admin-1" {
		t.Errorf("Newest entry should come first, got %s", all[0].ActorID)
	}

	byActor, _ := l.List(context.Background(), Query{ActorID: "j1"})
	if len(byActor) != DefaultLimit+5 {
		t.Errorf("Actor filter should not be bounded, got %d", len(byActor))
	}

	byType, _ := l.List(context.Background(), Query{ActionType: models.ActivityUserRoleChanged})
	if len(byType) != 1 || byType[0].ActorName != "Root" {
		t.Errorf("Unexpected type filter result %+v", byType)
	}

	// Actor filter wins when both are given
	both, _ := l.List(context.Background(), Query{ActorID: "j1", ActionType: models.ActivityUserRoleChanged})
	if len(both) != DefaultLimit+5 {
		t.Errorf("Expected actor filter to win, got %d entries", len(both))
	}
}

func TestReviewEntryActionTypes(t *testing.T) {
	app := &models.Application{ID: "app-1", FullName: "Dave", DocumentType: "income_certificate"}
	tests := []struct {
		status models.ApplicationStatus
		want   models.ActivityType
	}{
		{models.StatusComplianceReview, models.ActivityApplicationReviewed},
		{models.StatusApproved, models.ActivityApplicationApproved},
		{models.StatusRejected, models.ActivityApplicationRejected},
	}
	for _, tt := range tests {
		e := ReviewEntry(admin, app, workflow.Decision{NewStatus: tt.status})
		if e.Action != tt.want {
			t.Errorf("%s: got %s, want %s", tt.status, e.Action, tt.want)
		}
		if e.TargetID != "app-1" || e.TargetType != models.TargetApplication {
			t.Errorf("%s: wrong target %+v", tt.status, e)
		}
	}
}

func TestAccountEntry(t *testing.T) {
	target := &models.UserAuth{ID: "u2", Email: "jr@example.com", Role: models.RoleJuniorReviewer}
	e := AccountEntry(admin, target, true)
	if e.Action != models.ActivityUserRoleChanged || e.TargetType != models.TargetUser {
		t.Errorf("Unexpected entry %+v", e)
	}
	if e.Metadata["operation"] != "created" {
		t.Errorf("Expected created operation, got %v", e.Metadata["operation"])
	}
}
