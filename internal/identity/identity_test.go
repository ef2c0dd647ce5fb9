package identity

import (
	"context"
	"testing"
	"time"

	"github.com/xelth-com/sealflow/internal/apperr"
	"github.com/xelth-com/sealflow/internal/cache"
	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/store/memory"
)

func TestResolveUsesStoreThenCache(t *testing.T) {
	ctx := context.Background()
	users := memory.New()
	if err := users.CreateUser(ctx, &models.UserAuth{ID: "u1", Email: "alice@example.com", Name: "Alice", Role: models.RoleJuniorReviewer}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	c := cache.NewMemory(time.Minute)
	r := NewResolver(users, c)

	p, err := r.Resolve(ctx, Claims{ID: "u1"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.Role != models.RoleJuniorReviewer || p.Name != "Alice" {
		t.Errorf("Unexpected principal %+v", p)
	}
	if role, ok := c.Get(ctx, "u1"); !ok || role != models.RoleJuniorReviewer {
		t.Error("Role should have been cached")
	}

	// A cached role wins over the store until it is forgotten
	c.Set(ctx, "u1", models.RoleComplianceOfficer)
	p, _ = r.Resolve(ctx, Claims{ID: "u1", Name: "Alice"})
	if p.Role != models.RoleComplianceOfficer {
		t.Errorf("Expected cached role, got %s", p.Role)
	}
	r.Forget(ctx, "u1")
	p, _ = r.Resolve(ctx, Claims{ID: "u1"})
	if p.Role != models.RoleJuniorReviewer {
		t.Errorf("Expected store role after Forget, got %s", p.Role)
	}
}

func TestResolveUnknownPrincipal(t *testing.T) {
	r := NewResolver(memory.New(), nil)

	if _, err := r.Resolve(context.Background(), Claims{ID: "ghost"}); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Errorf("Expected Unauthenticated, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), Claims{}); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Errorf("Expected Unauthenticated for empty claims, got %v", err)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		p    Principal
		want string
	}{
		{Principal{Name: "Bob", Email: "bob@example.com"}, "Bob"},
		{Principal{Email: "bob@example.com"}, "bob@example.com"},
		{Principal{}, "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{ID: "u1", Role: models.RoleAdmin})
	p, ok := FromContext(ctx)
	if !ok || p.ID != "u1" {
		t.Errorf("FromContext = %+v, %v", p, ok)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Error("Empty context should have no principal")
	}
}
