package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/clipmark/clipmark-agent/internal/db"
)

func TestHasAccess_TierOrdering(t *testing.T) {
	tests := []struct {
		name     string
		tier     Tier
		required Tier
		want     bool
	}{
		{name: "free meets free", tier: TierFree, required: TierFree, want: true},
		{name: "free below pro", tier: TierFree, required: TierPro, want: false},
		{name: "free below team", tier: TierFree, required: TierTeam, want: false},
		{name: "pro meets free", tier: TierPro, required: TierFree, want: true},
		{name: "pro meets pro", tier: TierPro, required: TierPro, want: true},
		{name: "pro below team", tier: TierPro, required: TierTeam, want: false},
		{name: "team meets pro", tier: TierTeam, required: TierPro, want: true},
		{name: "team meets team", tier: TierTeam, required: TierTeam, want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u := &User{ID: "u", Tier: tc.tier}
			if got := u.HasAccess(tc.required); got != tc.want {
				t.Fatalf("HasAccess(%s) with %s = %v, want %v", tc.required, tc.tier, got, tc.want)
			}
		})
	}
}

func TestParseTier(t *testing.T) {
	if _, err := ParseTier("pro"); err != nil {
		t.Errorf("ParseTier(pro) error = %v", err)
	}
	if _, err := ParseTier("platinum"); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("ParseTier(platinum) error = %v, want ErrUnknownTier", err)
	}
}

func TestRepository_CreateAndLookup(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	defer database.Close()

	repo := NewRepository(database.Conn())
	ctx := context.Background()

	u := &User{Token: "tok-abc", Tier: TierPro}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if u.ID == "" {
		t.Fatal("CreateUser() should assign an id")
	}

	found, err := repo.GetUserByToken(ctx, "tok-abc")
	if err != nil {
		t.Fatalf("GetUserByToken() error = %v", err)
	}
	if found == nil || found.ID != u.ID || found.Tier != TierPro {
		t.Errorf("GetUserByToken() = %+v, want id %s tier pro", found, u.ID)
	}

	missing, err := repo.GetUserByToken(ctx, "nope")
	if err != nil {
		t.Fatalf("GetUserByToken() error = %v", err)
	}
	if missing != nil {
		t.Errorf("GetUserByToken(unknown) = %+v, want nil", missing)
	}

	count, err := repo.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountUsers() = %d, want 1", count)
	}
}
