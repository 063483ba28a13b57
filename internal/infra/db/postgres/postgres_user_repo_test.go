//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"webnovel-billing/internal/domain/model"
)

func TestUserRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewPostgresUserRepo(testPool)
	ctx := context.Background()

	t.Run("should save and read a user back", func(t *testing.T) {
		cleanup(t)

		u, err := model.NewUser("", "integration_user")
		if err != nil {
			t.Fatalf("model.NewUser() failed: %v", err)
		}
		if err := repo.Save(ctx, nil, u); err != nil {
			t.Fatalf("Failed to save new user: %v", err)
		}

		found, err := repo.FindByID(ctx, nil, u.ID)
		if err != nil {
			t.Fatalf("Failed to find user by ID: %v", err)
		}
		if found.Username != "integration_user" || found.Coins != 0 {
			t.Errorf("unexpected user row: %+v", found)
		}
	})

	t.Run("should apply coin deltas but never go below zero", func(t *testing.T) {
		cleanup(t)

		u, _ := model.NewUser("", "coin_user")
		if err := repo.Save(ctx, nil, u); err != nil {
			t.Fatalf("save: %v", err)
		}

		applied, err := repo.AddCoins(ctx, nil, u.ID, 300)
		if err != nil || !applied {
			t.Fatalf("credit 300: applied=%v err=%v", applied, err)
		}
		applied, err = repo.AddCoins(ctx, nil, u.ID, -100)
		if err != nil || !applied {
			t.Fatalf("debit 100: applied=%v err=%v", applied, err)
		}

		// a debit past zero must apply zero rows
		applied, err = repo.AddCoins(ctx, nil, u.ID, -500)
		if err != nil {
			t.Fatalf("overdebit: %v", err)
		}
		if applied {
			t.Error("expected the guarded UPDATE to refuse a negative balance")
		}

		found, _ := repo.FindByID(ctx, nil, u.ID)
		if found.Coins != 200 {
			t.Errorf("expected balance 200, but got %d", found.Coins)
		}
	})

	t.Run("should downgrade only memberships past their expiry", func(t *testing.T) {
		cleanup(t)

		lapsed, _ := model.NewUser("", "lapsed_user")
		active, _ := model.NewUser("", "active_user")
		repo.Save(ctx, nil, lapsed)
		repo.Save(ctx, nil, active)

		past := time.Now().Add(-time.Hour)
		future := time.Now().Add(time.Hour)
		if err := repo.SetMembership(ctx, nil, lapsed.ID, model.TierPremium, &past); err != nil {
			t.Fatalf("set lapsed membership: %v", err)
		}
		if err := repo.SetMembership(ctx, nil, active.ID, model.TierPremium, &future); err != nil {
			t.Fatalf("set active membership: %v", err)
		}

		ids, err := repo.DowngradeExpired(ctx, nil, time.Now())
		if err != nil {
			t.Fatalf("DowngradeExpired: %v", err)
		}
		if len(ids) != 1 || ids[0] != lapsed.ID {
			t.Errorf("expected only the lapsed user, but got %v", ids)
		}

		// a second sweep finds nothing left to do
		ids, err = repo.DowngradeExpired(ctx, nil, time.Now())
		if err != nil {
			t.Fatalf("second sweep: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("expected an empty second sweep, but got %v", ids)
		}

		got, _ := repo.FindByID(ctx, nil, lapsed.ID)
		if got.MembershipTier != model.TierBasic || got.MembershipExpiresAt != nil {
			t.Errorf("expected lapsed user downgraded, got %+v", got)
		}
	})

	t.Run("should downgrade a single lapsed user lazily", func(t *testing.T) {
		cleanup(t)

		u, _ := model.NewUser("", "lazy_user")
		repo.Save(ctx, nil, u)
		past := time.Now().Add(-time.Minute)
		repo.SetMembership(ctx, nil, u.ID, model.TierPremium, &past)

		ok, err := repo.DowngradeIfExpired(ctx, nil, u.ID, time.Now())
		if err != nil {
			t.Fatalf("DowngradeIfExpired: %v", err)
		}
		if !ok {
			t.Fatal("expected the user to be downgraded")
		}
		ok, _ = repo.DowngradeIfExpired(ctx, nil, u.ID, time.Now())
		if ok {
			t.Error("expected the second call to be a no-op")
		}
	})
}
