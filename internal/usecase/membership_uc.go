// File: internal/usecase/membership_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"webnovel-billing/internal/domain/model"
	"webnovel-billing/internal/domain/ports/repository"
	"webnovel-billing/internal/infra/metrics"
)

// Compile-time check
var _ MembershipUseCase = (*membershipUC)(nil)

// MembershipUseCase owns membership expiration: the scheduled sweep and the
// lazy per-request variant. Both rely on the repository's compare-and-swap
// UPDATE (the expiry condition is re-checked inside the write), so overlapping
// sweeps and racing completions are safe.
type MembershipUseCase interface {
	// ExpireDue downgrades every premium user whose expiry is at or before
	// now and returns how many were downgraded. Idempotent: a second run
	// finds nothing to do.
	ExpireDue(ctx context.Context) (int, error)
	// ExpireUserIfDue runs the same downgrade for a single user before a
	// request is served, so tier state is never stale for more than one
	// request's latency.
	ExpireUserIfDue(ctx context.Context, userID string) (bool, error)
}

// workLocker deduplicates concurrent lazy-expiry work; nil disables it.
type workLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool)
	Unlock(ctx context.Context, key, token string) error
}

type membershipUC struct {
	users  repository.UserRepository
	notifs repository.NotificationRepository
	tm     repository.TransactionManager
	locker workLocker
	log    *zerolog.Logger
}

func NewMembershipUseCase(users repository.UserRepository, notifs repository.NotificationRepository, tm repository.TransactionManager, locker workLocker, logger *zerolog.Logger) *membershipUC {
	l := logger.With().Str("component", "MembershipUC").Logger()
	return &membershipUC{users: users, notifs: notifs, tm: tm, locker: locker, log: &l}
}

func (u *membershipUC) ExpireDue(ctx context.Context) (int, error) {
	var expired []string

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ids, err := u.users.DowngradeExpired(ctx, tx, time.Now())
		if err != nil {
			return err
		}
		now := time.Now()
		for _, id := range ids {
			if err := u.notifs.Save(ctx, tx, &model.Notification{
				ID:        uuid.NewString(),
				UserID:    id,
				Kind:      model.NotificationMembershipExpired,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}
		expired = ids
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(expired) > 0 {
		metrics.IncMembershipsExpired(len(expired))
		for _, id := range expired {
			u.log.Info().Str("user_id", id).Msg("membership expired")
		}
	}
	return len(expired), nil
}

func (u *membershipUC) ExpireUserIfDue(ctx context.Context, userID string) (bool, error) {
	if u.locker != nil {
		// shed duplicate work when many requests land for the same user; the
		// SQL CAS below stays the correctness mechanism
		token, ok := u.locker.TryLock(ctx, "expire:"+userID, 5*time.Second)
		if !ok {
			return false, nil
		}
		defer func() { _ = u.locker.Unlock(ctx, "expire:"+userID, token) }()
	}

	var downgraded bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.users.DowngradeIfExpired(ctx, tx, userID, time.Now())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := u.notifs.Save(ctx, tx, &model.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Kind:      model.NotificationMembershipExpired,
			CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		downgraded = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if downgraded {
		metrics.IncMembershipsExpired(1)
		u.log.Info().Str("user_id", userID).Msg("membership expired (lazy)")
	}
	return downgraded, nil
}
