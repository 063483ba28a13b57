// File: internal/usecase/account_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"webnovel-billing/internal/domain"
	"webnovel-billing/internal/domain/model"
	"webnovel-billing/internal/domain/ports/repository"
	"webnovel-billing/internal/infra/metrics"
)

// Compile-time check
var _ AccountUseCase = (*accountUC)(nil)

// AccountUseCase is the single write path for coin balances and membership
// state. The ledger calls it inside its transaction (passing the tx handle via
// qx); admin commands call it directly with a nil handle. Nothing else mutates
// the users table.
type AccountUseCase interface {
	CreditCoins(ctx context.Context, qx repository.Tx, userID string, amount int64) error
	DebitCoins(ctx context.Context, qx repository.Tx, userID string, amount int64) error
	// ActivateOrExtendMembership grants durationDays of the tier. An active
	// same-tier membership extends from its current expiry so stacked
	// purchases accumulate time; otherwise the clock starts now.
	ActivateOrExtendMembership(ctx context.Context, qx repository.Tx, userID string, tier model.MembershipTier, durationDays int) (time.Time, error)
}

type accountUC struct {
	users  repository.UserRepository
	notifs repository.NotificationRepository
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewAccountUseCase(users repository.UserRepository, notifs repository.NotificationRepository, tm repository.TransactionManager, logger *zerolog.Logger) *accountUC {
	l := logger.With().Str("component", "AccountUC").Logger()
	return &accountUC{users: users, notifs: notifs, tm: tm, log: &l}
}

func (u *accountUC) CreditCoins(ctx context.Context, qx repository.Tx, userID string, amount int64) error {
	if userID == "" || amount <= 0 {
		return domain.ErrInvalidArgument
	}
	applied, err := u.users.AddCoins(ctx, qx, userID, amount)
	if err != nil {
		return err
	}
	if !applied {
		return domain.ErrNotFound
	}
	metrics.AddCoinsCredited(amount)
	u.log.Info().Str("user_id", userID).Int64("amount", amount).Msg("coins credited")
	return nil
}

func (u *accountUC) DebitCoins(ctx context.Context, qx repository.Tx, userID string, amount int64) error {
	if userID == "" || amount <= 0 {
		return domain.ErrInvalidArgument
	}
	user, err := u.users.FindByID(ctx, qx, userID)
	if err != nil {
		return err
	}
	if user.Coins < amount {
		// never clamp silently on the spend path
		return domain.ErrInsufficientBalance
	}
	applied, err := u.users.AddCoins(ctx, qx, userID, -amount)
	if err != nil {
		return err
	}
	if !applied {
		// the balance moved between the read and the guarded write
		return domain.ErrInsufficientBalance
	}
	metrics.AddCoinsDebited(amount)
	u.log.Info().Str("user_id", userID).Int64("amount", amount).Msg("coins debited")
	return nil
}

func (u *accountUC) ActivateOrExtendMembership(ctx context.Context, qx repository.Tx, userID string, tier model.MembershipTier, durationDays int) (time.Time, error) {
	if userID == "" || durationDays <= 0 || tier != model.TierPremium {
		return time.Time{}, domain.ErrInvalidArgument
	}
	if qx != nil {
		// running inside the caller's transaction; the caller holds the
		// user lock
		return u.grantMembership(ctx, qx, userID, tier, durationDays)
	}

	// direct call: take a transaction and the per-user advisory lock so the
	// read-extend-write cannot race another grant or a completing purchase
	var expiry time.Time
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.tm.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		expiry, err = u.grantMembership(ctx, tx, userID, tier, durationDays)
		return err
	})
	if err != nil {
		return time.Time{}, err
	}
	return expiry, nil
}

func (u *accountUC) grantMembership(ctx context.Context, qx repository.Tx, userID string, tier model.MembershipTier, durationDays int) (time.Time, error) {
	user, err := u.users.FindByID(ctx, qx, userID)
	if err != nil {
		return time.Time{}, err
	}

	now := time.Now()
	duration := time.Duration(durationDays) * 24 * time.Hour

	var expiry time.Time
	extended := user.HasActivePremium(now) && user.MembershipTier == tier
	if extended {
		expiry = user.MembershipExpiresAt.Add(duration)
	} else {
		expiry = now.Add(duration)
	}

	if err := u.users.SetMembership(ctx, qx, userID, tier, &expiry); err != nil {
		return time.Time{}, err
	}

	if err := u.notifs.Save(ctx, qx, &model.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      model.NotificationMembershipGranted,
		CreatedAt: now,
	}); err != nil {
		return time.Time{}, err
	}

	if extended {
		metrics.IncMembershipExtended()
	} else {
		metrics.IncMembershipActivated()
	}
	u.log.Info().
		Str("user_id", userID).
		Str("tier", string(tier)).
		Int("duration_days", durationDays).
		Time("expires_at", expiry).
		Bool("extended", extended).
		Msg("membership granted")
	return expiry, nil
}
