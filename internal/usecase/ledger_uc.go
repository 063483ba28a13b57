// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"webnovel-billing/internal/domain"
	"webnovel-billing/internal/domain/model"
	"webnovel-billing/internal/domain/ports/adapter"
	"webnovel-billing/internal/domain/ports/repository"
	"webnovel-billing/internal/infra/metrics"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

// PurchaseStatusView is the polling answer for the UI layer.
type PurchaseStatusView struct {
	Status    model.PurchaseStatus `json:"status"`
	Tier      model.MembershipTier `json:"tier"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
}

// LedgerUseCase drives a purchase through its lifecycle. Complete, Fail and
// Refund are the only legal transitions; anything else reports
// domain.ErrAlreadyProcessed so provider retries are idempotent successes.
type LedgerUseCase interface {
	// Checkout snapshots the package onto a new pending purchase and returns
	// the provider redirect URL.
	Checkout(ctx context.Context, userID, packageID, provider string) (*model.Purchase, string, error)
	// Complete moves pending -> completed and applies the account effect,
	// both inside one transaction. Exactly one of any number of concurrent
	// callers mutates the account.
	Complete(ctx context.Context, purchaseID string) (*model.Purchase, error)
	Fail(ctx context.Context, purchaseID, reason string) error
	// Refund moves completed -> refunded and reverses the granted effect.
	Refund(ctx context.Context, purchaseID, reason string) (*model.Purchase, error)
	FindByExternalRef(ctx context.Context, provider, externalRef string) (*model.Purchase, error)
	Status(ctx context.Context, purchaseID string) (*PurchaseStatusView, error)
}

type ledgerUC struct {
	purchases  repository.PurchaseRepository
	users      repository.UserRepository
	packages   repository.PackageRepository
	notifs     repository.NotificationRepository
	account    AccountUseCase
	membership MembershipUseCase
	gateways   map[string]adapter.PaymentGateway
	tm         repository.TransactionManager
	log        *zerolog.Logger
}

func NewLedgerUseCase(
	purchases repository.PurchaseRepository,
	users repository.UserRepository,
	packages repository.PackageRepository,
	notifs repository.NotificationRepository,
	account AccountUseCase,
	membership MembershipUseCase,
	gateways map[string]adapter.PaymentGateway,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *ledgerUC {
	l := logger.With().Str("component", "LedgerUC").Logger()
	return &ledgerUC{
		purchases:  purchases,
		users:      users,
		packages:   packages,
		notifs:     notifs,
		account:    account,
		membership: membership,
		gateways:   gateways,
		tm:         tm,
		log:        &l,
	}
}

func (u *ledgerUC) Checkout(ctx context.Context, userID, packageID, provider string) (*model.Purchase, string, error) {
	gw, ok := u.gateways[provider]
	if !ok {
		return nil, "", domain.ErrInvalidArgument
	}

	user, err := u.users.FindByID(ctx, nil, userID)
	if err != nil {
		return nil, "", err
	}
	if user.Banned {
		return nil, "", domain.ErrUserBanned
	}

	pkg, err := u.packages.FindByID(ctx, nil, packageID)
	if err != nil {
		return nil, "", err
	}
	if !pkg.Active {
		return nil, "", domain.ErrPackageInactive
	}

	// one in-flight purchase per user at a time
	if existing, err := u.purchases.FindPendingByUser(ctx, nil, userID); err == nil && existing != nil {
		return nil, "", domain.ErrPendingPurchase
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, "", err
	}

	p, err := model.NewPurchase(userID, pkg, provider)
	if err != nil {
		return nil, "", err
	}

	intent, err := gw.CreatePayment(ctx, p.PriceCents, p.Currency, p.ID)
	if err != nil {
		// nothing persisted yet; the caller may simply retry
		return nil, "", err
	}
	p.ExternalRef = &intent.ExternalID
	p.RedirectURL = intent.RedirectURL

	if err := u.purchases.Save(ctx, nil, p); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// two partial unique indexes can fire here; only the
			// one-pending-per-user index means the caller already has a
			// purchase in flight, a duplicate provider reference stays a
			// plain conflict
			if existing, ferr := u.purchases.FindPendingByUser(ctx, nil, userID); ferr == nil && existing != nil {
				return nil, "", domain.ErrPendingPurchase
			}
		}
		return nil, "", err
	}

	metrics.IncPurchase(string(model.PurchaseStatusPending), provider)
	u.log.Info().
		Str("purchase_id", p.ID).
		Str("user_id", userID).
		Str("package_id", packageID).
		Str("provider", provider).
		Int64("price_cents", p.PriceCents).
		Msg("purchase created")
	return p, intent.RedirectURL, nil
}

func (u *ledgerUC) Complete(ctx context.Context, purchaseID string) (*model.Purchase, error) {
	var completed *model.Purchase

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.purchases.FindByID(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		if err := u.tm.LockUser(ctx, tx, p.UserID); err != nil {
			return err
		}

		// check-and-set: the row is locked, so this status read is the
		// authoritative one
		if !p.CanTransition(model.PurchaseStatusCompleted) {
			return domain.ErrAlreadyProcessed
		}

		switch p.Kind {
		case model.PackageKindCoin:
			if err := u.account.CreditCoins(ctx, tx, p.UserID, p.Coins); err != nil {
				return err
			}
		case model.PackageKindMembership:
			if _, err := u.account.ActivateOrExtendMembership(ctx, tx, p.UserID, p.Tier, p.DurationDays); err != nil {
				return err
			}
		default:
			return domain.ErrInvalidArgument
		}

		now := time.Now()
		if err := u.purchases.UpdateStatus(ctx, tx, p.ID, model.PurchaseStatusCompleted, "", &now); err != nil {
			return err
		}
		if err := u.notifs.Save(ctx, tx, &model.Notification{
			ID:         uuid.NewString(),
			UserID:     p.UserID,
			Kind:       model.NotificationPurchaseCompleted,
			PurchaseID: p.ID,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		p.Status = model.PurchaseStatusCompleted
		p.PaidAt = &now
		p.UpdatedAt = now
		completed = p
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			u.log.Debug().Str("purchase_id", purchaseID).Msg("complete skipped: already processed")
		}
		return nil, err
	}

	metrics.IncPurchase(string(model.PurchaseStatusCompleted), completed.Provider)
	metrics.AddPurchaseRevenue(completed.Currency, completed.PriceCents)
	u.log.Info().
		Str("purchase_id", completed.ID).
		Str("user_id", completed.UserID).
		Str("provider", completed.Provider).
		Time("paid_at", *completed.PaidAt).
		Msg("purchase completed")
	return completed, nil
}

func (u *ledgerUC) Fail(ctx context.Context, purchaseID, reason string) error {
	var failed *model.Purchase

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.purchases.FindByID(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		if !p.CanTransition(model.PurchaseStatusFailed) {
			return domain.ErrAlreadyProcessed
		}
		if err := u.purchases.UpdateStatus(ctx, tx, p.ID, model.PurchaseStatusFailed, reason, nil); err != nil {
			return err
		}
		failed = p
		return nil
	})
	if err != nil {
		return err
	}

	metrics.IncPurchase(string(model.PurchaseStatusFailed), failed.Provider)
	u.log.Info().
		Str("purchase_id", failed.ID).
		Str("user_id", failed.UserID).
		Str("reason", reason).
		Msg("purchase failed")
	return nil
}

func (u *ledgerUC) Refund(ctx context.Context, purchaseID, reason string) (*model.Purchase, error) {
	var refunded *model.Purchase

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.purchases.FindByID(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		if err := u.tm.LockUser(ctx, tx, p.UserID); err != nil {
			return err
		}
		if !p.CanTransition(model.PurchaseStatusRefunded) {
			return domain.ErrAlreadyProcessed
		}

		switch p.Kind {
		case model.PackageKindCoin:
			// claw back what is still there; clamp at zero and record the
			// shortfall instead of driving the balance negative
			user, err := u.users.FindByID(ctx, tx, p.UserID)
			if err != nil {
				return err
			}
			debit := p.Coins
			if user.Coins < debit {
				debit = user.Coins
			}
			if debit > 0 {
				applied, err := u.users.AddCoins(ctx, tx, p.UserID, -debit)
				if err != nil {
					return err
				}
				if !applied {
					return domain.ErrOperationFailed
				}
				metrics.AddCoinsDebited(debit)
			}
			if shortfall := p.Coins - debit; shortfall > 0 {
				metrics.AddRefundShortfall(shortfall)
				u.log.Warn().
					Str("purchase_id", p.ID).
					Str("user_id", p.UserID).
					Int64("shortfall", shortfall).
					Msg("refund coin shortfall: balance already spent")
			}
		case model.PackageKindMembership:
			// end premium immediately
			if err := u.users.SetMembership(ctx, tx, p.UserID, model.TierBasic, nil); err != nil {
				return err
			}
		default:
			return domain.ErrInvalidArgument
		}

		now := time.Now()
		if err := u.purchases.UpdateStatus(ctx, tx, p.ID, model.PurchaseStatusRefunded, reason, nil); err != nil {
			return err
		}
		if err := u.notifs.Save(ctx, tx, &model.Notification{
			ID:         uuid.NewString(),
			UserID:     p.UserID,
			Kind:       model.NotificationPurchaseRefunded,
			PurchaseID: p.ID,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		p.Status = model.PurchaseStatusRefunded
		p.RefundReason = reason
		p.UpdatedAt = now
		refunded = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncPurchase(string(model.PurchaseStatusRefunded), refunded.Provider)
	u.log.Info().
		Str("purchase_id", refunded.ID).
		Str("user_id", refunded.UserID).
		Str("reason", reason).
		Msg("purchase refunded")
	return refunded, nil
}

func (u *ledgerUC) FindByExternalRef(ctx context.Context, provider, externalRef string) (*model.Purchase, error) {
	return u.purchases.FindByExternalRef(ctx, nil, provider, externalRef)
}

func (u *ledgerUC) Status(ctx context.Context, purchaseID string) (*PurchaseStatusView, error) {
	p, err := u.purchases.FindByID(ctx, nil, purchaseID)
	if err != nil {
		return nil, err
	}
	// lazy expiration before the tier is read, so a lapsed premium never
	// shows up in the polling answer
	if _, err := u.membership.ExpireUserIfDue(ctx, p.UserID); err != nil {
		u.log.Error().Err(err).Str("user_id", p.UserID).Msg("lazy expiry failed")
	}
	user, err := u.users.FindByID(ctx, nil, p.UserID)
	if err != nil {
		return nil, err
	}
	return &PurchaseStatusView{
		Status:    p.Status,
		Tier:      user.MembershipTier,
		ExpiresAt: user.MembershipExpiresAt,
	}, nil
}
