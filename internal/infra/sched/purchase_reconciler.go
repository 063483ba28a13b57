package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"webnovel-billing/internal/domain/ports/adapter"
	"webnovel-billing/internal/domain/ports/repository"
	"webnovel-billing/internal/usecase"
)

// PurchaseReconciler periodically scans for stale pending purchases and asks
// the provider for their real state. This covers cases where the callback was
// lost or the process crashed mid-complete. Pendings the provider still
// reports as in-flight are left pending; they are never silently completed.
type PurchaseReconciler struct {
	ledger     usecase.LedgerUseCase
	purchases  repository.PurchaseRepository
	gateways   map[string]adapter.PaymentGateway
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending purchase must be to recheck
	log        *zerolog.Logger
}

func NewPurchaseReconciler(ledger usecase.LedgerUseCase, purchases repository.PurchaseRepository, gateways map[string]adapter.PaymentGateway, interval, staleAfter time.Duration, logger *zerolog.Logger) *PurchaseReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	l := logger.With().Str("component", "PurchaseReconciler").Logger()
	return &PurchaseReconciler{
		ledger:     ledger,
		purchases:  purchases,
		gateways:   gateways,
		interval:   interval,
		staleAfter: staleAfter,
		log:        &l,
	}
}

func (w *PurchaseReconciler) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PurchaseReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.purchases.ListPendingOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending error")
		return
	}

	for _, p := range pending {
		if p.ExternalRef == nil {
			continue
		}
		gw, ok := w.gateways[p.Provider]
		if !ok {
			continue
		}

		status, err := gw.QueryStatus(ctx, *p.ExternalRef)
		if err != nil {
			w.log.Warn().Err(err).Str("purchase_id", p.ID).Msg("status query failed")
			continue
		}

		switch status {
		case adapter.ProviderStatusPaid:
			if _, err := w.ledger.Complete(ctx, p.ID); err != nil {
				w.log.Warn().Err(err).Str("purchase_id", p.ID).Msg("reconcile complete failed")
				continue
			}
			w.log.Info().Str("purchase_id", p.ID).Msg("reconciled: completed")
		case adapter.ProviderStatusFailed, adapter.ProviderStatusCanceled:
			if err := w.ledger.Fail(ctx, p.ID, "reconciler: provider reported "+string(status)); err != nil {
				w.log.Warn().Err(err).Str("purchase_id", p.ID).Msg("reconcile fail failed")
				continue
			}
			w.log.Info().Str("purchase_id", p.ID).Msg("reconciled: failed")
		}
	}
}
