package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"webnovel-billing/internal/infra/logging"
	"webnovel-billing/internal/usecase"
)

// ExpiryWorker periodically downgrades lapsed memberships via the use case.
type ExpiryWorker struct {
	interval   time.Duration
	membership usecase.MembershipUseCase
	log        *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, membership usecase.MembershipUseCase, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpiryWorker{
		interval:   interval,
		membership: membership,
		log:        &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			finish := logging.TraceDuration(w.log, "ExpiryWorker.ExpireDue")
			n, err := w.membership.ExpireDue(runCtx)
			finish()
			cancel()
			if err != nil {
				w.log.Error().Err(err).Msg("expiry worker error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("expired memberships downgraded")
			}
		}
	}
}
