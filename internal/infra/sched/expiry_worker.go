package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-secret-relay/internal/usecase"
)

// ExpiryWorker periodically flips shares past their expiry to expired.
type ExpiryWorker struct {
	interval time.Duration
	shareUC  usecase.ShareUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, shareUC usecase.ShareUseCase, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{interval: interval, shareUC: shareUC, log: &l}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.shareUC.ExpireDue(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("shares expired")
			}
		}
	}
}
