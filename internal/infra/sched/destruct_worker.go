package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-secret-relay/internal/usecase"
)

// DestructWorker removes delivered copies whose self-destruct timer has
// elapsed. It runs tighter than the expiry sweep because timers are
// minute-granular.
type DestructWorker struct {
	interval time.Duration
	shareUC  usecase.ShareUseCase
	log      *zerolog.Logger
}

func NewDestructWorker(interval time.Duration, shareUC usecase.ShareUseCase, logger *zerolog.Logger) *DestructWorker {
	l := logger.With().Str("component", "DestructWorker").Logger()
	return &DestructWorker{interval: interval, shareUC: shareUC, log: &l}
}

func (w *DestructWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting self-destruct worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping self-destruct worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.shareUC.DestructDue(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("self-destruct sweep error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("delivered copies destructed")
			}
		}
	}
}
