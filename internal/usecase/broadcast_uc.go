package usecase

import (
	"context"
	"time"

	"telegram-secret-relay/internal/domain/model"
	"telegram-secret-relay/internal/domain/ports/adapter"
	"telegram-secret-relay/internal/domain/ports/repository"
	"telegram-secret-relay/internal/infra/metrics"
	red "telegram-secret-relay/internal/infra/redis"
	"telegram-secret-relay/internal/infra/worker"

	"github.com/rs/zerolog"
)

const broadcastLockKey = "broadcast_lock"

type BroadcastUseCase interface {
	// BroadcastMessage queues a message for every non-banned user except
	// the initiating admin. Returns the number of queued recipients.
	BroadcastMessage(ctx context.Context, actorID int64, message string) (int, error)
}

var _ BroadcastUseCase = (*broadcastUC)(nil)

type broadcastUC struct {
	users      repository.UserRepository
	bot        adapter.TelegramBotAdapter
	workerPool *worker.Pool
	locker     red.Locker
	log        *zerolog.Logger
}

func NewBroadcastUseCase(
	users repository.UserRepository,
	bot adapter.TelegramBotAdapter,
	pool *worker.Pool,
	locker red.Locker,
	logger *zerolog.Logger,
) BroadcastUseCase {
	return &broadcastUC{
		users:      users,
		bot:        bot,
		workerPool: pool,
		locker:     locker,
		log:        logger,
	}
}

func (uc *broadcastUC) BroadcastMessage(ctx context.Context, actorID int64, message string) (int, error) {
	// One broadcast at a time; the lock outlives the queuing goroutine.
	lockToken, err := uc.locker.TryLock(ctx, broadcastLockKey, 10*time.Minute)
	if err != nil {
		return 0, err
	}

	allUsers, err := uc.users.List(ctx, repository.NoTX, false)
	if err != nil {
		uc.log.Error().Err(err).Msg("Failed to fetch users for broadcast")
		_ = uc.locker.Unlock(ctx, broadcastLockKey, lockToken)
		return 0, err
	}

	var recipients []*model.User
	for _, user := range allUsers {
		if user.TelegramID == actorID {
			continue
		}
		recipients = append(recipients, user)
	}

	// Throttle to respect Telegram's API limits (approx. 30 messages/sec)
	throttle := time.NewTicker(time.Second / 25)

	go func() {
		defer throttle.Stop()
		defer func() { _ = uc.locker.Unlock(context.Background(), broadcastLockKey, lockToken) }()
		uc.log.Info().Int("user_count", len(recipients)).Msg("Starting broadcast job")

		for _, user := range recipients {
			<-throttle.C

			task := uc.createSendTask(user.TelegramID, message)
			if err := uc.workerPool.Submit(task); err != nil {
				uc.log.Warn().Err(err).Int64("tg_id", user.TelegramID).Msg("Failed to submit broadcast task to worker pool")
			}
		}
		uc.log.Info().Msg("Broadcast job finished queuing all tasks")
	}()

	metrics.AddBroadcastQueued(len(recipients))
	return len(recipients), nil
}

// createSendTask creates a closure for the worker pool to execute.
func (uc *broadcastUC) createSendTask(telegramID int64, message string) worker.Task {
	return func(ctx context.Context) error {
		_, err := uc.bot.SendMessage(ctx, adapter.SendMessageParams{
			ChatID: telegramID,
			Text:   message,
		})
		if err != nil {
			// Common case: the user blocked the bot.
			uc.log.Warn().Err(err).Int64("tg_id", telegramID).Msg("Failed to send broadcast message to user")
		}
		return nil // keep the pool from logging it again
	}
}
