package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/tripsplit/tripsplit/internal/expenses"
	"github.com/tripsplit/tripsplit/internal/groups"
	"github.com/tripsplit/tripsplit/internal/tasks"
)

// HandleBalanceDigest recomputes a group's balances and stores a snapshot
func HandleBalanceDigest(ctx context.Context, t *asynq.Task, expensesService *expenses.Service, logger zerolog.Logger) error {
	payload, err := tasks.ParseBalanceDigestPayload(t)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w: %w", err, asynq.SkipRetry)
	}

	log := logger.With().
		Str("group_id", payload.GroupID).
		Str("reason", payload.Reason).
		Logger()

	summary, err := expensesService.StoreSnapshot(ctx, payload.GroupID)
	if err != nil {
		if errors.Is(err, groups.ErrNotFound) {
			// Group was deleted after the task was queued
			log.Warn().Msg("Group no longer exists - dropping balance digest")
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		log.Error().Err(err).Msg("Failed to store balance snapshot")
		return err
	}

	log.Info().
		Int("members", len(summary.Balances)).
		Int("settlements", len(summary.Settlements)).
		Msg("Balance digest stored")
	return nil
}
