package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tripsplit/tripsplit/internal/groups"
	"github.com/tripsplit/tripsplit/internal/models"
	"github.com/tripsplit/tripsplit/internal/tasks"
)

// StartDigestScheduler checks every minute for groups whose digest is due
// and runs until ctx is cancelled.
func StartDigestScheduler(ctx context.Context, client tasks.Enqueuer, db *gorm.DB, logger zerolog.Logger) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	// Run immediately on startup, then every minute
	enqueueDueDigests(ctx, client, db, time.Now(), logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Digest scheduler stopped")
			return
		case now := <-ticker.C:
			enqueueDueDigests(ctx, client, db, now, logger)
		}
	}
}

// enqueueDueDigests enqueues one digest per due group and advances its
// next_digest_at. It returns how many digests were enqueued.
func enqueueDueDigests(ctx context.Context, client tasks.Enqueuer, db *gorm.DB, now time.Time, logger zerolog.Logger) int {
	now = now.UTC()

	var due []models.Group
	err := db.WithContext(ctx).
		Where("digest_schedule <> ''").
		Where("next_digest_at IS NULL OR next_digest_at <= ?", now).
		Find(&due).Error
	if err != nil {
		logger.Error().Err(err).Msg("Failed to query groups for digests")
		return 0
	}

	if len(due) == 0 {
		logger.Debug().Msg("No balance digests due")
		return 0
	}

	enqueued := 0
	for _, group := range due {
		next, err := groups.NextDigestTime(group.DigestSchedule, now)
		if err != nil {
			// Schedules are validated on create, so this only happens for
			// rows edited by hand. Clear it to stop retrying every minute.
			logger.Warn().
				Err(err).
				Str("group_id", group.ID).
				Str("digest_schedule", group.DigestSchedule).
				Msg("Invalid digest schedule - disabling")
			err = db.WithContext(ctx).Model(&group).Updates(map[string]interface{}{
				"digest_schedule": "",
				"next_digest_at":  nil,
			}).Error
			if err != nil {
				logger.Error().
					Err(err).
					Str("group_id", group.ID).
					Msg("Failed to disable digest schedule")
			}
			continue
		}

		task, err := tasks.NewBalanceDigestTask(group.ID, tasks.ReasonScheduled)
		if err != nil {
			logger.Error().Err(err).Str("group_id", group.ID).Msg("Failed to create digest task")
			continue
		}

		if _, err := client.Enqueue(task); err != nil {
			logger.Error().Err(err).Str("group_id", group.ID).Msg("Failed to enqueue digest task")
			continue
		}
		enqueued++

		// Advance immediately so the next tick does not enqueue again
		if err := db.WithContext(ctx).Model(&group).Update("next_digest_at", next).Error; err != nil {
			logger.Error().
				Err(err).
				Str("group_id", group.ID).
				Msg("Failed to update next_digest_at")
			continue
		}

		logger.Info().
			Str("group_id", group.ID).
			Time("next_digest_at", *next).
			Msg("Scheduled balance digest enqueued")
	}

	return enqueued
}
