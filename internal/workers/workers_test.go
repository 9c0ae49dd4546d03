package workers

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tripsplit/tripsplit/internal/database"
	"github.com/tripsplit/tripsplit/internal/expenses"
	"github.com/tripsplit/tripsplit/internal/groups"
	"github.com/tripsplit/tripsplit/internal/models"
	"github.com/tripsplit/tripsplit/internal/tasks"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type fixture struct {
	db       *gorm.DB
	groups   *groups.Service
	expenses *expenses.Service
	owner    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "workers.sqlite"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	owner := &models.User{Email: "owner@example.com", PasswordHash: "hash", Name: "Owner"}
	require.NoError(t, db.Create(owner).Error)

	groupsService := groups.NewService(db, zerolog.Nop())
	return &fixture{
		db:       db,
		groups:   groupsService,
		expenses: expenses.NewService(db, groupsService, nil, zerolog.Nop()),
		owner:    owner,
	}
}

func (f *fixture) createGroup(t *testing.T, name, schedule string) *models.Group {
	t.Helper()
	group, err := f.groups.Create(context.Background(), groups.CreateGroupParams{
		Name:           name,
		Currency:       "EUR",
		DigestSchedule: schedule,
		CreatedByID:    f.owner.ID,
	})
	require.NoError(t, err)
	return group
}

func TestHandleBalanceDigest_StoresSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.createGroup(t, "Rome", "")

	_, err := f.expenses.Create(ctx, expenses.CreateExpenseParams{
		GroupID:     group.ID,
		ActorID:     f.owner.ID,
		Description: "Museum",
		AmountCents: 3000,
	})
	require.NoError(t, err)

	task, err := tasks.NewBalanceDigestTask(group.ID, tasks.ReasonExpenseCreated)
	require.NoError(t, err)
	require.NoError(t, HandleBalanceDigest(ctx, task, f.expenses, zerolog.Nop()))

	var snapshots []models.BalanceSnapshot
	require.NoError(t, f.db.Where("group_id = ?", group.ID).Find(&snapshots).Error)
	require.Len(t, snapshots, 1)
	assert.Equal(t, f.owner.ID, snapshots[0].UserID)
	assert.Equal(t, int64(0), snapshots[0].NetCents)
}

func TestHandleBalanceDigest_MissingGroupSkipsRetry(t *testing.T) {
	f := newFixture(t)

	task, err := tasks.NewBalanceDigestTask("01HZZZZZZZZZZZZZZZZZZZZZZZ", tasks.ReasonScheduled)
	require.NoError(t, err)

	err = HandleBalanceDigest(context.Background(), task, f.expenses, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.True(t, errors.Is(err, groups.ErrNotFound))
}

func TestHandleBalanceDigest_BadPayload(t *testing.T) {
	f := newFixture(t)

	err := HandleBalanceDigest(context.Background(), asynq.NewTask(tasks.TypeBalanceDigest, []byte("{")), f.expenses, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestEnqueueDueDigests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	scheduled := f.createGroup(t, "Weekly", "@daily")
	f.createGroup(t, "Unscheduled", "")

	// Not due yet
	enqueuer := &fakeEnqueuer{}
	assert.Equal(t, 0, enqueueDueDigests(ctx, enqueuer, f.db, time.Now(), zerolog.Nop()))
	assert.Empty(t, enqueuer.tasks)

	// Two days later the daily digest is due exactly once
	later := time.Now().Add(48 * time.Hour)
	assert.Equal(t, 1, enqueueDueDigests(ctx, enqueuer, f.db, later, zerolog.Nop()))
	require.Len(t, enqueuer.tasks, 1)

	payload, err := tasks.ParseBalanceDigestPayload(enqueuer.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, scheduled.ID, payload.GroupID)
	assert.Equal(t, tasks.ReasonScheduled, payload.Reason)

	var reloaded models.Group
	require.NoError(t, models.FindByID(f.db, scheduled.ID, &reloaded))
	require.NotNil(t, reloaded.NextDigestAt)
	assert.True(t, reloaded.NextDigestAt.After(later))

	assert.Equal(t, 0, enqueueDueDigests(ctx, enqueuer, f.db, later, zerolog.Nop()))
}

func TestEnqueueDueDigests_EnqueueFailureKeepsSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.createGroup(t, "Weekly", "@daily")

	later := time.Now().Add(48 * time.Hour)
	failing := &fakeEnqueuer{err: errors.New("redis down")}
	assert.Equal(t, 0, enqueueDueDigests(ctx, failing, f.db, later, zerolog.Nop()))

	var reloaded models.Group
	require.NoError(t, models.FindByID(f.db, group.ID, &reloaded))
	assert.True(t, reloaded.NextDigestAt.Before(later))

	// Retried on the next tick
	ok := &fakeEnqueuer{}
	assert.Equal(t, 1, enqueueDueDigests(ctx, ok, f.db, later, zerolog.Nop()))
}

func TestEnqueueDueDigests_InvalidScheduleDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.createGroup(t, "Broken", "")
	require.NoError(t, f.db.Model(group).Update("digest_schedule", "not a cron").Error)

	enqueuer := &fakeEnqueuer{}
	assert.Equal(t, 0, enqueueDueDigests(ctx, enqueuer, f.db, time.Now(), zerolog.Nop()))

	var reloaded models.Group
	require.NoError(t, models.FindByID(f.db, group.ID, &reloaded))
	assert.Empty(t, reloaded.DigestSchedule)
}

func TestEnqueueDueDigests_DisableFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := f.createGroup(t, "Broken", "")
	require.NoError(t, f.db.Model(group).Update("digest_schedule", "not a cron").Error)

	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:fail_update", func(tx *gorm.DB) {
		tx.AddError(errors.New("database is locked"))
	}))

	var logs bytes.Buffer
	enqueuer := &fakeEnqueuer{}
	assert.Equal(t, 0, enqueueDueDigests(ctx, enqueuer, f.db, time.Now(), zerolog.New(&logs)))
	assert.Empty(t, enqueuer.tasks)
	assert.Contains(t, logs.String(), "Failed to disable digest schedule")
	assert.Contains(t, logs.String(), group.ID)
}

func TestStartDigestScheduler_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		StartDigestScheduler(ctx, &fakeEnqueuer{}, f.db, zerolog.Nop())
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
