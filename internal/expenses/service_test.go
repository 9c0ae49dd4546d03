package expenses

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tripsplit/tripsplit/internal/database"
	"github.com/tripsplit/tripsplit/internal/groups"
	"github.com/tripsplit/tripsplit/internal/ledger"
	"github.com/tripsplit/tripsplit/internal/models"
	"github.com/tripsplit/tripsplit/internal/tasks"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	enqueuer *fakeEnqueuer
	group    *models.Group
	alice    *models.User
	bob      *models.User
	carol    *models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "expenses.sqlite"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	f := &fixture{db: db, enqueuer: &fakeEnqueuer{}}
	groupsService := groups.NewService(db, zerolog.Nop())
	f.svc = NewService(db, groupsService, f.enqueuer, zerolog.Nop())

	users := make([]*models.User, 3)
	for i, email := range []string{"alice@example.com", "bob@example.com", "carol@example.com"} {
		users[i] = &models.User{Email: email, PasswordHash: "hash", Name: email}
		require.NoError(t, db.Create(users[i]).Error)
	}
	f.alice, f.bob, f.carol = users[0], users[1], users[2]

	ctx := context.Background()
	f.group, err = groupsService.Create(ctx, groups.CreateGroupParams{Name: "Trip", Currency: "EUR", CreatedByID: f.alice.ID})
	require.NoError(t, err)
	_, err = groupsService.AddMember(ctx, f.group.ID, f.alice.ID, "bob@example.com")
	require.NoError(t, err)
	_, err = groupsService.AddMember(ctx, f.group.ID, f.alice.ID, "carol@example.com")
	require.NoError(t, err)

	return f
}

func TestCreate_EqualSplitDefaultsToAllMembers(t *testing.T) {
	f := setup(t)

	expense, err := f.svc.Create(context.Background(), CreateExpenseParams{
		GroupID:     f.group.ID,
		ActorID:     f.alice.ID,
		Description: "Dinner",
		AmountCents: 1000,
	})
	require.NoError(t, err)

	assert.Equal(t, "EUR", expense.Currency)
	assert.Equal(t, f.alice.ID, expense.PaidByID)
	assert.Equal(t, models.SplitEqual, expense.SplitMethod)
	require.Len(t, expense.Splits, 3)
	assert.EqualValues(t, 334, expense.Splits[0].AmountCents)
	assert.EqualValues(t, 333, expense.Splits[1].AmountCents)
	assert.EqualValues(t, 333, expense.Splits[2].AmountCents)

	require.Len(t, f.enqueuer.tasks, 1)
	payload, err := tasks.ParseBalanceDigestPayload(f.enqueuer.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, f.group.ID, payload.GroupID)
	assert.Equal(t, tasks.ReasonExpenseCreated, payload.Reason)
}

func TestCreate_ExactSplit(t *testing.T) {
	f := setup(t)

	expense, err := f.svc.Create(context.Background(), CreateExpenseParams{
		GroupID:     f.group.ID,
		ActorID:     f.bob.ID,
		PaidByID:    f.carol.ID,
		Description: "Taxi",
		AmountCents: 500,
		SplitMethod: models.SplitExact,
		Shares:      []ledger.Share{{UserID: f.alice.ID, Amount: 200}, {UserID: f.bob.ID, Amount: 300}},
	})
	require.NoError(t, err)
	assert.Equal(t, f.carol.ID, expense.PaidByID)
	assert.Len(t, expense.Splits, 2)
}

func TestCreate_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	outsider := &models.User{Email: "out@example.com", PasswordHash: "hash", Name: "Out"}
	require.NoError(t, f.db.Create(outsider).Error)

	tests := []struct {
		name    string
		params  CreateExpenseParams
		wantErr error
	}{
		{
			name:    "actor not a member",
			params:  CreateExpenseParams{GroupID: f.group.ID, ActorID: outsider.ID, AmountCents: 100},
			wantErr: groups.ErrNotFound,
		},
		{
			name:    "payer not a member",
			params:  CreateExpenseParams{GroupID: f.group.ID, ActorID: f.alice.ID, PaidByID: outsider.ID, AmountCents: 100},
			wantErr: ErrNotMember,
		},
		{
			name:    "participant not a member",
			params:  CreateExpenseParams{GroupID: f.group.ID, ActorID: f.alice.ID, AmountCents: 100, Participants: []string{f.alice.ID, outsider.ID}},
			wantErr: ErrNotMember,
		},
		{
			name:    "other currency",
			params:  CreateExpenseParams{GroupID: f.group.ID, ActorID: f.alice.ID, AmountCents: 100, Currency: "usd"},
			wantErr: ErrCurrencyMismatch,
		},
		{
			name:    "zero amount",
			params:  CreateExpenseParams{GroupID: f.group.ID, ActorID: f.alice.ID, AmountCents: 0},
			wantErr: ErrInvalidSplit,
		},
		{
			name: "exact shares mismatch",
			params: CreateExpenseParams{
				GroupID: f.group.ID, ActorID: f.alice.ID, AmountCents: 100, SplitMethod: models.SplitExact,
				Shares: []ledger.Share{{UserID: f.alice.ID, Amount: 10}},
			},
			wantErr: ErrInvalidSplit,
		},
		{
			name:    "unknown split method",
			params:  CreateExpenseParams{GroupID: f.group.ID, ActorID: f.alice.ID, AmountCents: 100, SplitMethod: "percent"},
			wantErr: ErrInvalidSplit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, f.enqueuer.tasks)
}

func TestCreate_EnqueueFailureDoesNotFail(t *testing.T) {
	f := setup(t)
	f.enqueuer.err = errors.New("redis down")

	_, err := f.svc.Create(context.Background(), CreateExpenseParams{
		GroupID: f.group.ID, ActorID: f.alice.ID, Description: "Museum", AmountCents: 3000,
	})
	assert.NoError(t, err)
}

func TestBalancesAndSettlements(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateExpenseParams{
		GroupID: f.group.ID, ActorID: f.alice.ID, Description: "Hotel", AmountCents: 900,
	})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateExpenseParams{
		GroupID: f.group.ID, ActorID: f.bob.ID, Description: "Snacks", AmountCents: 300,
		Participants: []string{f.alice.ID, f.bob.ID},
	})
	require.NoError(t, err)

	summary, err := f.svc.Balances(ctx, f.group.ID, f.carol.ID)
	require.NoError(t, err)
	assert.Equal(t, "EUR", summary.Currency)

	net := map[string]int64{}
	for _, b := range summary.Balances {
		net[b.UserID] = b.Net
	}
	assert.EqualValues(t, 450, net[f.alice.ID])
	assert.EqualValues(t, -150, net[f.bob.ID])
	assert.EqualValues(t, -300, net[f.carol.ID])

	assert.ElementsMatch(t, []ledger.Transfer{
		{From: f.carol.ID, To: f.alice.ID, Amount: 300},
		{From: f.bob.ID, To: f.alice.ID, Amount: 150},
	}, summary.Settlements)
}

func TestListAndDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	expense, err := f.svc.Create(ctx, CreateExpenseParams{
		GroupID: f.group.ID, ActorID: f.bob.ID, Description: "Bikes", AmountCents: 1200,
	})
	require.NoError(t, err)

	list, total, err := f.svc.List(ctx, f.group.ID, f.carol.ID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Splits, 3)

	assert.ErrorIs(t, f.svc.Delete(ctx, f.group.ID, expense.ID, f.carol.ID), ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.group.ID, "missing", f.bob.ID), ErrNotFound)
	require.NoError(t, f.svc.Delete(ctx, f.group.ID, expense.ID, f.alice.ID))

	_, total, err = f.svc.List(ctx, f.group.ID, f.bob.ID, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	var splits int64
	require.NoError(t, f.db.Model(&models.ExpenseSplit{}).Where("expense_id = ?", expense.ID).Count(&splits).Error)
	assert.Zero(t, splits)

	require.Len(t, f.enqueuer.tasks, 2)
	payload, err := tasks.ParseBalanceDigestPayload(f.enqueuer.tasks[1])
	require.NoError(t, err)
	assert.Equal(t, tasks.ReasonExpenseDeleted, payload.Reason)
}

func TestStoreSnapshotAndHistory(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateExpenseParams{
		GroupID: f.group.ID, ActorID: f.alice.ID, Description: "Ferry", AmountCents: 600,
	})
	require.NoError(t, err)

	summary, err := f.svc.StoreSnapshot(ctx, f.group.ID)
	require.NoError(t, err)
	assert.Len(t, summary.Balances, 3)

	history, total, err := f.svc.History(ctx, f.group.ID, f.bob.ID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, history, 3)

	var sum int64
	for _, row := range history {
		sum += row.NetCents
	}
	assert.Zero(t, sum)
}
