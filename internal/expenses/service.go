package expenses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tripsplit/tripsplit/internal/groups"
	"github.com/tripsplit/tripsplit/internal/ledger"
	"github.com/tripsplit/tripsplit/internal/models"
	"github.com/tripsplit/tripsplit/internal/tasks"
)

var (
	ErrNotFound         = errors.New("expense not found")
	ErrInvalidSplit     = errors.New("invalid split")
	ErrNotMember        = errors.New("user is not a member of this group")
	ErrCurrencyMismatch = errors.New("expense currency must match the group currency")
	ErrForbidden        = errors.New("only the payer or the group owner can delete this expense")
)

type Service struct {
	db       *gorm.DB
	groups   *groups.Service
	enqueuer tasks.Enqueuer
	logger   zerolog.Logger
}

type CreateExpenseParams struct {
	GroupID      string
	ActorID      string
	PaidByID     string // defaults to ActorID
	Description  string
	AmountCents  int64
	Currency     string // defaults to the group currency
	SplitMethod  string // equal (default) or exact
	Participants []string
	Shares       []ledger.Share
	SpentAt      time.Time
}

// Summary is the balance view of a group
type Summary struct {
	GroupID     string            `json:"group_id"`
	Currency    string            `json:"currency"`
	Balances    []ledger.Balance  `json:"balances"`
	Settlements []ledger.Transfer `json:"settlements"`
}

// NewService wires the expense service. enqueuer may be nil, in which case
// no balance digests are scheduled.
func NewService(db *gorm.DB, groupsService *groups.Service, enqueuer tasks.Enqueuer, logger zerolog.Logger) *Service {
	return &Service{
		db:       db,
		groups:   groupsService,
		enqueuer: enqueuer,
		logger:   logger.With().Str("component", "expenses_service").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, params CreateExpenseParams) (*models.Expense, error) {
	if _, err := s.groups.Membership(ctx, params.GroupID, params.ActorID); err != nil {
		return nil, err
	}

	var group models.Group
	if err := models.FindByID(s.db.WithContext(ctx), params.GroupID, &group); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, groups.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load group: %w", err)
	}

	currency := strings.ToUpper(params.Currency)
	if currency == "" {
		currency = group.Currency
	}
	if currency != group.Currency {
		return nil, fmt.Errorf("%w: %s", ErrCurrencyMismatch, group.Currency)
	}

	memberIDs, err := s.groups.MemberIDs(ctx, params.GroupID)
	if err != nil {
		return nil, err
	}
	members := make(map[string]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = struct{}{}
	}

	paidBy := params.PaidByID
	if paidBy == "" {
		paidBy = params.ActorID
	}
	if _, ok := members[paidBy]; !ok {
		return nil, fmt.Errorf("%w: payer %s", ErrNotMember, paidBy)
	}

	method := params.SplitMethod
	if method == "" {
		method = models.SplitEqual
	}

	var shares []ledger.Share
	switch method {
	case models.SplitEqual:
		participants := params.Participants
		if len(participants) == 0 {
			participants = memberIDs
		}
		shares, err = ledger.SplitEqual(params.AmountCents, participants)
	case models.SplitExact:
		shares = params.Shares
		err = ledger.ValidateExact(params.AmountCents, shares)
	default:
		err = fmt.Errorf("unknown split method %q", method)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSplit, err)
	}
	for _, share := range shares {
		if _, ok := members[share.UserID]; !ok {
			return nil, fmt.Errorf("%w: participant %s", ErrNotMember, share.UserID)
		}
	}

	spentAt := params.SpentAt
	if spentAt.IsZero() {
		spentAt = time.Now().UTC()
	}

	expense := &models.Expense{
		GroupID:     params.GroupID,
		PaidByID:    paidBy,
		Description: strings.TrimSpace(params.Description),
		AmountCents: params.AmountCents,
		Currency:    currency,
		SplitMethod: method,
		SpentAt:     spentAt,
	}
	for _, share := range shares {
		expense.Splits = append(expense.Splits, models.ExpenseSplit{
			UserID:      share.UserID,
			AmountCents: share.Amount,
		})
	}

	if err := s.db.WithContext(ctx).Create(expense).Error; err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}

	s.logger.Info().
		Str("expense_id", expense.ID).
		Str("group_id", expense.GroupID).
		Str("paid_by_id", expense.PaidByID).
		Int64("amount_cents", expense.AmountCents).
		Msg("Expense created")

	s.requestDigest(expense.GroupID, tasks.ReasonExpenseCreated)

	return expense, nil
}

// List returns a page of a group's expenses, newest first
func (s *Service) List(ctx context.Context, groupID, actorID string, offset, limit int) ([]models.Expense, int64, error) {
	if _, err := s.groups.Membership(ctx, groupID, actorID); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Expense{}).Where("group_id = ?", groupID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	var expenses []models.Expense
	err := s.db.WithContext(ctx).
		Preload("Splits").
		Where("group_id = ?", groupID).
		Order("spent_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&expenses).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses: %w", err)
	}
	return expenses, total, nil
}

// Delete removes an expense. Only its payer or the group owner may do so.
func (s *Service) Delete(ctx context.Context, groupID, expenseID, actorID string) error {
	member, err := s.groups.Membership(ctx, groupID, actorID)
	if err != nil {
		return err
	}

	var expense models.Expense
	err = s.db.WithContext(ctx).Where("id = ? AND group_id = ?", expenseID, groupID).First(&expense).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find expense: %w", err)
	}

	if expense.PaidByID != actorID && member.Role != models.RoleOwner {
		return ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expense_id = ?", expense.ID).Delete(&models.ExpenseSplit{}).Error; err != nil {
			return err
		}
		return tx.Delete(&expense).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	s.logger.Info().
		Str("expense_id", expense.ID).
		Str("group_id", groupID).
		Str("deleted_by", actorID).
		Msg("Expense deleted")

	s.requestDigest(groupID, tasks.ReasonExpenseDeleted)
	return nil
}

// Balances returns the balance summary for a member of the group
func (s *Service) Balances(ctx context.Context, groupID, actorID string) (*Summary, error) {
	if _, err := s.groups.Membership(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	return s.ComputeBalances(ctx, groupID)
}

// ComputeBalances builds the summary without an access check
func (s *Service) ComputeBalances(ctx context.Context, groupID string) (*Summary, error) {
	var group models.Group
	if err := models.FindByID(s.db.WithContext(ctx), groupID, &group); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, groups.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load group: %w", err)
	}

	memberIDs, err := s.groups.MemberIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var expenses []models.Expense
	if err := s.db.WithContext(ctx).Preload("Splits").Where("group_id = ?", groupID).Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("failed to load expenses: %w", err)
	}

	entries := make([]ledger.Entry, len(expenses))
	for i, e := range expenses {
		shares := make([]ledger.Share, len(e.Splits))
		for j, split := range e.Splits {
			shares[j] = ledger.Share{UserID: split.UserID, Amount: split.AmountCents}
		}
		entries[i] = ledger.Entry{PaidBy: e.PaidByID, Amount: e.AmountCents, Shares: shares}
	}

	balances := ledger.Balances(memberIDs, entries)
	settlements := ledger.Settle(balances)
	if settlements == nil {
		settlements = []ledger.Transfer{}
	}

	return &Summary{
		GroupID:     groupID,
		Currency:    group.Currency,
		Balances:    balances,
		Settlements: settlements,
	}, nil
}

// History returns stored balance snapshots, newest first
func (s *Service) History(ctx context.Context, groupID, actorID string, offset, limit int) ([]models.BalanceSnapshot, int64, error) {
	if _, err := s.groups.Membership(ctx, groupID, actorID); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.BalanceSnapshot{}).Where("group_id = ?", groupID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count snapshots: %w", err)
	}

	var snapshots []models.BalanceSnapshot
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("computed_at DESC, user_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&snapshots).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snapshots, total, nil
}

// StoreSnapshot computes the current balances and records one snapshot row per member
func (s *Service) StoreSnapshot(ctx context.Context, groupID string) (*Summary, error) {
	summary, err := s.ComputeBalances(ctx, groupID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rows := make([]models.BalanceSnapshot, len(summary.Balances))
	for i, b := range summary.Balances {
		rows[i] = models.BalanceSnapshot{
			GroupID:    groupID,
			UserID:     b.UserID,
			NetCents:   b.Net,
			ComputedAt: now,
		}
	}
	if len(rows) > 0 {
		if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to store snapshot: %w", err)
		}
	}
	return summary, nil
}

func (s *Service) requestDigest(groupID, reason string) {
	if s.enqueuer == nil {
		return
	}
	task, err := tasks.NewBalanceDigestTask(groupID, reason)
	if err != nil {
		s.logger.Error().Err(err).Str("group_id", groupID).Msg("Failed to build balance digest task")
		return
	}
	if _, err := s.enqueuer.Enqueue(task); err != nil {
		s.logger.Warn().Err(err).Str("group_id", groupID).Msg("Failed to enqueue balance digest")
		return
	}
	s.logger.Debug().Str("group_id", groupID).Str("reason", reason).Msg("Enqueued balance digest")
}
