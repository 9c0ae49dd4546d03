package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tripsplit/tripsplit/internal/database"
	"github.com/tripsplit/tripsplit/internal/models"
)

var (
	ErrNotFound        = errors.New("group not found")
	ErrForbidden       = errors.New("only the group owner can do this")
	ErrUserNotFound    = errors.New("no user with that email")
	ErrAlreadyMember   = errors.New("user is already a member of this group")
	ErrInvalidSchedule = errors.New("invalid digest schedule")
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

type CreateGroupParams struct {
	Name           string
	Description    string
	Currency       string
	DigestSchedule string
	CreatedByID    string
}

func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "groups_service").Logger(),
	}
}

// NextDigestTime returns the next run of a cron expression after from.
// An empty expression means no schedule.
func NextDigestTime(expr string, from time.Time) (*time.Time, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	next := schedule.Next(from)
	return &next, nil
}

// Create stores a new group and makes its creator the owner
func (s *Service) Create(ctx context.Context, params CreateGroupParams) (*models.Group, error) {
	nextDigest, err := NextDigestTime(params.DigestSchedule, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	group := &models.Group{
		Name:           strings.TrimSpace(params.Name),
		Description:    params.Description,
		Currency:       strings.ToUpper(params.Currency),
		CreatedByID:    params.CreatedByID,
		DigestSchedule: params.DigestSchedule,
		NextDigestAt:   nextDigest,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}
		owner := &models.GroupMember{
			GroupID: group.ID,
			UserID:  params.CreatedByID,
			Role:    models.RoleOwner,
		}
		if err := tx.Create(owner).Error; err != nil {
			return fmt.Errorf("failed to add owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("group_id", group.ID).
		Str("created_by_id", params.CreatedByID).
		Msg("Group created")

	return s.load(ctx, group.ID)
}

// ListForUser returns the groups userID belongs to, newest first
func (s *Service) ListForUser(ctx context.Context, userID string, offset, limit int) ([]models.Group, int64, error) {
	memberOf := s.db.Model(&models.GroupMember{}).Select("group_id").Where("user_id = ?", userID)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Group{}).Where("id IN (?)", memberOf).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	var groups []models.Group
	err := s.db.WithContext(ctx).
		Where("id IN (?)", memberOf).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&groups).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, total, nil
}

// GetForMember loads a group with its members. Non-members get ErrNotFound.
func (s *Service) GetForMember(ctx context.Context, groupID, userID string) (*models.Group, error) {
	if _, err := s.Membership(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.load(ctx, groupID)
}

// Membership returns userID's membership in groupID
func (s *Service) Membership(ctx context.Context, groupID, userID string) (*models.GroupMember, error) {
	var member models.GroupMember
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}
	return &member, nil
}

// MemberIDs returns the user IDs of every member in join order
func (s *Service) MemberIDs(ctx context.Context, groupID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Order("created_at ASC, id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return ids, nil
}

// AddMember adds the user registered under email. Only owners may add.
func (s *Service) AddMember(ctx context.Context, groupID, actorID, email string) (*models.GroupMember, error) {
	actor, err := s.Membership(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleOwner {
		return nil, ErrForbidden
	}

	var user models.User
	err = s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if _, err := s.Membership(ctx, groupID, user.ID); err == nil {
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	member := &models.GroupMember{
		GroupID: groupID,
		UserID:  user.ID,
		Role:    models.RoleMember,
	}
	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	member.User = user

	s.logger.Info().
		Str("group_id", groupID).
		Str("user_id", user.ID).
		Str("added_by", actorID).
		Msg("Member added")

	return member, nil
}

func (s *Service) load(ctx context.Context, groupID string) (*models.Group, error) {
	var group models.Group
	members := s.db.WithContext(ctx).Preload("Members", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	})
	err := models.FindByIDWithPreload(members, groupID, &group, "Members.User")
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	return &group, nil
}
