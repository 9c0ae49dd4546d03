package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// Group member roles
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Split methods
const (
	SplitEqual = "equal"
	SplitExact = "exact"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Settings is a singleton row holding server-generated secrets
type Settings struct {
	BaseModel
	JWTSecret string `json:"-" gorm:"type:varchar(64);not null"` // Generated on first boot (64 hex chars)
}

// User represents a registered traveller
type User struct {
	BaseModel
	Email        string    `json:"email" gorm:"unique;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Name         string    `json:"name" gorm:"not null"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Group is a set of people sharing costs on a trip
type Group struct {
	BaseModel
	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description"`
	Currency    string `json:"currency" gorm:"type:varchar(3);not null"` // ISO 4217, e.g. "EUR"
	CreatedByID string `json:"created_by_id" gorm:"not null;index"`

	// Balance digests
	DigestSchedule string     `json:"digest_schedule"` // Cron expression, empty = no scheduled digests
	NextDigestAt   *time.Time `json:"next_digest_at"`

	Members []GroupMember `json:"members,omitempty" gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}

// GroupMember links a user to a group
type GroupMember struct {
	BaseModel
	GroupID string `json:"group_id" gorm:"not null;uniqueIndex:idx_group_member"`
	UserID  string `json:"user_id" gorm:"not null;uniqueIndex:idx_group_member"`
	Role    string `json:"role" gorm:"not null;default:member"`

	User User `json:"user,omitzero" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// Expense is a payment made by one member on behalf of some participants
type Expense struct {
	BaseModel
	GroupID     string    `json:"group_id" gorm:"not null;index"`
	PaidByID    string    `json:"paid_by_id" gorm:"not null"`
	Description string    `json:"description" gorm:"not null"`
	AmountCents int64     `json:"amount_cents" gorm:"not null"`
	Currency    string    `json:"currency" gorm:"type:varchar(3);not null"`
	SplitMethod string    `json:"split_method" gorm:"not null;default:equal"`
	SpentAt     time.Time `json:"spent_at"`

	Splits []ExpenseSplit `json:"splits,omitempty" gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE"`
}

// ExpenseSplit is one participant's share of an expense
type ExpenseSplit struct {
	BaseModel
	ExpenseID   string `json:"expense_id" gorm:"not null;index"`
	UserID      string `json:"user_id" gorm:"not null"`
	AmountCents int64  `json:"amount_cents" gorm:"not null"`
}

// BalanceSnapshot records a member's net balance at digest time
type BalanceSnapshot struct {
	BaseModel
	GroupID    string    `json:"group_id" gorm:"not null;index"`
	UserID     string    `json:"user_id" gorm:"not null"`
	NetCents   int64     `json:"net_cents"`
	ComputedAt time.Time `json:"computed_at" gorm:"index"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&User{}, &Settings{}, &Group{}, &GroupMember{}, &Expense{}, &ExpenseSplit{}, &BalanceSnapshot{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}

// FindByIDWithPreload finds a record by ID with preloading
func FindByIDWithPreload[T any](db *gorm.DB, id string, model *T, preloads ...string) error {
	query := db
	for _, preload := range preloads {
		query = query.Preload(preload)
	}
	return query.Where("id = ?", id).First(model).Error
}
