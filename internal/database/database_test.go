package database

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tripsplit/tripsplit/internal/models"
)

func TestOpen_MigratesAndGeneratesIDs(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "tripsplit.sqlite"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	user := &models.User{Email: "a@example.com", PasswordHash: "x", Name: "A"}
	require.NoError(t, db.Create(user).Error)
	assert.Len(t, user.ID, 26)

	var loaded models.User
	require.NoError(t, models.FindByID(db, user.ID, &loaded))
	assert.Equal(t, "a@example.com", loaded.Email)

	var journalMode string
	require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&journalMode).Error)
	assert.Equal(t, "wal", journalMode)
}

func TestOpen_UniqueEmail(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "tripsplit.sqlite"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, db.Create(&models.User{Email: "dup@example.com", PasswordHash: "x", Name: "A"}).Error)
	err = db.Create(&models.User{Email: "dup@example.com", PasswordHash: "y", Name: "B"}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(gorm.ErrRecordNotFound))
}
