package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ailawyer-pro/ailawyer/internal/models"
	"github.com/ailawyer-pro/ailawyer/internal/testutil"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		in, first, last string
	}{
		{"Ada Lovelace", "Ada", "Lovelace"},
		{"Cher", "Cher", ""},
		{"", "", ""},
		{"  Jean  Luc Picard ", "Jean", "Luc"},
	}
	for _, tt := range tests {
		first, last := models.SplitName(tt.in)
		assert.Equal(t, tt.first, first, "first name of %q", tt.in)
		assert.Equal(t, tt.last, last, "last name of %q", tt.in)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &models.Session{ExpiresAt: now}

	assert.True(t, s.Expired(now), "expiry instant counts as expired")
	assert.True(t, s.Expired(now.Add(time.Second)))
	assert.False(t, s.Expired(now.Add(-time.Second)))
}

func TestUserIsAdmin(t *testing.T) {
	var nilUser *models.User
	assert.False(t, nilUser.IsAdmin())
	assert.False(t, (&models.User{Role: models.RoleUser}).IsAdmin())
	assert.True(t, (&models.User{Role: models.RoleAdmin}).IsAdmin())
}

func TestBaseModelAssignsULID(t *testing.T) {
	db := testutil.NewDB(t)

	user := &models.User{Email: "a@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)
	assert.Len(t, user.ID, 26)

	var found models.User
	require.NoError(t, models.FindByID(db, user.ID, &found))
	assert.Equal(t, "a@example.com", found.Email)
	assert.Equal(t, models.RoleUser, found.Role, "role column defaults to user")
}

func TestUniqueEmail(t *testing.T) {
	db := testutil.NewDB(t)

	require.NoError(t, db.Create(&models.User{Email: "dup@example.com", PasswordHash: "x"}).Error)
	assert.Error(t, db.Create(&models.User{Email: "dup@example.com", PasswordHash: "y"}).Error)
}
