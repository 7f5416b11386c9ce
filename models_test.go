package auth_test

import (
	"testing"

	"github.com/glyzier/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserEnsureStatus(t *testing.T) {
	user := &auth.User{}
	user.EnsureStatus()
	assert.Equal(t, auth.UserStatusActive, user.Status)

	banned := &auth.User{Status: auth.UserStatusBanned}
	banned.EnsureStatus()
	assert.Equal(t, auth.UserStatusBanned, banned.Status)

	var nilUser *auth.User
	nilUser.EnsureStatus() // must not panic
}

func TestUserIsAdmin(t *testing.T) {
	assert.True(t, (&auth.User{Role: auth.RoleAdmin}).IsAdmin())
	assert.False(t, (&auth.User{Role: auth.RoleUser}).IsAdmin())

	var nilUser *auth.User
	assert.False(t, nilUser.IsAdmin())
}

func TestMarkPasswordAsReseted(t *testing.T) {
	id := uuid.New()

	reset := auth.MarkPasswordAsReseted(id)

	require.NotNil(t, reset)
	assert.Equal(t, id, reset.ID)
	assert.Equal(t, auth.ResetChangedStatus, reset.Status)
	require.NotNil(t, reset.ResetedAt)
	assert.False(t, reset.ResetedAt.IsZero())
}
