package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyringTokenStore(t *testing.T) {
	keyring.MockInit()

	_, err := Default.LoadToken("http://localhost:8080")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, Default.SaveToken("http://localhost:8080/", "tok-1"))

	// Trailing slashes address the same entry
	token, err := Default.LoadToken("http://localhost:8080")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	_, err = Default.LoadToken("https://ailawyer.pro")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, Default.DeleteToken("http://localhost:8080"))
	require.NoError(t, Default.DeleteToken("http://localhost:8080"), "deleting twice is fine")

	_, err = Default.LoadToken("http://localhost:8080")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
