package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilondustries/inventario/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret")
	actor := domain.Actor{ID: "u-7", Name: "Bruno", Role: domain.RoleSupervisor}

	token, err := tm.GenerateToken(actor, time.Hour)
	require.NoError(t, err)

	parsed, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, actor, *parsed)
}

func TestParseTokenRejectsBadInput(t *testing.T) {
	tm := NewTokenManager("test-secret")

	_, err := tm.ParseToken("not-a-token")
	assert.Error(t, err)

	other := NewTokenManager("other-secret")
	token, err := other.GenerateToken(domain.Actor{ID: "u-7", Name: "Bruno", Role: domain.RoleOperator}, time.Hour)
	require.NoError(t, err)
	_, err = tm.ParseToken(token)
	assert.Error(t, err)

	expired, err := tm.GenerateToken(domain.Actor{ID: "u-7", Name: "Bruno", Role: domain.RoleOperator}, -time.Minute)
	require.NoError(t, err)
	_, err = tm.ParseToken(expired)
	assert.Error(t, err)
}

func TestParseTokenRequiresKnownRole(t *testing.T) {
	tm := NewTokenManager("test-secret")
	token, err := tm.GenerateToken(domain.Actor{ID: "u-7", Name: "Bruno", Role: domain.Role("janitor")}, time.Hour)
	require.NoError(t, err)

	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}
