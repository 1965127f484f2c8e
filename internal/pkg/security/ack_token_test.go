package security

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func TestAckTokenRoundtrip(t *testing.T) {
	t.Parallel()

	token, err := GenerateAckToken("pub-123", "jane@example.com", time.Hour, testSecret)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := VerifyAckToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "pub-123", claims.IssuePublicID)
	assert.Equal(t, "jane@example.com", claims.ReporterEmail)
	assert.Greater(t, claims.ExpiresAt, time.Now().Unix())
}

func TestAckTokenRejectsTampering(t *testing.T) {
	t.Parallel()

	token, err := GenerateAckToken("pub-123", "jane@example.com", time.Hour, testSecret)
	require.NoError(t, err)

	t.Run("modified payload", func(t *testing.T) {
		t.Parallel()

		parts := strings.SplitN(token, ".", 2)
		forged := base64.RawURLEncoding.EncodeToString([]byte(`{"issue_id":"pub-123","email":"attacker@example.com","exp":9999999999}`))

		_, err := VerifyAckToken(forged+"."+parts[1], testSecret)
		assert.ErrorContains(t, err, "signature")
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()

		_, err := VerifyAckToken(token, "some-other-secret")
		assert.ErrorContains(t, err, "signature")
	})
}

func TestAckTokenExpiry(t *testing.T) {
	t.Parallel()

	token, err := GenerateAckToken("pub-123", "jane@example.com", -time.Minute, testSecret)
	require.NoError(t, err)

	_, err = VerifyAckToken(token, testSecret)
	assert.ErrorContains(t, err, "expired")
}

func TestAckTokenMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "no separator", token: "justonepart"},
		{name: "bad payload encoding", token: "not%base64.c2ln"},
		{name: "bad signature encoding", token: "cGF5bG9hZA.not%base64"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := VerifyAckToken(tt.token, testSecret)
			assert.Error(t, err)
		})
	}
}

func TestAckTokenRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := GenerateAckToken("pub-123", "jane@example.com", time.Hour, "")
	assert.Error(t, err)

	_, err = VerifyAckToken("a.b", "")
	assert.Error(t, err)
}
