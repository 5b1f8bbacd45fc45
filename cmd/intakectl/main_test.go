package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/intake-api/pkg/auth"
	"github.com/jwalitptl/intake-api/pkg/security"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashSecret(t *testing.T) {
	out, err := run(t, "", "hash-secret", "--cost", "4", "dashboard-secret")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, security.NewBcryptHasher(bcrypt.MinCost).Compare(hash, "dashboard-secret"))
}

func TestHashSecretFromStdin(t *testing.T) {
	out, err := run(t, "from-stdin-secret\n", "hash-secret", "--cost", "4")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("from-stdin-secret")))
}

func TestHashSecretTooShort(t *testing.T) {
	_, err := run(t, "", "hash-secret", "short")
	assert.ErrorIs(t, err, security.ErrSecretTooShort)
}

func TestToken(t *testing.T) {
	out, err := run(t, "", "token", "--client", "dashboard", "--secret", "local-signing-secret")
	require.NoError(t, err)

	claims, err := auth.NewJWTService("local-signing-secret", "amani-intake-api", 0).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.ClientID)
}

func TestTokenRequiresClient(t *testing.T) {
	_, err := run(t, "", "token", "--secret", "local-signing-secret")
	assert.Error(t, err)
}
