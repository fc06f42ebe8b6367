package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/cactus_shop/pkg/tokens"
)

func TestTokenCmd(t *testing.T) {
	t.Setenv("JWT_SECRET", "local-secret")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--env-file", "", "--sub", "owner-1", "--role", "user"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())

	claims, err := tokens.AccessClaimsFromToken(strings.TrimSpace(out.String()), []byte("local-secret"))
	require.NoError(t, err)
	assert.Equal(t, "owner-1", claims.Subject)
	assert.Equal(t, tokens.RoleUser, claims.Role)
}
