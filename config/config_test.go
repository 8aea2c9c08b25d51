package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", t.TempDir()+"/missing.env")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("INVITE_TTL", "48h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vilonda-portal", cfg.ServiceName)
	assert.Equal(t, 15*time.Minute, cfg.TokenExpiration)
	assert.Equal(t, 48*time.Hour, cfg.InviteTTL)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, int64(1), cfg.BrevoTemplateBrokerInvite)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("ENV_FILE", t.TempDir()+"/missing.env")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadForTools_WithoutJWTSecret(t *testing.T) {
	t.Setenv("ENV_FILE", t.TempDir()+"/missing.env")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("BCRYPT_COST", "0")

	cfg, err := LoadForTools()
	require.NoError(t, err)
	assert.Empty(t, cfg.JWTSecret)
	assert.Equal(t, 10, cfg.BCryptCost)
}

func TestApplySecrets_UnwrapsKVv2(t *testing.T) {
	cfg := &PortalConfig{JWTSecret: "env", BrevoAPIKey: "env"}
	applySecrets(cfg, secretValues(map[string]any{
		"data":     map[string]any{"JWT_SECRET": "vault-jwt", "BREVO_API_KEY": ""},
		"metadata": map[string]any{"version": 3},
	}))

	assert.Equal(t, "vault-jwt", cfg.JWTSecret)
	assert.Equal(t, "env", cfg.BrevoAPIKey)
}
