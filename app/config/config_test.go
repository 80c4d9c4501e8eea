package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"LISTEN_ADDR", "DATA_DIR", "OWNER_ACCOUNT", "JWT_SECRET",
		"TOKEN_TTL", "REPAIR_AUTHOR_INDEX", "DELETE_COMMENT_BY_ID",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "patronpress_db", cfg.DataDir)
	assert.Empty(t, cfg.OwnerAccount)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.RepairAuthorIndex)
	assert.False(t, cfg.DeleteCommentByID)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("DATA_DIR", "/tmp/ledger")
	t.Setenv("OWNER_ACCOUNT", "owner.near")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TOKEN_TTL", "45m")
	t.Setenv("REPAIR_AUTHOR_INDEX", "true")
	t.Setenv("DELETE_COMMENT_BY_ID", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "/tmp/ledger", cfg.DataDir)
	assert.Equal(t, "owner.near", cfg.OwnerAccount)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 45*time.Minute, cfg.TokenTTL)
	assert.True(t, cfg.RepairAuthorIndex)
	assert.True(t, cfg.DeleteCommentByID)
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("TOKEN_TTL", "soon")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad bool", func(t *testing.T) {
		t.Setenv("TOKEN_TTL", "")
		t.Setenv("REPAIR_AUTHOR_INDEX", "maybe")
		_, err := Load()
		assert.Error(t, err)
	})
}
