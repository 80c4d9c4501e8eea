// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ListenAddr string
	DataDir    string

	// Ledger
	OwnerAccount      string
	RepairAuthorIndex bool
	DeleteCommentByID bool

	// Tokens
	JWTSecret string
	TokenTTL  time.Duration
}

func Load() (*Config, error) {
	// Try to load .env, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:   getEnv("LISTEN_ADDR", ":8080"),
		DataDir:      getEnv("DATA_DIR", "patronpress_db"),
		OwnerAccount: getEnv("OWNER_ACCOUNT", ""),
		JWTSecret:    getEnv("JWT_SECRET", "change-me-in-production"),
	}

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RepairAuthorIndex, err = getBool("REPAIR_AUTHOR_INDEX", false); err != nil {
		return nil, err
	}
	if cfg.DeleteCommentByID, err = getBool("DELETE_COMMENT_BY_ID", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("config: %s: %v", key, err)
	}
	return parsed, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %v", key, err)
	}
	return parsed, nil
}
