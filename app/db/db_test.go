package database

import (
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-users-api/config"
)

func TestNewDatabaseConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Repositories.Postgres = config.PostgresConfig{
		Host:              "db.internal",
		Port:              "5433",
		Username:          "users",
		Password:          "p@ss:word",
		DB:                "users",
		MAXCONWAITINGTIME: 5,
		MaxConns:          12,
	}

	dbConfig, err := NewDatabaseConfig(cfg, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, int32(12), dbConfig.MaxConns)

	parsed, err := url.Parse(dbConfig.ConnectionURL)
	require.NoError(t, err)
	assert.Equal(t, "postgresql", parsed.Scheme)
	assert.Equal(t, "db.internal:5433", parsed.Host)
	assert.Equal(t, "/users", parsed.Path)
	password, _ := parsed.User.Password()
	assert.Equal(t, "p@ss:word", password)
	assert.Equal(t, "disable", parsed.Query().Get("sslmode"))
	assert.Equal(t, "5", parsed.Query().Get("connect_timeout"))
}

func TestNewDatabaseConfigMissingHost(t *testing.T) {
	_, err := NewDatabaseConfig(&config.Config{}, slog.Default())
	assert.Error(t, err)
}
