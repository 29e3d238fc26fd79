package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "gateway:\n  port: 8080\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.Equal(t, "mongo", cfg.MongoDB.Driver)
	assert.True(t, cfg.MongoDB.Transactions)
	assert.Equal(t, 0.01, cfg.Orders.TotalTolerance)
	assert.Equal(t, 24*time.Hour, cfg.Orders.IdempotencyTTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.ProductTTL)
	assert.False(t, cfg.MySQL.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Etcd.Enabled())
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
mongodb:
  driver: memory
  transactions: false
orders:
  honor_backorders: true
  idempotency_ttl: 1h
redis:
  addr: localhost:6379
mysql:
  host: db
  username: shop
  password: secret
  database: ledger
etcd:
  endpoints: ["localhost:2379"]
  dial_timeout: 2s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.MongoDB.Driver)
	assert.False(t, cfg.MongoDB.Transactions)
	assert.True(t, cfg.Orders.HonorBackorders)
	assert.Equal(t, time.Hour, cfg.Orders.IdempotencyTTL)
	assert.True(t, cfg.Redis.Enabled())
	assert.True(t, cfg.Etcd.Enabled())
	assert.Equal(t, 2*time.Second, cfg.Etcd.DialTimeout)
	assert.Equal(t, "shop:secret@tcp(db:3306)/ledger?charset=utf8mb4&parseTime=True&loc=Local", cfg.MySQL.DSN())
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "gateway:\n  port: 8080\n")
	t.Setenv("STOREFRONT_GATEWAY_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Gateway.Port)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := writeConfig(t, "mongodb:\n  driver: postgres\n")
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mongodb driver")
}
