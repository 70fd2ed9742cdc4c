package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "payloom", cfg.Database.DBName)
	assert.Equal(t, 5.0, cfg.Escrow.FeePercent)
	assert.Equal(t, int64(50), cfg.Escrow.FeeMinimum)
	assert.Equal(t, 168*time.Hour, cfg.Escrow.AutoReleaseWindow)
	assert.Equal(t, 90*time.Second, cfg.Provider.Timeout)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
escrow:
  fee_percent: 2.5
  fee_minimum: 20
  min_order_amount: 100
  auto_release_window: 72h
cron:
  secret: sweep-me
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2.5, cfg.Escrow.FeePercent)
	assert.Equal(t, int64(20), cfg.Escrow.FeeMinimum)
	assert.Equal(t, 72*time.Hour, cfg.Escrow.AutoReleaseWindow)
	assert.Equal(t, "sweep-me", cfg.Cron.Secret)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PAYLOOM_ESCROW_FEE_MINIMUM", "75")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(75), cfg.Escrow.FeeMinimum)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p",
		DBName: "payloom", SSLMode: "require",
	}
	assert.Equal(t, "postgres://u:p@db:5433/payloom?sslmode=require", d.DSN())
}

func TestEscrowValidate(t *testing.T) {
	valid := EscrowConfig{
		FeePercent: 5, FeeMinimum: 50, MinOrderAmount: 100,
		AmountTolerance: 1, AutoReleaseWindow: time.Hour,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*EscrowConfig)
	}{
		{"zero percent", func(e *EscrowConfig) { e.FeePercent = 0 }},
		{"percent above 100", func(e *EscrowConfig) { e.FeePercent = 101 }},
		{"negative minimum", func(e *EscrowConfig) { e.FeeMinimum = -1 }},
		{"minimum swallows smallest order", func(e *EscrowConfig) { e.FeeMinimum = 100 }},
		{"zero window", func(e *EscrowConfig) { e.AutoReleaseWindow = 0 }},
		{"negative tolerance", func(e *EscrowConfig) { e.AmountTolerance = -5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := valid
			tc.mutate(&e)
			assert.Error(t, e.Validate())
		})
	}
}
