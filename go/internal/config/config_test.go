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

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	policy := cfg.Policy()
	assert.Equal(t, 10*time.Minute, policy.AcceptanceWindow)
	assert.Equal(t, 7*24*time.Hour, policy.ProposalTTL)
	assert.Equal(t, 7*24*time.Hour, policy.Retention)
	assert.Nil(t, policy.TradeDeadline)
	assert.Equal(t, time.Hour, time.Duration(cfg.Trade.SweepInterval))
}

func TestLoad_ParsesFile(t *testing.T) {
	path := writeConfig(t, `
trade:
  acceptance_window: 15m
  proposal_ttl: 3d
  retention: 14d
  trade_deadline: 2026-11-28T17:00:00Z
  max_roster_size: 25
league:
  admins:
    - 9b2f6c1e-4d1a-4f57-9a7e-2c7e0d9a1b01
  franchises:
    - id: 1f0c3a52-8a8e-4c34-b0a8-5e0d1f6f7a11
      name: Gurus
      representatives: [5d3b7a90-1c2e-4e55-8f1a-0b9c2d3e4f21]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	policy := cfg.Policy()
	assert.Equal(t, 15*time.Minute, policy.AcceptanceWindow)
	assert.Equal(t, 72*time.Hour, policy.ProposalTTL)
	assert.Equal(t, 14*24*time.Hour, policy.Retention)
	require.NotNil(t, policy.TradeDeadline)
	assert.Equal(t, time.Date(2026, 11, 28, 17, 0, 0, 0, time.UTC), policy.TradeDeadline.UTC())
	assert.Equal(t, 25, cfg.Trade.MaxRosterSize)
	require.Len(t, cfg.League.Franchises, 1)
	assert.Equal(t, "Gurus", cfg.League.Franchises[0].Name)
	// untouched keys keep their defaults
	assert.Equal(t, 500, policy.SweepBatchSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRADE_ACCEPTANCE_WINDOW", "5m")
	t.Setenv("TRADE_DEADLINE", "2026-12-01T00:00:00Z")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Policy().AcceptanceWindow)
	require.NotNil(t, cfg.Trade.TradeDeadline)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad duration", "trade:\n  acceptance_window: soon\n"},
		{"zero window", "trade:\n  acceptance_window: 0s\n"},
		{"bad admin", "league:\n  admins: [not-a-uuid]\n"},
		{"bad representative", "league:\n  franchises:\n    - id: 1f0c3a52-8a8e-4c34-b0a8-5e0d1f6f7a11\n      representatives: [bob]\n"},
		{"bad catalog franchise", "catalog:\n  players:\n    - id: a1111111-1111-4111-8111-111111111111\n      franchise: nobody\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"10m", 10 * time.Minute, true},
		{"7d", 7 * 24 * time.Hour, true},
		{" 1h30m ", 90 * time.Minute, true},
		{"xd", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
