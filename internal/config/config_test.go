package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	for _, key := range []string{
		"SIGNATURE_DB_PATH", "QUARANTINE_ROOT", "LISTEN_ADDR", "LOG_LEVEL",
		"HEURISTICS_ENABLED", "MONITOR_ENABLED", "MONITOR_ROOTS",
	} {
		t.Setenv(key, "")
	}
	cfg := Load()
	assert.Equal(t, "signatures.db", cfg.SignatureDBPath)
	assert.Equal(t, "quarantine", cfg.QuarantineRoot)
	assert.Equal(t, ":8443", cfg.ListenAddr)
	assert.True(t, cfg.HeuristicsEnabled)
	assert.False(t, cfg.MonitorEnabled)
	assert.Nil(t, cfg.MonitorRoots)
}

func TestLoadParsesMonitorRootsList(t *testing.T) {
	t.Setenv("MONITOR_ROOTS", "/home/alice, /var/data ,")
	cfg := Load()
	assert.Equal(t, []string{"/home/alice", "/var/data"}, cfg.MonitorRoots)
}

func TestLoadHonorsExplicitFalseBoolean(t *testing.T) {
	t.Setenv("HEURISTICS_ENABLED", "false")
	cfg := Load()
	assert.False(t, cfg.HeuristicsEnabled)
}
