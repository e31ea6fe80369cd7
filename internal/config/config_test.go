package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Normalizer.AlignmentToleranceDays)
	assert.Equal(t, 0.15, cfg.Valuation.BaseHurdle)
	assert.Equal(t, 100, cfg.Valuation.Solver.MaxIterations)
	assert.InDelta(t, 1e-6, cfg.Valuation.Solver.Tolerance, 1e-12)
	assert.Equal(t, 90, cfg.Gates.FlipHorizonDays)
	assert.Equal(t, 5, cfg.Verifier.SampleSize)
	assert.Contains(t, cfg.Verifier.AllowedDomains, "sec.gov")
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("DOSSIER_STORE_DRIVER", "postgres")
	t.Setenv("DOSSIER_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger_RejectsBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouting", Format: "json"})
	assert.Error(t, err)

	err = InitLogger(LogConfig{Level: "warn", Format: "console"})
	assert.NoError(t, err)
}
