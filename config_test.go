package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, []string{"diagnostic center"}, cfg.Keywords)
	assert.Equal(t, []string{"Mumbai"}, cfg.Cities)
	assert.Equal(t, 2, cfg.MaxPages)
	assert.True(t, cfg.UseGMB)
	assert.Equal(t, 3, cfg.FetchRetries)
	assert.NotEmpty(t, cfg.UserAgents)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	content := `
keywords:
  - diagnostic center
  - pathology lab
cities:
  - Mumbai
  - Pune
max_pages: 3
use_gmb: false
delay_min_ms: 2000
delay_max_ms: 5000
workers: 4
output_dir: out
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"diagnostic center", "pathology lab"}, cfg.Keywords)
	assert.Equal(t, []string{"Mumbai", "Pune"}, cfg.Cities)
	assert.Equal(t, 3, cfg.MaxPages)
	assert.False(t, cfg.UseGMB)
	assert.Equal(t, 2*time.Second, cfg.DelayMin)
	assert.Equal(t, 5*time.Second, cfg.DelayMax)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "out", cfg.OutputDir)
}

func TestLoadConfigSwapsInvertedDelays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("delay_min_ms: 4000\ndelay_max_ms: 1000\n"), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.DelayMin)
	assert.Equal(t, 4*time.Second, cfg.DelayMax)
}

func TestLoadConfigRejectsEmptyKeywords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keywords: []\n"), 0o644))

	// An empty list in the file falls back to the default keyword set.
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Keywords)
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList(" a , b ,"))
	assert.Nil(t, parseList("  "))
}
