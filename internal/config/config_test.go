package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chtmp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "37 Warren Street, New York, NY 10007", cfg.Criteria.TargetAddress)
	assert.Equal(t, float64(5_000_000), cfg.Criteria.MaxPrice)
	assert.Equal(t, float64(50), cfg.Criteria.MaxDistanceMiles)
	assert.Equal(t, 5.0, cfg.Criteria.MaxMultiple)
	assert.Equal(t, []string{"retirement", "retiring", "succession", "aging", "health"}, cfg.Criteria.RetirementKeywords)
	assert.Equal(t, []string{"low", "medium"}, cfg.Criteria.AcceptableLabor)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "business_listings.json", cfg.Output.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Geocode.MaxAttempts)
	assert.InDelta(t, 0.05, cfg.Dedupe.PriceTolerancePct, 1e-9)
}

func TestLoadConfigFile(t *testing.T) {
	dir := chtmp(t)

	yaml := `
criteria:
  max_price: 1500000
  max_distance_miles: 25
  retirement_keywords: ["retir"]
sources:
  scrapers:
    - platform: bizquest
      enabled: true
      search_url: https://www.bizquest.com/businesses-for-sale/new-york/
      max_pages: 2
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, float64(1_500_000), cfg.Criteria.MaxPrice)
	assert.Equal(t, float64(25), cfg.Criteria.MaxDistanceMiles)
	assert.Equal(t, []string{"retir"}, cfg.Criteria.RetirementKeywords)
	require.Len(t, cfg.Sources.Scrapers, 1)
	assert.Equal(t, "bizquest", cfg.Sources.Scrapers[0].Platform)
	assert.True(t, cfg.Sources.Scrapers[0].Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults.
	assert.Equal(t, 5.0, cfg.Criteria.MaxMultiple)
}

func TestLoadEnvOverride(t *testing.T) {
	chtmp(t)
	t.Setenv("ACQ_STORE_DRIVER", "postgres")
	t.Setenv("ACQ_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	assert.NoError(t, err)
}

// chtmp runs the test in an empty temp dir so no real config.yaml is picked up.
func chtmp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}
