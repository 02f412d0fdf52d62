package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_TypesenseConfig(t *testing.T) {
	os.Setenv("TYPESENSE_URL", "http://test-typesense:8108")
	os.Setenv("TYPESENSE_API_KEY", "test-key")
	defer func() {
		os.Unsetenv("TYPESENSE_URL")
		os.Unsetenv("TYPESENSE_API_KEY")
	}()

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "http://test-typesense:8108", cfg.Typesense.URL)
	assert.Equal(t, "test-key", cfg.Typesense.APIKey)
}

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("SEARCH_CLICK_BOOST_WEIGHT")
	os.Unsetenv("BREAKER_THRESHOLD")
	os.Unsetenv("EXPERIMENTS_CONFIDENCE_LEVEL")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Search.ClickBoostWeight)
	assert.Equal(t, 30, cfg.Search.ClickWindowDays)
	assert.Equal(t, 3, cfg.Search.MinClicksForBoost)
	assert.Equal(t, 5, cfg.Breaker.Threshold)
	assert.Equal(t, 0.95, cfg.Experiments.ConfidenceLevel)
	assert.Equal(t, 100, cfg.Experiments.MinSampleSize)
}

func TestLoad_FloatOverride(t *testing.T) {
	os.Setenv("SEARCH_FRESHNESS_WEIGHT", "0.35")
	defer os.Unsetenv("SEARCH_FRESHNESS_WEIGHT")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, 0.35, cfg.Search.FreshnessWeight)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5432, User: "svc", Password: "pw",
		Database: "search_relevance", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=svc password=pw dbname=search_relevance sslmode=disable",
		cfg.DatabaseDSN(),
	)
}
