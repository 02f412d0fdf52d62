package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Typesense    TypesenseConfig
	OTEL         OTELConfig
	Search       SearchConfig
	Breaker      BreakerConfig
	Experiments  ExperimentsConfig
	Dictionaries DictionariesConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// SearchConfig holds relevance tuning for ranking and click boosting
type SearchConfig struct {
	ClickBoostWeight     float64
	FreshnessWeight      float64
	ClickWindowDays      int
	DecayWindowDays      int
	FreshnessWindowDays  int
	MinClicksForBoost    int
	MinIntentConfidence  float64
	DefaultIntent        string
	DefaultResultLimit   int
	EntityBoostFactors   map[string]float64
	ResponseCacheSeconds int
}

// BreakerConfig holds circuit breaker tuning for the cache dependency
type BreakerConfig struct {
	Threshold        int
	TimeoutSeconds   int
	HalfOpenMaxCalls int
}

// ExperimentsConfig holds A/B testing statistics thresholds
type ExperimentsConfig struct {
	MinSampleSize   int
	ConfidenceLevel float64
	// RankingExperiment names the experiment whose variants carry
	// ranking weight overrides. Empty disables weight experimentation.
	RankingExperiment string
}

// DictionariesConfig holds synonym dictionary file locations
type DictionariesConfig struct {
	SynonymsPath string
	// Format is one of "json", "csv", "thesaurus"
	Format string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "search_relevance"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:        getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:     getEnv("TYPESENSE_API_KEY", "xyz"),
			Collection: getEnv("TYPESENSE_COLLECTION", "documents"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "search-relevance"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Search: SearchConfig{
			ClickBoostWeight:     getEnvAsFloat("SEARCH_CLICK_BOOST_WEIGHT", 0.5),
			FreshnessWeight:      getEnvAsFloat("SEARCH_FRESHNESS_WEIGHT", 0.2),
			ClickWindowDays:      getEnvAsInt("SEARCH_CLICK_WINDOW_DAYS", 30),
			DecayWindowDays:      getEnvAsInt("SEARCH_DECAY_WINDOW_DAYS", 14),
			FreshnessWindowDays:  getEnvAsInt("SEARCH_FRESHNESS_WINDOW_DAYS", 90),
			MinClicksForBoost:    getEnvAsInt("SEARCH_MIN_CLICKS_FOR_BOOST", 3),
			MinIntentConfidence:  getEnvAsFloat("SEARCH_MIN_INTENT_CONFIDENCE", 0.3),
			DefaultIntent:        getEnv("SEARCH_DEFAULT_INTENT", "informational"),
			DefaultResultLimit:   getEnvAsInt("SEARCH_DEFAULT_RESULT_LIMIT", 10),
			EntityBoostFactors:   getEnvAsFactorMap("SEARCH_ENTITY_BOOST_FACTORS"),
			ResponseCacheSeconds: getEnvAsInt("SEARCH_RESPONSE_CACHE_SECONDS", 120),
		},
		Breaker: BreakerConfig{
			Threshold:        getEnvAsInt("BREAKER_THRESHOLD", 5),
			TimeoutSeconds:   getEnvAsInt("BREAKER_TIMEOUT_SECONDS", 30),
			HalfOpenMaxCalls: getEnvAsInt("BREAKER_HALF_OPEN_MAX_CALLS", 1),
		},
		Experiments: ExperimentsConfig{
			MinSampleSize:     getEnvAsInt("EXPERIMENTS_MIN_SAMPLE_SIZE", 100),
			ConfidenceLevel:   getEnvAsFloat("EXPERIMENTS_CONFIDENCE_LEVEL", 0.95),
			RankingExperiment: getEnv("EXPERIMENTS_RANKING_EXPERIMENT", ""),
		},
		Dictionaries: DictionariesConfig{
			SynonymsPath: getEnv("SYNONYMS_PATH", "config/synonyms.json"),
			Format:       getEnv("SYNONYMS_FORMAT", "json"),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvAsFactorMap parses "article:1.2,product:1.0" style pairs.
// Malformed entries are skipped.
func getEnvAsFactorMap(key string) map[string]float64 {
	factors := map[string]float64{}
	value := os.Getenv(key)
	if value == "" {
		return factors
	}
	for _, pair := range strings.Split(value, ",") {
		name, raw, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			continue
		}
		factor, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		factors[name] = factor
	}
	return factors
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
