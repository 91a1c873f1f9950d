package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"OFFER_APP_NAME":                   os.Getenv("OFFER_APP_NAME"),
		"OFFER_APP_ENV":                    os.Getenv("OFFER_APP_ENV"),
		"OFFER_APP_PORT":                   os.Getenv("OFFER_APP_PORT"),
		"OFFER_DATABASE_HOST":              os.Getenv("OFFER_DATABASE_HOST"),
		"OFFER_DATABASE_PORT":              os.Getenv("OFFER_DATABASE_PORT"),
		"OFFER_DATABASE_PASSWORD":          os.Getenv("OFFER_DATABASE_PASSWORD"),
		"OFFER_DATABASE_SSLMODE":           os.Getenv("OFFER_DATABASE_SSLMODE"),
		"OFFER_DATABASE_MAX_OPEN_CONNS":    os.Getenv("OFFER_DATABASE_MAX_OPEN_CONNS"),
		"OFFER_DATABASE_MAX_IDLE_CONNS":    os.Getenv("OFFER_DATABASE_MAX_IDLE_CONNS"),
		"OFFER_SELECTION_RANK_STRATEGY":    os.Getenv("OFFER_SELECTION_RANK_STRATEGY"),
		"OFFER_TRACKING_REDIRECT_BASE_URL": os.Getenv("OFFER_TRACKING_REDIRECT_BASE_URL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "offer-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "offers", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 6, cfg.Selection.MaxOffersPerPage)
		assert.Equal(t, "performance", cfg.Selection.RankStrategy)
		assert.Equal(t, 40, cfg.Selection.RatingThreshold)
		assert.Equal(t, "http://localhost:8080", cfg.Tracking.RedirectBaseURL)
		assert.Equal(t, 30, cfg.Tracking.StatsWindowDays)
	})

	t.Run("loads values from environment variables with OFFER prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("OFFER_APP_NAME", "test-app")
		os.Setenv("OFFER_APP_PORT", "9000")
		os.Setenv("OFFER_DATABASE_HOST", "testdb.local")
		os.Setenv("OFFER_DATABASE_PORT", "5433")
		os.Setenv("OFFER_SELECTION_RANK_STRATEGY", "newest")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "newest", cfg.Selection.RankStrategy)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("OFFER_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("OFFER_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown rank strategy", func(t *testing.T) {
		clearEnv()
		os.Setenv("OFFER_SELECTION_RANK_STRATEGY", "alphabetical")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rank_strategy")
	})

	t.Run("rejects relative redirect base url", func(t *testing.T) {
		clearEnv()
		os.Setenv("OFFER_TRACKING_REDIRECT_BASE_URL", "/go")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redirect_base_url")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	originalEnv := map[string]string{
		"OFFER_APP_ENV":                    os.Getenv("OFFER_APP_ENV"),
		"OFFER_DATABASE_PASSWORD":          os.Getenv("OFFER_DATABASE_PASSWORD"),
		"OFFER_DATABASE_SSLMODE":           os.Getenv("OFFER_DATABASE_SSLMODE"),
		"OFFER_TRACKING_REDIRECT_BASE_URL": os.Getenv("OFFER_TRACKING_REDIRECT_BASE_URL"),
		"OFFER_TELEMETRY_DB_LOG_FULL_SQL":  os.Getenv("OFFER_TELEMETRY_DB_LOG_FULL_SQL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	setValidProductionBase := func() {
		os.Setenv("OFFER_APP_ENV", "production")
		os.Setenv("OFFER_DATABASE_PASSWORD", "secure-password")
		os.Setenv("OFFER_DATABASE_SSLMODE", "require")
		os.Setenv("OFFER_TRACKING_REDIRECT_BASE_URL", "https://go.redakta.example")
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("OFFER_DATABASE_PASSWORD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("OFFER_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("requires https redirect base in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("OFFER_TRACKING_REDIRECT_BASE_URL", "http://go.redakta.example")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must use https in production")
	})

	t.Run("rejects full SQL logging in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("OFFER_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql cannot be enabled in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "pass%40word%23123")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "redis.local", Port: 6380}
	assert.Equal(t, "redis.local:6380", cfg.Addr())
}
