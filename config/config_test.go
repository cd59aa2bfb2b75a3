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

func TestLoadConfig_FileWithDefaults(t *testing.T) {
	path := writeConfig(t, `
postgres:
  dsn: postgres://localhost/dupr
jwt:
  secret: s3cret
dupr:
  base_url: https://api.example.test
  token_url: https://api.example.test/token
  client_id: id
  client_secret: secret
  club_id: 42
submission:
  backoff: [30s, 90s]
rules:
  cap: 15
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(42), cfg.DUPR.ClubID)
	assert.Equal(t, []time.Duration{30 * time.Second, 90 * time.Second}, cfg.Submission.Backoff)
	assert.Equal(t, 3, cfg.Submission.MaxRetries)
	assert.Equal(t, 15*time.Minute, cfg.Submission.StaleProcessingAfter)
	assert.Equal(t, 25, cfg.Submission.LookupChunkSize)
	assert.Equal(t, 11, cfg.Rules.PointsToWin)
	assert.Equal(t, 15, cfg.Rules.Cap)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, 6.0, cfg.HTTP.SubmitRatePerMinute)
	assert.Equal(t, 2, cfg.HTTP.SubmitRateBurst)
	assert.Less(t, cfg.HTTP.SubmitRatePerMinute/60, cfg.HTTP.RateLimitRPS)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "postgres:\n  dsn: postgres://file\n")
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("DUPR_CLUB_ID", "7")
	t.Setenv("SUBMISSION_STALE_AFTER", "20m")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.Postgres.DSN)
	assert.Equal(t, int64(7), cfg.DUPR.ClubID)
	assert.Equal(t, 20*time.Minute, cfg.Submission.StaleProcessingAfter)
}

func TestLoadConfig_EnvOnlyRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://env")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.Postgres.DSN)
}

func TestLoadConfig_InvalidEnv(t *testing.T) {
	path := writeConfig(t, "postgres:\n  dsn: postgres://file\n")
	t.Setenv("DUPR_CLUB_ID", "not-a-number")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Rules.BestOf = 4

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"postgres.dsn", "jwt.secret", "dupr.base_url", "dupr.token_url", "client_id", "best_of"} {
		assert.Contains(t, err.Error(), want)
	}
}
