package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	HTTP          HTTPConfig          `yaml:"http"`
	JWT           JWTConfig           `yaml:"jwt"`
	DUPR          DUPRConfig          `yaml:"dupr"`
	Submission    SubmissionConfig    `yaml:"submission"`
	Rules         RulesConfig         `yaml:"rules"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// HTTPConfig holds the inbound HTTP server configuration.
type HTTPConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`

	// Submissions, retries, batch runs and diagnostics each call DUPR, so
	// they get a much smaller per-caller budget.
	SubmitRatePerMinute float64 `yaml:"submit_rate_per_minute"`
	SubmitRateBurst     int     `yaml:"submit_rate_burst"`

	AllowedOrigins []string `yaml:"allowed_origins"`
}

// JWTConfig holds JWT configuration for organizer and operator tokens.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// DUPRConfig holds the rating authority integration settings.
type DUPRConfig struct {
	BaseURL        string        `yaml:"base_url"`
	TokenURL       string        `yaml:"token_url"`
	ClientID       string        `yaml:"client_id"`
	ClientSecret   string        `yaml:"client_secret"`
	Scopes         []string      `yaml:"scopes"`
	ClubID         int64         `yaml:"club_id"` // 0 submits as PARTNER
	RequestTimeout time.Duration `yaml:"request_timeout"`
	InterCallDelay time.Duration `yaml:"inter_call_delay"`
	// Breaker trips after this many consecutive transport or 5xx failures.
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

// SubmissionConfig holds batch engine and sweep settings.
type SubmissionConfig struct {
	Backoff              []time.Duration `yaml:"backoff"`
	MaxRetries           int             `yaml:"max_retries"`
	StaleProcessingAfter time.Duration   `yaml:"stale_processing_after"`
	LookupChunkSize      int             `yaml:"lookup_chunk_size"`
	QueueSweepInterval   time.Duration   `yaml:"queue_sweep_interval"`
	CorrectionInterval   time.Duration   `yaml:"correction_interval"`
	RatingSyncInterval   time.Duration   `yaml:"rating_sync_interval"`
	EventSweepInterval   time.Duration   `yaml:"event_sweep_interval"`
	SchedulerEnabled     bool            `yaml:"scheduler_enabled"`
}

// RulesConfig holds the default game rules.
type RulesConfig struct {
	PointsToWin  int `yaml:"points_to_win"`
	WinBy        int `yaml:"win_by"`
	BestOf       int `yaml:"best_of"`
	Cap          int `yaml:"cap"`
	MinimumScore int `yaml:"minimum_score"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	MetricsAddress string `yaml:"metrics_address"`
	Environment    string `yaml:"environment"`
	LogLevel       string `yaml:"log_level"`
	ServiceName    string `yaml:"service_name"`
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	// Try reading configuration from the file first
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// --- OVERRIDE WITH ENV VARS IF PRESENT ---
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWT.Issuer = v
	}
	if v := os.Getenv("DUPR_BASE_URL"); v != "" {
		cfg.DUPR.BaseURL = v
	}
	if v := os.Getenv("DUPR_TOKEN_URL"); v != "" {
		cfg.DUPR.TokenURL = v
	}
	if v := os.Getenv("DUPR_CLIENT_ID"); v != "" {
		cfg.DUPR.ClientID = v
	}
	if v := os.Getenv("DUPR_CLIENT_SECRET"); v != "" {
		cfg.DUPR.ClientSecret = v
	}
	if v := os.Getenv("DUPR_SCOPES"); v != "" {
		cfg.DUPR.Scopes = strings.Split(v, ",")
	}
	if v := os.Getenv("DUPR_CLUB_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid DUPR_CLUB_ID value: %v", err)
		}
		cfg.DUPR.ClubID = id
	}
	if v := os.Getenv("DUPR_INTER_CALL_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DUPR_INTER_CALL_DELAY value: %v", err)
		}
		cfg.DUPR.InterCallDelay = d
	}
	if v := os.Getenv("SUBMISSION_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SUBMISSION_MAX_RETRIES value: %v", err)
		}
		cfg.Submission.MaxRetries = n
	}
	if v := os.Getenv("SUBMISSION_STALE_AFTER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SUBMISSION_STALE_AFTER value: %v", err)
		}
		cfg.Submission.StaleProcessingAfter = d
	}
	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		cfg.Submission.SchedulerEnabled = v == "true"
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Observability.MetricsAddress = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 2 * time.Minute
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 15 * time.Second
	}
	if c.HTTP.RateLimitRPS == 0 {
		// Consoles poll match status while a batch runs.
		c.HTTP.RateLimitRPS = 2
	}
	if c.HTTP.RateLimitBurst == 0 {
		c.HTTP.RateLimitBurst = 20
	}
	if c.HTTP.SubmitRatePerMinute == 0 {
		c.HTTP.SubmitRatePerMinute = 6
	}
	if c.HTTP.SubmitRateBurst == 0 {
		c.HTTP.SubmitRateBurst = 2
	}
	if c.DUPR.RequestTimeout == 0 {
		c.DUPR.RequestTimeout = 30 * time.Second
	}
	if c.DUPR.InterCallDelay == 0 {
		c.DUPR.InterCallDelay = 500 * time.Millisecond
	}
	if c.DUPR.BreakerFailures == 0 {
		c.DUPR.BreakerFailures = 5
	}
	if c.DUPR.BreakerTimeout == 0 {
		c.DUPR.BreakerTimeout = 30 * time.Second
	}
	if len(c.Submission.Backoff) == 0 {
		c.Submission.Backoff = []time.Duration{time.Minute, 2 * time.Minute, 3 * time.Minute}
	}
	if c.Submission.MaxRetries == 0 {
		c.Submission.MaxRetries = 3
	}
	if c.Submission.StaleProcessingAfter == 0 {
		c.Submission.StaleProcessingAfter = 15 * time.Minute
	}
	if c.Submission.LookupChunkSize == 0 {
		c.Submission.LookupChunkSize = 25
	}
	if c.Submission.QueueSweepInterval == 0 {
		c.Submission.QueueSweepInterval = time.Minute
	}
	if c.Submission.CorrectionInterval == 0 {
		c.Submission.CorrectionInterval = time.Hour
	}
	if c.Submission.RatingSyncInterval == 0 {
		c.Submission.RatingSyncInterval = 24 * time.Hour
	}
	if c.Submission.EventSweepInterval == 0 {
		c.Submission.EventSweepInterval = time.Hour
	}
	if c.Rules.PointsToWin == 0 {
		c.Rules.PointsToWin = 11
	}
	if c.Rules.WinBy == 0 {
		c.Rules.WinBy = 2
	}
	if c.Rules.BestOf == 0 {
		c.Rules.BestOf = 3
	}
	if c.Rules.MinimumScore == 0 {
		c.Rules.MinimumScore = 6
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = "development"
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "dupr-bridge"
	}
}

// Validate reports every missing or inconsistent required value.
func (c *Config) Validate() error {
	var errs []error
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.DUPR.BaseURL == "" {
		errs = append(errs, errors.New("dupr.base_url is required"))
	}
	if c.DUPR.TokenURL == "" {
		errs = append(errs, errors.New("dupr.token_url is required"))
	}
	if c.DUPR.ClientID == "" || c.DUPR.ClientSecret == "" {
		errs = append(errs, errors.New("dupr.client_id and dupr.client_secret are required"))
	}
	if c.DUPR.ClubID < 0 {
		errs = append(errs, errors.New("dupr.club_id cannot be negative"))
	}
	if c.Submission.MaxRetries < 0 {
		errs = append(errs, errors.New("submission.max_retries cannot be negative"))
	}
	if c.Rules.BestOf%2 == 0 {
		errs = append(errs, fmt.Errorf("rules.best_of must be odd, got %d", c.Rules.BestOf))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether logs should be emitted as JSON.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Observability.Environment)
	return env == "production" || env == "prod"
}
