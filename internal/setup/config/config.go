package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrConfigInvalid         = errors.New("config file failed validation")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.4.0"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentAPIVersion    = 1
	CurrentWorkerVersion = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig `koanf:"common" validate:"required"`
	API    APIConfig    `koanf:"api"    validate:"required"`
	Worker WorkerConfig `koanf:"worker" validate:"required"`
}

// CommonConfig contains configuration shared between the api and the workers.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Tracing    Tracing    `koanf:"tracing"`
	Detection  Detection  `koanf:"detection"`
	Review     Review     `koanf:"review"`
}

// APIConfig contains REST server specific configuration.
type APIConfig struct {
	// Version of the api config.
	Version int `koanf:"version"`
	// Address the server listens on.
	ListenAddr string `koanf:"listen_addr" validate:"required"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout" validate:"min=100"`
	// Largest page size a client may request.
	MaxPageSize int `koanf:"max_page_size" validate:"min=1,max=500"`
	// Client IP detection.
	IP IPConfig `koanf:"ip"`
	// Per client rate limiting.
	RateLimit RateLimit `koanf:"rate_limit"`
}

// IPConfig contains client IP detection configuration.
type IPConfig struct {
	// Read the client IP from CustomHeaders when the peer is a trusted proxy.
	EnableHeaderCheck bool `koanf:"enable_header_check"`
	// Proxy addresses or CIDR ranges whose headers are trusted.
	TrustedProxies []string `koanf:"trusted_proxies" validate:"dive,cidr|ip"`
	// Headers checked in order for the client IP.
	CustomHeaders []string `koanf:"custom_headers"`
}

// RateLimit contains per client rate limit configuration.
type RateLimit struct {
	// Sustained requests per second.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`
	// Burst size.
	Burst int `koanf:"burst" validate:"min=1"`
	// Consecutive violations before a client is blocked.
	StrikeLimit int `koanf:"strike_limit" validate:"min=1"`
	// Block duration in seconds.
	BlockDuration int `koanf:"block_duration" validate:"min=1"`
}

// WorkerConfig contains worker specific configuration.
type WorkerConfig struct {
	// Version of the worker config.
	Version int `koanf:"version"`
	// Startup delay in milliseconds.
	StartupDelay int `koanf:"startup_delay" validate:"min=0"`
	// Post-draft analysis consumer.
	PostDraft PostDraftWorker `koanf:"post_draft"`
	// Cron schedule of the cross-draft batch.
	CrossDraftSchedule string `koanf:"cross_draft_schedule" validate:"required"`
	// Cron schedule of the ADP refresh.
	ADPRefreshSchedule string `koanf:"adp_refresh_schedule" validate:"required"`
}

// PostDraftWorker contains configuration of the post-draft queue consumer.
type PostDraftWorker struct {
	// Drafts popped from the queue per iteration.
	BatchSize int `koanf:"batch_size" validate:"min=1,max=100"`
	// Wait between empty polls in milliseconds.
	PollInterval int `koanf:"poll_interval" validate:"min=10"`
	// Attempts per draft before it is dead-lettered.
	MaxAttempts int `koanf:"max_attempts" validate:"min=1"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
	// Maximum log files to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep" validate:"min=1"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines" validate:"min=100"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host" validate:"required"`
	// Database port.
	Port int `koanf:"port" validate:"min=1,max=65535"`
	// Database username.
	User string `koanf:"user" validate:"required"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name" validate:"required"`
	// Use TLS for the connection.
	SSL bool `koanf:"ssl"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns" validate:"min=1"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns" validate:"min=0"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host" validate:"required"`
	// Redis port.
	Port int `koanf:"port" validate:"min=1,max=65535"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Tracing contains OpenTelemetry export configuration.
type Tracing struct {
	// Uptrace DSN. Tracing is disabled when empty.
	DSN string `koanf:"dsn"`
	// Deployment environment reported with every span.
	Environment string `koanf:"environment"`
}

// Detection holds every tunable policy value of the detection engine.
type Detection struct {
	// Largest distance in feet that counts as co-location.
	ProximityThresholdFeet float64 `koanf:"proximity_threshold_feet" validate:"gt=0"`
	// Largest gap in seconds between two picks compared for proximity.
	ProximityWindowSeconds int `koanf:"proximity_window_seconds" validate:"min=1"`
	// Attempts per proximity event before it is dropped.
	RecordMaxAttempts int `koanf:"record_max_attempts" validate:"min=1,max=10"`
	// Initial backoff between attempts in milliseconds.
	RecordBackoff int `koanf:"record_backoff" validate:"min=1"`
	// Budget of one pick observation in milliseconds.
	RecordTimeout int `koanf:"record_timeout" validate:"min=10"`

	// Lifetime of the ADP snapshot in minutes.
	ADPCacheTTL int `koanf:"adp_cache_ttl" validate:"min=1"`
	// ADP assumed for players without data.
	MissingADPValue float64 `koanf:"missing_adp_value" validate:"gt=0"`

	// Picks ahead of ADP that make a notable reach.
	NotableReachPicks float64 `koanf:"notable_reach_picks" validate:"gt=0"`
	// Picks ahead of ADP that make an egregious reach.
	EgregiousReachPicks float64 `koanf:"egregious_reach_picks" validate:"gtfield=NotableReachPicks"`
	// Picks after ADP that make a steal.
	StealPicks float64 `koanf:"steal_picks" validate:"gt=0"`
	// Pick distance within which two members' picks are correlated.
	CorrelationWindowPicks int `koanf:"correlation_window_picks" validate:"min=1"`
	// Location score contributed by one proximity event.
	LocationEventWeight float64 `koanf:"location_event_weight" validate:"gt=0,lte=100"`

	// Component weights of the combined score.
	Weights Weights `koanf:"weights"`
	// Risk level thresholds of the combined score.
	Levels Levels `koanf:"levels"`

	// Require finalized flags before analyzing a draft.
	RequireFinalizedFlags bool `koanf:"require_finalized_flags"`
	// Attempts to read a draft's flags.
	FlagsReadAttempts int `koanf:"flags_read_attempts" validate:"min=1"`
	// Budget of one draft analysis in seconds.
	DraftTimeout int `koanf:"draft_timeout" validate:"min=1"`

	CrossDraft CrossDraft `koanf:"cross_draft"`
}

// Weights are the component weights of the combined risk score.
type Weights struct {
	Location float64 `koanf:"location" validate:"gte=0,lte=1"`
	Behavior float64 `koanf:"behavior" validate:"gte=0,lte=1"`
	Benefit  float64 `koanf:"benefit"  validate:"gte=0,lte=1"`
}

// Levels are the lower bounds of each risk level.
type Levels struct {
	Monitor float64 `koanf:"monitor" validate:"gt=0,ltfield=Review"`
	Review  float64 `koanf:"review"  validate:"ltfield=Urgent"`
	Urgent  float64 `koanf:"urgent"  validate:"lte=100"`
}

// CrossDraft holds the policy of the longitudinal pair analysis.
type CrossDraft struct {
	// Location score a draft must exceed to count as co-located.
	ProximityScoreThreshold float64 `koanf:"proximity_score_threshold" validate:"gte=0,lt=100"`
	// Combined score that puts a pair in the nightly batch.
	MinCombinedScore float64 `koanf:"min_combined_score" validate:"gte=0,lte=100"`
	// Half-life of the recency weighting in days.
	RecencyHalfLifeDays float64 `koanf:"recency_half_life_days" validate:"gt=0"`
	// Weight of the co-location rate in the overall score.
	RateWeight float64 `koanf:"rate_weight" validate:"gte=0,lte=1"`
	// Weight of the historical maximum in the overall score.
	MaxWeight float64 `koanf:"max_weight" validate:"gte=0,lte=1"`
	// Weight of the recency weighted mean in the overall score.
	RecencyWeight float64 `koanf:"recency_weight" validate:"gte=0,lte=1"`
	// Score change between history halves that counts as a trend.
	TrendDelta float64 `koanf:"trend_delta" validate:"gt=0"`
	// Pairs analyzed in parallel.
	Concurrency int `koanf:"concurrency" validate:"min=1,max=256"`
	// Budget of one pair analysis in seconds.
	PairTimeout int `koanf:"pair_timeout" validate:"min=1"`
}

// Review contains the admin workflow configuration.
type Review struct {
	// Admin ids allowed to mutate review state.
	AdminIDs []string `koanf:"admin_ids"`
	// User-status service endpoint. Enforcement is only logged when empty.
	EnforcementURL string `koanf:"enforcement_url" validate:"omitempty,url"`
	// Enforcement request timeout in milliseconds.
	EnforcementTimeout int `koanf:"enforcement_timeout" validate:"min=100"`
	// Circuit breaker around the user-status service.
	CircuitBreaker CircuitBreaker `koanf:"circuit_breaker"`
}

// CircuitBreaker contains circuit breaker configuration.
type CircuitBreaker struct {
	// Maximum number of requests allowed to pass through when the circuit is half-open.
	MaxRequests uint32 `koanf:"max_requests" validate:"min=1"`
	// The cyclic period of the closed state for the circuit breaker to clear the internal counts.
	Interval int `koanf:"interval"`
	// The period of the open state after which the state of the circuit breaker becomes half-open.
	Timeout int `koanf:"timeout" validate:"min=1"`
	// Consecutive failures that open the circuit.
	MaxFailures uint32 `koanf:"max_failures" validate:"min=1"`
}

// Default returns the configuration used for every key missing from the files.
func Default() Config {
	return Config{
		Common: CommonConfig{
			Debug: Debug{LogLevel: "info", MaxLogsToKeep: 10, MaxLogLines: 100000},
			PostgreSQL: PostgreSQL{
				Host: "localhost", Port: 5432, User: "postgres", DBName: "draftguard",
				MaxOpenConns: 20, MaxIdleConns: 5, MaxLifetime: 30, MaxIdleTime: 5,
			},
			Redis: Redis{Host: "localhost", Port: 6379},
			Detection: Detection{
				ProximityThresholdFeet: 50,
				ProximityWindowSeconds: 900,
				RecordMaxAttempts:      3,
				RecordBackoff:          25,
				RecordTimeout:          5000,
				ADPCacheTTL:            60,
				MissingADPValue:        200,
				NotableReachPicks:      15,
				EgregiousReachPicks:    30,
				StealPicks:             15,
				CorrelationWindowPicks: 24,
				LocationEventWeight:    20,
				Weights:                Weights{Location: 0.35, Behavior: 0.30, Benefit: 0.35},
				Levels:                 Levels{Monitor: 50, Review: 70, Urgent: 90},
				RequireFinalizedFlags:  true,
				FlagsReadAttempts:      3,
				DraftTimeout:           60,
				CrossDraft: CrossDraft{
					ProximityScoreThreshold: 0,
					MinCombinedScore:        50,
					RecencyHalfLifeDays:     90,
					RateWeight:              0.4,
					MaxWeight:               0.3,
					RecencyWeight:           0.3,
					TrendDelta:              10,
					Concurrency:             8,
					PairTimeout:             30,
				},
			},
			Review: Review{
				EnforcementTimeout: 5000,
				CircuitBreaker:     CircuitBreaker{MaxRequests: 1, Interval: 60, Timeout: 30, MaxFailures: 5},
			},
		},
		API: APIConfig{
			ListenAddr:     ":8080",
			RequestTimeout: 10000,
			MaxPageSize:    100,
			IP: IPConfig{
				CustomHeaders: []string{"X-Forwarded-For", "X-Real-IP"},
			},
			RateLimit: RateLimit{RequestsPerSecond: 20, Burst: 40, StrikeLimit: 10, BlockDuration: 60},
		},
		Worker: WorkerConfig{
			StartupDelay:       0,
			PostDraft:          PostDraftWorker{BatchSize: 10, PollInterval: 1000, MaxAttempts: 5},
			CrossDraftSchedule: "0 3 * * *",
			ADPRefreshSchedule: "*/30 * * * *",
		},
	}
}

// LoadConfig loads the configuration from the standard config paths.
// It returns the config and the directory the first file was found in.
func LoadConfig() (*Config, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return LoadConfigFrom(
		".draftguard",
		homeDir+"/.draftguard/config",
		"/etc/draftguard/config",
		"/app/config",
		"config",
		".",
	)
}

// LoadConfigFrom loads common.toml, api.toml and worker.toml from the first path holding each.
// Every file is mounted under its own name so their keys never collide.
func LoadConfigFrom(configPaths ...string) (*Config, string, error) {
	k := koanf.New(".")

	var usedConfigPath string

	configFiles := []string{"common", "api", "worker"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)

			child := koanf.New(".")
			if err := child.Load(file.Provider(configPath), toml.Parser()); err == nil {
				if err := k.MergeAt(child, configName); err != nil {
					return nil, "", fmt.Errorf("failed to merge %s.toml: %w", configName, err)
				}
				configLoaded = true

				if usedConfigPath == "" {
					usedConfigPath = path
				}

				break
			}
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	config := Default()
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("api", config.API.Version, CurrentAPIVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("worker", config.Worker.Version, CurrentWorkerVersion); err != nil {
		return nil, "", err
	}

	if err := Validate(&config); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// Validate checks the struct tags and the cross-field rules of a config.
func Validate(config *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterStructValidation(validateWeights, Weights{})
	validate.RegisterStructValidation(validateCrossDraft, CrossDraft{})

	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return nil
}

// weightTolerance is the allowed rounding error of a weight sum.
const weightTolerance = 1e-6

func validateWeights(sl validator.StructLevel) {
	w := sl.Current().Interface().(Weights)
	if math.Abs(w.Location+w.Behavior+w.Benefit-1) > weightTolerance {
		sl.ReportError(w.Location, "Location", "location", "weightsum", "")
	}
}

func validateCrossDraft(sl validator.StructLevel) {
	c := sl.Current().Interface().(CrossDraft)
	if math.Abs(c.RateWeight+c.MaxWeight+c.RecencyWeight-1) > weightTolerance {
		sl.ReportError(c.RateWeight, "RateWeight", "rate_weight", "weightsum", "")
	}
}

func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/draftguard/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
