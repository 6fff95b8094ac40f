// Package config loads the sentinel core's process configuration from
// environment variables and validates it once at startup. Config is
// immutable after Load returns; the only runtime-reloadable state is
// the rule corpus (see pkg/rules), triggered independently by SIGHUP
// or a file-watch event.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full set of recognised environment variables and their
// effects.
type Config struct {
	BrokerURL   string `validate:"required"`
	JudgeAPIKey string `validate:"required"`

	JudgeModel      string `validate:"required"`
	JudgeCacheTTL   time.Duration
	JudgeDeadlineMS time.Duration
	JudgeMaxParallel int `validate:"gte=1"`

	RulesFile string `validate:"required"`

	WorkerParallelism int `validate:"gte=1"`
	QuiescenceMS      time.Duration
	HardCeilingMS     time.Duration

	RegistryURL string
	CacheURL    string

	LogLevel  string
	LogFormat string

	AdminAddr string

	PoisonRateThreshold int
	PoisonRateWindow    time.Duration
	QuarantineCooldown  time.Duration
}

var validate = validator.New()

// Load reads and validates configuration from the process environment.
// A missing required variable or an unparseable value is a fatal_config
// condition: the caller must exit non-zero before accepting traffic.
func Load() (*Config, error) {
	cfg := &Config{
		BrokerURL:   os.Getenv("BROKER_URL"),
		JudgeAPIKey: os.Getenv("JUDGE_API_KEY"),
		JudgeModel:  getOr("JUDGE_MODEL", "claude-3-5-sonnet-20241022"),
		RulesFile:   os.Getenv("RULES_FILE"),
		RegistryURL: os.Getenv("REGISTRY_URL"),
		CacheURL:    getOr("CACHE_URL", "localhost:6379"),
		LogLevel:    getOr("LOG_LEVEL", "info"),
		LogFormat:   getOr("LOG_FORMAT", "json"),
		AdminAddr:   getOr("ADMIN_ADDR", ":8080"),

		PoisonRateThreshold: 100,
		PoisonRateWindow:    60 * time.Second,
		QuarantineCooldown:  60 * time.Second,
	}

	var err error
	if cfg.JudgeCacheTTL, err = getDurationSeconds("JUDGE_CACHE_TTL_SEC", 3600); err != nil {
		return nil, fmt.Errorf("JUDGE_CACHE_TTL_SEC: %w", err)
	}
	if cfg.JudgeDeadlineMS, err = getDurationMillis("JUDGE_DEADLINE_MS", 400); err != nil {
		return nil, fmt.Errorf("JUDGE_DEADLINE_MS: %w", err)
	}
	if cfg.QuiescenceMS, err = getDurationMillis("QUIESCENCE_MS", 30000); err != nil {
		return nil, fmt.Errorf("QUIESCENCE_MS: %w", err)
	}
	cfg.HardCeilingMS = 5 * time.Minute

	if cfg.WorkerParallelism, err = getInt("WORKER_PARALLELISM", 4*runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("WORKER_PARALLELISM: %w", err)
	}
	if cfg.JudgeMaxParallel, err = getInt("JUDGE_MAX_PARALLEL", 5); err != nil {
		return nil, fmt.Errorf("JUDGE_MAX_PARALLEL: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func getDurationSeconds(key string, fallbackSeconds int) (time.Duration, error) {
	n, err := getInt(key, fallbackSeconds)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func getDurationMillis(key string, fallbackMillis int) (time.Duration, error) {
	n, err := getInt(key, fallbackMillis)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}
