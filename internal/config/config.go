// Package config reads server settings from the environment. A .env file
// is loaded first by the godotenv autoload import in each main package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/sirupsen/logrus"
)

// Config is the full server configuration.
type Config struct {
	Port           string
	Env            string // dev | production
	AllowedOrigins []string
	LogLevel       logrus.Level

	RedisAddr   string
	RedisDB     int
	QueueName   string
	DatabaseURL string // empty disables persistence

	TokenTTL          time.Duration
	Wild4ChallengeSec int
	RoundDelay        time.Duration
	MaxActionsPerSec  int
	DisconnectGrace   time.Duration // seat kept this long after the socket drops

	HistorianBatchSize int
	HistorianFlush     time.Duration
	InactivityTimeout  time.Duration
}

// Load reads the environment. Unset values fall back to defaults; malformed
// values are an error.
func Load() (*Config, error) {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("UNO_ENV", "dev"),
		LogLevel:    level,
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		QueueName:   getEnv("HISTORIAN_QUEUE_NAME", "uno_actions"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}
	for _, o := range strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"REDIS_DB", 0, &cfg.RedisDB},
		{"WILD4_CHALLENGE_SEC", 10, &cfg.Wild4ChallengeSec},
		{"MAX_ACTIONS_PER_SEC", 10, &cfg.MaxActionsPerSec},
		{"HISTORIAN_BATCH_SIZE", 20, &cfg.HistorianBatchSize},
	}
	for _, v := range ints {
		n, err := getEnvInt(v.key, v.def)
		if err != nil {
			return nil, err
		}
		*v.dest = n
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"ROUND_DELAY", 5 * time.Second, &cfg.RoundDelay},
		{"DISCONNECT_GRACE", time.Minute, &cfg.DisconnectGrace},
		{"HISTORIAN_FLUSH", 500 * time.Millisecond, &cfg.HistorianFlush},
		{"GAME_INACTIVITY_TIMEOUT", 10 * time.Minute, &cfg.InactivityTimeout},
	}
	for _, v := range durations {
		d, err := getEnvDuration(v.key, v.def)
		if err != nil {
			return nil, err
		}
		*v.dest = d
	}

	if cfg.TokenTTL, err = auth.ParseTTL(os.Getenv("TOKEN_EXPIRE_TIME")); err != nil {
		return nil, fmt.Errorf("TOKEN_EXPIRE_TIME: %w", err)
	}

	if cfg.Wild4ChallengeSec < 0 || cfg.MaxActionsPerSec <= 0 {
		return nil, fmt.Errorf("WILD4_CHALLENGE_SEC must be >= 0 and MAX_ACTIONS_PER_SEC > 0")
	}
	return cfg, nil
}

// IsProduction reports whether UNO_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
