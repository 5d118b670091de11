// Package config reads console settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultBackendOrigin  = "http://localhost:8000"
	DefaultStreamPath     = "/ws/calibration"
	DefaultRequestTimeout = 10 * time.Second
	DefaultDebounce       = 250 * time.Millisecond
	DefaultDatasetLimit   = 50
	LayoutKey             = "aca_layout_v1"
)

// Knobs are the operator's starting values.
type Knobs struct {
	Gain          float64
	BlackLevel    float64
	TargetGV      float64
	Tolerance     float64
	MaxIterations int
}

type Config struct {
	BackendOrigin  string
	StreamPath     string
	LogLevel       string
	JSONLogs       bool
	RequestTimeout time.Duration
	Debounce       time.Duration
	DatasetLimit   int
	Knobs          Knobs
}

func Default() Config {
	return Config{
		BackendOrigin:  DefaultBackendOrigin,
		StreamPath:     DefaultStreamPath,
		LogLevel:       "info",
		RequestTimeout: DefaultRequestTimeout,
		Debounce:       DefaultDebounce,
		DatasetLimit:   DefaultDatasetLimit,
		Knobs: Knobs{
			Gain:          8,
			BlackLevel:    10,
			TargetGV:      140,
			Tolerance:     2,
			MaxIterations: 20,
		},
	}
}

// FromEnv loads the configuration from the process environment.
func FromEnv() (Config, error) {
	return Load(os.Getenv)
}

// Load builds a Config from defaults overridden by getenv.
func Load(getenv func(string) string) (Config, error) {
	cfg := Default()

	if v := getenv("ACA_BACKEND_ORIGIN"); v != "" {
		cfg.BackendOrigin = strings.TrimRight(v, "/")
	}
	if v := getenv("ACA_STREAM_PATH"); v != "" {
		cfg.StreamPath = v
	}

	switch {
	case getenv("LOG_LEVEL") != "":
		cfg.LogLevel = getenv("LOG_LEVEL")
	case getenv("DEBUG") == "1":
		cfg.LogLevel = "debug"
	}

	if v := getenv("ACA_JSON_LOGS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: ACA_JSON_LOGS: %v", ErrInvalid, err)
		}
		cfg.JSONLogs = b
	}

	var err error
	if cfg.RequestTimeout, err = durationVar(getenv, "ACA_REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return cfg, err
	}
	if cfg.Debounce, err = durationVar(getenv, "ACA_DEBOUNCE", cfg.Debounce); err != nil {
		return cfg, err
	}

	if v := getenv("ACA_DATASET_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: ACA_DATASET_LIMIT: %v", ErrInvalid, err)
		}
		cfg.DatasetLimit = n
	}

	return cfg, cfg.Validate()
}

func durationVar(getenv func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	return d, nil
}

func (c Config) Validate() error {
	u, err := url.Parse(c.BackendOrigin)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: backend origin %q", ErrInvalid, c.BackendOrigin)
	}
	if !strings.HasPrefix(c.StreamPath, "/") {
		return fmt.Errorf("%w: stream path %q must start with /", ErrInvalid, c.StreamPath)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalid)
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("%w: debounce must be positive", ErrInvalid)
	}
	if c.DatasetLimit <= 0 {
		return fmt.Errorf("%w: dataset limit must be positive", ErrInvalid)
	}
	return nil
}

// StreamURL derives the websocket endpoint from the backend origin.
func (c Config) StreamURL() string {
	origin := c.BackendOrigin
	switch {
	case strings.HasPrefix(origin, "https://"):
		origin = "wss://" + strings.TrimPrefix(origin, "https://")
	case strings.HasPrefix(origin, "http://"):
		origin = "ws://" + strings.TrimPrefix(origin, "http://")
	}
	return origin + c.StreamPath
}
