// Package config holds the process-level settings of the proxy.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds everything fixed at process start.
type Config struct {
	// OriginHost is host[:port] of the upstream. Requests go to https://OriginHost.
	OriginHost string

	// ListenAddr is where the proxy accepts requests (e.g., ":3000").
	ListenAddr string

	// MetricsAddr serves /metrics and /health. Empty disables it.
	MetricsAddr string

	// TTL is how long a cached response stays fresh.
	TTL time.Duration

	// SweepInterval is the pause between two expiration sweeps.
	SweepInterval time.Duration

	// OriginTimeout bounds a single origin fetch.
	OriginTimeout time.Duration

	// Shards is the number of independently locked cache partitions.
	Shards int

	// Coalesce makes concurrent misses for one key share a single origin fetch.
	Coalesce bool

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		OriginHost:    "blockstream.info",
		ListenAddr:    ":3000",
		MetricsAddr:   ":9090",
		TTL:           30 * time.Second,
		SweepInterval: 30 * time.Second,
		OriginTimeout: 10 * time.Second,
		Shards:        1,
		Coalesce:      false,
		LogLevel:      "info",
	}
}

/*
FromEnv overlays PROXY_* environment variables on base.

Unset variables keep the base value. A variable that is set but does not
parse is an error, not a silent fallback.
*/
func FromEnv(base Config) (Config, error) {
	return fromLookup(base, os.LookupEnv)
}

func fromLookup(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str("PROXY_ORIGIN_HOST", &cfg.OriginHost)
	str("PROXY_LISTEN_ADDR", &cfg.ListenAddr)
	str("PROXY_METRICS_ADDR", &cfg.MetricsAddr)
	str("PROXY_LOG_LEVEL", &cfg.LogLevel)
	dur("PROXY_TTL", &cfg.TTL)
	dur("PROXY_SWEEP_INTERVAL", &cfg.SweepInterval)
	dur("PROXY_ORIGIN_TIMEOUT", &cfg.OriginTimeout)

	if v, ok := lookup("PROXY_SHARDS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PROXY_SHARDS: %w", err))
		} else {
			cfg.Shards = n
		}
	}
	if v, ok := lookup("PROXY_COALESCE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PROXY_COALESCE: %w", err))
		} else {
			cfg.Coalesce = b
		}
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return cfg, nil
}

// BindFlags registers one flag per field on fs, defaulting to cfg's current values.
// Flags parsed later override whatever cfg held.
func BindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.OriginHost, "origin", cfg.OriginHost, "origin host[:port], fetched over https")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "proxy listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "metrics listen address, empty to disable")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "cache entry time-to-live")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "pause between expiration sweeps")
	fs.DurationVar(&cfg.OriginTimeout, "origin-timeout", cfg.OriginTimeout, "timeout for one origin fetch")
	fs.IntVar(&cfg.Shards, "shards", cfg.Shards, "number of cache shards")
	fs.BoolVar(&cfg.Coalesce, "coalesce", cfg.Coalesce, "share one origin fetch between concurrent misses of a key")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
}

// envNames maps each flag name to the environment variable that sets the same field.
var envNames = map[string]string{
	"origin":         "PROXY_ORIGIN_HOST",
	"listen":         "PROXY_LISTEN_ADDR",
	"metrics":        "PROXY_METRICS_ADDR",
	"ttl":            "PROXY_TTL",
	"sweep-interval": "PROXY_SWEEP_INTERVAL",
	"origin-timeout": "PROXY_ORIGIN_TIMEOUT",
	"shards":         "PROXY_SHARDS",
	"coalesce":       "PROXY_COALESCE",
	"log-level":      "PROXY_LOG_LEVEL",
}

// Explicit returns the flag names whose value was given on the command line
// parsed into fs or through the matching PROXY_* variable.
func Explicit(fs *flag.FlagSet) map[string]bool {
	return explicit(fs, os.LookupEnv)
}

func explicit(fs *flag.FlagSet, lookup func(string) (string, bool)) map[string]bool {
	set := make(map[string]bool)
	for name, env := range envNames {
		if _, ok := lookup(env); ok {
			set[name] = true
		}
	}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

/*
Resolve fills in settings that derive from others. explicit holds the flag
names the operator set, as returned by Explicit.

A sweep interval nobody set follows the TTL, so changing only the TTL also
changes how often stale entries are reclaimed.
*/
func (c *Config) Resolve(explicit map[string]bool) {
	if !explicit["sweep-interval"] {
		c.SweepInterval = c.TTL
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.OriginHost == "" {
		errs = append(errs, errors.New("origin host is empty"))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.TTL <= 0 {
		errs = append(errs, fmt.Errorf("ttl must be positive, got %s", c.TTL))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval))
	}
	if c.OriginTimeout <= 0 {
		errs = append(errs, fmt.Errorf("origin timeout must be positive, got %s", c.OriginTimeout))
	}
	if c.Shards < 1 {
		errs = append(errs, fmt.Errorf("shards must be at least 1, got %d", c.Shards))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
