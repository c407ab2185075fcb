// Package config loads sift.yaml configuration files.
//
// All values are optional and act as defaults for CLI flags; flags
// always override config values.
package config

import (
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/justapithecus/sift/sample"
)

// Config represents a sift.yaml configuration file.
type Config struct {
	// BucketDuration is the sampling bucket length (e.g. "50ms").
	BucketDuration Duration `yaml:"bucket_duration"`
	// Budgets are the sampling budgets in cascade order.
	Budgets []BudgetConfig `yaml:"budgets"`
	// Output selects the sink: "stderr", "stdout", or a file path.
	Output string `yaml:"output"`
	// Format selects the encoder: "console" (default) or "json".
	Format string `yaml:"format"`
	// WithoutTime omits timestamps from encoded entries.
	WithoutTime bool `yaml:"without_time"`
	// Seed, when set, makes reservoir draws deterministic.
	Seed *uint64 `yaml:"seed,omitempty"`
	// MetricsAddr, when non-empty, serves Prometheus metrics there.
	MetricsAddr string `yaml:"metrics_addr"`
	// Redis, when set, ships emitted batches to a Redis channel
	// instead of writing to Output.
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// BudgetConfig is one sampling budget in the config file.
type BudgetConfig struct {
	// Level is the minimum severity: debug, info, warn, error.
	Level string `yaml:"level"`
	// Exact matches the level exactly instead of level-and-above.
	Exact bool `yaml:"exact"`
	// Scope restricts the budget to a logger-name subtree.
	Scope string `yaml:"scope"`
	// Rate is the budget in events per second.
	Rate float64 `yaml:"rate"`
}

// RedisConfig holds Redis shipper settings from the config file.
type RedisConfig struct {
	URL     string   `yaml:"url"`
	Channel string   `yaml:"channel"`
	Timeout Duration `yaml:"timeout"`
	Retries *int     `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "50ms", "1s").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "50ms" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Builder translates the config into a sample.Builder. The writer is
// left at its default; callers resolve Output and Redis themselves
// since both need lifecycle management.
func (c *Config) Builder() (*sample.Builder, error) {
	b := sample.New()

	if c.BucketDuration.Duration != 0 {
		b = b.BucketDuration(c.BucketDuration.Duration)
	}
	switch c.Format {
	case "", "console":
	case "json":
		b = b.JSON()
	default:
		return nil, fmt.Errorf("unknown format %q (expected console or json)", c.Format)
	}
	if c.WithoutTime {
		b = b.WithoutTime()
	}
	if c.Seed != nil {
		b = b.Seed(*c.Seed)
	}

	for i, bc := range c.Budgets {
		f, err := bc.filter()
		if err != nil {
			return nil, fmt.Errorf("budget %d: %w", i, err)
		}
		b = b.Budget(f, bc.Rate)
	}

	return b, nil
}

func (bc BudgetConfig) filter() (sample.Filter, error) {
	lvl, err := zapcore.ParseLevel(bc.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid level %q: %w", bc.Level, err)
	}
	switch {
	case bc.Scope != "":
		return sample.Scoped(bc.Scope, lvl), nil
	case bc.Exact:
		return sample.Exact(lvl), nil
	default:
		return sample.MinLevel(lvl), nil
	}
}
