package sample

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/justapithecus/sift/reservoir"
)

// DefaultBucketDuration is the bucket length used when none is set.
const DefaultBucketDuration = 50 * time.Millisecond

// maxBudgets bounds the budget count; the per-event match mask is a
// single uint64.
const maxBudgets = 64

// ErrBucketDuration is returned by Build for a non-positive bucket
// duration.
var ErrBucketDuration = errors.New("sample: bucket duration must be positive")

// Builder configures and constructs a sampling Core.
//
//	core, stats, err := sample.New().
//		BucketDuration(time.Second).
//		Budget(sample.MinLevel(zapcore.ErrorLevel), 10).
//		Budget(sample.MinLevel(zapcore.DebugLevel), 100).
//		Writer(sample.StderrWriter).
//		Build()
type Builder struct {
	bucket  time.Duration
	specs   []budgetSpec
	writer  WriterFactory
	enc     zapcore.Encoder
	encCfg  zapcore.EncoderConfig
	json    bool
	seed    uint64
	seeded  bool
	nowFunc func() time.Time
}

type budgetSpec struct {
	filter Filter
	rate   float64
}

// New creates a builder with the defaults: 50 ms buckets, stderr
// output, console encoding with capitalized levels.
func New() *Builder {
	return &Builder{
		bucket:  DefaultBucketDuration,
		writer:  StderrWriter,
		encCfg:  defaultEncoderConfig(),
		nowFunc: time.Now,
	}
}

func defaultEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

// BucketDuration sets the bucket length. Must be positive; the default
// is 50 ms.
func (b *Builder) BucketDuration(d time.Duration) *Builder {
	b.bucket = d
	return b
}

// Budget appends a sampling budget. Order is significant: displaced
// items cascade from earlier budgets to later ones. A budget whose
// capacity rounds to zero for the configured bucket is silently
// omitted at build time.
func (b *Builder) Budget(f Filter, ratePerSecond float64) *Builder {
	b.specs = append(b.specs, budgetSpec{filter: f, rate: ratePerSecond})
	return b
}

// Writer sets the sink-writer factory. Defaults to stderr.
func (b *Builder) Writer(w WriterFactory) *Builder {
	b.writer = w
	return b
}

// Encoder replaces the event encoder outright, ignoring the encoder
// configuration methods below.
func (b *Builder) Encoder(enc zapcore.Encoder) *Builder {
	b.enc = enc
	return b
}

// WithoutTime omits the timestamp from encoded entries.
func (b *Builder) WithoutTime() *Builder {
	b.encCfg.TimeKey = zapcore.OmitKey
	return b
}

// WithLevel toggles the level in encoded entries. On by default.
func (b *Builder) WithLevel(enabled bool) *Builder {
	if enabled {
		b.encCfg.LevelKey = "level"
	} else {
		b.encCfg.LevelKey = zapcore.OmitKey
	}
	return b
}

// WithName toggles the logger name in encoded entries. On by default.
func (b *Builder) WithName(enabled bool) *Builder {
	if enabled {
		b.encCfg.NameKey = "logger"
	} else {
		b.encCfg.NameKey = zapcore.OmitKey
	}
	return b
}

// JSON switches the default encoder from console lines to compact
// JSON objects.
func (b *Builder) JSON() *Builder {
	b.json = true
	return b
}

// Seed makes reservoir replacement draws deterministic. Intended for
// tests and reproducible demos.
func (b *Builder) Seed(seed uint64) *Builder {
	b.seed = seed
	b.seeded = true
	return b
}

// Build finalizes the configuration, returning the core and its shared
// stats handle. Misconfiguration is a programmer error and is rejected
// here: a non-positive bucket duration or more than 64 budgets fails
// the build.
func (b *Builder) Build() (*Core, *Stats, error) {
	if b.bucket <= 0 {
		return nil, nil, ErrBucketDuration
	}
	if len(b.specs) > maxBudgets {
		return nil, nil, fmt.Errorf("sample: %d budgets exceeds the maximum of %d", len(b.specs), maxBudgets)
	}

	secs := b.bucket.Seconds()
	budgets := make([]Budget, 0, len(b.specs))
	reservoirs := make([]*reservoir.Reservoir[item], 0, len(b.specs))
	for i, bs := range b.specs {
		capacity := int(math.Ceil(bs.rate * secs))
		if capacity <= 0 {
			continue
		}
		budgets = append(budgets, Budget{Filter: bs.filter, Capacity: capacity})
		if b.seeded {
			reservoirs = append(reservoirs, reservoir.NewSeeded[item](capacity, b.seed+uint64(i)))
		} else {
			reservoirs = append(reservoirs, reservoir.New[item](capacity))
		}
	}

	enc := b.enc
	if enc == nil {
		if b.json {
			enc = zapcore.NewJSONEncoder(b.encCfg)
		} else {
			enc = zapcore.NewConsoleEncoder(b.encCfg)
		}
	}

	stats := &Stats{}
	eng := &engine{
		budgets:     budgets,
		bucket:      b.bucket,
		writer:      b.writer,
		stats:       stats,
		now:         b.nowFunc,
		bucketStart: b.nowFunc(),
		reservoirs:  reservoirs,
	}
	return &Core{eng: eng, enc: enc}, stats, nil
}
