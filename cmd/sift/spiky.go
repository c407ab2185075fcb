package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/justapithecus/sift/cli/tui"
	"github.com/justapithecus/sift/config"
	"github.com/justapithecus/sift/iox"
	"github.com/justapithecus/sift/metrics"
	"github.com/justapithecus/sift/sample"
	"github.com/justapithecus/sift/ship"
)

// tickInterval paces the synthetic workload.
const tickInterval = 10 * time.Millisecond

func spikyCommand() *cli.Command {
	return &cli.Command{
		Name:  "spiky",
		Usage: "Run a bursty synthetic workload through the sampling layer",
		Description: "Generates request-latency log events with occasional " +
			"spikes of 50-150 events per 10ms tick, demonstrating how the " +
			"sampling layer bounds output volume while keeping a uniform " +
			"view of the stream. Compare --sampled=false for the firehose.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "sampled",
				Usage: "Route events through the sampling layer",
				Value: true,
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "How long to run the workload",
				Value: 10 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "bucket",
				Usage: "Sampling bucket duration",
				Value: 500 * time.Millisecond,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a sift.yaml config file",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Workload RNG seed (0 derives one from the clock)",
			},
			&cli.StringFlag{
				Name:  "metrics",
				Usage: "Serve Prometheus metrics on this address (e.g. :9090)",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show live sampling statistics while the workload runs",
			},
		},
		Action: runSpiky,
	}
}

func runSpiky(c *cli.Context) error {
	if !c.Bool("sampled") {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return cli.Exit(fmt.Sprintf("cannot build logger: %v", err), 1)
		}
		defer iox.DiscardErr(logger.Sync)
		return runWorkload(c.Context, logger, c.Duration("duration"), c.Uint64("seed"))
	}

	core, stats, cleanup, err := buildSampledCore(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer cleanup()
	defer core.Close()

	if addr := c.String("metrics"); addr != "" {
		metrics.Serve(addr, stats)
	}

	logger := zap.New(core)

	if c.Bool("tui") {
		done := make(chan struct{})
		var workloadErr error
		go func() {
			defer close(done)
			workloadErr = runWorkload(c.Context, logger, c.Duration("duration"), c.Uint64("seed"))
		}()
		if err := tui.Run(stats, done); err != nil {
			return cli.Exit(fmt.Sprintf("tui failed: %v", err), 1)
		}
		if workloadErr != nil {
			return workloadErr
		}
	} else {
		if err := runWorkload(c.Context, logger, c.Duration("duration"), c.Uint64("seed")); err != nil {
			return err
		}
	}

	core.Flush()
	snap := stats.Snapshot()
	fmt.Fprintf(c.App.Writer, "received=%d sampled=%d dropped=%d\n",
		snap.Received, snap.Sampled, snap.Dropped)
	return nil
}

// buildSampledCore assembles the sampling core from the config file or
// the built-in defaults. The returned cleanup closes any sink the
// build opened.
func buildSampledCore(c *cli.Context) (*sample.Core, *sample.Stats, func(), error) {
	cleanup := func() {}

	var cfg *config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, nil, cleanup, err
		}
		if c.IsSet("bucket") {
			loaded.BucketDuration = config.Duration{Duration: c.Duration("bucket")}
		}
		cfg = loaded
	} else {
		cfg = defaultSpikyConfig(c.Duration("bucket"))
	}

	builder, err := cfg.Builder()
	if err != nil {
		return nil, nil, cleanup, err
	}

	switch {
	case cfg.Redis != nil:
		shipperCfg := ship.RedisConfig{
			URL:     cfg.Redis.URL,
			Channel: cfg.Redis.Channel,
			Timeout: cfg.Redis.Timeout.Duration,
		}
		if cfg.Redis.Retries != nil {
			shipperCfg.Retries = *cfg.Redis.Retries
		}
		shipper, err := ship.NewRedisShipper(shipperCfg)
		if err != nil {
			return nil, nil, cleanup, err
		}
		cleanup = iox.CloseFunc(shipper)
		builder = builder.Writer(ship.Writer(shipper))

	case cfg.Output == "" || cfg.Output == "stderr":
		builder = builder.Writer(sample.StderrWriter)

	case cfg.Output == "stdout":
		builder = builder.Writer(func() io.Writer { return os.Stdout })

	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("cannot open output %q: %w", cfg.Output, err)
		}
		cleanup = iox.CloseFunc(f)
		builder = builder.Writer(sample.LockedWriter(f))
	}

	if addr := cfg.MetricsAddr; addr != "" && c.String("metrics") == "" {
		if err := c.Set("metrics", addr); err != nil {
			return nil, nil, cleanup, err
		}
	}

	core, stats, err := builder.Build()
	if err != nil {
		return nil, nil, cleanup, err
	}
	return core, stats, cleanup, nil
}

// defaultSpikyConfig mirrors a production-ish cascade: generous error
// headroom, progressively tighter budgets for noisier levels.
func defaultSpikyConfig(bucket time.Duration) *config.Config {
	return &config.Config{
		BucketDuration: config.Duration{Duration: bucket},
		Budgets: []config.BudgetConfig{
			{Level: "error", Rate: 20},
			{Level: "warn", Rate: 10},
			{Level: "info", Rate: 6},
			{Level: "debug", Rate: 4},
		},
	}
}

// runWorkload emits latency-classified events in paced 10ms ticks.
// Each tick seeds its own RNG from the tick index, so two runs with
// the same seed produce the same event stream regardless of pacing
// jitter.
func runWorkload(ctx context.Context, logger *zap.Logger, duration time.Duration, seed uint64) error {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	limiter := rate.NewLimiter(rate.Every(tickInterval), 1)
	start := time.Now()

	for tick := uint64(0); time.Since(start) < duration; tick++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		rng := rand.New(rand.NewPCG(seed+tick, 0))
		isSpike := rng.Float64() < 0.01
		burst := 1 + rng.IntN(4)
		if isSpike {
			burst = 50 + rng.IntN(100)
		}

		for i := 0; i < burst; i++ {
			latencyMS := rng.Float64() * 20
			if isSpike {
				latencyMS = rng.Float64() * 500
			}

			fields := []zapcore.Field{
				zap.Float64("latency_ms", latencyMS),
				zap.Int("i", i),
			}
			switch {
			case latencyMS > 400:
				logger.Error("very slow request", fields...)
			case latencyMS > 100:
				logger.Warn("slow request", fields...)
			case latencyMS > 50:
				logger.Info("moderate request", fields...)
			default:
				logger.Debug("normal request", fields...)
			}
		}
	}
	return nil
}
