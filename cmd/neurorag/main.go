package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/siri1404/NeuroRAG/internal/affinity"
	"github.com/siri1404/NeuroRAG/internal/core"
	"github.com/siri1404/NeuroRAG/internal/dispatch"
	"github.com/siri1404/NeuroRAG/internal/engine"
	"github.com/siri1404/NeuroRAG/internal/index"
	"github.com/siri1404/NeuroRAG/internal/logging"
	"github.com/siri1404/NeuroRAG/internal/server"
)

func main() {
	// Optional .env for local development; absent in production.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("neurorag", &cfg); err != nil {
		stderrFatal("config parse failed: " + err.Error())
	}
	if err := ValidateConfig(&cfg); err != nil {
		stderrFatal("config invalid: " + err.Error())
	}

	logger, err := logging.NewLogger(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel})
	if err != nil {
		stderrFatal("logger init failed: " + err.Error())
	}
	defer logger.Sync() //nolint:errcheck

	metric, err := core.ParseMetric(cfg.Metric)
	if err != nil {
		logger.Fatal("invalid metric", zap.Error(err))
	}
	kind, err := index.ParseKind(cfg.IndexKind)
	if err != nil {
		logger.Fatal("invalid index kind", zap.Error(err))
	}

	eng, err := engine.New(engine.Config{
		IndexKind:    kind,
		Dimension:    cfg.Dimension,
		Metric:       metric,
		IndexPath:    cfg.IndexPath,
		MetadataPath: cfg.MetadataPath,
		MaxResults:   cfg.MaxResults,
		HNSW: index.HNSWParams{
			M:        cfg.HNSWM,
			EfSearch: cfg.HNSWEfSearch,
		},
		InvalidateOnInsert: cfg.InvalidateOnInsert,
		CacheEnabled:       cfg.CacheEnabled,
		CacheCapacity:      cfg.CacheCapacity,
		CacheTTL:           cfg.CacheTTL,
		CacheBucketWidth:   cfg.CacheBucketWidth,
		Dispatch: dispatch.Config{
			Workers:        cfg.Workers,
			QueueDepth:     cfg.QueueDepth,
			DefaultTimeout: cfg.SearchTimeout,
		},
		Affinity: affinity.Config{
			Enabled:          cfg.AffinityEnabled,
			PreferredDomains: cfg.PreferredDomains,
		},
	}, logger)
	if err != nil {
		// A corrupt on-disk index lands here; refusing to start is the
		// only safe response.
		logger.Fatal("engine startup failed", zap.Error(err))
	}

	srv := server.NewServer(eng, server.Config{
		Host:      cfg.Host,
		Port:      cfg.Port,
		GRPCPort:  cfg.GRPCPort,
		RateLimit: cfg.RateLimitRPS,
		RateBurst: cfg.RateLimitBurst,
	}, logger)

	if cfg.WarmupQueries > 0 {
		primed := eng.WarmupCache(context.Background(), syntheticQueries(cfg.WarmupQueries, cfg.Dimension))
		logger.Info("cache warmup finished", zap.Int("requested", cfg.WarmupQueries), zap.Int("primed", primed))
	}

	stopLoops := make(chan struct{})
	if cfg.SnapshotInterval > 0 && cfg.IndexPath != "" {
		go snapshotLoop(eng, cfg.SnapshotInterval, stopLoops, logger)
	}
	if cfg.StatsInterval > 0 {
		go statsLoop(eng, cfg.StatsInterval, stopLoops, logger)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
		}
	}

	close(stopLoops)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("server shutdown incomplete", zap.Error(err))
	}

	if cfg.IndexPath != "" {
		if err := eng.Save(""); err != nil {
			logger.Error("final index save failed", zap.Error(err))
		}
	}
	if err := eng.Close(); err != nil {
		logger.Warn("engine close failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func snapshotLoop(eng *engine.Engine, interval time.Duration, stop <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := eng.Save(""); err != nil {
				logger.Error("periodic index save failed", zap.Error(err))
				continue
			}
			logger.Debug("periodic index snapshot written")
		}
	}
}

// statsLoop periodically logs a telemetry snapshot. It reads counters and
// reservoirs only, never the index locks.
func statsLoop(eng *engine.Engine, interval time.Duration, stop <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			st := eng.Statistics()
			logger.Info("service stats",
				zap.Int64("total_vectors", st.TotalVectors),
				zap.Uint64("index_generation", st.IndexGeneration),
				zap.Float64("memory_usage_mb", st.MemoryUsageMB),
				zap.Uint64("total_searches", st.TotalSearches),
				zap.Float64("cache_hit_rate", st.CacheHitRate),
				zap.Float64("latency_p50_ms", st.LatencyP50Ms),
				zap.Float64("latency_p95_ms", st.LatencyP95Ms),
				zap.Float64("latency_p99_ms", st.LatencyP99Ms))
		}
	}
}

func syntheticQueries(n, dim int) []core.SearchRequest {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	reqs := make([]core.SearchRequest, n)
	for i := range reqs {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = rng.Float32()*2 - 1
		}
		reqs[i] = core.SearchRequest{Query: vec, K: 10}
	}
	return reqs
}

func stderrFatal(msg string) {
	os.Stderr.WriteString(msg + "\n") //nolint:errcheck
	os.Exit(1)
}
