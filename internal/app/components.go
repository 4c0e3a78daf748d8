package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/castradar/internal/cache"
	"github.com/hitoshi/castradar/internal/channel"
	"github.com/hitoshi/castradar/internal/config"
	"github.com/hitoshi/castradar/internal/database"
	"github.com/hitoshi/castradar/internal/metrics"
	"github.com/hitoshi/castradar/internal/neynar"
	"github.com/hitoshi/castradar/internal/repository"
	"github.com/hitoshi/castradar/internal/security"
	"github.com/hitoshi/castradar/internal/snapshot"
	"github.com/hitoshi/castradar/internal/worker/cleanup"
	jobsnapshot "github.com/hitoshi/castradar/internal/worker/snapshot"
)

// components はサブコマンド間で共有する依存関係。
type components struct {
	db       *sql.DB // STORE_DRIVER=memory の場合はnil
	store    repository.SnapshotRepository
	registry *prometheus.Registry
	metrics  *metrics.Collector
	builder  *snapshot.Builder
	job      *jobsnapshot.Job
	cache    cache.SnapshotCache
}

// Close はDB接続を閉じる。
func (c *components) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// buildComponents は設定に従ってストア、外部APIクライアント、ジョブを組み立てる。
func buildComponents(cfg *config.Config, logger *slog.Logger) (*components, error) {
	c := &components{}

	// 1. ストア
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("インメモリストアを使用します。プロセス終了時にデータは失われます")
		c.store = repository.NewMemorySnapshotRepo()
	default:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("database connection established",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		c.db = db
		c.store = repository.NewPostgresSnapshotRepo(db)
	}

	// 2. メトリクス
	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.metrics = metrics.NewCollector(c.registry)

	// 3. アウトバウンドHTTPクライアント
	httpClient, err := newOutboundClient(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	// 4. Neynarクライアントとチャンネル一覧
	client := neynar.NewClient(httpClient, logger, c.metrics, neynar.Options{
		BaseURL:          cfg.NeynarBaseURL,
		APIKey:           cfg.NeynarAPIKey,
		RatePerSec:       cfg.NeynarRatePerSec,
		ResolveReactions: cfg.NeynarResolveReactions,
		ReactionTimeout:  cfg.NeynarReactionTimeout,
	})

	sources := []channel.Source{channel.NewTrendingSource(client, cfg.MaxChannels)}
	if cfg.ChannelDirectoryURL != "" {
		sources = append(sources, channel.NewDirectory(cfg.ChannelDirectoryURL, httpClient))
	}
	resolver := channel.NewResolver(logger, cfg.MaxChannels, sources...)

	// 5. 集計ジョブ
	c.builder = snapshot.NewBuilder(security.NewTextSanitizer())

	cleanupJob := cleanup.NewCleanupJob(c.store, logger)
	cleanupJob.RetentionDays = cfg.RetentionDays

	c.job = jobsnapshot.NewJob(jobsnapshot.Deps{
		Channels: resolver,
		Fetcher:  client,
		Builder:  c.builder,
		Store:    c.store,
		Pruner:   cleanupJob,
		Metrics:  c.metrics,
		Logger:   logger,
	}, jobsnapshot.Config{
		CastLimit:     cfg.CastLimit,
		FetchTimeout:  cfg.FetchTimeout,
		MaxConcurrent: cfg.FetchMaxConcurrent,
	})

	// 6. 読み取りキャッシュ
	c.cache = cache.New(cfg.CacheSizeMB, cfg.CacheTTL, c.metrics)

	return c, nil
}

// newOutboundClient は外部API呼び出し用のHTTPクライアントを生成する。
// OUTBOUND_GUARD が有効な場合は設定されたエンドポイントを検証し、SSRF対策済みのクライアントを返す。
func newOutboundClient(cfg *config.Config) (*http.Client, error) {
	if !cfg.OutboundGuard {
		return &http.Client{Timeout: cfg.FetchTimeout}, nil
	}

	guard := security.NewSSRFGuard()
	if err := guard.ValidateURL(cfg.NeynarBaseURL); err != nil {
		return nil, &config.ConfigError{Field: "NEYNAR_BASE_URL", Err: err}
	}
	if cfg.ChannelDirectoryURL != "" {
		if err := guard.ValidateURL(cfg.ChannelDirectoryURL); err != nil {
			return nil, &config.ConfigError{Field: "CHANNEL_DIRECTORY_URL", Err: err}
		}
	}
	return guard.NewSafeClient(cfg.FetchTimeout), nil
}
