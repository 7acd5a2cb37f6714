// Package wire 提供依赖装配
// 按配置选择 Redis 或进程内实现，构造检索管线并装配路由。
package wire

import (
	"context"

	"podcast-search-api/internal/application/ingest"
	"podcast-search-api/internal/application/search"
	"podcast-search-api/internal/config"
	"podcast-search-api/internal/infrastructure/embedding"
	"podcast-search-api/internal/infrastructure/llm"
	"podcast-search-api/internal/infrastructure/persistence/memory"
	"podcast-search-api/internal/infrastructure/persistence/milvus"
	"podcast-search-api/internal/infrastructure/persistence/postgres"
	"podcast-search-api/internal/infrastructure/persistence/redis"
	"podcast-search-api/internal/interfaces/http/handler"
	"podcast-search-api/internal/interfaces/http/router"
	"podcast-search-api/pkg/logger"
)

// App 装配完成的应用
type App struct {
	Router *router.Router

	PgClient     *postgres.Client
	RedisClient  *redis.Client
	MilvusClient *milvus.Client

	Coordinator *search.Coordinator
	Ingest      *ingest.Service
}

// Engine 返回 HTTP 引擎
func (a *App) Engine() *router.Router {
	return a.Router
}

// InitializeApp 装配整个应用
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// PostgreSQL
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanups = append(cleanups, func() { _ = pgClient.Close() })

	episodeRepo := postgres.NewEpisodeRepository(pgClient)
	chunkRepo := postgres.NewChunkRepository(pgClient)

	// Redis（可选）
	var redisClient *redis.Client
	if cfg.Cache.Redis.Enabled {
		redisClient, err = redis.NewClient(&cfg.Cache.Redis)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = redisClient.Close() })
	}

	// Milvus（故障时降级运行，仅关键词检索可用）
	var milvusClient *milvus.Client
	milvusClient, err = milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Warn(ctx, "milvus unavailable, vector search disabled", "error", err)
		milvusClient = nil
	} else {
		cleanups = append(cleanups, func() { _ = milvusClient.Close() })
	}
	vectorRepo := milvus.NewRepository(milvusClient, cfg.Embedding.Dimension)
	if milvusClient != nil {
		if err := vectorRepo.EnsurePodcastChunksCollection(ctx); err != nil {
			logger.Warn(ctx, "failed to ensure vector collection", "error", err)
		}
	}

	// 结果缓存与限流：Redis 启用时共享存储，否则进程内实现
	var (
		resultCache search.ResultCache
		cacheFlush  handler.CacheFlusher
		limiter     search.RateLimiter
	)
	cachePattern := cfg.Cache.KeyPrefix + ":q:*"
	if redisClient != nil {
		redisCache := redis.NewCache(redisClient, cfg.Cache.TTL)
		resultCache = redisCache
		cacheFlush = &redisCacheFlusher{cache: redisCache, pattern: cachePattern}
		if cfg.Security.RateLimit.Enabled {
			limiter = search.NewRedisLimiter(
				redis.NewRateLimiter(redisClient, cfg.Security.RateLimit.KeyPrefix),
				cfg.Security.RateLimit.Requests,
				cfg.Security.RateLimit.Window,
			)
		}
	} else {
		memCache := memory.NewCache(cfg.Cache.TTL, cfg.Cache.MaxEntries)
		resultCache = memCache
		cacheFlush = &memoryCacheFlusher{cache: memCache}
		if cfg.Security.RateLimit.Enabled {
			limiter = search.NewMemoryLimiter(
				memory.NewRateLimiter(),
				cfg.Security.RateLimit.Requests,
				cfg.Security.RateLimit.Window,
			)
		}
	}

	// Embedding 客户端
	var embedder search.Embedder
	switch cfg.Embedding.Provider {
	case "openai", "eino":
		einoEmbedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		embedder = einoEmbedder
	default:
		embedder = embedding.NewClient(&cfg.Embedding)
	}

	// 答案合成
	var synth search.Synthesizer
	if cfg.Search.Synthesis.Enabled {
		factory := llm.NewEinoFactory(cfg)
		synth = llm.NewSynthesizer(factory, &cfg.Search.Synthesis)
	}
	gate := search.NewGate(synth, &cfg.Search.Synthesis)

	// 检索管线
	engine := search.NewEngine(
		search.NewMilvusSearcher(vectorRepo),
		search.NewPostgresKeywordSearcher(chunkRepo),
		&cfg.Search,
	)
	coordinator := search.NewCoordinator(
		resultCache, limiter, embedder, engine, gate,
		&cfg.Search, cfg.Cache.KeyPrefix,
	)

	// 入库服务
	ingestSvc := ingest.NewService(episodeRepo, chunkRepo, vectorRepo, embedder)

	// 路由装配
	handlers := &router.Handlers{
		Health:  handler.NewHealthHandler(pgClient, redisClient, milvusClient),
		Search:  handler.NewSearchHandler(coordinator),
		Episode: handler.NewEpisodeHandler(ingestSvc),
		Admin:   handler.NewAdminHandler(ingestSvc, cacheFlush),
	}
	r := router.New(cfg, handlers)

	app := &App{
		Router:       r,
		PgClient:     pgClient,
		RedisClient:  redisClient,
		MilvusClient: milvusClient,
		Coordinator:  coordinator,
		Ingest:       ingestSvc,
	}
	return app, cleanup, nil
}

// redisCacheFlusher 按模式清除 Redis 缓存条目
type redisCacheFlusher struct {
	cache   *redis.Cache
	pattern string
}

func (f *redisCacheFlusher) Flush(ctx context.Context) (int, error) {
	return f.cache.InvalidatePattern(ctx, f.pattern)
}

// memoryCacheFlusher 清空进程内缓存
type memoryCacheFlusher struct {
	cache *memory.Cache
}

func (f *memoryCacheFlusher) Flush(ctx context.Context) (int, error) {
	return f.cache.Flush(ctx), nil
}
