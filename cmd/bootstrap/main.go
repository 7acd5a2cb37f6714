// Package main 系统初始化入口
// 创建 PostgreSQL 表结构、全文索引与 Milvus 集合。
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"podcast-search-api/internal/config"
	"podcast-search-api/internal/infrastructure/persistence/milvus"
	"podcast-search-api/internal/infrastructure/persistence/postgres"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. PostgreSQL 表结构与全文索引
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer pgClient.Close()

	chunkRepo := postgres.NewChunkRepository(pgClient)
	if err := chunkRepo.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}
	fmt.Println("PostgreSQL schema ready")

	// 3. Milvus 集合与索引
	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		log.Fatalf("failed to connect milvus: %v", err)
	}
	defer milvusClient.Close()

	vectorRepo := milvus.NewRepository(milvusClient, cfg.Embedding.Dimension)
	if err := vectorRepo.EnsurePodcastChunksCollection(ctx); err != nil {
		log.Fatalf("failed to ensure vector collection: %v", err)
	}
	fmt.Println("Milvus collection ready")

	fmt.Println("Bootstrap completed")
}
