package embedding

import (
	"context"
	"fmt"

	"podcast-search-api/internal/config"
	"podcast-search-api/pkg/errors"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	einoembedding "github.com/cloudwego/eino/components/embedding"
)

// EinoEmbedder 基于 Eino OpenAI 适配器的 Embedder
type EinoEmbedder struct {
	inner einoembedding.Embedder
}

// NewEinoEmbedder 创建基于 Eino 的 Embedder
func NewEinoEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (*EinoEmbedder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is required")
	}

	// 使用 Eino 的 OpenAI 适配器
	embedder, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}

	return &EinoEmbedder{inner: embedder}, nil
}

// Embed 计算文本向量（float64 -> float32 转换）
func (e *EinoEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	v64, err := e.inner.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeEmbeddingFailed, "embedding request failed")
	}
	if len(v64) != len(texts) {
		return nil, errors.New(errors.CodeEmbeddingFailed, "embedding count mismatch")
	}

	out := make([][]float32, 0, len(v64))
	for _, vec := range v64 {
		v32 := make([]float32, 0, len(vec))
		for _, x := range vec {
			v32 = append(v32, float32(x))
		}
		out = append(out, v32)
	}
	return out, nil
}
