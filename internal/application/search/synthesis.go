package search

import (
	"context"
	"time"

	"podcast-search-api/internal/config"
	"podcast-search-api/pkg/logger"
	"podcast-search-api/pkg/metrics"
)

// Gate 答案合成门控
// 只有检索结果足够可信时才调用合成；合成失败静默降级，
// 检索结果照常返回。
type Gate struct {
	synth Synthesizer
	cfg   *config.SynthesisConfig
}

// NewGate 创建合成门控
func NewGate(synth Synthesizer, cfg *config.SynthesisConfig) *Gate {
	return &Gate{
		synth: synth,
		cfg:   cfg,
	}
}

// Answer 门控判定并执行合成，不满足条件或失败返回空串
func (g *Gate) Answer(ctx context.Context, query string, items []ResultItem) string {
	if g == nil || g.synth == nil || g.cfg == nil || !g.cfg.Enabled {
		metrics.SynthesisTotal.WithLabelValues("skipped").Inc()
		return ""
	}
	if len(items) == 0 || items[0].Score < g.cfg.MinScore {
		metrics.SynthesisTotal.WithLabelValues("skipped").Inc()
		return ""
	}

	topContext := g.cfg.TopContext
	if topContext <= 0 {
		topContext = 3
	}
	if topContext > len(items) {
		topContext = len(items)
	}
	passages := make([]string, topContext)
	for i := 0; i < topContext; i++ {
		passages[i] = items[i].Excerpt
	}

	timeout := g.cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	answer, err := g.synth.Synthesize(ctx, query, passages)
	metrics.SynthesisDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SynthesisTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "answer synthesis failed, returning results without answer", "error", err)
		return ""
	}

	metrics.SynthesisTotal.WithLabelValues("ok").Inc()
	return answer
}
