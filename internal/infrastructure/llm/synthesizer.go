package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"podcast-search-api/internal/config"
	"podcast-search-api/pkg/errors"
)

const synthesisSystemPrompt = `You are a podcast research assistant. Answer the question using only the transcript excerpts provided. Quote or paraphrase the excerpts; do not invent facts. If the excerpts do not answer the question, say so briefly.`

// Synthesizer 基于检索片段合成自然语言答案
// 出站调用经过令牌桶限速，保护上游 LLM 配额。
type Synthesizer struct {
	factory *EinoFactory
	limiter *rate.Limiter
}

// NewSynthesizer 创建答案合成器
func NewSynthesizer(factory *EinoFactory, cfg *config.SynthesisConfig) *Synthesizer {
	rps := cfg.OutboundRPS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.OutboundBurst
	if burst <= 0 {
		burst = 10
	}
	return &Synthesizer{
		factory: factory,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Synthesize 调用 ChatModel 合成答案
// 调用方负责超时控制；限速等待同样受 ctx 约束。
func (s *Synthesizer) Synthesize(ctx context.Context, query string, passages []string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, errors.CodeSynthesisFailed, "synthesis throttled")
	}

	chatModel, err := s.factory.Default(ctx)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeSynthesisFailed, "no synthesis model available")
	}

	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\nTranscript excerpts:\n")
	for i, p := range passages {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, p)
	}

	messages := []*schema.Message{
		schema.SystemMessage(synthesisSystemPrompt),
		schema.UserMessage(sb.String()),
	}

	resp, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeSynthesisFailed, "synthesis call failed")
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", errors.New(errors.CodeSynthesisFailed, "empty synthesis result")
	}

	return strings.TrimSpace(resp.Content), nil
}
