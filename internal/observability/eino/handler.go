package eino

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"podcast-search-api/pkg/logger"
)

// startTimeKey 用于在 Context 中存储调用开始时间
type startTimeKey struct{}

// newChatModelCallbackHandler 创建 ChatModel 调用的回调处理器
// 每次答案合成触发：记录耗时、Token 消耗与追踪信息。
func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())

			attrs := []attribute.KeyValue{
				attribute.String("llm.model", modelNameFromInput(input)),
			}
			if info != nil {
				attrs = append(attrs,
					attribute.String("eino.node_name", info.Name),
					attribute.String("eino.type", info.Type),
				)
			}

			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			span := trace.SpanFromContext(ctx)
			if output != nil && output.TokenUsage != nil {
				span.SetAttributes(
					attribute.Int("llm.prompt_tokens", output.TokenUsage.PromptTokens),
					attribute.Int("llm.completion_tokens", output.TokenUsage.CompletionTokens),
				)
			}
			if start, ok := ctx.Value(startTimeKey{}).(time.Time); ok {
				span.SetAttributes(attribute.Int64("llm.duration_ms", time.Since(start).Milliseconds()))
			}
			span.End()
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()

			logger.Warn(ctx, "llm call failed", "error", err)
			return ctx
		},
	}
}

// newEmbeddingCallbackHandler 创建 Embedding 调用的回调处理器
func newEmbeddingCallbackHandler() *cbtemplate.EmbeddingCallbackHandler {
	return &cbtemplate.EmbeddingCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *embedding.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())

			attrs := []attribute.KeyValue{}
			if input != nil {
				attrs = append(attrs, attribute.Int("embedding.text_count", len(input.Texts)))
			}
			if info != nil {
				attrs = append(attrs, attribute.String("eino.node_name", info.Name))
			}

			ctx, _ = otel.Tracer("eino").Start(ctx, "embedding.embed", trace.WithAttributes(attrs...))
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *embedding.CallbackOutput) context.Context {
			span := trace.SpanFromContext(ctx)
			if start, ok := ctx.Value(startTimeKey{}).(time.Time); ok {
				span.SetAttributes(attribute.Int64("embedding.duration_ms", time.Since(start).Milliseconds()))
			}
			span.End()
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()

			logger.Warn(ctx, "embedding call failed", "error", err)
			return ctx
		},
	}
}

func modelNameFromInput(input *model.CallbackInput) string {
	if input == nil || input.Config == nil {
		return "unknown"
	}
	return input.Config.Model
}
