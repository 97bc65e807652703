package llm

import (
	"context"
	"time"

	"github.com/abhisek/numbersense/internal/logging"
	"github.com/abhisek/numbersense/internal/store"
)

// LoggingProvider records every request as an event and a log line.
// Prompts and completions are not persisted: they contain learner data.
type LoggingProvider struct {
	inner Provider
	sink  store.EventRepo
	log   *logging.Logger
}

// WithLogging wraps p. A nil sink skips event persistence; a nil logger
// discards log output.
func WithLogging(p Provider, sink store.EventRepo, log *logging.Logger) Provider {
	if log == nil {
		log = logging.Nop()
	}
	return &LoggingProvider{inner: p, sink: sink, log: log}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	ev := store.LLMRequestEventData{
		Provider:  l.inner.ModelID(),
		Model:     l.inner.ModelID(),
		Purpose:   PurposeFrom(ctx),
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
	}
	if resp != nil {
		ev.InputTokens = resp.Usage.InputTokens
		ev.OutputTokens = resp.Usage.OutputTokens
		ev.Model = resp.Model
	}
	if err != nil {
		ev.ErrorMessage = err.Error()
		l.log.Warn("llm request failed", "model", ev.Model, "purpose", ev.Purpose,
			"latency_ms", ev.LatencyMs, "error", err)
	} else {
		l.log.Debug("llm request", "model", ev.Model, "purpose", ev.Purpose,
			"latency_ms", ev.LatencyMs, "input_tokens", ev.InputTokens, "output_tokens", ev.OutputTokens)
	}

	if l.sink != nil {
		// Detached so a cancelled request still leaves its audit record.
		if logErr := l.sink.AppendLLMRequest(context.WithoutCancel(ctx), ev); logErr != nil {
			l.log.Warn("failed to record llm request event", "error", logErr)
		}
	}
	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
