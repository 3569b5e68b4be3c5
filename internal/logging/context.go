// Package logging carries editing correlation ids through context so every
// log line can be traced back to the draft, the operation, and the actor
// that triggered it.
package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	draftIDKey ctxKey = iota
	opKey
	actorIDKey
)

// WithDraftID returns a context with the draft id set.
func WithDraftID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, draftIDKey, id)
}

// WithOp returns a context with the editor operation name set
// ("insert", "paste", "remove", ...).
func WithOp(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, opKey, op)
}

// WithActorID returns a context with the acting user or agent id set.
func WithActorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, actorIDKey, id)
}

// DraftID extracts the draft id from the context, or "" if absent.
func DraftID(ctx context.Context) string {
	v, _ := ctx.Value(draftIDKey).(string)
	return v
}

// Op extracts the operation name from the context, or "" if absent.
func Op(ctx context.Context) string {
	v, _ := ctx.Value(opKey).(string)
	return v
}

// ActorID extracts the actor id from the context, or "" if absent.
func ActorID(ctx context.Context) string {
	v, _ := ctx.Value(actorIDKey).(string)
	return v
}

// WithIDs sets all three correlation ids on the context at once.
func WithIDs(ctx context.Context, draftID, op, actorID string) context.Context {
	ctx = WithDraftID(ctx, draftID)
	ctx = WithOp(ctx, op)
	ctx = WithActorID(ctx, actorID)
	return ctx
}

// LogWith returns a logger enriched with correlation ids from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := DraftID(ctx); id != "" {
		logger = logger.With(slog.String("draft_id", id))
	}
	if op := Op(ctx); op != "" {
		logger = logger.With(slog.String("op", op))
	}
	if id := ActorID(ctx); id != "" {
		logger = logger.With(slog.String("actor_id", id))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation ids from the context into every log record. Use with
// slog.New(NewCorrelationHandler(inner)) so logger.InfoContext(ctx, ...)
// picks the ids up without explicit With calls.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := DraftID(ctx); v != "" {
		r.AddAttrs(slog.String("draft_id", v))
	}
	if v := Op(ctx); v != "" {
		r.AddAttrs(slog.String("op", v))
	}
	if v := ActorID(ctx); v != "" {
		r.AddAttrs(slog.String("actor_id", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
