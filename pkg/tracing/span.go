// Package tracing times the stages of a request as a tree of spans carried
// in the context. A finished tree is written to the request's logger at
// debug level, one line per span.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/logger"
)

type contextKey struct{}

// Span is one timed stage.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	attrs    []any
	children []*Span
}

// Start opens a span named name. Inside an existing span it becomes a child
// sharing the trace ID; otherwise it is a root whose trace ID is the request
// ID, or a fresh UUID outside a request.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{Name: name, Start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, span)
		parent.mu.Unlock()
	} else if id := logger.RequestID(ctx); id != "" {
		span.TraceID = id
	} else {
		span.TraceID = uuid.NewString()
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// FromContext returns the innermost open span, or nil.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

func (s *Span) End() {
	s.Duration = time.Since(s.Start)
}

// Set attaches key/value pairs logged with the span.
func (s *Span) Set(kv ...any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, kv...)
	s.mu.Unlock()
}

// Children returns the direct child spans.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Log writes the span and its descendants to l at debug level.
func (s *Span) Log(ctx context.Context, l *slog.Logger) {
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	s.log(ctx, l, 0)
}

func (s *Span) log(ctx context.Context, l *slog.Logger, depth int) {
	s.mu.Lock()
	args := append([]any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"depth", depth,
		"duration_ms", float64(s.Duration.Microseconds()) / 1000,
	}, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	l.DebugContext(ctx, "span", args...)
	for _, child := range children {
		child.log(ctx, l, depth+1)
	}
}
