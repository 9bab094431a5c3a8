// Package hooks provides production-ready Hook and Logger implementations.
package hooks

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) {
	s.log.Debug(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Info(msg string, fields ...interface{}) {
	s.log.Info(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Warn(msg string, fields ...interface{}) {
	s.log.Warn(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Error(msg string, fields ...interface{}) {
	s.log.Error(msg, toAttrs(fields)...)
}

func toAttrs(fields []interface{}) []any { return fields }

// ParseLevel maps a config log_level to a slog.Level; unknown values map to
// info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs the start and outcome of each operation.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeOp(_ context.Context, op string, info core.OpInfo) {
	h.logger.Debug("jxl.op.start",
		"op", op,
		"backend", info.Backend,
		"width", info.Width,
		"height", info.Height,
		"input", humanize.IBytes(uint64(info.InputSize)),
	)
}

func (h *LoggingHook) AfterOp(_ context.Context, op string, info core.OpInfo, d time.Duration, err error) {
	if err != nil {
		h.logger.Error("jxl.op.error",
			"op", op,
			"backend", info.Backend,
			"category", string(apperrors.CategoryOf(err)),
			"duration_ms", d.Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	h.logger.Debug("jxl.op.done",
		"op", op,
		"backend", info.Backend,
		"width", info.Width,
		"height", info.Height,
		"input", humanize.IBytes(uint64(info.InputSize)),
		"output", humanize.IBytes(uint64(info.OutputSize)),
		"duration_ms", d.Milliseconds(),
	)
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates metrics atomically; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	opDurationsMs map[string]int64 // cumulative ms per op
	opCalls       map[string]int64 // call count per op
	opErrors      map[string]int64
	categories    map[string]int64 // error count per category

	totalThroughputB int64
	totalOutputB     int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		opDurationsMs: make(map[string]int64),
		opCalls:       make(map[string]int64),
		opErrors:      make(map[string]int64),
		categories:    make(map[string]int64),
	}
}

func (m *InMemoryMetrics) RecordProcessingTime(op string, d interface{ Seconds() float64 }) {
	ms := int64(d.Seconds() * 1000)
	m.mu.Lock()
	m.opDurationsMs[op] += ms
	m.opCalls[op]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordThroughput(bytes int64) {
	atomic.AddInt64(&m.totalThroughputB, bytes)
}

func (m *InMemoryMetrics) RecordOutputBytes(bytes int64) {
	atomic.AddInt64(&m.totalOutputB, bytes)
}

func (m *InMemoryMetrics) RecordError(op string, category string) {
	m.mu.Lock()
	m.opErrors[op]++
	m.categories[category]++
	m.mu.Unlock()
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		OpDurationsMs:    copyCounts(m.opDurationsMs),
		OpCalls:          copyCounts(m.opCalls),
		OpErrors:         copyCounts(m.opErrors),
		ErrorCategories:  copyCounts(m.categories),
		TotalThroughputB: atomic.LoadInt64(&m.totalThroughputB),
		TotalOutputB:     atomic.LoadInt64(&m.totalOutputB),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	OpDurationsMs    map[string]int64
	OpCalls          map[string]int64
	OpErrors         map[string]int64
	ErrorCategories  map[string]int64
	TotalThroughputB int64 // compressed or encoded input bytes consumed
	TotalOutputB     int64 // bytes produced (pixels or compressed output)
}

// ── Metrics hook ──────────────────────────────────────────────────────────────

// MetricsHook feeds operation events into a MetricsCollector.
type MetricsHook struct {
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeOp(_ context.Context, _ string, _ core.OpInfo) {}

func (h *MetricsHook) AfterOp(_ context.Context, op string, info core.OpInfo, d time.Duration, err error) {
	h.collector.RecordProcessingTime(op, d)
	if err != nil {
		cat := string(apperrors.CategoryOf(err))
		if cat == "" {
			cat = "unknown"
		}
		h.collector.RecordError(op, cat)
		return
	}
	h.collector.RecordThroughput(int64(info.InputSize))
	h.collector.RecordOutputBytes(int64(info.OutputSize))
}
