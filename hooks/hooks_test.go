package hooks

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
)

func TestMetricsHook(t *testing.T) {
	m := NewInMemoryMetrics()
	h := NewMetricsHook(m)
	ctx := context.Background()
	info := core.OpInfo{Backend: "memcodec", InputSize: 100, OutputSize: 16}

	h.BeforeOp(ctx, core.OpDecode, info)
	h.AfterOp(ctx, core.OpDecode, info, 2*time.Millisecond, nil)
	h.AfterOp(ctx, core.OpDecode, info, time.Millisecond,
		apperrors.New(apperrors.CategoryMalformedInput, "decode", apperrors.ErrNeedMoreInput))
	h.AfterOp(ctx, core.OpEncode, info, time.Millisecond, errors.New("plain"))

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.OpCalls[core.OpDecode])
	assert.Equal(t, int64(1), snap.OpErrors[core.OpDecode])
	assert.Equal(t, int64(1), snap.ErrorCategories["malformed_input"])
	assert.Equal(t, int64(1), snap.ErrorCategories["unknown"])
	assert.Equal(t, int64(100), snap.TotalThroughputB)
	assert.Equal(t, int64(16), snap.TotalOutputB)

	// Snapshot maps are copies.
	snap.OpCalls[core.OpDecode] = 99
	assert.Equal(t, int64(2), m.Snapshot().OpCalls[core.OpDecode])
}

func TestLoggingHookWritesHumanSizes(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	h := NewLoggingHook(l)

	info := core.OpInfo{Backend: "memcodec", Width: 2, Height: 2, InputSize: 2048, OutputSize: 16}
	h.AfterOp(context.Background(), core.OpEncode, info, time.Millisecond, nil)

	out := buf.String()
	assert.Contains(t, out, "jxl.op.done")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "op=encode")

	buf.Reset()
	h.AfterOp(context.Background(), core.OpEncode, info, time.Millisecond,
		apperrors.New(apperrors.CategoryConfigRejected, "encode.basic_info", apperrors.ErrCodecRejected))
	require.Contains(t, buf.String(), "jxl.op.error")
	assert.Contains(t, buf.String(), "category=config_rejected")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}
