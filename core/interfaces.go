package core

import (
	"context"
	"time"
)

// Decoder turns a complete encoded buffer into a DecodeResult.
// Implementations live in adapters/decoder/.
type Decoder interface {
	// Decode runs the full incremental decode of req.Data.
	Decode(ctx context.Context, req DecodeRequest) (*DecodeResult, error)
	// Probe reads only the image header and returns its dimensions.
	Probe(ctx context.Context, data []byte) (width, height int, err error)
}

// Encoder compresses caller pixels.  Implementations live in adapters/encoder/.
type Encoder interface {
	Encode(ctx context.Context, req EncodeRequest) ([]byte, error)
	EncodeHDR(ctx context.Context, req HDREncodeRequest) ([]byte, error)
}

// Rescaler applies the decode rescale hint to a decoded bitmap.
type Rescaler interface {
	Rescale(ctx context.Context, res *DecodeResult, width, height int) (*DecodeResult, error)
}

// Hook observes processor operations.
type Hook interface {
	BeforeOp(ctx context.Context, op string, info OpInfo)
	AfterOp(ctx context.Context, op string, info OpInfo, d time.Duration, err error)
}

// MetricsCollector receives performance observations from the processor.
type MetricsCollector interface {
	RecordProcessingTime(op string, d interface{ Seconds() float64 })
	RecordThroughput(bytes int64)
	RecordOutputBytes(bytes int64)
	RecordError(op string, category string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Registry maps backend names to codec engines.
type Registry interface {
	Register(e Engine)
	Engine(name string) (Engine, bool)
	Names() []string
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return nopLogger{} }
