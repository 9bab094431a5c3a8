// Package jxlcoder decodes and encodes JPEG XL images through a pluggable
// codec engine.  The pure-Go memcodec engine is always available; libjxl is
// registered when the module is built with -tags libjxl.
package jxlcoder

import (
	"context"
	"fmt"
	"io"

	"github.com/Skryldev/jxl-coder/adapters/bitmap"
	"github.com/Skryldev/jxl-coder/adapters/decoder"
	"github.com/Skryldev/jxl-coder/adapters/encoder"
	"github.com/Skryldev/jxl-coder/adapters/libjxl"
	"github.com/Skryldev/jxl-coder/adapters/memcodec"
	"github.com/Skryldev/jxl-coder/config"
	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
	"github.com/Skryldev/jxl-coder/hooks"
	"github.com/Skryldev/jxl-coder/utils"
)

// Re-export the caller-facing enums for convenience.
const (
	Lossless = core.Lossless
	Lossy    = core.Lossy

	LayoutRGB  = core.LayoutRGB
	LayoutRGBA = core.LayoutRGBA

	PixelFormatOptimal = core.PixelFormatOptimal
	PixelFormat8       = core.PixelFormat8
	PixelFormat16      = core.PixelFormat16
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Coder is the primary entry point.  It is safe for concurrent use once hooks
// and loggers are attached.
type Coder struct {
	cfg   config.Config
	inner *core.Processor
	reg   *core.DefaultRegistry
	dec   *decoder.JXL
	enc   *encoder.JXL
	comp  core.CompressionOption
}

// New creates a fully wired Coder on the backend named by cfg.Backend.
func New(cfg config.Config) (*Coder, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "jxlcoder.new", err)
	}

	reg := core.NewRegistry()
	reg.Register(memcodec.New())
	if libjxl.Available() {
		eng, err := libjxl.New()
		if err != nil {
			return nil, err
		}
		reg.Register(eng)
	}

	eng, ok := reg.Engine(cfg.Backend)
	if !ok {
		if cfg.Backend == config.BackendLibjxl {
			_, err := libjxl.New()
			return nil, err
		}
		return nil, apperrors.Newf(apperrors.CategoryConfig, "jxlcoder.new", apperrors.ErrBackendUnavailable,
			"%q (registered: %v)", cfg.Backend, reg.Names())
	}

	rescaler, err := bitmap.NewRescaler(cfg.Decode.Resampler)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "jxlcoder.new", err)
	}
	comp, err := core.ParseCompressionOption(cfg.Encode.Compression)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "jxlcoder.new", err)
	}

	dec := decoder.NewJXL(eng, cfg.Decode.UnpremultiplyAlpha)
	dec.SetMaxPixels(cfg.Decode.MaxPixels)
	enc := encoder.NewJXL(eng, encoder.Options{
		InitialOutputBytes: cfg.Encode.InitialOutputBytes,
		MaxOutputBytes:     cfg.Encode.MaxOutputBytes,
		AllowICCFallback:   cfg.Encode.AllowICCFallback,
		CompressBoxes:      cfg.Encode.CompressBoxes,
		MaxExifBytes:       cfg.Encode.MaxExifBytes,
	})

	inner := core.New(cfg, eng, dec, enc)
	inner.SetRescaler(rescaler)
	return &Coder{cfg: cfg, inner: inner, reg: reg, dec: dec, enc: enc, comp: comp}, nil
}

// SetLogger attaches a structured logger to the coder and both adapters.
func (c *Coder) SetLogger(l core.Logger) {
	c.inner.SetLogger(l)
	c.dec.SetLogger(l)
	c.enc.SetLogger(l)
}

// SetMetrics feeds every operation into m.
func (c *Coder) SetMetrics(m core.MetricsCollector) { c.inner.AddHook(hooks.NewMetricsHook(m)) }

// AddHook registers an operation observer.
func (c *Coder) AddHook(h core.Hook) { c.inner.AddHook(h) }

// Backend returns the name of the active codec engine.
func (c *Coder) Backend() string { return c.inner.Engine().Name() }

// Backends lists every registered engine.
func (c *Coder) Backends() []string { return c.reg.Names() }

// Config returns the configuration the coder was built with.
func (c *Coder) Config() config.Config { return c.cfg }

// Compression returns the configured default from encode.compression.
func (c *Coder) Compression() core.CompressionOption { return c.comp }

// NewDecodeRequest returns a request for data using the configured pixel
// format policy.
func (c *Coder) NewDecodeRequest(data []byte) core.DecodeRequest {
	pf, _ := core.ParsePixelFormat(c.cfg.Decode.PixelFormat)
	return core.DecodeRequest{Data: data, PixelFormat: pf, Scale: 1}
}

// NewEncodeRequest returns a standard pipeline request carrying the
// configured effort, distance and decoding speed.
func (c *Coder) NewEncodeRequest(pixels []byte, width, height int, layout core.ChannelLayout, comp core.CompressionOption) core.EncodeRequest {
	return core.EncodeRequest{
		Pixels:        pixels,
		Width:         width,
		Height:        height,
		Layout:        layout,
		Compression:   comp,
		Distance:      float32(c.cfg.Encode.Distance),
		Effort:        c.cfg.Encode.Effort,
		DecodingSpeed: c.cfg.Encode.DecodingSpeed,
	}
}

// Decode runs a full decode of req.Data.
func (c *Coder) Decode(ctx context.Context, req core.DecodeRequest) (*core.DecodeResult, error) {
	return c.inner.Decode(ctx, req)
}

// DecodeReader drains r, bounded by max_image_bytes, and decodes it.
func (c *Coder) DecodeReader(ctx context.Context, r io.Reader, req core.DecodeRequest) (*core.DecodeResult, error) {
	return c.inner.DecodeReader(ctx, r, req)
}

// DecodeBatch decodes independent inputs concurrently.
func (c *Coder) DecodeBatch(ctx context.Context, reqs []core.DecodeRequest) []core.BatchResult {
	return c.inner.DecodeBatch(ctx, reqs)
}

// Size returns the image dimensions without decoding pixels.
func (c *Coder) Size(ctx context.Context, data []byte) (width, height int, err error) {
	return c.inner.Probe(ctx, data)
}

// SizeReader drains r and returns the image dimensions.
func (c *Coder) SizeReader(ctx context.Context, r io.Reader) (width, height int, err error) {
	return c.inner.ProbeReader(ctx, r)
}

// Encode compresses an 8-bit RGB or RGBA buffer.
func (c *Coder) Encode(ctx context.Context, req core.EncodeRequest) ([]byte, error) {
	return c.inner.Encode(ctx, req)
}

// EncodeHDR compresses a high bit depth or floating point buffer.
func (c *Coder) EncodeHDR(ctx context.Context, req core.HDREncodeRequest) ([]byte, error) {
	return c.inner.EncodeHDR(ctx, req)
}

// EncodeHDRWithMetadata is EncodeHDR with EXIF and XMP boxes attached.
func (c *Coder) EncodeHDRWithMetadata(ctx context.Context, req core.HDREncodeRequest, meta core.Metadata) ([]byte, error) {
	req.Metadata = meta
	return c.inner.EncodeHDR(ctx, req)
}

// IsJXL reports whether data starts with a JPEG XL codestream or container
// signature.  It is false for the memcodec engine's own stream format; use
// CanDecode to ask whether the active backend can read the bytes.
func (c *Coder) IsJXL(data []byte) bool {
	return c.inner.CheckSignature(data).IsJXL() || utils.IsJXLSignature(data)
}

// CanDecode reports whether the active backend recognises data as a stream
// it can decode.
func (c *Coder) CanDecode(data []byte) bool { return c.inner.CheckSignature(data).Valid() }

// Stats returns a snapshot of the operation counters.
func (c *Coder) Stats() core.Stats { return c.inner.Stats() }

// String implements fmt.Stringer.
func (c *Coder) String() string { return fmt.Sprintf("jxlcoder(%s)", c.Backend()) }
