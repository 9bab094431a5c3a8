// Package encoder drives a core.Engine through the incremental encode protocol.
package encoder

import (
	"context"

	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
	"github.com/Skryldev/jxl-coder/utils"
)

// Parameter ranges accepted by both pipelines.
const (
	MinEffort        = 1
	MaxEffort        = 9
	MaxDistance      = 15.0
	MaxDecodingSpeed = 4
)

// Options tune output growth and the HDR pipeline.
type Options struct {
	InitialOutputBytes int
	MaxOutputBytes     int64 // 0 = unbounded
	// AllowICCFallback switches to the parametric colour description when the
	// codec rejects a supplied ICC profile.
	AllowICCFallback bool
	// CompressBoxes asks the codec to compress metadata boxes.
	CompressBoxes bool
	MaxExifBytes  int64 // 0 = unbounded
}

// DefaultOptions mirrors config.Default().
func DefaultOptions() Options {
	return Options{
		InitialOutputBytes: DefaultInitialOutput,
		MaxExifBytes:       DefaultMaxExifBytes,
	}
}

// JXL implements core.Encoder on top of a codec engine.  It holds no
// per-request state; every call opens its own encoder handle.
type JXL struct {
	engine core.Engine
	opts   Options
	logger core.Logger
}

// NewJXL returns an encoder for engine.
func NewJXL(engine core.Engine, opts Options) *JXL {
	return &JXL{engine: engine, opts: opts, logger: core.NopLogger()}
}

// SetLogger attaches a structured logger.
func (e *JXL) SetLogger(l core.Logger) {
	if l != nil {
		e.logger = l
	}
}

func (e *JXL) grower() outputGrower {
	return outputGrower{initial: e.opts.InitialOutputBytes, max: e.opts.MaxOutputBytes}
}

// Encode compresses an 8-bit RGB or RGBA buffer.  Parameters and the buffer
// size are validated before the codec is touched; any configuration call
// the codec rejects aborts the encode.
func (e *JXL) Encode(ctx context.Context, req core.EncodeRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "encode", err)
	}
	if err := validateStandard(req); err != nil {
		return nil, err
	}

	enc, err := e.engine.NewEncoder()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryBackend, "encode.create", err)
	}
	defer enc.Close()

	channels := req.Layout.Channels()
	hasAlpha := req.Layout == core.LayoutRGBA
	layout := core.PixelLayout{NumChannels: channels, DataType: core.Uint8}
	lossless := req.Compression == core.Lossless

	basic := core.BasicInfo{
		Xsize:               uint32(req.Width),
		Ysize:               uint32(req.Height),
		BitsPerSample:       8,
		NumColorChannels:    3,
		UsesOriginalProfile: lossless,
		Orientation:         core.OrientationIdentity,
	}
	if hasAlpha {
		basic.NumExtraChannels = 1
		basic.AlphaBits = 8
	}

	if err := enc.SetParallelism(e.engine.DefaultWorkers()); err != nil {
		return nil, rejected("parallelism", err)
	}
	if err := enc.SetBasicInfo(basic); err != nil {
		return nil, rejected("basic_info", err)
	}
	if hasAlpha {
		if err := enc.SetExtraChannelInfo(0, core.AlphaChannel(8, 0)); err != nil {
			return nil, rejected("extra_channel", err)
		}
	}
	if err := enc.SetColorEncoding(core.SRGBColorEncoding(channels < 3)); err != nil {
		return nil, rejected("color_encoding", err)
	}

	fs, err := enc.NewFrameSettings()
	if err != nil {
		return nil, rejected("frame_settings", err)
	}
	if err := fs.SetBitDepth(core.BitDepth{Type: core.BitDepthFromPixelFormat, BitsPerSample: 8}); err != nil {
		return nil, rejected("bit_depth", err)
	}
	if err := fs.SetLossless(lossless); err != nil {
		return nil, rejected("lossless", err)
	}
	if err := fs.SetOption(core.FrameSettingDecodingSpeed, req.DecodingSpeed); err != nil {
		return nil, rejected("decoding_speed", err)
	}
	if err := fs.SetDistance(req.Distance); err != nil {
		return nil, rejected("distance", err)
	}
	if hasAlpha {
		if err := fs.SetExtraChannelDistance(0, req.Distance); err != nil {
			return nil, rejected("extra_channel_distance", err)
		}
	}
	if err := fs.SetOption(core.FrameSettingEffort, req.Effort); err != nil {
		return nil, rejected("effort", err)
	}
	if err := fs.AddImageFrame(layout, req.Pixels); err != nil {
		return nil, rejected("add_frame", err)
	}
	enc.CloseInput()

	return e.grower().drain(enc)
}

func rejected(step string, err error) error {
	return apperrors.Newf(apperrors.CategoryConfigRejected, "encode."+step, apperrors.ErrCodecRejected, "%v", err)
}

func validateStandard(req core.EncodeRequest) error {
	if req.Layout != core.LayoutRGB && req.Layout != core.LayoutRGBA {
		return invalid("layout", "channel layout must be rgb or rgba, got %d", int(req.Layout))
	}
	if err := validateCommon(req.Width, req.Height, req.Compression, req.Distance, req.Effort, req.DecodingSpeed); err != nil {
		return err
	}
	return checkSize(req.Pixels, req.Width, req.Height, req.Layout.Channels(), 1)
}

func validateCommon(w, h int, c core.CompressionOption, distance float32, effort, speed int) error {
	if w <= 0 || h <= 0 || int64(w) > int64(^uint32(0)) || int64(h) > int64(^uint32(0)) {
		return apperrors.Newf(apperrors.CategoryInput, "encode.validate", apperrors.ErrInvalidDimensions,
			"%dx%d", w, h)
	}
	if c != core.Lossless && c != core.Lossy {
		return invalid("compression", "unknown compression option %d", int(c))
	}
	if effort < MinEffort || effort > MaxEffort {
		return invalid("effort", "effort %d outside %d..%d", effort, MinEffort, MaxEffort)
	}
	if !(distance >= 0 && distance <= MaxDistance) {
		return invalid("distance", "distance %g outside 0..%g", distance, MaxDistance)
	}
	if speed < 0 || speed > MaxDecodingSpeed {
		return invalid("decoding_speed", "decoding speed %d outside 0..%d", speed, MaxDecodingSpeed)
	}
	return nil
}

// checkSize is the pre-flight buffer check; it never reaches the codec.
func checkSize(pixels []byte, w, h, channels, bytesPerSample int) error {
	want, ok := utils.BufferSize(w, h, channels, bytesPerSample)
	if !ok {
		return apperrors.Newf(apperrors.CategoryInput, "encode.validate", apperrors.ErrInvalidDimensions,
			"%dx%dx%dx%d overflows", w, h, channels, bytesPerSample)
	}
	if len(pixels) != want {
		return apperrors.Newf(apperrors.CategorySizeMismatch, "encode.validate", apperrors.ErrBufferSizeMismatch,
			"got %d want %d", len(pixels), want)
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return apperrors.Newf(apperrors.CategoryInput, "encode.validate."+field, apperrors.ErrInvalidParameter, format, args...)
}
