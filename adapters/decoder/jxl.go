// Package decoder drives a core.Engine through the incremental decode protocol.
package decoder

import (
	"context"

	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
	"github.com/Skryldev/jxl-coder/utils"
)

// JXL implements core.Decoder on top of a codec engine.  It holds no
// per-request state; every call opens its own decoder handle.
type JXL struct {
	engine        core.Engine
	unpremultiply bool
	maxPixels     int64
	logger        core.Logger
}

// NewJXL returns a decoder for engine.  unpremultiply asks the codec to
// return straight alpha.
func NewJXL(engine core.Engine, unpremultiply bool) *JXL {
	return &JXL{engine: engine, unpremultiply: unpremultiply, logger: core.NopLogger()}
}

// SetLogger attaches a structured logger.
func (d *JXL) SetLogger(l core.Logger) {
	if l != nil {
		d.logger = l
	}
}

// SetMaxPixels bounds width*height of the images Decode and Probe accept.
// Zero disables the bound.
func (d *JXL) SetMaxPixels(n int64) {
	if n >= 0 {
		d.maxPixels = n
	}
}

// checkArea rejects a header whose pixel count exceeds limit before any
// buffer is sized from it.
func checkArea(op string, info core.BasicInfo, limit int64) error {
	if info.Xsize == 0 || info.Ysize == 0 {
		return apperrors.New(apperrors.CategoryMalformedInput, op, apperrors.ErrInvalidDimensions)
	}
	if area := uint64(info.Xsize) * uint64(info.Ysize); limit > 0 && area > uint64(limit) {
		return apperrors.Newf(apperrors.CategoryResourceExhausted, op, apperrors.ErrImageTooLarge,
			"%dx%d is %d pixels, limit %d", info.Xsize, info.Ysize, area, limit)
	}
	return nil
}

// decodeState is the position of one decode in the event sequence.
type decodeState int

const (
	awaitingBasicInfo decodeState = iota
	awaitingColorProfile
	awaitingOutputBuffer
	awaitingFullImage
	terminal
)

func (s decodeState) String() string {
	return [...]string{
		"awaiting_basic_info",
		"awaiting_color_profile",
		"awaiting_output_buffer",
		"awaiting_full_image",
		"terminal",
	}[s]
}

// decodeRun is the per-request state of the driver.
type decodeRun struct {
	engine    core.Engine
	dec       core.DecoderEngine
	policy    core.PixelFormat
	maxPixels int64
	logger    core.Logger

	state  decodeState
	format ResolvedFormat
	pixels []byte
	frames int
	res    core.DecodeResult
}

// Decode runs the full decode of req.Data.  The whole image must be present;
// a request for more input is treated as truncated data.
func (d *JXL) Decode(ctx context.Context, req core.DecodeRequest) (*core.DecodeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "decode", err)
	}
	if len(req.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryInput, "decode", apperrors.ErrEmptyInput)
	}

	dec, err := d.engine.NewDecoder()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryBackend, "decode.create", err)
	}
	defer dec.Close()

	if err := dec.SubscribeEvents(core.EventBasicInfo | core.EventColorEncoding | core.EventFullImage); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfigRejected, "decode.subscribe", err)
	}
	if err := dec.SetUnpremultiplyAlpha(d.unpremultiply); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfigRejected, "decode.unpremultiply", err)
	}
	if err := dec.SetInput(req.Data); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfigRejected, "decode.input", err)
	}
	dec.CloseInput()

	run := &decodeRun{
		engine:    d.engine,
		dec:       dec,
		policy:    req.PixelFormat,
		maxPixels: d.maxPixels,
		logger:    d.logger,
	}
	for run.state != terminal {
		if err := run.advance(dec.ProcessInput()); err != nil {
			return nil, err
		}
	}

	res := run.res
	res.Pixels = run.pixels
	res.Scale = req.Scale
	if run.frames > 1 {
		d.logger.Debug("decode.animation", "frames", run.frames, "kept", "last")
	}
	return &res, nil
}

// advance dispatches one codec status to the handler of the current state.
func (r *decodeRun) advance(status core.DecoderStatus) error {
	switch status {
	case core.DecoderError:
		return apperrors.Newf(apperrors.CategoryMalformedInput, "decode", apperrors.ErrDecoderFailed,
			"in state %s", r.state)
	case core.DecoderNeedMoreInput:
		return apperrors.Newf(apperrors.CategoryMalformedInput, "decode", apperrors.ErrNeedMoreInput,
			"truncated input in state %s", r.state)
	}

	switch r.state {
	case awaitingBasicInfo:
		return r.onBasicInfo(status)
	case awaitingColorProfile:
		return r.onColorProfile(status)
	case awaitingOutputBuffer:
		return r.onOutputBuffer(status)
	case awaitingFullImage:
		return r.onFullImage(status)
	}
	return r.unexpected(status)
}

func (r *decodeRun) onBasicInfo(status core.DecoderStatus) error {
	if status != core.DecoderBasicInfo {
		return r.unexpected(status)
	}
	info, err := r.dec.BasicInfo()
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryMalformedInput, "decode.basic_info", err)
	}
	if err := checkArea("decode.basic_info", info, r.maxPixels); err != nil {
		return err
	}

	r.format = ResolvePixelFormat(r.policy, info)
	r.res = core.DecodeResult{
		Width:         int(info.Xsize),
		Height:        int(info.Ysize),
		BitDepth:      r.format.BitDepth,
		Components:    r.format.Layout.NumChannels,
		HighPrecision: r.format.HighPrecision,
		Orientation:   info.Orientation,
	}

	threads := r.engine.SuggestThreads(info.Xsize, info.Ysize)
	if err := r.dec.SetParallelism(threads); err != nil {
		return apperrors.Wrap(apperrors.CategoryConfigRejected, "decode.parallelism", err)
	}
	r.state = awaitingColorProfile
	return nil
}

func (r *decodeRun) onColorProfile(status core.DecoderStatus) error {
	if status != core.DecoderColorEncoding {
		return r.unexpected(status)
	}
	size, err := r.dec.ICCProfileSize()
	switch {
	case err != nil || size == 0:
		// No embedded profile.
		r.res.ICCProfile = []byte{}
	default:
		icc := make([]byte, size)
		if err := r.dec.ICCProfile(icc); err != nil {
			return apperrors.Wrap(apperrors.CategoryMalformedInput, "decode.icc", err)
		}
		r.res.ICCProfile = icc
	}
	r.state = awaitingOutputBuffer
	return nil
}

func (r *decodeRun) onOutputBuffer(status core.DecoderStatus) error {
	if status != core.DecoderNeedImageOutBuffer {
		return r.unexpected(status)
	}
	expected, ok := utils.BufferSize(r.res.Width, r.res.Height, r.res.Components, r.format.BytesPerSample())
	if !ok {
		return apperrors.New(apperrors.CategoryResourceExhausted, "decode.buffer", apperrors.ErrInvalidDimensions)
	}
	got, err := r.dec.ImageOutBufferSize(r.format.Layout)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryConfigRejected, "decode.buffer", err)
	}
	if got != expected {
		return apperrors.Newf(apperrors.CategorySizeMismatch, "decode.buffer", apperrors.ErrBufferSizeMismatch,
			"got %d want %d", got, expected)
	}

	r.pixels = make([]byte, expected)
	if err := r.dec.SetImageOutBuffer(r.format.Layout, r.pixels); err != nil {
		return apperrors.Wrap(apperrors.CategoryConfigRejected, "decode.buffer", err)
	}
	r.state = awaitingFullImage
	return nil
}

// onFullImage stays in place until success.  Each further animation frame
// asks for a buffer again and overwrites the previous one.
func (r *decodeRun) onFullImage(status core.DecoderStatus) error {
	switch status {
	case core.DecoderFullImage:
		r.frames++
		return nil
	case core.DecoderNeedImageOutBuffer:
		if r.frames == 0 {
			return r.unexpected(status)
		}
		if err := r.dec.SetImageOutBuffer(r.format.Layout, r.pixels); err != nil {
			return apperrors.Wrap(apperrors.CategoryConfigRejected, "decode.buffer", err)
		}
		return nil
	case core.DecoderSuccess:
		if r.frames == 0 {
			return r.unexpected(status)
		}
		r.state = terminal
		return nil
	}
	return r.unexpected(status)
}

func (r *decodeRun) unexpected(status core.DecoderStatus) error {
	return apperrors.Newf(apperrors.CategoryMalformedInput, "decode", apperrors.ErrUnexpectedEvent,
		"%s in state %s", status, r.state)
}
