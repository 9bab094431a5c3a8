package core

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skryldev/jxl-coder/config"
	apperrors "github.com/Skryldev/jxl-coder/errors"
	"github.com/Skryldev/jxl-coder/utils"
)

// Operation names reported to hooks and metrics.
const (
	OpDecode    = "decode"
	OpProbe     = "probe"
	OpEncode    = "encode"
	OpEncodeHDR = "encode_hdr"
)

// Processor is the central orchestrator.  It holds no per-request state and
// is safe for concurrent use; every operation gets its own codec handle from
// the adapters.
type Processor struct {
	cfg      config.Config
	engine   Engine
	decoder  Decoder
	encoder  Encoder
	rescaler Rescaler
	hooks    []Hook
	logger   Logger

	decoded int64
	encoded int64
	probed  int64
	errors  int64
}

// New creates a Processor over one engine and the adapters driving it.
func New(cfg config.Config, engine Engine, dec Decoder, enc Encoder) *Processor {
	return &Processor{
		cfg:     cfg,
		engine:  engine,
		decoder: dec,
		encoder: enc,
		logger:  NopLogger(),
	}
}

// SetLogger attaches a structured logger.
func (p *Processor) SetLogger(l Logger) {
	if l == nil {
		l = NopLogger()
	}
	p.logger = l
}

// SetRescaler attaches the rescaler used for DecodeRequest.Rescale.
func (p *Processor) SetRescaler(r Rescaler) { p.rescaler = r }

// AddHook registers an operation observer.  Hooks must be added before the
// processor is shared between goroutines.
func (p *Processor) AddHook(h Hook) { p.hooks = append(p.hooks, h) }

// Engine returns the codec engine the processor runs on.
func (p *Processor) Engine() Engine { return p.engine }

// CheckSignature runs the engine's signature check without any decode state.
func (p *Processor) CheckSignature(data []byte) Signature {
	return p.engine.CheckSignature(data)
}

// Decode validates the signature, runs the full decode and applies the
// rescale hint.
func (p *Processor) Decode(ctx context.Context, req DecodeRequest) (*DecodeResult, error) {
	info := OpInfo{Backend: p.engine.Name(), InputSize: len(req.Data)}
	var res *DecodeResult
	err := p.observe(ctx, OpDecode, info, func(info *OpInfo) error {
		if err := p.checkInput(OpDecode, req.Data); err != nil {
			return err
		}
		var err error
		res, err = p.decoder.Decode(ctx, req)
		if err != nil {
			return err
		}
		if req.Rescale.X > 0 || req.Rescale.Y > 0 {
			res, err = p.rescale(ctx, res, req.Rescale.X, req.Rescale.Y)
			if err != nil {
				return err
			}
		}
		info.Width, info.Height, info.OutputSize = res.Width, res.Height, len(res.Pixels)
		return nil
	})
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&p.decoded, 1)
	return res, nil
}

// DecodeReader drains r (respecting max_image_bytes) and decodes the result.
// The stream must hold the complete image.
func (p *Processor) DecodeReader(ctx context.Context, r io.Reader, req DecodeRequest) (*DecodeResult, error) {
	data, err := p.drain(ctx, r)
	if err != nil {
		return nil, p.fail(ctx, OpDecode, err)
	}
	req.Data = data
	return p.Decode(ctx, req)
}

// Probe returns the image dimensions without decoding pixels.
func (p *Processor) Probe(ctx context.Context, data []byte) (width, height int, err error) {
	info := OpInfo{Backend: p.engine.Name(), InputSize: len(data)}
	err = p.observe(ctx, OpProbe, info, func(info *OpInfo) error {
		if err := p.checkInput(OpProbe, data); err != nil {
			return err
		}
		w, h, err := p.decoder.Probe(ctx, data)
		if err != nil {
			return err
		}
		width, height = w, h
		info.Width, info.Height = w, h
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	atomic.AddInt64(&p.probed, 1)
	return width, height, nil
}

// ProbeReader drains r and probes the result.
func (p *Processor) ProbeReader(ctx context.Context, r io.Reader) (width, height int, err error) {
	data, err := p.drain(ctx, r)
	if err != nil {
		return 0, 0, p.fail(ctx, OpProbe, err)
	}
	return p.Probe(ctx, data)
}

// Encode runs the standard 8-bit pipeline.
func (p *Processor) Encode(ctx context.Context, req EncodeRequest) ([]byte, error) {
	info := OpInfo{
		Backend:   p.engine.Name(),
		Width:     req.Width,
		Height:    req.Height,
		InputSize: len(req.Pixels),
	}
	var out []byte
	err := p.observe(ctx, OpEncode, info, func(info *OpInfo) error {
		var err error
		out, err = p.encoder.Encode(ctx, req)
		info.OutputSize = len(out)
		return err
	})
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&p.encoded, 1)
	return out, nil
}

// EncodeHDR runs the HDR-aware pipeline.
func (p *Processor) EncodeHDR(ctx context.Context, req HDREncodeRequest) ([]byte, error) {
	info := OpInfo{
		Backend:   p.engine.Name(),
		Width:     req.Width,
		Height:    req.Height,
		InputSize: len(req.Pixels),
	}
	var out []byte
	err := p.observe(ctx, OpEncodeHDR, info, func(info *OpInfo) error {
		var err error
		out, err = p.encoder.EncodeHDR(ctx, req)
		info.OutputSize = len(out)
		return err
	})
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&p.encoded, 1)
	return out, nil
}

// DecodeBatch decodes independent inputs concurrently (fan-out / fan-in).
// Results are returned in input order; one failure does not affect the others.
func (p *Processor) DecodeBatch(ctx context.Context, reqs []DecodeRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		go func(idx int, r DecodeRequest) {
			defer wg.Done()
			res, err := p.Decode(ctx, r)
			results[idx] = BatchResult{Index: idx, Result: res, Err: err}
		}(i, req)
	}
	wg.Wait()
	return results
}

// Stats returns a snapshot of the processor counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Decoded: atomic.LoadInt64(&p.decoded),
		Encoded: atomic.LoadInt64(&p.encoded),
		Probed:  atomic.LoadInt64(&p.probed),
		Errors:  atomic.LoadInt64(&p.errors),
	}
}

// ── internals ─────────────────────────────────────────────────────────────────

// observe checks ctx once, then runs fn to completion with hook notification.
func (p *Processor) observe(ctx context.Context, op string, info OpInfo, fn func(*OpInfo) error) error {
	if err := ctx.Err(); err != nil {
		atomic.AddInt64(&p.errors, 1)
		return apperrors.Wrap(apperrors.CategoryInput, op, err)
	}
	p.notifyBefore(ctx, op, info)
	start := time.Now()
	err := fn(&info)
	p.notifyAfter(ctx, op, info, time.Since(start), err)
	if err != nil {
		atomic.AddInt64(&p.errors, 1)
	}
	return err
}

// fail reports an error raised before an operation could start, so hooks
// and counters see it like any other failure.
func (p *Processor) fail(ctx context.Context, op string, err error) error {
	info := OpInfo{Backend: p.engine.Name()}
	return p.observe(ctx, op, info, func(*OpInfo) error { return err })
}

func (p *Processor) checkInput(op string, data []byte) error {
	if len(data) == 0 {
		return apperrors.New(apperrors.CategoryInput, op, apperrors.ErrEmptyInput)
	}
	if p.cfg.MaxImageBytes > 0 && int64(len(data)) > p.cfg.MaxImageBytes {
		return apperrors.New(apperrors.CategoryInput, op, apperrors.ErrInputTooLarge)
	}
	if sig := p.engine.CheckSignature(data); !sig.Valid() {
		p.logger.Debug("signature.rejected", "op", op, "backend", p.engine.Name(), "bytes", len(data))
		if utils.IsJXLSignature(data) {
			return apperrors.Newf(apperrors.CategoryBackend, op+".signature", apperrors.ErrBackendUnavailable,
				"JPEG XL stream cannot be read by the %s backend", p.engine.Name())
		}
		return apperrors.New(apperrors.CategoryMalformedInput, op+".signature", apperrors.ErrSignatureMismatch)
	}
	return nil
}

func (p *Processor) rescale(ctx context.Context, res *DecodeResult, w, h int) (*DecodeResult, error) {
	if p.rescaler == nil {
		p.logger.Warn("decode.rescale.skipped", "reason", "no rescaler configured")
		return res, nil
	}
	tw, th := utils.ScaleDimensions(res.Width, res.Height, w, h)
	if tw == res.Width && th == res.Height {
		return res, nil
	}
	return p.rescaler.Rescale(ctx, res, tw, th)
}

func (p *Processor) drain(ctx context.Context, r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, apperrors.New(apperrors.CategoryInput, "drain", apperrors.ErrEmptyInput)
	}
	if p.cfg.MaxImageBytes > 0 {
		r = &utils.LimitedReader{R: r, Max: p.cfg.MaxImageBytes}
	}
	data, err := utils.ReadAll(ctx, r, p.cfg.ChunkSize)
	if err == utils.ErrLimitExceeded {
		return nil, apperrors.New(apperrors.CategoryInput, "drain", apperrors.ErrInputTooLarge)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "drain", err)
	}
	return data, nil
}

func (p *Processor) notifyBefore(ctx context.Context, op string, info OpInfo) {
	for _, h := range p.hooks {
		h.BeforeOp(ctx, op, info)
	}
}

func (p *Processor) notifyAfter(ctx context.Context, op string, info OpInfo, d time.Duration, err error) {
	for _, h := range p.hooks {
		h.AfterOp(ctx, op, info, d, err)
	}
}
