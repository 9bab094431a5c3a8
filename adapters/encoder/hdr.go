package encoder

import (
	"context"

	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
)

// colourKind is the outcome of the colour decision for one HDR encode.
type colourKind int

const (
	colourICC colourKind = iota
	colourSRGB
	colourManual
)

func (k colourKind) String() string {
	return [...]string{"icc", "srgb", "manual"}[k]
}

// colourPlan is decided once per request.  parametric is the descriptor used
// for colourSRGB and colourManual, and the fallback for a rejected ICC.
type colourPlan struct {
	kind       colourKind
	icc        []byte
	parametric core.ColorEncoding
}

// hdrPlan is the complete, validated configuration of one HDR encode.  It is
// derived once from the request and never modified afterwards.
type hdrPlan struct {
	basic    core.BasicInfo
	alpha    *core.ExtraChannelInfo
	colour   colourPlan
	depth    core.BitDepth
	layout   core.PixelLayout
	lossless bool
	distance float32
	effort   int
	speed    int
	boxes    []metadataBox
	// skipped lists metadata dropped for size.
	skipped []string
}

// EncodeHDR compresses an 8/16/32-bit integer or float buffer, declaring the
// original bit depth to the codec and carrying colour and metadata.
func (e *JXL) EncodeHDR(ctx context.Context, req core.HDREncodeRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "encode_hdr", err)
	}
	plan, err := planHDR(req, e.opts.MaxExifBytes)
	if err != nil {
		return nil, err
	}
	for _, name := range plan.skipped {
		e.logger.Warn("encode_hdr.metadata.skipped", "box", name, "reason", "exceeds max_exif_bytes",
			"limit", e.opts.MaxExifBytes)
	}

	enc, err := e.engine.NewEncoder()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryBackend, "encode_hdr.create", err)
	}
	defer enc.Close()

	if err := enc.SetParallelism(e.engine.DefaultWorkers()); err != nil {
		return nil, rejected("parallelism", err)
	}
	if err := enc.SetBasicInfo(plan.basic); err != nil {
		return nil, rejected("basic_info", err)
	}
	if plan.alpha != nil {
		if err := enc.SetExtraChannelInfo(0, *plan.alpha); err != nil {
			return nil, rejected("extra_channel", err)
		}
	}
	if err := e.applyColour(enc, plan.colour); err != nil {
		return nil, err
	}
	if len(plan.boxes) > 0 {
		if err := enc.UseBoxes(); err != nil {
			return nil, rejected("use_boxes", err)
		}
		for _, b := range plan.boxes {
			if err := enc.AddBox(b.typ, b.contents, e.opts.CompressBoxes); err != nil {
				return nil, rejected("box."+b.typ.String(), err)
			}
		}
	}

	fs, err := enc.NewFrameSettings()
	if err != nil {
		return nil, rejected("frame_settings", err)
	}
	if err := fs.SetBitDepth(plan.depth); err != nil {
		return nil, rejected("bit_depth", err)
	}
	if err := fs.SetLossless(plan.lossless); err != nil {
		return nil, rejected("lossless", err)
	}
	if err := fs.SetOption(core.FrameSettingEffort, plan.effort); err != nil {
		return nil, rejected("effort", err)
	}
	if err := fs.SetOption(core.FrameSettingDecodingSpeed, plan.speed); err != nil {
		return nil, rejected("decoding_speed", err)
	}
	if !plan.lossless {
		if err := fs.SetDistance(plan.distance); err != nil {
			return nil, rejected("distance", err)
		}
		if plan.alpha != nil {
			if err := fs.SetExtraChannelDistance(0, plan.distance); err != nil {
				return nil, rejected("extra_channel_distance", err)
			}
		}
	}
	if err := fs.AddImageFrame(plan.layout, req.Pixels); err != nil {
		return nil, rejected("add_frame", err)
	}
	enc.CloseInput()

	return e.grower().drain(enc)
}

// applyColour sets exactly one colour description.  A rejected ICC profile
// fails the encode unless the fallback is enabled.
func (e *JXL) applyColour(enc core.EncoderEngine, c colourPlan) error {
	if c.kind == colourICC {
		err := enc.SetICCProfile(c.icc)
		if err == nil {
			return nil
		}
		if !e.opts.AllowICCFallback {
			return rejected("icc_profile", err)
		}
		e.logger.Warn("encode_hdr.icc.rejected", "error", err.Error(), "fallback", "parametric",
			"primaries", c.parametric.Primaries, "transfer", c.parametric.Transfer)
	}
	if err := enc.SetColorEncoding(c.parametric); err != nil {
		return rejected("color_encoding", err)
	}
	return nil
}

// planHDR validates req and derives every codec setting from it.
func planHDR(req core.HDREncodeRequest, maxExif int64) (hdrPlan, error) {
	if req.Channels != 3 && req.Channels != 4 {
		return hdrPlan{}, invalid("channels", "channels must be 3 or 4, got %d", req.Channels)
	}
	if err := validateCommon(req.Width, req.Height, req.Compression, req.Distance, req.Effort, req.DecodingSpeed); err != nil {
		return hdrPlan{}, err
	}
	dt, exp, err := sampleType(req.ContainerBits, req.Float)
	if err != nil {
		return hdrPlan{}, err
	}
	if req.OriginalBits < 1 || req.OriginalBits > req.ContainerBits {
		return hdrPlan{}, invalid("original_bits", "original bits %d outside 1..%d", req.OriginalBits, req.ContainerBits)
	}
	if err := checkSize(req.Pixels, req.Width, req.Height, req.Channels, dt.BytesPerSample()); err != nil {
		return hdrPlan{}, err
	}
	colour, err := planColour(req)
	if err != nil {
		return hdrPlan{}, err
	}

	bits := uint32(req.OriginalBits)
	plan := hdrPlan{
		basic: core.BasicInfo{
			Xsize:                 uint32(req.Width),
			Ysize:                 uint32(req.Height),
			BitsPerSample:         bits,
			ExponentBitsPerSample: exp,
			NumColorChannels:      3,
			UsesOriginalProfile:   req.Compression == core.Lossless,
			Orientation:           core.OrientationIdentity,
		},
		colour:   colour,
		depth:    core.BitDepth{Type: core.BitDepthFromPixelFormat, BitsPerSample: bits, ExponentBitsPerSample: exp},
		layout:   core.PixelLayout{NumChannels: req.Channels, DataType: dt},
		lossless: req.Compression == core.Lossless,
		distance: req.Distance,
		effort:   req.Effort,
		speed:    req.DecodingSpeed,
	}
	if req.Channels == 4 {
		plan.basic.NumExtraChannels = 1
		plan.basic.AlphaBits = bits
		plan.basic.AlphaExponentBits = exp
		alpha := core.AlphaChannel(bits, exp)
		plan.alpha = &alpha
	}

	if len(req.Metadata.Exif) > 0 {
		box, ok, err := exifBox(req.Metadata.Exif, maxExif)
		if err != nil {
			return hdrPlan{}, err
		}
		if ok {
			plan.boxes = append(plan.boxes, box)
		} else {
			plan.skipped = append(plan.skipped, core.BoxExif.String())
		}
	}
	if len(req.Metadata.XMP) > 0 {
		box, err := xmpBox(req.Metadata.XMP)
		if err != nil {
			return hdrPlan{}, err
		}
		plan.boxes = append(plan.boxes, box)
	}
	return plan, nil
}

// sampleType maps a container to the input data type and exponent bits.
func sampleType(containerBits int, float bool) (core.DataType, uint32, error) {
	switch {
	case float && containerBits == 16:
		return core.Float16, 5, nil
	case float && containerBits == 32:
		return core.Float32, 8, nil
	case !float && containerBits == 8:
		return core.Uint8, 0, nil
	case !float && containerBits == 16:
		return core.Uint16, 0, nil
	}
	kind := "integer"
	if float {
		kind = "float"
	}
	return 0, 0, invalid("container_bits", "%d-bit %s containers are not supported", containerBits, kind)
}

// planColour makes the three-way colour decision.
func planColour(req core.HDREncodeRequest) (colourPlan, error) {
	parametric, err := parametricEncoding(req.Transfer, req.Primaries)
	if err != nil {
		return colourPlan{}, err
	}
	switch {
	case len(req.ICCProfile) > 0:
		return colourPlan{kind: colourICC, icc: req.ICCProfile, parametric: parametric}, nil
	case parametric.IsSRGB():
		return colourPlan{kind: colourSRGB, parametric: parametric}, nil
	default:
		return colourPlan{kind: colourManual, parametric: parametric}, nil
	}
}

// parametricEncoding returns the sRGB shorthand for sRGB/sRGB and a manual
// RGB, D65, perceptual descriptor otherwise.
func parametricEncoding(tf core.TransferFunction, p core.Primaries) (core.ColorEncoding, error) {
	if tf == core.TransferSRGB && p == core.PrimariesSRGB {
		return core.SRGBColorEncoding(false), nil
	}
	enc := core.ColorEncoding{
		ColorSpace:      core.ColorSpaceRGB,
		WhitePoint:      core.WhitePointD65,
		RenderingIntent: core.RenderingIntentPerceptual,
	}
	switch p {
	case core.PrimariesSRGB:
		enc.Primaries = core.ColorPrimariesSRGB
	case core.PrimariesDisplayP3:
		enc.Primaries = core.ColorPrimariesP3
	case core.PrimariesBT2020:
		enc.Primaries = core.ColorPrimaries2100
	default:
		return core.ColorEncoding{}, invalid("primaries", "unknown primaries %d", int(p))
	}
	switch tf {
	case core.TransferSRGB:
		enc.Transfer = core.TransferCurveSRGB
	case core.TransferLinear:
		enc.Transfer = core.TransferCurveLinear
	case core.TransferPQ:
		enc.Transfer = core.TransferCurvePQ
	case core.TransferHLG:
		enc.Transfer = core.TransferCurveHLG
	default:
		return core.ColorEncoding{}, invalid("transfer", "unknown transfer function %d", int(tf))
	}
	return enc, nil
}
