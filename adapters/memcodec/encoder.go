package memcodec

import (
	"errors"
	"fmt"

	"github.com/Skryldev/jxl-coder/core"
)

var (
	errNoBasicInfo  = errors.New("memcodec: basic info not set")
	errNoColour     = errors.New("memcodec: colour not set")
	errFrameAdded   = errors.New("memcodec: frame already added")
	errInputClosed  = errors.New("memcodec: input closed")
	errNoFrame      = errors.New("memcodec: no frame added")
	errBoxesOff     = errors.New("memcodec: boxes not enabled")
	errOutOfRange   = errors.New("memcodec: value out of range")
	errBadICC       = errors.New("memcodec: invalid ICC profile")
	errBadLayout    = errors.New("memcodec: pixel layout does not match basic info")
	errBadExtraInfo = errors.New("memcodec: invalid extra channel")
)

const (
	minICCSize      = 128
	iccSignatureOff = 36
	maxDistance     = 25
	maxEffort       = 10
	maxSpeed        = 4
)

type encoder struct {
	workers int

	basic    *core.BasicInfo
	alpha    *core.ExtraChannelInfo
	colour   *core.ColorEncoding
	icc      []byte
	useBoxes bool
	boxes    []box

	frame  *frameSettings
	pixels []byte // stored payload, set once the frame is added
	closed bool

	out []byte
	pos int
	err error
}

func newEncoder() *encoder { return &encoder{workers: 1} }

func (e *encoder) SetParallelism(workers int) error {
	if workers < 0 {
		return fmt.Errorf("%w: workers %d", errOutOfRange, workers)
	}
	e.workers = max(1, workers)
	return nil
}

func (e *encoder) SetBasicInfo(info core.BasicInfo) error {
	if e.pixels != nil {
		return errFrameAdded
	}
	switch {
	case info.Xsize == 0 || info.Ysize == 0:
		return fmt.Errorf("%w: size %dx%d", errOutOfRange, info.Xsize, info.Ysize)
	case info.NumColorChannels != 1 && info.NumColorChannels != 3:
		return fmt.Errorf("%w: %d colour channels", errOutOfRange, info.NumColorChannels)
	case info.NumExtraChannels > 1:
		return fmt.Errorf("%w: %d extra channels", errOutOfRange, info.NumExtraChannels)
	case info.NumExtraChannels == 1 && info.AlphaBits == 0:
		return fmt.Errorf("%w: alpha bits 0", errOutOfRange)
	case info.Orientation < core.OrientationIdentity || info.Orientation > core.OrientationRotate90CCW:
		return fmt.Errorf("%w: orientation %d", errOutOfRange, info.Orientation)
	}
	if err := checkDepth(info.BitsPerSample, info.ExponentBitsPerSample); err != nil {
		return err
	}
	if info.NumExtraChannels == 1 {
		if err := checkDepth(info.AlphaBits, info.AlphaExponentBits); err != nil {
			return err
		}
	}
	e.basic = &info
	return nil
}

// checkDepth accepts integers up to 16 bits and floats with 5 or 8 exponent
// bits.
func checkDepth(bits, exp uint32) error {
	switch {
	case exp == 0 && bits >= 1 && bits <= 16:
	case exp == 5 && bits > exp && bits <= 16:
	case exp == 8 && bits > exp && bits <= 32:
	default:
		return fmt.Errorf("%w: %d bits with %d exponent bits", errOutOfRange, bits, exp)
	}
	return nil
}

func (e *encoder) SetExtraChannelInfo(index int, info core.ExtraChannelInfo) error {
	if e.basic == nil {
		return errNoBasicInfo
	}
	if index != 0 || e.basic.NumExtraChannels != 1 || info.Type != core.ExtraChannelAlpha {
		return fmt.Errorf("%w: index %d type %d", errBadExtraInfo, index, info.Type)
	}
	if err := checkDepth(info.BitsPerSample, info.ExponentBitsPerSample); err != nil {
		return err
	}
	e.alpha = &info
	return nil
}

func (e *encoder) SetColorEncoding(enc core.ColorEncoding) error {
	if e.basic == nil {
		return errNoBasicInfo
	}
	gray := enc.ColorSpace == core.ColorSpaceGray
	if gray != (e.basic.NumColorChannels == 1) {
		return fmt.Errorf("%w: colour space does not match %d channels", errOutOfRange, e.basic.NumColorChannels)
	}
	if enc.Primaries > core.ColorPrimaries2100 || enc.Transfer > core.TransferCurveHLG ||
		enc.RenderingIntent > core.RenderingIntentRelative || enc.WhitePoint != core.WhitePointD65 {
		return fmt.Errorf("%w: colour encoding %+v", errOutOfRange, enc)
	}
	e.colour, e.icc = &enc, nil
	return nil
}

// SetICCProfile accepts profiles that carry the ICC "acsp" signature.
func (e *encoder) SetICCProfile(icc []byte) error {
	if e.basic == nil {
		return errNoBasicInfo
	}
	if len(icc) < minICCSize || string(icc[iccSignatureOff:iccSignatureOff+4]) != "acsp" {
		return errBadICC
	}
	e.icc, e.colour = append([]byte{}, icc...), nil
	return nil
}

func (e *encoder) UseBoxes() error {
	if e.pixels != nil {
		return errFrameAdded
	}
	e.useBoxes = true
	return nil
}

func (e *encoder) AddBox(typ core.BoxType, contents []byte, compress bool) error {
	if !e.useBoxes {
		return errBoxesOff
	}
	if e.closed {
		return errInputClosed
	}
	if len(e.boxes) == 255 {
		return fmt.Errorf("%w: too many boxes", errOutOfRange)
	}
	b := box{typ: typ, compressed: compress, contents: append([]byte{}, contents...)}
	if compress {
		b.contents = compressZstd(contents, effortLevel(maxEffort))
	}
	e.boxes = append(e.boxes, b)
	return nil
}

func (e *encoder) NewFrameSettings() (core.FrameSettings, error) {
	if e.basic == nil {
		return nil, errNoBasicInfo
	}
	if e.colour == nil && e.icc == nil {
		return nil, errNoColour
	}
	if e.basic.NumExtraChannels == 1 && e.alpha == nil {
		alpha := core.AlphaChannel(e.basic.AlphaBits, e.basic.AlphaExponentBits)
		e.alpha = &alpha
	}
	e.frame = &frameSettings{enc: e, effort: 7, distance: 1, alphaDistance: -1}
	return e.frame, nil
}

func (e *encoder) CloseInput() { e.closed = true }

// ProcessOutput serialises the stream on first use and then copies it out
// across as many calls as dst requires.
func (e *encoder) ProcessOutput(dst []byte) (int, core.EncoderStatus) {
	if e.err != nil {
		return 0, core.EncoderError
	}
	if e.out == nil {
		if e.pixels == nil {
			e.err = errNoFrame
			return 0, core.EncoderError
		}
		e.out = e.build()
	}
	n := copy(dst, e.out[e.pos:])
	e.pos += n
	if e.pos < len(e.out) {
		return n, core.EncoderNeedMoreOutput
	}
	return n, core.EncoderSuccess
}

func (e *encoder) build() []byte {
	f := e.frame
	info := *e.basic
	h := &header{
		info:     info,
		lossless: f.lossless,
		stored:   core.PixelLayout{NumChannels: int(info.NumColorChannels + info.NumExtraChannels), DataType: storedType(info.BitsPerSample, info.ExponentBitsPerSample)},
		icc:      e.icc,
		boxes:    e.boxes,
	}
	if e.colour != nil {
		h.colour = *e.colour
	}
	return h.append(nil, compressZstd(e.pixels, effortLevel(f.effort)))
}

func (e *encoder) Close() {
	e.pixels, e.out, e.boxes = nil, nil, nil
}

type frameSettings struct {
	enc           *encoder
	depth         core.BitDepth
	lossless      bool
	effort        int
	speed         int
	distance      float32
	alphaDistance float32 // negative: same as distance
}

func (f *frameSettings) SetBitDepth(depth core.BitDepth) error {
	if depth.Type == core.BitDepthCustom {
		if err := checkDepth(depth.BitsPerSample, depth.ExponentBitsPerSample); err != nil {
			return err
		}
	}
	if depth.Type > core.BitDepthCustom {
		return fmt.Errorf("%w: bit depth type %d", errOutOfRange, depth.Type)
	}
	f.depth = depth
	return nil
}

func (f *frameSettings) SetLossless(lossless bool) error {
	f.lossless = lossless
	return nil
}

func (f *frameSettings) SetOption(opt core.FrameSetting, value int) error {
	switch opt {
	case core.FrameSettingEffort:
		if value < 1 || value > maxEffort {
			return fmt.Errorf("%w: effort %d", errOutOfRange, value)
		}
		f.effort = value
	case core.FrameSettingDecodingSpeed:
		if value < 0 || value > maxSpeed {
			return fmt.Errorf("%w: decoding speed %d", errOutOfRange, value)
		}
		f.speed = value
	default:
		return fmt.Errorf("%w: option %d", errOutOfRange, opt)
	}
	return nil
}

func (f *frameSettings) SetDistance(distance float32) error {
	if distance < 0 || distance > maxDistance {
		return fmt.Errorf("%w: distance %g", errOutOfRange, distance)
	}
	f.distance = distance
	return nil
}

func (f *frameSettings) SetExtraChannelDistance(index int, distance float32) error {
	if index != 0 || f.enc.basic.NumExtraChannels != 1 {
		return fmt.Errorf("%w: extra channel %d", errBadExtraInfo, index)
	}
	if distance < 0 || distance > maxDistance {
		return fmt.Errorf("%w: distance %g", errOutOfRange, distance)
	}
	f.alphaDistance = distance
	return nil
}

// AddImageFrame converts pixels into the stored representation.
func (f *frameSettings) AddImageFrame(layout core.PixelLayout, pixels []byte) error {
	e := f.enc
	switch {
	case e.closed:
		return errInputClosed
	case e.pixels != nil:
		return errFrameAdded
	}
	info := *e.basic
	colour, extra := int(info.NumColorChannels), int(info.NumExtraChannels)
	if layout.NumChannels != colour+extra {
		return fmt.Errorf("%w: %d channels, want %d", errBadLayout, layout.NumChannels, colour+extra)
	}
	if want := layout.Size(info.Xsize, info.Ysize); len(pixels) != want {
		return fmt.Errorf("%w: %d bytes, want %d", errBadLayout, len(pixels), want)
	}

	var inBits uint32
	switch f.depth.Type {
	case core.BitDepthFromCodestream:
		inBits = info.BitsPerSample
	case core.BitDepthCustom:
		inBits = f.depth.BitsPerSample
	}
	stored := storedType(info.BitsPerSample, info.ExponentBitsPerSample)
	cv := converter{
		width:     int(info.Xsize),
		height:    int(info.Ysize),
		src:       newSampleCodec(layout.DataType, hostOrder, inBits),
		srcColour: colour,
		srcAlpha:  extra == 1,
		dst:       newSampleCodec(stored, streamOrder, info.BitsPerSample),
		dstColour: colour,
		dstAlpha:  extra == 1,
	}
	out := make([]byte, int(info.Xsize)*int(info.Ysize)*(colour+extra)*stored.BytesPerSample())
	cv.run(pixels, out, e.workers)

	if !f.lossless {
		f.quantize(cv.dst, out, colour, extra)
	}
	e.pixels = out
	return nil
}

func (f *frameSettings) quantize(c sampleCodec, buf []byte, colour, extra int) {
	alphaDistance := f.alphaDistance
	if alphaDistance < 0 {
		alphaDistance = f.distance
	}
	channels := colour + extra
	n := len(buf) / c.dt.BytesPerSample()
	for i := 0; i < n; i++ {
		d := f.distance
		if i%channels == colour {
			d = alphaDistance
		}
		c.quantize(buf, i, d)
	}
}
