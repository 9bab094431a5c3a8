package core

import "fmt"

// Engine is an incremental JPEG XL codec.  Every handle returned by
// NewDecoder/NewEncoder is owned by exactly one request and must be closed by
// it.  Implementations live in adapters/libjxl and adapters/memcodec.
type Engine interface {
	Name() string
	NewDecoder() (DecoderEngine, error)
	NewEncoder() (EncoderEngine, error)
	// CheckSignature inspects the leading bytes of data without creating any
	// decoder state.
	CheckSignature(data []byte) Signature
	// SuggestThreads returns the worker count the codec recommends for an
	// image of xsize*ysize pixels.
	SuggestThreads(xsize, ysize uint32) int
	// DefaultWorkers returns the codec's default encode worker count.
	DefaultWorkers() int
}

// DecoderEngine is the push/pull decode protocol.  All input is supplied up
// front with SetInput; ProcessInput is then called until it reports a
// terminal status.
type DecoderEngine interface {
	SubscribeEvents(events Event) error
	SetParallelism(workers int) error
	SetUnpremultiplyAlpha(on bool) error
	SetInput(data []byte) error
	CloseInput()
	ProcessInput() DecoderStatus
	BasicInfo() (BasicInfo, error)
	// ICCProfileSize fails when the image carries no embedded profile.
	ICCProfileSize() (int, error)
	ICCProfile(dst []byte) error
	ImageOutBufferSize(layout PixelLayout) (int, error)
	// SetImageOutBuffer hands buf to the decoder; it is filled by the time
	// ProcessInput reports DecoderFullImage.
	SetImageOutBuffer(layout PixelLayout, buf []byte) error
	Close()
}

// EncoderEngine is the push/pull encode protocol.  Configuration calls are
// made before any frame is added; ProcessOutput is then called until it
// stops reporting EncoderNeedMoreOutput.
type EncoderEngine interface {
	SetParallelism(workers int) error
	SetBasicInfo(info BasicInfo) error
	SetExtraChannelInfo(index int, info ExtraChannelInfo) error
	SetColorEncoding(enc ColorEncoding) error
	SetICCProfile(icc []byte) error
	UseBoxes() error
	AddBox(typ BoxType, contents []byte, compress bool) error
	NewFrameSettings() (FrameSettings, error)
	CloseInput()
	// ProcessOutput writes as much compressed output as fits into dst and
	// returns the number of bytes written.
	ProcessOutput(dst []byte) (int, EncoderStatus)
	Close()
}

// FrameSettings configures and submits one frame.
type FrameSettings interface {
	SetBitDepth(depth BitDepth) error
	SetLossless(lossless bool) error
	SetOption(opt FrameSetting, value int) error
	SetDistance(distance float32) error
	SetExtraChannelDistance(index int, distance float32) error
	AddImageFrame(layout PixelLayout, pixels []byte) error
}

// Event is a bitmask of decoder events a caller subscribes to.
type Event uint32

const (
	EventBasicInfo Event = 1 << iota
	EventColorEncoding
	EventFullImage
)

// DecoderStatus is the closed vocabulary returned by ProcessInput.
type DecoderStatus int

const (
	DecoderSuccess DecoderStatus = iota
	DecoderError
	DecoderNeedMoreInput
	DecoderBasicInfo
	DecoderColorEncoding
	DecoderNeedImageOutBuffer
	DecoderFullImage
	// DecoderUnknown stands for any backend status outside this vocabulary.
	DecoderUnknown
)

func (s DecoderStatus) String() string {
	switch s {
	case DecoderSuccess:
		return "success"
	case DecoderError:
		return "error"
	case DecoderNeedMoreInput:
		return "need_more_input"
	case DecoderBasicInfo:
		return "basic_info"
	case DecoderColorEncoding:
		return "color_encoding"
	case DecoderNeedImageOutBuffer:
		return "need_image_out_buffer"
	case DecoderFullImage:
		return "full_image"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// EncoderStatus is returned by ProcessOutput.
type EncoderStatus int

const (
	EncoderSuccess EncoderStatus = iota
	EncoderError
	EncoderNeedMoreOutput
)

func (s EncoderStatus) String() string {
	switch s {
	case EncoderSuccess:
		return "success"
	case EncoderNeedMoreOutput:
		return "need_more_output"
	}
	return "error"
}

// Signature is the result of a signature check.
type Signature int

const (
	SignatureNotEnoughBytes Signature = iota
	SignatureInvalid
	SignatureCodestream
	SignatureContainer
	// SignaturePrivate is an engine's own stream format.  The engine can
	// decode it, but it is not JPEG XL.
	SignaturePrivate
)

// Valid reports whether the engine can decode the bytes.
func (s Signature) Valid() bool {
	return s == SignatureCodestream || s == SignatureContainer || s == SignaturePrivate
}

// IsJXL reports whether the bytes are a JPEG XL codestream or container.
func (s Signature) IsJXL() bool {
	return s == SignatureCodestream || s == SignatureContainer
}

// BasicInfo is the image header.  It is built once per request and passed by
// value.
type BasicInfo struct {
	Xsize                 uint32
	Ysize                 uint32
	BitsPerSample         uint32
	ExponentBitsPerSample uint32
	NumColorChannels      uint32
	NumExtraChannels      uint32
	AlphaBits             uint32
	AlphaExponentBits     uint32
	AlphaPremultiplied    bool
	UsesOriginalProfile   bool
	HaveAnimation         bool
	Orientation           Orientation
}

// ExtraChannelType identifies the role of an extra channel.
type ExtraChannelType int

const (
	ExtraChannelAlpha ExtraChannelType = iota
)

// ExtraChannelInfo describes one extra channel.
type ExtraChannelInfo struct {
	Type                  ExtraChannelType
	BitsPerSample         uint32
	ExponentBitsPerSample uint32
	AlphaPremultiplied    bool
}

// AlphaChannel returns the descriptor for a straight alpha channel.
func AlphaChannel(bits, exponentBits uint32) ExtraChannelInfo {
	return ExtraChannelInfo{
		Type:                  ExtraChannelAlpha,
		BitsPerSample:         bits,
		ExponentBitsPerSample: exponentBits,
	}
}

// ColorSpace of a parametric encoding.
type ColorSpace int

const (
	ColorSpaceRGB ColorSpace = iota
	ColorSpaceGray
)

// WhitePoint of a parametric encoding.
type WhitePoint int

const (
	WhitePointD65 WhitePoint = iota
)

// ColorPrimaries of a parametric encoding.
type ColorPrimaries int

const (
	ColorPrimariesSRGB ColorPrimaries = iota
	ColorPrimariesP3
	ColorPrimaries2100
)

// TransferCurve of a parametric encoding.
type TransferCurve int

const (
	TransferCurveSRGB TransferCurve = iota
	TransferCurveLinear
	TransferCurvePQ
	TransferCurveHLG
)

// RenderingIntent of a parametric encoding.
type RenderingIntent int

const (
	RenderingIntentPerceptual RenderingIntent = iota
	RenderingIntentRelative
)

// ColorEncoding is a parametric colour description.
type ColorEncoding struct {
	ColorSpace      ColorSpace
	WhitePoint      WhitePoint
	Primaries       ColorPrimaries
	Transfer        TransferCurve
	RenderingIntent RenderingIntent
}

// SRGBColorEncoding returns the standard sRGB shorthand.  gray selects the
// single-channel variant.
func SRGBColorEncoding(gray bool) ColorEncoding {
	cs := ColorSpaceRGB
	if gray {
		cs = ColorSpaceGray
	}
	return ColorEncoding{
		ColorSpace:      cs,
		WhitePoint:      WhitePointD65,
		Primaries:       ColorPrimariesSRGB,
		Transfer:        TransferCurveSRGB,
		RenderingIntent: RenderingIntentRelative,
	}
}

// IsSRGB reports whether e equals one of the sRGB shorthands.
func (e ColorEncoding) IsSRGB() bool {
	return e == SRGBColorEncoding(false) || e == SRGBColorEncoding(true)
}

// BitDepthType selects how the frame bit depth is derived.
type BitDepthType int

const (
	// BitDepthFromPixelFormat uses the full width of the sample type.
	BitDepthFromPixelFormat BitDepthType = iota
	// BitDepthFromCodestream uses the bits declared in BasicInfo.
	BitDepthFromCodestream
	// BitDepthCustom uses BitsPerSample/ExponentBitsPerSample.
	BitDepthCustom
)

// BitDepth is the interpretation of input sample values.
type BitDepth struct {
	Type                  BitDepthType
	BitsPerSample         uint32
	ExponentBitsPerSample uint32
}

// PixelLayout is the interleaved layout of a pixel buffer.
type PixelLayout struct {
	NumChannels int
	DataType    DataType
}

// Size returns the exact byte size of an xsize*ysize buffer in this layout.
func (l PixelLayout) Size(xsize, ysize uint32) int {
	return int(xsize) * int(ysize) * l.NumChannels * l.DataType.BytesPerSample()
}

// BoxType is a four-character container box type.
type BoxType [4]byte

var (
	BoxExif = BoxType{'E', 'x', 'i', 'f'}
	BoxXMP  = BoxType{'x', 'm', 'l', ' '}
)

func (b BoxType) String() string { return string(b[:]) }

// FrameSetting names an integer frame option.
type FrameSetting int

const (
	FrameSettingEffort FrameSetting = iota
	FrameSettingDecodingSpeed
)

func (f FrameSetting) String() string {
	if f == FrameSettingDecodingSpeed {
		return "decoding_speed"
	}
	return "effort"
}
