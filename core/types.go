package core

import (
	"fmt"
	"image"
	"strings"
)

// PixelFormat is the caller's precision policy for decode output buffers.
type PixelFormat int

const (
	PixelFormatOptimal PixelFormat = iota
	PixelFormat8
	PixelFormat16
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormat8:
		return "force-8-bit"
	case PixelFormat16:
		return "force-16-bit"
	default:
		return "optimal"
	}
}

// ParsePixelFormat accepts the names produced by String plus the short forms
// "r8" and "r16".
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "optimal":
		return PixelFormatOptimal, nil
	case "force-8-bit", "r8", "8":
		return PixelFormat8, nil
	case "force-16-bit", "r16", "16":
		return PixelFormat16, nil
	}
	return PixelFormatOptimal, fmt.Errorf("unknown pixel format %q", s)
}

// DataType is the in-memory representation of one sample.
type DataType int

const (
	Uint8 DataType = iota
	Uint16
	Float16
	Float32
)

// BytesPerSample returns the physical width of one sample.
func (d DataType) BytesPerSample() int {
	switch d {
	case Uint16, Float16:
		return 2
	case Float32:
		return 4
	default:
		return 1
	}
}

func (d DataType) String() string {
	switch d {
	case Uint16:
		return "uint16"
	case Float16:
		return "float16"
	case Float32:
		return "float32"
	default:
		return "uint8"
	}
}

// CompressionOption selects lossless or lossy coding.
type CompressionOption int

const (
	Lossless CompressionOption = iota
	Lossy
)

func (c CompressionOption) String() string {
	if c == Lossy {
		return "lossy"
	}
	return "lossless"
}

// ParseCompressionOption parses "lossless" or "lossy".
func ParseCompressionOption(s string) (CompressionOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lossless":
		return Lossless, nil
	case "lossy":
		return Lossy, nil
	}
	return Lossless, fmt.Errorf("unknown compression option %q", s)
}

// ChannelLayout is the interleaved channel layout of an 8-bit encode input.
type ChannelLayout int

const (
	LayoutRGB  ChannelLayout = 3
	LayoutRGBA ChannelLayout = 4
)

// Channels returns the number of interleaved channels.
func (l ChannelLayout) Channels() int { return int(l) }

// TransferFunction tags the transfer curve used when no ICC profile is given.
type TransferFunction int

const (
	TransferSRGB TransferFunction = iota
	TransferLinear
	TransferPQ
	TransferHLG
)

func (t TransferFunction) String() string {
	return [...]string{"sRGB", "linear", "PQ", "HLG"}[t&3]
}

// Primaries tags the colour primaries used when no ICC profile is given.
type Primaries int

const (
	PrimariesSRGB Primaries = iota
	PrimariesDisplayP3
	PrimariesBT2020
)

func (p Primaries) String() string {
	switch p {
	case PrimariesDisplayP3:
		return "DisplayP3"
	case PrimariesBT2020:
		return "BT2020"
	default:
		return "sRGB"
	}
}

// Orientation is the EXIF-style orientation tag (1-8) stored in the
// codestream header.
type Orientation uint8

const (
	OrientationIdentity       Orientation = 1
	OrientationFlipHorizontal Orientation = 2
	OrientationRotate180      Orientation = 3
	OrientationFlipVertical   Orientation = 4
	OrientationTranspose      Orientation = 5
	OrientationRotate90CW     Orientation = 6
	OrientationAntiTranspose  Orientation = 7
	OrientationRotate90CCW    Orientation = 8
)

// DecodeRequest is immutable for the duration of one decode.
type DecodeRequest struct {
	Data []byte
	// Rescale is an optional target size; zero on both axes keeps the decoded
	// size, zero on one axis preserves the aspect ratio.
	Rescale     image.Point
	PixelFormat PixelFormat
	// Scale is the caller's logical scale factor, passed through to the result.
	Scale int
}

// DecodeResult is the decoded bitmap tuple handed to the platform image layer.
type DecodeResult struct {
	Width      int
	Height     int
	BitDepth   int
	Components int // 3 or 4
	// HighPrecision is set when samples are stored as 16-bit integers.
	HighPrecision bool
	Orientation   Orientation
	Pixels        []byte
	ICCProfile    []byte // empty when the source carries no embedded profile
	Scale         int
}

// BytesPerSample returns 2 for high precision results and 1 otherwise.
func (r *DecodeResult) BytesPerSample() int {
	if r.HighPrecision {
		return 2
	}
	return 1
}

// ExpectedSize is width*height*components*bytesPerSample.
func (r *DecodeResult) ExpectedSize() int {
	return r.Width * r.Height * r.Components * r.BytesPerSample()
}

// EncodeRequest is the input of the standard 8-bit encode pipeline.
type EncodeRequest struct {
	Pixels        []byte
	Width         int
	Height        int
	Layout        ChannelLayout
	Compression   CompressionOption
	Distance      float32 // 0 (lossless-equivalent) .. 15 (max lossy)
	Effort        int     // 1..9
	DecodingSpeed int     // 0..4
}

// HDREncodeRequest is the input of the HDR-aware encode pipeline.
type HDREncodeRequest struct {
	Pixels        []byte
	Width         int
	Height        int
	Channels      int // 3 or 4
	ContainerBits int // 8, 16 or 32
	OriginalBits  int // significant bits, <= ContainerBits
	Float         bool
	ICCProfile    []byte
	Transfer      TransferFunction
	Primaries     Primaries
	Compression   CompressionOption
	Distance      float32
	Effort        int
	DecodingSpeed int
	Metadata      Metadata
}

// Metadata carries optional auxiliary boxes for the HDR pipeline.
type Metadata struct {
	Exif []byte // TIFF-format EXIF, without the Exif box offset prefix
	XMP  []byte // UTF-8 XML
}

// Empty reports whether neither payload is present.
func (m Metadata) Empty() bool { return len(m.Exif) == 0 && len(m.XMP) == 0 }

// OpInfo describes one operation for hooks and logs.
type OpInfo struct {
	Backend    string
	Width      int
	Height     int
	InputSize  int
	OutputSize int
}

// BatchResult is one entry of a DecodeBatch call.
type BatchResult struct {
	Index  int
	Result *DecodeResult
	Err    error
}

// Stats is a point-in-time copy of processor counters.
type Stats struct {
	Decoded int64
	Encoded int64
	Probed  int64
	Errors  int64
}
