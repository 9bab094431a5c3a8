package decoder

import "github.com/Skryldev/jxl-coder/core"

// ResolvedFormat is the concrete output layout chosen for one decode.
type ResolvedFormat struct {
	Layout        core.PixelLayout
	HighPrecision bool
	// BitDepth is the depth reported to the caller: the source depth, or 8
	// when 8-bit output was forced.
	BitDepth int
}

// BytesPerSample is 2 for high precision output and 1 otherwise.
func (f ResolvedFormat) BytesPerSample() int { return f.Layout.DataType.BytesPerSample() }

// ResolvePixelFormat picks the sample type and channel count for the decode
// output buffer.  Grey sources are expanded to 3 channels and any extra
// channel promotes the layout to 4, so buffers are always RGB or RGBA.
func ResolvePixelFormat(policy core.PixelFormat, info core.BasicInfo) ResolvedFormat {
	channels := 3
	if info.NumExtraChannels > 0 {
		channels = 4
	}

	f := ResolvedFormat{
		Layout:   core.PixelLayout{NumChannels: channels, DataType: core.Uint8},
		BitDepth: int(info.BitsPerSample),
	}
	switch {
	case policy == core.PixelFormat16,
		policy == core.PixelFormatOptimal && info.BitsPerSample > 8:
		f.Layout.DataType = core.Uint16
		f.HighPrecision = true
	case policy == core.PixelFormat8:
		f.BitDepth = 8
	}
	return f
}
