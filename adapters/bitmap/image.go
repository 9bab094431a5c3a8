// Package bitmap converts between the bridge's flat pixel buffers and
// image.Image, and decodes, exports and rescales the platform-side bitmaps.
package bitmap

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"

	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
)

// Frame is an interleaved non-premultiplied RGB(A) buffer ready for encode.
type Frame struct {
	Pixels   []byte
	Width    int
	Height   int
	Channels int // 3 or 4
	// Bits is 8, or 16 for native-endian uint16 samples.
	Bits int
	// ICCProfile and Metadata are carried from the source file when the
	// loader can read them; the standard library loaders leave them empty.
	ICCProfile []byte
	Metadata   core.Metadata
}

// HasColorData reports whether the frame carries an ICC profile or EXIF/XMP
// payloads that only the HDR pipeline can store.
func (f Frame) HasColorData() bool { return len(f.ICCProfile) > 0 || !f.Metadata.Empty() }

// EncodeRequest fills the standard pipeline request from an 8-bit frame.
func (f Frame) EncodeRequest(c core.CompressionOption, distance float32, effort, speed int) core.EncodeRequest {
	return core.EncodeRequest{
		Pixels:        f.Pixels,
		Width:         f.Width,
		Height:        f.Height,
		Layout:        core.ChannelLayout(f.Channels),
		Compression:   c,
		Distance:      distance,
		Effort:        effort,
		DecodingSpeed: speed,
	}
}

// HDRRequest fills the container fields of an HDR request and carries the
// frame's ICC profile and metadata.  Compression settings are left to the
// caller.
func (f Frame) HDRRequest() core.HDREncodeRequest {
	return core.HDREncodeRequest{
		Pixels:        f.Pixels,
		Width:         f.Width,
		Height:        f.Height,
		Channels:      f.Channels,
		ContainerBits: f.Bits,
		OriginalBits:  f.Bits,
		Transfer:      core.TransferSRGB,
		Primaries:     core.PrimariesSRGB,
		ICCProfile:    f.ICCProfile,
		Metadata:      f.Metadata,
	}
}

// FromImage flattens img.  16-bit sources keep their precision; alpha is
// kept only when the source model can carry it.
func FromImage(img image.Image) (Frame, error) {
	if img == nil {
		return Frame{}, apperrors.New(apperrors.CategoryInput, "bitmap.from_image", apperrors.ErrEmptyInput)
	}
	b := img.Bounds()
	if b.Empty() {
		return Frame{}, apperrors.New(apperrors.CategoryInput, "bitmap.from_image", apperrors.ErrInvalidDimensions)
	}
	channels := 3
	if hasAlpha(img) {
		channels = 4
	}

	if is16Bit(img) {
		src := image.NewNRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)
		out := make([]byte, b.Dx()*b.Dy()*channels*2)
		for p, o := 0, 0; p < len(src.Pix); p += 8 {
			for c := 0; c < channels; c++ {
				binary.NativeEndian.PutUint16(out[o:], binary.BigEndian.Uint16(src.Pix[p+2*c:]))
				o += 2
			}
		}
		return Frame{Pixels: out, Width: b.Dx(), Height: b.Dy(), Channels: channels, Bits: 16}, nil
	}

	src := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)
	if channels == 4 {
		return Frame{Pixels: src.Pix, Width: b.Dx(), Height: b.Dy(), Channels: 4, Bits: 8}, nil
	}
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for p := 0; p < len(src.Pix); p += 4 {
		out = append(out, src.Pix[p:p+3]...)
	}
	return Frame{Pixels: out, Width: b.Dx(), Height: b.Dy(), Channels: 3, Bits: 8}, nil
}

// ToImage wraps a decode result as an NRGBA (8-bit) or NRGBA64 (16-bit)
// image.  RGB results get an opaque alpha channel.
func ToImage(res *core.DecodeResult) (image.Image, error) {
	if res == nil || len(res.Pixels) == 0 {
		return nil, apperrors.New(apperrors.CategoryInput, "bitmap.to_image", apperrors.ErrEmptyInput)
	}
	if res.Components != 3 && res.Components != 4 {
		return nil, apperrors.Newf(apperrors.CategoryInput, "bitmap.to_image", apperrors.ErrInvalidParameter,
			"%d components", res.Components)
	}
	if len(res.Pixels) != res.ExpectedSize() {
		return nil, apperrors.Newf(apperrors.CategorySizeMismatch, "bitmap.to_image", apperrors.ErrBufferSizeMismatch,
			"got %d want %d", len(res.Pixels), res.ExpectedSize())
	}
	rect := image.Rect(0, 0, res.Width, res.Height)
	n := res.Width * res.Height

	if res.HighPrecision {
		img := image.NewNRGBA64(rect)
		for i := 0; i < n; i++ {
			for c := 0; c < 4; c++ {
				v := uint16(0xFFFF)
				if c < res.Components {
					v = binary.NativeEndian.Uint16(res.Pixels[(i*res.Components+c)*2:])
				}
				binary.BigEndian.PutUint16(img.Pix[i*8+c*2:], v)
			}
		}
		return img, nil
	}

	img := image.NewNRGBA(rect)
	if res.Components == 4 {
		copy(img.Pix, res.Pixels)
		return img, nil
	}
	for i := 0; i < n; i++ {
		copy(img.Pix[i*4:], res.Pixels[i*3:i*3+3])
		img.Pix[i*4+3] = 0xFF
	}
	return img, nil
}

func hasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16, *image.YCbCr, *image.CMYK:
		return false
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xFFFF {
				return true
			}
		}
		return false
	}
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model, color.YCbCrModel, color.CMYKModel:
		return false
	}
	return true
}

func is16Bit(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		return true
	}
	return false
}
