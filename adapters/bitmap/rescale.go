package bitmap

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"strings"

	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"

	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
)

// Rescaler applies the decode rescale hint.  It keeps the component count
// and precision of the decoded buffer.
type Rescaler struct {
	name string
	// interp is nil for lanczos3, which goes through nfnt/resize.
	interp xdraw.Interpolator
}

// NewRescaler returns a rescaler for "bilinear", "catmullrom", "nearest" or
// "lanczos3".  An empty name selects bilinear.
func NewRescaler(name string) (*Rescaler, error) {
	name = strings.ToLower(name)
	switch name {
	case "", "bilinear":
		return &Rescaler{name: "bilinear", interp: xdraw.BiLinear}, nil
	case "catmullrom":
		return &Rescaler{name: name, interp: xdraw.CatmullRom}, nil
	case "nearest":
		return &Rescaler{name: name, interp: xdraw.NearestNeighbor}, nil
	case "lanczos3":
		return &Rescaler{name: name}, nil
	}
	return nil, fmt.Errorf("bitmap: unknown resampler %q", name)
}

func (r *Rescaler) Name() string { return r.name }

func (r *Rescaler) Rescale(ctx context.Context, res *core.DecodeResult, width, height int) (*core.DecodeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "rescale", err)
	}
	if width <= 0 || height <= 0 {
		return nil, apperrors.New(apperrors.CategoryInput, "rescale", apperrors.ErrInvalidDimensions)
	}
	if width == res.Width && height == res.Height {
		return res, nil
	}
	src, err := ToImage(res)
	if err != nil {
		return nil, err
	}

	var scaled image.Image
	if r.interp == nil {
		scaled = resize.Resize(uint(width), uint(height), src, resize.Lanczos3)
	} else {
		rect := image.Rect(0, 0, width, height)
		var dst xdraw.Image
		if res.HighPrecision {
			dst = image.NewNRGBA64(rect)
		} else {
			dst = image.NewNRGBA(rect)
		}
		r.interp.Scale(dst, rect, src, src.Bounds(), xdraw.Src, nil)
		scaled = dst
	}

	out := *res
	out.Width, out.Height = width, height
	out.Pixels = flatten(scaled, res.Components, res.HighPrecision)
	return &out, nil
}

// flatten converts img into an interleaved buffer of the given component
// count and precision.
func flatten(img image.Image, components int, high bool) []byte {
	b := img.Bounds()
	rect := image.Rect(0, 0, b.Dx(), b.Dy())
	n := b.Dx() * b.Dy()

	if high {
		src, ok := img.(*image.NRGBA64)
		if !ok {
			src = image.NewNRGBA64(rect)
			xdraw.Draw(src, rect, img, b.Min, xdraw.Src)
		}
		out := make([]byte, n*components*2)
		for i := 0; i < n; i++ {
			for c := 0; c < components; c++ {
				binary.NativeEndian.PutUint16(out[(i*components+c)*2:], binary.BigEndian.Uint16(src.Pix[i*8+c*2:]))
			}
		}
		return out
	}

	src, ok := img.(*image.NRGBA)
	if !ok {
		src = image.NewNRGBA(rect)
		xdraw.Draw(src, rect, img, b.Min, xdraw.Src)
	}
	if components == 4 {
		return src.Pix
	}
	out := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		out = append(out, src.Pix[i*4:i*4+3]...)
	}
	return out
}
