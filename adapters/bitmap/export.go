package bitmap

import (
	"bytes"
	"context"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"

	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
)

// DefaultJPEGQuality is used when Export is given a quality of 0.
const DefaultJPEGQuality = 90

// Export writes a decode result as PNG, JPEG or WebP.  PNG keeps 16-bit
// precision and alpha; JPEG drops both.  A quality of 100 or more writes
// lossless WebP.
func Export(ctx context.Context, res *core.DecodeResult, format string, quality int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "bitmap.export", err)
	}
	img, err := ToImage(res)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		enc := &png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryBackend, "bitmap.export.png", err)
		}
	case "jpeg", "jpg":
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: min(quality, 100)}); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryBackend, "bitmap.export.jpeg", err)
		}
	case "webp":
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		opts := &webp.Options{Lossless: quality >= 100, Quality: float32(min(quality, 100))}
		if err := webp.Encode(&buf, img, opts); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryBackend, "bitmap.export.webp", err)
		}
	default:
		return nil, apperrors.Newf(apperrors.CategoryInput, "bitmap.export", apperrors.ErrUnsupportedFormat,
			"format %q", format)
	}
	return buf.Bytes(), nil
}
