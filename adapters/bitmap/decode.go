package bitmap

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "github.com/Skryldev/jxl-coder/errors"
	"github.com/Skryldev/jxl-coder/utils"
)

// Decode reads a platform bitmap (JPEG, PNG, GIF, WebP, TIFF, and HEIF/AVIF
// in builds with the heif tag) and returns it with its sniffed format name.
// JPEG XL input is refused; it belongs to the codec bridge.
func Decode(ctx context.Context, data []byte) (image.Image, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", apperrors.Wrap(apperrors.CategoryInput, "bitmap.decode", err)
	}
	if len(data) == 0 {
		return nil, "", apperrors.New(apperrors.CategoryInput, "bitmap.decode", apperrors.ErrEmptyInput)
	}

	format := utils.DetectFormat(data)
	if format == "jxl" || format == "unknown" {
		return nil, format, apperrors.Newf(apperrors.CategoryInput, "bitmap.decode", apperrors.ErrUnsupportedFormat,
			"%s input", format)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, apperrors.Wrap(apperrors.CategoryMalformedInput, "bitmap.decode."+format, err)
	}
	return img, format, nil
}
