// Package vips reads and writes platform bitmaps through libvips.  It feeds
// the encoder from any format libvips can load and exports decode results to
// formats the standard library cannot write.
package vips

import (
	"bytes"
	"context"
	"fmt"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/jxl-coder/adapters/bitmap"
	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	DefaultQuality int
	MaxCacheSize   int
	MaxWorkers     int
	ReportLeaks    bool
}

// Backend is safe for concurrent use across goroutines.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = bitmap.DefaultJPEGQuality
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
		CollectStats:     true,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// SourceInfo describes the bitmap a Frame was loaded from.
type SourceInfo struct {
	Format         string
	Width          int
	Height         int
	HasAlpha       bool
	Interpretation string
	// Fields lists the metadata fields libvips found.  Only the ICC profile,
	// EXIF and XMP travel on the frame.
	Fields map[string]string
}

// Source loads data with libvips, applies its orientation tag and returns the
// pixels as an encoder frame.  The embedded ICC profile, EXIF blob and XMP
// packet are carried on the frame for the HDR pipeline.  A positive maxSize
// bounds the longer edge using shrink-on-load.
func (b *Backend) Source(ctx context.Context, data []byte, maxSize int) (bitmap.Frame, SourceInfo, error) {
	if err := ctx.Err(); err != nil {
		return bitmap.Frame{}, SourceInfo{}, apperrors.Wrap(apperrors.CategoryInput, "vips.source", err)
	}
	if len(data) == 0 {
		return bitmap.Frame{}, SourceInfo{}, apperrors.New(apperrors.CategoryInput, "vips.source", apperrors.ErrEmptyInput)
	}

	var (
		ref *govips.ImageRef
		err error
	)
	if maxSize > 0 {
		ref, err = govips.NewThumbnailFromBuffer(data, maxSize, maxSize, govips.InterestingNone)
	} else {
		ref, err = govips.NewImageFromBuffer(data)
	}
	if err != nil {
		return bitmap.Frame{}, SourceInfo{}, apperrors.Wrap(apperrors.CategoryMalformedInput, "vips.source", err)
	}
	defer ref.Close()

	info := SourceInfo{
		Format:         vipsFormatName(ref.Format()),
		HasAlpha:       ref.HasAlpha(),
		Interpretation: vipsInterpretationName(ref.Interpretation()),
	}
	if fields := ref.GetFields(); len(fields) > 0 {
		info.Fields = make(map[string]string, len(fields))
		for _, field := range fields {
			info.Fields[field] = ref.GetString(field)
		}
	}

	if err := ref.AutoRotate(); err != nil {
		return bitmap.Frame{}, info, apperrors.Wrap(apperrors.CategoryBackend, "vips.source.auto_rotate", err)
	}
	var (
		icc  []byte
		meta core.Metadata
	)
	if ref.HasICCProfile() {
		icc = bytes.Clone(ref.GetICCProfile())
	}
	if exif := ref.GetBlob("exif-data"); len(exif) > 0 {
		meta.Exif = clearOrientation(exif)
	}
	if xmp := ref.GetBlob("xmp-data"); len(xmp) > 0 {
		meta.XMP = bytes.Clone(xmp)
	}
	if err := ref.RemoveMetadata(); err != nil {
		return bitmap.Frame{}, info, apperrors.Wrap(apperrors.CategoryBackend, "vips.source.strip", err)
	}
	info.Width, info.Height = ref.Width(), ref.Height()

	// PNG is the lossless hand-off: it keeps 16-bit depth and alpha.
	ep := govips.NewPngExportParams()
	ep.StripMetadata = true
	buf, _, err := ref.ExportPng(ep)
	if err != nil {
		return bitmap.Frame{}, info, apperrors.Wrap(apperrors.CategoryBackend, "vips.source.png", err)
	}
	img, _, err := bitmap.Decode(ctx, buf)
	if err != nil {
		return bitmap.Frame{}, info, err
	}
	frame, err := bitmap.FromImage(img)
	if err != nil {
		return bitmap.Frame{}, info, err
	}
	frame.ICCProfile = icc
	frame.Metadata = meta
	return frame, info, nil
}

// Export writes a decode result as "jpeg", "png" or "webp".
func (b *Backend) Export(ctx context.Context, res *core.DecodeResult, format string, quality int, lossless bool) ([]byte, error) {
	png, err := bitmap.Export(ctx, res, "png", 0)
	if err != nil {
		return nil, err
	}
	if format == "png" {
		return png, nil
	}

	ref, err := govips.NewImageFromBuffer(png)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryBackend, "vips.export", err)
	}
	defer ref.Close()

	if quality <= 0 {
		quality = b.cfg.DefaultQuality
	}
	switch format {
	case "jpeg", "jpg":
		ep := govips.NewJpegExportParams()
		ep.Quality = quality
		ep.StripMetadata = true
		buf, _, err := ref.ExportJpeg(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryBackend, "vips.export.jpeg", err)
		}
		return buf, nil

	case "webp":
		ep := govips.NewWebpExportParams()
		ep.Quality = quality
		ep.Lossless = lossless
		ep.StripMetadata = true
		buf, _, err := ref.ExportWebp(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryBackend, "vips.export.webp", err)
		}
		return buf, nil
	}
	return nil, apperrors.New(apperrors.CategoryInput, "vips.export",
		fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
}

// Thumbnail scales a decode result so that its longer edge is size, keeping
// the aspect ratio, and returns it as a new encoder frame.
func (b *Backend) Thumbnail(ctx context.Context, res *core.DecodeResult, size int) (bitmap.Frame, error) {
	png, err := bitmap.Export(ctx, res, "png", 0)
	if err != nil {
		return bitmap.Frame{}, err
	}
	ref, err := govips.NewImageFromBuffer(png)
	if err != nil {
		return bitmap.Frame{}, apperrors.Wrap(apperrors.CategoryBackend, "vips.thumbnail", err)
	}
	defer ref.Close()

	scale := float64(size) / float64(max(res.Width, res.Height))
	if err := ref.Resize(scale, govips.KernelLanczos3); err != nil {
		return bitmap.Frame{}, apperrors.Wrap(apperrors.CategoryBackend, "vips.thumbnail", err)
	}
	out, _, err := ref.ExportPng(govips.NewPngExportParams())
	if err != nil {
		return bitmap.Frame{}, apperrors.Wrap(apperrors.CategoryBackend, "vips.thumbnail.png", err)
	}
	img, _, err := bitmap.Decode(ctx, out)
	if err != nil {
		return bitmap.Frame{}, err
	}
	return bitmap.FromImage(img)
}

func vipsFormatName(f govips.ImageType) string {
	switch f {
	case govips.ImageTypeJPEG:
		return "jpeg"
	case govips.ImageTypePNG:
		return "png"
	case govips.ImageTypeWEBP:
		return "webp"
	case govips.ImageTypeTIFF:
		return "tiff"
	case govips.ImageTypeHEIF:
		return "heif"
	case govips.ImageTypeAVIF:
		return "avif"
	case govips.ImageTypeGIF:
		return "gif"
	}
	return "unknown"
}

func vipsInterpretationName(i govips.Interpretation) string {
	switch i {
	case govips.InterpretationSRGB, govips.InterpretationRGB16:
		return "srgb"
	case govips.InterpretationBW, govips.InterpretationGrey16:
		return "gray"
	case govips.InterpretationCMYK:
		return "cmyk"
	}
	return "other"
}
