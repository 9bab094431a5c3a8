package encoder

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
)

// DefaultMaxExifBytes caps the EXIF payload; larger payloads usually carry
// embedded previews and are dropped.
const DefaultMaxExifBytes = 100_000

var (
	app1ExifPrefix = []byte("Exif\x00\x00")
	tiffLittle     = []byte("II*\x00")
	tiffBig        = []byte("MM\x00*")
)

// metadataBox is one prepared auxiliary box.
type metadataBox struct {
	typ      core.BoxType
	contents []byte
}

// exifBox validates a TIFF-format EXIF payload and prefixes it with the
// 4-byte offset to the TIFF header required by the Exif box.  An APP1
// "Exif\0\0" marker is tolerated and stripped.  ok is false when the payload
// exceeds maxBytes and must be skipped.
func exifBox(exif []byte, maxBytes int64) (box metadataBox, ok bool, err error) {
	exif = bytes.TrimPrefix(exif, app1ExifPrefix)
	if !bytes.HasPrefix(exif, tiffLittle) && !bytes.HasPrefix(exif, tiffBig) {
		return metadataBox{}, false, apperrors.Newf(apperrors.CategoryInput, "encode.exif", apperrors.ErrInvalidParameter,
			"payload does not start with a TIFF header")
	}
	if maxBytes > 0 && int64(len(exif)) > maxBytes {
		return metadataBox{}, false, nil
	}
	contents := make([]byte, 4+len(exif))
	copy(contents[4:], exif)
	return metadataBox{typ: core.BoxExif, contents: contents}, true, nil
}

// xmpBox normalises an XMP packet to UTF-8.  A UTF-16 BOM is honoured and a
// UTF-8 BOM is removed; a packet without a UTF-16 BOM must already be valid
// UTF-8.
func xmpBox(xmp []byte) (metadataBox, error) {
	utf16 := bytes.HasPrefix(xmp, []byte{0xFE, 0xFF}) || bytes.HasPrefix(xmp, []byte{0xFF, 0xFE})
	if !utf16 && !utf8.Valid(xmp) {
		return metadataBox{}, apperrors.Newf(apperrors.CategoryInput, "encode.xmp", apperrors.ErrInvalidParameter,
			"packet is not valid UTF-8")
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), xmp)
	if err != nil {
		return metadataBox{}, apperrors.Wrap(apperrors.CategoryInput, "encode.xmp", err)
	}
	if len(out) == 0 {
		return metadataBox{}, apperrors.Newf(apperrors.CategoryInput, "encode.xmp", apperrors.ErrInvalidParameter,
			"packet is empty")
	}
	return metadataBox{typ: core.BoxXMP, contents: out}, nil
}
