package utils

import (
	"bytes"
	"math"
	"net/http"
)

const (
	formatJXL     = "jxl"
	formatJPEG    = "jpeg"
	formatPNG     = "png"
	formatWebP    = "webp"
	formatGIF     = "gif"
	formatTIFF    = "tiff"
	formatHEIF    = "heif"
	formatUnknown = "unknown"
)

var (
	jxlCodestream = []byte{0xFF, 0x0A}
	jxlContainer  = []byte{0x00, 0x00, 0x00, 0x0C, 'J', 'X', 'L', ' ', 0x0D, 0x0A, 0x87, 0x0A}
)

// IsJXLSignature reports whether data starts with a JPEG XL codestream or
// container signature.
func IsJXLSignature(data []byte) bool {
	return bytes.HasPrefix(data, jxlCodestream) || bytes.HasPrefix(data, jxlContainer)
}

// DetectFormat sniffs the leading bytes of data and returns the image format.
func DetectFormat(data []byte) string {
	if IsJXLSignature(data) {
		return formatJXL
	}
	if len(data) < 4 {
		return formatUnknown
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return formatJPEG
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return formatPNG
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return formatWebP
	}
	// TIFF: II*\0 or MM\0*
	if bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")) {
		return formatTIFF
	}
	// HEIF family: ....ftyp{heic,heix,mif1,avif}
	if len(data) >= 12 && string(data[4:8]) == "ftyp" {
		switch string(data[8:12]) {
		case "heic", "heix", "hevc", "mif1", "msf1", "avif":
			return formatHEIF
		}
	}
	// Fallback to net/http sniffing.
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return formatJPEG
	case "image/png":
		return formatPNG
	case "image/webp":
		return formatWebP
	case "image/gif":
		return formatGIF
	}
	return formatUnknown
}

// ScaleDimensions computes output (w, h) preserving aspect ratio.
// Pass 0 for either axis to calculate it from the other.
func ScaleDimensions(srcW, srcH, targetW, targetH int) (int, int) {
	if targetW == 0 && targetH == 0 {
		return srcW, srcH
	}
	if targetW == 0 {
		ratio := float64(targetH) / float64(srcH)
		return max(1, int(float64(srcW)*ratio)), targetH
	}
	if targetH == 0 {
		ratio := float64(targetW) / float64(srcW)
		return targetW, max(1, int(float64(srcH)*ratio))
	}
	return targetW, targetH
}

// BufferSize returns the product of its factors, or ok=false when any factor
// is negative or the product overflows an int.
func BufferSize(factors ...int) (size int, ok bool) {
	size = 1
	for _, f := range factors {
		if f < 0 {
			return 0, false
		}
		if f != 0 && size > math.MaxInt/f {
			return 0, false
		}
		size *= f
	}
	return size, true
}

// CloneBytes returns a copy of b (safe for use after the source buffer is released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
