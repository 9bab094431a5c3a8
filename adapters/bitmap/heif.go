//go:build heif

package bitmap

// Registers the HEIF and AVIF decoders with image.Decode.
import _ "github.com/strukturag/libheif/go/heif"
