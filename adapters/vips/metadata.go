package vips

import (
	"bytes"
	"encoding/binary"
)

const exifOrientationTag = 0x0112

var app1ExifPrefix = []byte("Exif\x00\x00")

// clearOrientation returns a copy of an EXIF blob with the IFD0 orientation
// tag set to 1 (top-left).  libvips rotates the pixels on AutoRotate but
// leaves the raw exif-data blob untouched, so a stored tag would rotate the
// image a second time.  Blobs that cannot be parsed are returned unchanged.
func clearOrientation(exif []byte) []byte {
	out := bytes.Clone(exif)
	tiff := out
	if bytes.HasPrefix(tiff, app1ExifPrefix) {
		tiff = tiff[len(app1ExifPrefix):]
	}
	if len(tiff) < 8 {
		return out
	}
	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return out
	}
	ifd := int64(order.Uint32(tiff[4:8]))
	if ifd+2 > int64(len(tiff)) {
		return out
	}
	n := int64(order.Uint16(tiff[ifd:]))
	for i := int64(0); i < n; i++ {
		entry := ifd + 2 + i*12
		if entry+12 > int64(len(tiff)) {
			break
		}
		if order.Uint16(tiff[entry:]) != exifOrientationTag {
			continue
		}
		// SHORT, count 1: the value sits in the first two bytes of the field.
		if order.Uint16(tiff[entry+2:]) == 3 && order.Uint32(tiff[entry+4:]) == 1 {
			order.PutUint16(tiff[entry+8:], 1)
		}
		break
	}
	return out
}
