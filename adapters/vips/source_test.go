package vips_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/jxl-coder/adapters/decoder"
	"github.com/Skryldev/jxl-coder/adapters/encoder"
	"github.com/Skryldev/jxl-coder/adapters/memcodec"
	"github.com/Skryldev/jxl-coder/adapters/vips"
	"github.com/Skryldev/jxl-coder/core"
)

var (
	testTIFF = []byte("MM\x00*\x00\x00\x00\x08\x00\x00\x00\x00\x00\x00")
	testXMP  = []byte(`<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"/></x:xmpmeta>`)
)

// testICC is a header-only profile: size, "acsp" signature and an empty tag
// table.
func testICC() []byte {
	icc := make([]byte, 132)
	binary.BigEndian.PutUint32(icc, uint32(len(icc)))
	copy(icc[4:], "none")
	copy(icc[12:], "mntrRGB XYZ ")
	copy(icc[36:], "acsp")
	return icc
}

func segment(marker byte, payload []byte) []byte {
	seg := []byte{0xFF, marker, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(2+len(payload)))
	return append(seg, payload...)
}

// taggedJPEG returns a JPEG carrying EXIF, XMP and ICC segments after SOI.
func taggedJPEG(t *testing.T, w, h int, icc []byte) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}))
	plain := buf.Bytes()

	out := append([]byte{}, plain[:2]...)
	out = append(out, segment(0xE1, append([]byte("Exif\x00\x00"), testTIFF...))...)
	out = append(out, segment(0xE1, append([]byte("http://ns.adobe.com/xap/1.0/\x00"), testXMP...))...)
	out = append(out, segment(0xE2, append([]byte("ICC_PROFILE\x00\x01\x01"), icc...))...)
	return append(out, plain[2:]...)
}

func TestSourceCarriesColourAndMetadata(t *testing.T) {
	icc := testICC()
	raw := taggedJPEG(t, 16, 8, icc)
	backend := vips.NewBackend(vips.BackendConfig{})
	defer backend.Shutdown()
	ctx := context.Background()

	frame, info, err := backend.Source(ctx, raw, 0)
	require.NoError(t, err)
	assert.Equal(t, 16, info.Width)
	assert.Equal(t, icc, frame.ICCProfile)
	assert.True(t, bytes.Contains(frame.Metadata.Exif, testTIFF[:8]))
	assert.True(t, bytes.Contains(frame.Metadata.XMP, []byte("x:xmpmeta")))
	assert.True(t, frame.HasColorData())

	req := frame.HDRRequest()
	assert.Equal(t, icc, req.ICCProfile)
	assert.Equal(t, frame.Metadata, req.Metadata)
	req.Compression = core.Lossless
	req.Effort = 3

	enc := encoder.NewJXL(memcodec.New(), encoder.DefaultOptions())
	out, err := enc.EncodeHDR(ctx, req)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(out, testTIFF[:8]), "exif box stored")
	assert.True(t, bytes.Contains(out, []byte("x:xmpmeta")), "xmp box stored")

	res, err := decoder.NewJXL(memcodec.New(), false).Decode(ctx, core.DecodeRequest{Data: out})
	require.NoError(t, err)
	assert.Equal(t, icc, res.ICCProfile)
	assert.Equal(t, [2]int{16, 8}, [2]int{res.Width, res.Height})
}
