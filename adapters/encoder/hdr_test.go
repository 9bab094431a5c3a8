package encoder

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
	"github.com/Skryldev/jxl-coder/hooks"
)

func hdrRequest(channels, container, original int, float bool) core.HDREncodeRequest {
	bps := container / 8
	return core.HDREncodeRequest{
		Pixels:        make([]byte, 2*2*channels*bps),
		Width:         2,
		Height:        2,
		Channels:      channels,
		ContainerBits: container,
		OriginalBits:  original,
		Float:         float,
		Transfer:      core.TransferPQ,
		Primaries:     core.PrimariesBT2020,
		Compression:   core.Lossless,
		Effort:        7,
	}
}

func TestEncodeHDRCallOrderAndDepth(t *testing.T) {
	eng := &recordingEngine{payload: payload(100)}
	req := hdrRequest(4, 16, 10, false)
	req.Compression = core.Lossy
	req.Distance = 1.5

	out, err := NewJXL(eng, DefaultOptions()).EncodeHDR(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, eng.payload, out)

	r := eng.last
	assert.Equal(t, []string{
		"parallelism", "basic_info", "extra_channel", "color_encoding",
		"frame_settings", "bit_depth", "lossless", "effort", "decoding_speed",
		"distance", "extra_channel_distance", "add_frame", "close_input",
	}, r.calls)

	assert.Equal(t, uint32(10), r.basic.BitsPerSample)
	assert.Zero(t, r.basic.ExponentBitsPerSample)
	assert.Equal(t, uint32(10), r.basic.AlphaBits)
	assert.False(t, r.basic.UsesOriginalProfile)
	assert.Equal(t, uint32(10), r.depth.BitsPerSample)
	assert.Equal(t, uint32(10), r.extra[0].BitsPerSample)
	assert.Equal(t, core.PixelLayout{NumChannels: 4, DataType: core.Uint16}, r.layout)
	assert.InDelta(t, 1.5, *r.extraD, 1e-6)
}

func TestEncodeHDRLosslessSkipsDistance(t *testing.T) {
	eng := &recordingEngine{payload: payload(10)}
	_, err := NewJXL(eng, DefaultOptions()).EncodeHDR(context.Background(), hdrRequest(4, 8, 8, false))
	require.NoError(t, err)
	assert.NotContains(t, eng.last.calls, "distance")
	assert.NotContains(t, eng.last.calls, "extra_channel_distance")
	assert.True(t, eng.last.basic.UsesOriginalProfile)
}

func TestEncodeHDRSampleTypes(t *testing.T) {
	tests := []struct {
		name      string
		container int
		float     bool
		wantType  core.DataType
		wantExp   uint32
	}{
		{"uint8", 8, false, core.Uint8, 0},
		{"uint16", 16, false, core.Uint16, 0},
		{"float16", 16, true, core.Float16, 5},
		{"float32", 32, true, core.Float32, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &recordingEngine{payload: payload(10)}
			_, err := NewJXL(eng, DefaultOptions()).EncodeHDR(context.Background(),
				hdrRequest(4, tt.container, tt.container, tt.float))
			require.NoError(t, err)

			r := eng.last
			assert.Equal(t, tt.wantType, r.layout.DataType)
			assert.Equal(t, tt.wantExp, r.basic.ExponentBitsPerSample)
			assert.Equal(t, tt.wantExp, r.basic.AlphaExponentBits)
			assert.Equal(t, tt.wantExp, r.extra[0].ExponentBitsPerSample)
			assert.Equal(t, tt.wantExp, r.depth.ExponentBitsPerSample)
		})
	}
}

func TestEncodeHDRRejectsUnsupportedContainers(t *testing.T) {
	tests := []struct {
		name string
		req  core.HDREncodeRequest
	}{
		{"int32", hdrRequest(3, 32, 32, false)},
		{"float8", hdrRequest(3, 8, 8, true)},
		{"original above container", hdrRequest(3, 16, 17, false)},
		{"original zero", hdrRequest(3, 16, 0, false)},
		{"two channels", hdrRequest(2, 8, 8, false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &recordingEngine{payload: payload(10)}
			_, err := NewJXL(eng, DefaultOptions()).EncodeHDR(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInput))
			assert.Zero(t, eng.created)
		})
	}
}

func TestEncodeHDRPreflightUsesContainerSize(t *testing.T) {
	req := hdrRequest(3, 16, 12, false)
	req.Pixels = req.Pixels[:len(req.Pixels)-1]
	eng := &recordingEngine{payload: payload(10)}
	_, err := NewJXL(eng, DefaultOptions()).EncodeHDR(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrBufferSizeMismatch)
	assert.Zero(t, eng.created)
}

func TestEncodeHDRColourDecision(t *testing.T) {
	t.Run("icc never falls through", func(t *testing.T) {
		eng := &recordingEngine{payload: payload(10)}
		req := hdrRequest(3, 16, 16, false)
		req.ICCProfile = []byte("icc")
		_, err := NewJXL(eng, DefaultOptions()).EncodeHDR(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, []byte("icc"), eng.last.icc)
		assert.Nil(t, eng.last.colour)
		assert.NotContains(t, eng.last.calls, "color_encoding")
	})

	t.Run("srgb shorthand", func(t *testing.T) {
		eng := &recordingEngine{payload: payload(10)}
		req := hdrRequest(3, 8, 8, false)
		req.Transfer, req.Primaries = core.TransferSRGB, core.PrimariesSRGB
		_, err := NewJXL(eng, DefaultOptions()).EncodeHDR(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, core.SRGBColorEncoding(false), *eng.last.colour)
		assert.NotContains(t, eng.last.calls, "icc_profile")
	})

	manual := []struct {
		tf   core.TransferFunction
		p    core.Primaries
		want core.ColorEncoding
	}{
		{core.TransferPQ, core.PrimariesBT2020, core.ColorEncoding{Primaries: core.ColorPrimaries2100, Transfer: core.TransferCurvePQ}},
		{core.TransferHLG, core.PrimariesBT2020, core.ColorEncoding{Primaries: core.ColorPrimaries2100, Transfer: core.TransferCurveHLG}},
		{core.TransferLinear, core.PrimariesSRGB, core.ColorEncoding{Primaries: core.ColorPrimariesSRGB, Transfer: core.TransferCurveLinear}},
		{core.TransferSRGB, core.PrimariesDisplayP3, core.ColorEncoding{Primaries: core.ColorPrimariesP3, Transfer: core.TransferCurveSRGB}},
	}
	for _, m := range manual {
		t.Run("manual "+m.tf.String()+"/"+m.p.String(), func(t *testing.T) {
			eng := &recordingEngine{payload: payload(10)}
			req := hdrRequest(3, 16, 16, true)
			req.Transfer, req.Primaries = m.tf, m.p
			_, err := NewJXL(eng, DefaultOptions()).EncodeHDR(context.Background(), req)
			require.NoError(t, err)

			want := m.want
			want.ColorSpace = core.ColorSpaceRGB
			want.WhitePoint = core.WhitePointD65
			want.RenderingIntent = core.RenderingIntentPerceptual
			assert.Equal(t, want, *eng.last.colour)
		})
	}
}

func TestEncodeHDRRejectedICC(t *testing.T) {
	req := hdrRequest(3, 16, 16, false)
	req.ICCProfile = []byte("broken")

	eng := &recordingEngine{payload: payload(10), failOn: "icc_profile"}
	_, err := NewJXL(eng, DefaultOptions()).EncodeHDR(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfigRejected))
	assert.NotContains(t, eng.last.calls, "color_encoding")

	var logs bytes.Buffer
	opts := DefaultOptions()
	opts.AllowICCFallback = true
	enc := NewJXL(eng, opts)
	enc.SetLogger(hooks.NewSlogLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	_, err = enc.EncodeHDR(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, eng.last.colour)
	assert.Equal(t, core.ColorPrimaries2100, eng.last.colour.Primaries)
	assert.Equal(t, core.TransferCurvePQ, eng.last.colour.Transfer)
	assert.Contains(t, logs.String(), "encode_hdr.icc.rejected")
}

func TestEncodeHDRMetadataBoxes(t *testing.T) {
	exif := append([]byte("II*\x00\x08\x00\x00\x00"), make([]byte, 16)...)
	xmp := []byte(`<x:xmpmeta xmlns:x="adobe:ns:meta/"/>`)

	eng := &recordingEngine{payload: payload(10)}
	req := hdrRequest(3, 8, 8, false)
	req.Metadata = core.Metadata{Exif: exif, XMP: xmp}
	_, err := NewJXL(eng, DefaultOptions()).EncodeHDR(context.Background(), req)
	require.NoError(t, err)

	r := eng.last
	assert.Equal(t, []core.BoxType{core.BoxExif, core.BoxXMP}, r.boxes)
	assert.Equal(t, append([]byte{0, 0, 0, 0}, exif...), r.boxData[core.BoxExif])
	assert.Equal(t, xmp, r.boxData[core.BoxXMP])

	// Boxes are enabled before any box is added and before the frame.
	idx := func(name string) int {
		for i, c := range r.calls {
			if c == name {
				return i
			}
		}
		return -1
	}
	assert.Less(t, idx("use_boxes"), idx("box"))
	assert.Less(t, idx("box"), idx("add_frame"))
}

func TestEncodeHDROversizedExifIsSkipped(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxExifBytes = 8
	eng := &recordingEngine{payload: payload(10)}
	req := hdrRequest(3, 8, 8, false)
	req.Metadata.Exif = append([]byte("MM\x00*"), make([]byte, 32)...)

	_, err := NewJXL(eng, opts).EncodeHDR(context.Background(), req)
	require.NoError(t, err)
	assert.NotContains(t, eng.last.calls, "use_boxes")
	assert.Empty(t, eng.last.boxes)
}

func TestEncodeHDRNoMetadataNoBoxes(t *testing.T) {
	eng := &recordingEngine{payload: payload(10)}
	_, err := NewJXL(eng, DefaultOptions()).EncodeHDR(context.Background(), hdrRequest(3, 8, 8, false))
	require.NoError(t, err)
	assert.NotContains(t, eng.last.calls, "use_boxes")
}
