package jxlcoder_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jxlcoder "github.com/Skryldev/jxl-coder"
	"github.com/Skryldev/jxl-coder/config"
	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
	"github.com/Skryldev/jxl-coder/hooks"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func gradientRGBA(w, h int) []byte {
	px := make([]byte, 0, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px = append(px, byte(x*255/w), byte(y*255/h), 128, 255)
		}
	}
	return px
}

func newCoder(t *testing.T) *jxlcoder.Coder {
	t.Helper()
	c, err := jxlcoder.New(jxlcoder.DefaultConfig())
	require.NoError(t, err)
	return c
}

func encodeLossless(t *testing.T, c *jxlcoder.Coder, w, h int) ([]byte, []byte) {
	t.Helper()
	px := gradientRGBA(w, h)
	out, err := c.Encode(context.Background(),
		c.NewEncodeRequest(px, w, h, jxlcoder.LayoutRGBA, jxlcoder.Lossless))
	require.NoError(t, err)
	return px, out
}

// ── Round trips ───────────────────────────────────────────────────────────────

func TestNewSelectsDefaultBackend(t *testing.T) {
	c := newCoder(t)
	assert.Equal(t, config.BackendMemory, c.Backend())
	assert.Contains(t, c.Backends(), config.BackendMemory)
	assert.Equal(t, "jxlcoder(memcodec)", c.String())
}

func TestCompressionFromConfig(t *testing.T) {
	assert.Equal(t, jxlcoder.Lossy, newCoder(t).Compression())

	cfg := jxlcoder.DefaultConfig()
	cfg.Encode.Compression = " Lossless "
	c, err := jxlcoder.New(cfg)
	require.NoError(t, err)
	assert.Equal(t, jxlcoder.Lossless, c.Compression())

	cfg.Encode.Compression = "visually-lossless"
	_, err = jxlcoder.New(cfg)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfig))
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := jxlcoder.DefaultConfig()
	cfg.Backend = "imaginary"
	_, err := jxlcoder.New(cfg)
	assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)

	cfg = jxlcoder.DefaultConfig()
	cfg.Encode.Effort = 0
	_, err = jxlcoder.New(cfg)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfig))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := newCoder(t)
	px, out := encodeLossless(t, c, 8, 6)
	assert.True(t, c.CanDecode(out))
	assert.False(t, c.IsJXL(out), "memcodec output is not JPEG XL")

	res, err := c.Decode(context.Background(), c.NewDecodeRequest(out))
	require.NoError(t, err)
	assert.Equal(t, 8, res.Width)
	assert.Equal(t, 6, res.Height)
	assert.Equal(t, 4, res.Components)
	assert.Equal(t, 8, res.BitDepth)
	assert.False(t, res.HighPrecision)
	assert.Equal(t, 1, res.Scale)
	assert.Equal(t, px, res.Pixels)
	assert.NotNil(t, res.ICCProfile)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Encoded)
	assert.Equal(t, int64(1), s.Decoded)
	assert.Zero(t, s.Errors)
}

func TestDecodeForce16(t *testing.T) {
	c := newCoder(t)
	_, out := encodeLossless(t, c, 2, 2)

	req := c.NewDecodeRequest(out)
	req.PixelFormat = jxlcoder.PixelFormat16
	res, err := c.Decode(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.HighPrecision)
	assert.Equal(t, res.ExpectedSize(), len(res.Pixels))
}

func TestEncodeHDRWithMetadata(t *testing.T) {
	c := newCoder(t)
	px := bytes.Repeat([]byte{0x00, 0x10, 0x00, 0x80, 0xFF, 0xFF}, 4)
	req := core.HDREncodeRequest{
		Pixels: px, Width: 2, Height: 2, Channels: 3,
		ContainerBits: 16, OriginalBits: 16,
		Transfer: core.TransferPQ, Primaries: core.PrimariesBT2020,
		Compression: core.Lossless, Effort: 3,
	}
	out, err := c.EncodeHDRWithMetadata(context.Background(), req, core.Metadata{
		Exif: []byte("MM\x00\x2a\x00\x00\x00\x08"),
		XMP:  []byte(`<x:xmpmeta xmlns:x="adobe:ns:meta/"/>`),
	})
	require.NoError(t, err)

	res, err := c.Decode(context.Background(), core.DecodeRequest{Data: out})
	require.NoError(t, err)
	assert.Equal(t, 16, res.BitDepth)
	assert.True(t, res.HighPrecision)
	assert.Equal(t, px, res.Pixels)
}

func TestDecodeAppliesRescaleHint(t *testing.T) {
	c := newCoder(t)
	_, out := encodeLossless(t, c, 8, 4)

	req := c.NewDecodeRequest(out)
	req.Rescale = image.Point{X: 4}
	res, err := c.Decode(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Width)
	assert.Equal(t, 2, res.Height)
	assert.Len(t, res.Pixels, 4*2*4)
}

// ── Probe / signature ─────────────────────────────────────────────────────────

func TestSizeAndSizeReader(t *testing.T) {
	c := newCoder(t)
	_, out := encodeLossless(t, c, 5, 3)

	w, h, err := c.Size(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, [2]int{5, 3}, [2]int{w, h})

	w, h, err = c.SizeReader(context.Background(), bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, [2]int{5, 3}, [2]int{w, h})
	assert.Equal(t, int64(2), c.Stats().Probed)
}

func TestIsJXLMatchesRealSignatures(t *testing.T) {
	c := newCoder(t)
	codestream := []byte{0xFF, 0x0A, 0xFA, 0x1F, 0x41, 0x91, 0x08, 0x06}
	container := []byte{0x00, 0x00, 0x00, 0x0C, 'J', 'X', 'L', ' ', 0x0D, 0x0A, 0x87, 0x0A, 0x00, 0x00, 0x00, 0x14}

	for name, data := range map[string][]byte{"codestream": codestream, "container": container} {
		assert.True(t, c.IsJXL(data), name)
		assert.False(t, c.CanDecode(data), name)

		_, _, err := c.Size(context.Background(), data)
		assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable, name)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryBackend), name)

		_, err = c.Decode(context.Background(), core.DecodeRequest{Data: data})
		assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable, name)
	}
}

func TestIsJXLRejectsForeignData(t *testing.T) {
	c := newCoder(t)
	assert.False(t, c.IsJXL(nil))
	assert.False(t, c.IsJXL([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}))

	_, err := c.Decode(context.Background(), core.DecodeRequest{Data: []byte("not an image at all")})
	assert.ErrorIs(t, err, apperrors.ErrSignatureMismatch)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryMalformedInput))
	assert.Equal(t, int64(1), c.Stats().Errors)
}

// ── Limits / cancellation ─────────────────────────────────────────────────────

func TestDecodeReaderHonoursLimit(t *testing.T) {
	cfg := jxlcoder.DefaultConfig()
	cfg.MaxImageBytes = 16
	c, err := jxlcoder.New(cfg)
	require.NoError(t, err)
	_, out := encodeLossless(t, c, 4, 4)

	m := hooks.NewInMemoryMetrics()
	c.SetMetrics(m)

	_, err = c.DecodeReader(context.Background(), bytes.NewReader(out), core.DecodeRequest{})
	assert.ErrorIs(t, err, apperrors.ErrInputTooLarge)
	_, _, err = c.SizeReader(context.Background(), bytes.NewReader(out))
	assert.ErrorIs(t, err, apperrors.ErrInputTooLarge)

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.OpErrors[core.OpDecode])
	assert.Equal(t, int64(1), snap.OpErrors[core.OpProbe])
	assert.Equal(t, int64(2), snap.ErrorCategories[string(apperrors.CategoryInput)])
	assert.Equal(t, int64(2), c.Stats().Errors)
}

// patchSize rewrites the width and height of a memcodec header.
func patchSize(out []byte, w, h uint32) []byte {
	patched := bytes.Clone(out)
	binary.LittleEndian.PutUint32(patched[9:13], w)
	binary.LittleEndian.PutUint32(patched[13:17], h)
	return patched
}

func TestPixelLimitOnCraftedHeaders(t *testing.T) {
	tests := []struct {
		name      string
		w, h      uint32
		maxPixels int64
		category  apperrors.Category
	}{
		{"beyond container cap", 1 << 20, 1 << 20, config.DefaultMaxPixels, apperrors.CategoryMalformedInput},
		{"over default limit", 1 << 16, 1 << 16, config.DefaultMaxPixels, apperrors.CategoryResourceExhausted},
		{"over configured limit", 64, 64, 1024, apperrors.CategoryResourceExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := jxlcoder.DefaultConfig()
			cfg.Decode.MaxPixels = tt.maxPixels
			c, err := jxlcoder.New(cfg)
			require.NoError(t, err)
			_, out := encodeLossless(t, c, 4, 4)
			data := patchSize(out, tt.w, tt.h)

			_, err = c.Decode(context.Background(), c.NewDecodeRequest(data))
			require.Error(t, err)
			assert.True(t, apperrors.IsCategory(err, tt.category), "decode: %v", err)
			if tt.category == apperrors.CategoryResourceExhausted {
				assert.ErrorIs(t, err, apperrors.ErrImageTooLarge)
				_, _, err = c.Size(context.Background(), data)
				assert.ErrorIs(t, err, apperrors.ErrImageTooLarge)
			}
		})
	}

	t.Run("at configured limit", func(t *testing.T) {
		cfg := jxlcoder.DefaultConfig()
		cfg.Decode.MaxPixels = 16
		c, err := jxlcoder.New(cfg)
		require.NoError(t, err)
		_, out := encodeLossless(t, c, 4, 4)
		_, err = c.Decode(context.Background(), c.NewDecodeRequest(out))
		assert.NoError(t, err)
	})
}

func TestContextCancel(t *testing.T) {
	c := newCoder(t)
	_, out := encodeLossless(t, c, 4, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Decode(ctx, core.DecodeRequest{Data: out})
	assert.ErrorIs(t, err, context.Canceled)
}

// ── Concurrency ───────────────────────────────────────────────────────────────

func TestConcurrentSafety(t *testing.T) {
	c := newCoder(t)
	_, out := encodeLossless(t, c, 16, 16)

	const goroutines = 20
	var wg sync.WaitGroup
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res, err := c.Decode(context.Background(), c.NewDecodeRequest(out))
			if err == nil {
				_, err = c.Encode(context.Background(),
					c.NewEncodeRequest(res.Pixels, res.Width, res.Height, jxlcoder.LayoutRGBA, jxlcoder.Lossy))
			}
			errs[idx] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "goroutine %d", i)
	}
}

func TestDecodeBatch(t *testing.T) {
	c := newCoder(t)
	_, out := encodeLossless(t, c, 4, 4)

	reqs := []core.DecodeRequest{
		{Data: out},
		{Data: []byte{0x01, 0x02}},
		{Data: out, PixelFormat: jxlcoder.PixelFormat16},
	}
	results := c.DecodeBatch(context.Background(), reqs)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	require.NoError(t, results[2].Err)
	assert.True(t, results[2].Result.HighPrecision)
}

// ── Hooks / metrics ───────────────────────────────────────────────────────────

func TestMetrics(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	c := newCoder(t)
	c.SetMetrics(m)

	_, out := encodeLossless(t, c, 4, 4)
	_, err := c.Decode(context.Background(), core.DecodeRequest{Data: out})
	require.NoError(t, err)
	_, err = c.Decode(context.Background(), core.DecodeRequest{Data: out[:len(out)/2]})
	require.Error(t, err)

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.OpCalls[core.OpEncode])
	assert.Equal(t, int64(2), snap.OpCalls[core.OpDecode])
	assert.Equal(t, int64(1), snap.OpErrors[core.OpDecode])
	assert.Equal(t, int64(1), snap.ErrorCategories[string(apperrors.CategoryMalformedInput)])
}

// ── Benchmarks ────────────────────────────────────────────────────────────────

func BenchmarkEncodeLossy_640x480(b *testing.B) {
	c, err := jxlcoder.New(jxlcoder.DefaultConfig())
	require.NoError(b, err)
	req := c.NewEncodeRequest(gradientRGBA(640, 480), 640, 480, jxlcoder.LayoutRGBA, jxlcoder.Lossy)

	b.ReportAllocs()
	b.SetBytes(int64(len(req.Pixels)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Encode(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode_640x480(b *testing.B) {
	c, err := jxlcoder.New(jxlcoder.DefaultConfig())
	require.NoError(b, err)
	out, err := c.Encode(context.Background(),
		c.NewEncodeRequest(gradientRGBA(640, 480), 640, 480, jxlcoder.LayoutRGBA, jxlcoder.Lossless))
	require.NoError(b, err)

	b.ReportAllocs()
	b.SetBytes(int64(len(out)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Decode(context.Background(), core.DecodeRequest{Data: out}); err != nil {
			b.Fatal(err)
		}
	}
}
