package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty backend", func(c *Config) { c.Backend = "" }},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }},
		{"bad pixel format", func(c *Config) { c.Decode.PixelFormat = "r32" }},
		{"bad resampler", func(c *Config) { c.Decode.Resampler = "box" }},
		{"negative max pixels", func(c *Config) { c.Decode.MaxPixels = -1 }},
		{"bad compression", func(c *Config) { c.Encode.Compression = "visually-lossless" }},
		{"effort low", func(c *Config) { c.Encode.Effort = 0 }},
		{"effort high", func(c *Config) { c.Encode.Effort = 10 }},
		{"distance high", func(c *Config) { c.Encode.Distance = 15.5 }},
		{"decoding speed", func(c *Config) { c.Encode.DecodingSpeed = 5 }},
		{"initial output", func(c *Config) { c.Encode.InitialOutputBytes = 0 }},
		{"max below initial", func(c *Config) { c.Encode.MaxOutputBytes = 10 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			assert.Error(t, Validate(c))
		})
	}
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	content := `
backend = "memcodec"
max_image_bytes = 1048576

[decode]
pixel_format = "force-16-bit"
max_pixels = 4096

[encode]
compression = "lossless"
effort = 3
distance = 2.5
allow_icc_fallback = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(1048576), cfg.MaxImageBytes)
	assert.Equal(t, "force-16-bit", cfg.Decode.PixelFormat)
	assert.Equal(t, int64(4096), cfg.Decode.MaxPixels)
	assert.Equal(t, "lossless", cfg.Encode.Compression)
	assert.Equal(t, 3, cfg.Encode.Effort)
	assert.InDelta(t, 2.5, cfg.Encode.Distance, 1e-9)
	assert.True(t, cfg.Encode.AllowICCFallback)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, 64, cfg.Encode.InitialOutputBytes)
	assert.Equal(t, int64(100_000), cfg.Encode.MaxExifBytes)
	assert.True(t, cfg.Decode.UnpremultiplyAlpha)
	assert.Equal(t, int64(DefaultMaxPixels), Default().Decode.MaxPixels)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[encode]\neffort = 12\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestSearchPaths(t *testing.T) {
	paths := searchPaths()
	require.Len(t, paths, 2)
	assert.Equal(t, "jxl-coder.toml", paths[len(paths)-1])
	assert.Equal(t, "config.toml", filepath.Base(paths[0]))
}
