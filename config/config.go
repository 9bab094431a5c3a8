package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const appName = "jxl-coder"

// Backend names.
const (
	BackendMemory = "memcodec"
	BackendLibjxl = "libjxl"
)

// DefaultMaxPixels is 256 megapixels, 1 GiB of 8-bit RGBA output.
const DefaultMaxPixels = 1 << 28

// Config is the top-level configuration struct.  All fields have safe defaults
// so callers can start with Default() and override only what they need.
type Config struct {
	// Backend selects the codec engine by registry name.
	Backend string `koanf:"backend"`

	// Streaming / memory limits.
	MaxImageBytes int64 `koanf:"max_image_bytes"` // 0 = no limit
	ChunkSize     int   `koanf:"chunk_size"`      // reader chunk size in bytes; default 32 KiB

	LogLevel string `koanf:"log_level"` // "debug", "info", "warn", "error"

	Decode DecodeConfig `koanf:"decode"`
	Encode EncodeConfig `koanf:"encode"`
}

// DecodeConfig holds decode defaults.
type DecodeConfig struct {
	PixelFormat        string `koanf:"pixel_format"` // "optimal", "force-8-bit", "force-16-bit"
	UnpremultiplyAlpha bool   `koanf:"unpremultiply_alpha"`
	Resampler          string `koanf:"resampler"` // "bilinear", "catmullrom", "nearest", "lanczos3"
	// MaxPixels bounds width*height of a decoded image; 0 = no limit.
	MaxPixels int64 `koanf:"max_pixels"`
}

// EncodeConfig holds encode defaults and output limits.
type EncodeConfig struct {
	Compression   string  `koanf:"compression"`    // "lossless", "lossy"
	Effort        int     `koanf:"effort"`         // 1-9
	Distance      float64 `koanf:"distance"`       // 0-15
	DecodingSpeed int     `koanf:"decoding_speed"` // 0-4

	InitialOutputBytes int   `koanf:"initial_output_bytes"` // default 64
	MaxOutputBytes     int64 `koanf:"max_output_bytes"`     // 0 = no limit

	// AllowICCFallback makes a rejected ICC profile fall back to the
	// parametric colour description instead of failing the encode.
	AllowICCFallback bool  `koanf:"allow_icc_fallback"`
	CompressBoxes    bool  `koanf:"compress_boxes"`
	MaxExifBytes     int64 `koanf:"max_exif_bytes"`
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		Backend:   BackendMemory,
		ChunkSize: 32 * 1024,
		LogLevel:  "info",
		Decode: DecodeConfig{
			PixelFormat:        "optimal",
			UnpremultiplyAlpha: true,
			Resampler:          "bilinear",
			MaxPixels:          DefaultMaxPixels,
		},
		Encode: EncodeConfig{
			Compression:        "lossy",
			Effort:             7,
			Distance:           1.0,
			DecodingSpeed:      0,
			InitialOutputBytes: 64,
			MaxExifBytes:       100_000,
		},
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.Backend == "" {
		return errors.New("config: backend must be set")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.MaxImageBytes < 0 {
		return errors.New("config: max_image_bytes must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	switch strings.ToLower(c.Decode.PixelFormat) {
	case "", "optimal", "force-8-bit", "force-16-bit", "r8", "r16", "8", "16":
	default:
		return fmt.Errorf("config: unknown decode.pixel_format %q", c.Decode.PixelFormat)
	}
	switch strings.ToLower(c.Decode.Resampler) {
	case "", "bilinear", "catmullrom", "nearest", "lanczos3":
	default:
		return fmt.Errorf("config: unknown decode.resampler %q", c.Decode.Resampler)
	}
	if c.Decode.MaxPixels < 0 {
		return errors.New("config: decode.max_pixels must not be negative")
	}
	e := c.Encode
	switch strings.ToLower(strings.TrimSpace(e.Compression)) {
	case "lossless", "lossy":
	default:
		return fmt.Errorf("config: unknown encode.compression %q", e.Compression)
	}
	if e.Effort < 1 || e.Effort > 9 {
		return errors.New("config: encode.effort must be between 1 and 9")
	}
	if e.Distance < 0 || e.Distance > 15 {
		return errors.New("config: encode.distance must be between 0 and 15")
	}
	if e.DecodingSpeed < 0 || e.DecodingSpeed > 4 {
		return errors.New("config: encode.decoding_speed must be between 0 and 4")
	}
	if e.InitialOutputBytes <= 0 {
		return errors.New("config: encode.initial_output_bytes must be positive")
	}
	if e.MaxOutputBytes < 0 {
		return errors.New("config: encode.max_output_bytes must not be negative")
	}
	if e.MaxOutputBytes > 0 && e.MaxOutputBytes < int64(e.InitialOutputBytes) {
		return errors.New("config: encode.max_output_bytes must be at least initial_output_bytes")
	}
	if e.MaxExifBytes < 0 {
		return errors.New("config: encode.max_exif_bytes must not be negative")
	}
	return nil
}

// Load reads TOML configuration on top of Default().  Files are applied in
// order (last wins): the XDG config file, ./jxl-coder.toml, then any explicit
// paths.  Missing search-path files are skipped; a missing explicit path is an
// error.
func Load(paths ...string) (Config, error) {
	k := koanf.New(".")

	for _, path := range searchPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	for _, path := range paths {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func searchPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/jxl-coder/config.toml
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		// 2. ./jxl-coder.toml (highest priority)
		appName + ".toml",
	}
}
