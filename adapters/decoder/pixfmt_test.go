package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skryldev/jxl-coder/core"
)

func TestResolvePixelFormat(t *testing.T) {
	tests := []struct {
		name     string
		policy   core.PixelFormat
		bits     uint32
		color    uint32
		extra    uint32
		want     core.PixelLayout
		high     bool
		reported int
	}{
		{"optimal 8", core.PixelFormatOptimal, 8, 3, 0, core.PixelLayout{NumChannels: 3, DataType: core.Uint8}, false, 8},
		{"optimal 12", core.PixelFormatOptimal, 12, 3, 0, core.PixelLayout{NumChannels: 3, DataType: core.Uint16}, true, 12},
		{"optimal float32 alpha", core.PixelFormatOptimal, 32, 3, 1, core.PixelLayout{NumChannels: 4, DataType: core.Uint16}, true, 32},
		{"force16 8", core.PixelFormat16, 8, 3, 0, core.PixelLayout{NumChannels: 3, DataType: core.Uint16}, true, 8},
		{"force8 16", core.PixelFormat8, 16, 3, 2, core.PixelLayout{NumChannels: 4, DataType: core.Uint8}, false, 8},
		{"grey", core.PixelFormatOptimal, 8, 1, 0, core.PixelLayout{NumChannels: 3, DataType: core.Uint8}, false, 8},
		{"grey alpha", core.PixelFormatOptimal, 8, 1, 1, core.PixelLayout{NumChannels: 4, DataType: core.Uint8}, false, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ResolvePixelFormat(tt.policy, core.BasicInfo{
				BitsPerSample:    tt.bits,
				NumColorChannels: tt.color,
				NumExtraChannels: tt.extra,
			})
			assert.Equal(t, tt.want, f.Layout)
			assert.Equal(t, tt.high, f.HighPrecision)
			assert.Equal(t, tt.reported, f.BitDepth)
		})
	}
}
