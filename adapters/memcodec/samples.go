package memcodec

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/x448/float16"

	"github.com/Skryldev/jxl-coder/core"
)

// Pixel buffers exchanged with callers use the host byte order; the payload
// inside a stream is little endian.
var (
	hostOrder   binary.ByteOrder = binary.NativeEndian
	streamOrder binary.ByteOrder = binary.LittleEndian
)

// sampleCodec reads and writes one sample as a float64.  Integer samples are
// normalised to [0,1] against max; float samples are stored as-is.
type sampleCodec struct {
	dt    core.DataType
	order binary.ByteOrder
	max   float64
}

// newSampleCodec returns a codec for dt.  bits narrows the integer range for
// inputs that declare fewer significant bits than the container; 0 means the
// full container.
func newSampleCodec(dt core.DataType, order binary.ByteOrder, bits uint32) sampleCodec {
	c := sampleCodec{dt: dt, order: order}
	switch dt {
	case core.Uint8:
		c.max = math.MaxUint8
	case core.Uint16:
		c.max = math.MaxUint16
	}
	if bits > 0 && c.max > 0 && bits < uint32(dt.BytesPerSample()*8) {
		c.max = float64(uint32(1)<<bits - 1)
	}
	return c
}

func (c sampleCodec) read(buf []byte, i int) float64 {
	switch c.dt {
	case core.Uint8:
		return float64(buf[i]) / c.max
	case core.Uint16:
		return float64(c.order.Uint16(buf[2*i:])) / c.max
	case core.Float16:
		return float64(float16.Frombits(c.order.Uint16(buf[2*i:])).Float32())
	default:
		return float64(math.Float32frombits(c.order.Uint32(buf[4*i:])))
	}
}

func (c sampleCodec) write(buf []byte, i int, v float64) {
	switch c.dt {
	case core.Uint8:
		buf[i] = uint8(clampRound(v*c.max, c.max))
	case core.Uint16:
		c.order.PutUint16(buf[2*i:], uint16(clampRound(v*c.max, c.max)))
	case core.Float16:
		c.order.PutUint16(buf[2*i:], float16.Fromfloat32(float32(v)).Bits())
	default:
		c.order.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
	}
}

// quantize coarsens a stored sample in place.  Integers are snapped to a
// step that grows with distance; floats lose low mantissa bits.
func (c sampleCodec) quantize(buf []byte, i int, distance float32) {
	if distance <= 0 {
		return
	}
	shift := min(int(distance+0.5), 8)
	switch c.dt {
	case core.Uint8, core.Uint16:
		if shift == 0 {
			return
		}
		step := float64(int(1) << shift)
		v := c.read(buf, i) * c.max
		c.write(buf, i, math.Round(v/step)*step/c.max)
	case core.Float16:
		mask := ^uint16(1<<shift - 1)
		c.order.PutUint16(buf[2*i:], c.order.Uint16(buf[2*i:])&mask)
	default:
		mask := ^uint32(1<<(2*shift) - 1)
		c.order.PutUint32(buf[4*i:], c.order.Uint32(buf[4*i:])&mask)
	}
}

func clampRound(v, hi float64) float64 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= hi:
		return hi
	}
	return math.Round(v)
}

// storedType picks the payload sample type for the declared bit depth.
func storedType(bits, exponentBits uint32) core.DataType {
	switch {
	case exponentBits >= 8:
		return core.Float32
	case exponentBits > 0:
		return core.Float16
	case bits <= 8:
		return core.Uint8
	default:
		return core.Uint16
	}
}

// rowJob converts one row range of an image.
type rowJob func(y0, y1 int)

// parallelRows splits ysize rows across at most workers goroutines.
func parallelRows(ysize, workers int, job rowJob) {
	workers = max(1, min(workers, ysize))
	if workers == 1 {
		job(0, ysize)
		return
	}
	per := (ysize + workers - 1) / workers
	var wg sync.WaitGroup
	for y0 := 0; y0 < ysize; y0 += per {
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			job(y0, y1)
		}(y0, min(y0+per, ysize))
	}
	wg.Wait()
}

// converter maps pixels between two interleaved layouts.  Grey sources are
// replicated into RGB, missing alpha becomes opaque and surplus alpha is
// dropped.
type converter struct {
	width, height int
	src           sampleCodec
	srcColour     int
	srcAlpha      bool
	dst           sampleCodec
	dstColour     int
	dstAlpha      bool
	// unpremultiply divides colour by alpha.
	unpremultiply bool
}

func (cv converter) srcChannels() int {
	if cv.srcAlpha {
		return cv.srcColour + 1
	}
	return cv.srcColour
}

func (cv converter) dstChannels() int {
	if cv.dstAlpha {
		return cv.dstColour + 1
	}
	return cv.dstColour
}

func (cv converter) run(src, dst []byte, workers int) {
	sc, dc := cv.srcChannels(), cv.dstChannels()
	parallelRows(cv.height, workers, func(y0, y1 int) {
		for p := y0 * cv.width; p < y1*cv.width; p++ {
			si, di := p*sc, p*dc

			alpha := 1.0
			if cv.srcAlpha {
				alpha = cv.src.read(src, si+cv.srcColour)
			}
			for c := 0; c < cv.dstColour; c++ {
				v := cv.src.read(src, si+min(c, cv.srcColour-1))
				if cv.unpremultiply && cv.srcAlpha && alpha > 0 {
					v /= alpha
				}
				cv.dst.write(dst, di+c, v)
			}
			if cv.dstAlpha {
				cv.dst.write(dst, di+cv.dstColour, alpha)
			}
		}
	})
}
