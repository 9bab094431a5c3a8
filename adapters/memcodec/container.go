package memcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/Skryldev/jxl-coder/core"
	"github.com/Skryldev/jxl-coder/utils"
)

const formatVersion = 1

const (
	flagOriginalProfile = 1 << iota
	flagPremultiplied
	flagLossless
)

const (
	colourEncoding = 0
	colourICC      = 1
)

var (
	// errTruncated means the stream ends before the structure being read.
	errTruncated = errors.New("memcodec: truncated stream")
	errBadMagic  = errors.New("memcodec: bad magic")
	errCorrupt   = errors.New("memcodec: corrupt stream")
)

type box struct {
	typ        core.BoxType
	compressed bool
	contents   []byte
}

// MaxPixels is the largest image area the container accepts.
const MaxPixels = 1 << 32

// unsizedFrameCap is the initial output capacity for a zstd frame that does
// not declare its content size.
const unsizedFrameCap = 64 << 10

// header is everything that precedes the pixel payload.
type header struct {
	info     core.BasicInfo
	lossless bool
	stored   core.PixelLayout
	icc      []byte
	colour   core.ColorEncoding
	boxes    []box
}

func (h *header) hasICC() bool { return h.icc != nil }

// append serialises h followed by the compressed payload.
func (h *header) append(dst, payload []byte) []byte {
	le := binary.LittleEndian
	dst = append(dst, Magic...)
	dst = append(dst, formatVersion)
	dst = le.AppendUint32(dst, h.info.Xsize)
	dst = le.AppendUint32(dst, h.info.Ysize)
	dst = append(dst,
		byte(h.info.BitsPerSample), byte(h.info.ExponentBitsPerSample),
		byte(h.info.NumColorChannels), byte(h.info.NumExtraChannels),
		byte(h.info.AlphaBits), byte(h.info.AlphaExponentBits))

	var flags byte
	if h.info.UsesOriginalProfile {
		flags |= flagOriginalProfile
	}
	if h.info.AlphaPremultiplied {
		flags |= flagPremultiplied
	}
	if h.lossless {
		flags |= flagLossless
	}
	dst = append(dst, flags, byte(h.info.Orientation), byte(h.stored.DataType), byte(h.stored.NumChannels))

	if h.hasICC() {
		dst = append(dst, colourICC)
		dst = le.AppendUint32(dst, uint32(len(h.icc)))
		dst = append(dst, h.icc...)
	} else {
		c := h.colour
		dst = append(dst, colourEncoding,
			byte(c.ColorSpace), byte(c.WhitePoint), byte(c.Primaries), byte(c.Transfer), byte(c.RenderingIntent))
	}

	dst = append(dst, byte(len(h.boxes)))
	for _, b := range h.boxes {
		dst = append(dst, b.typ[:]...)
		if b.compressed {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
		dst = le.AppendUint32(dst, uint32(len(b.contents)))
		dst = append(dst, b.contents...)
	}

	dst = le.AppendUint64(dst, uint64(len(payload)))
	return append(dst, payload...)
}

// reader is a sticky-error cursor over a stream.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = errTruncated
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() byte {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// parseHeader reads the header from data and returns it with the offset of
// the payload length field.  errTruncated is returned while data is a
// prefix of a valid header.
func parseHeader(data []byte) (*header, int, error) {
	if len(data) < len(Magic) {
		if (&Engine{}).CheckSignature(data) == core.SignatureNotEnoughBytes {
			return nil, 0, errTruncated
		}
		return nil, 0, errBadMagic
	}
	r := &reader{buf: data}
	if string(r.take(len(Magic))) != string(Magic) {
		return nil, 0, errBadMagic
	}
	if v := r.u8(); r.err == nil && v != formatVersion {
		return nil, 0, fmt.Errorf("%w: version %d", errCorrupt, v)
	}

	h := &header{}
	h.info.Xsize = r.u32()
	h.info.Ysize = r.u32()
	h.info.BitsPerSample = uint32(r.u8())
	h.info.ExponentBitsPerSample = uint32(r.u8())
	h.info.NumColorChannels = uint32(r.u8())
	h.info.NumExtraChannels = uint32(r.u8())
	h.info.AlphaBits = uint32(r.u8())
	h.info.AlphaExponentBits = uint32(r.u8())
	flags := r.u8()
	h.info.UsesOriginalProfile = flags&flagOriginalProfile != 0
	h.info.AlphaPremultiplied = flags&flagPremultiplied != 0
	h.lossless = flags&flagLossless != 0
	h.info.Orientation = core.Orientation(r.u8())
	h.stored.DataType = core.DataType(r.u8())
	h.stored.NumChannels = int(r.u8())

	switch kind := r.u8(); {
	case r.err != nil:
	case kind == colourICC:
		n := r.u32()
		if icc := r.take(int(n)); icc != nil {
			h.icc = append([]byte{}, icc...)
		}
	case kind == colourEncoding:
		b := r.take(5)
		if b != nil {
			h.colour = core.ColorEncoding{
				ColorSpace:      core.ColorSpace(b[0]),
				WhitePoint:      core.WhitePoint(b[1]),
				Primaries:       core.ColorPrimaries(b[2]),
				Transfer:        core.TransferCurve(b[3]),
				RenderingIntent: core.RenderingIntent(b[4]),
			}
		}
	default:
		return nil, 0, fmt.Errorf("%w: colour kind %d", errCorrupt, kind)
	}

	count := int(r.u8())
	for i := 0; i < count && r.err == nil; i++ {
		var b box
		copy(b.typ[:], r.take(4))
		b.compressed = r.u8() == 1
		n := r.u32()
		if c := r.take(int(n)); c != nil {
			b.contents = c
		}
		h.boxes = append(h.boxes, b)
	}
	if r.err != nil {
		return nil, 0, r.err
	}
	if err := h.validate(); err != nil {
		return nil, 0, err
	}
	return h, r.off, nil
}

// validate checks the decoded header for internal consistency.
func (h *header) validate() error {
	i := h.info
	switch {
	case i.Xsize == 0 || i.Ysize == 0:
		return fmt.Errorf("%w: empty image", errCorrupt)
	case uint64(i.Xsize)*uint64(i.Ysize) > MaxPixels:
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", errCorrupt, i.Xsize, i.Ysize, uint64(MaxPixels))
	case i.NumColorChannels != 1 && i.NumColorChannels != 3:
		return fmt.Errorf("%w: %d colour channels", errCorrupt, i.NumColorChannels)
	case i.NumExtraChannels > 1:
		return fmt.Errorf("%w: %d extra channels", errCorrupt, i.NumExtraChannels)
	case h.stored.NumChannels != int(i.NumColorChannels+i.NumExtraChannels):
		return fmt.Errorf("%w: stored channel count %d", errCorrupt, h.stored.NumChannels)
	case h.stored.DataType > core.Float32:
		return fmt.Errorf("%w: stored type %d", errCorrupt, h.stored.DataType)
	}
	if _, ok := h.storedSize(); !ok {
		return fmt.Errorf("%w: image too large", errCorrupt)
	}
	return nil
}

// storedSize is the uncompressed payload size, with overflow checking.
func (h *header) storedSize() (int, bool) {
	return utils.BufferSize(int(h.info.Xsize), int(h.info.Ysize), h.stored.NumChannels, h.stored.DataType.BytesPerSample())
}

// payload returns the compressed pixel payload that follows the header.
func payload(data []byte, off int) ([]byte, error) {
	r := &reader{buf: data, off: off}
	n := r.u64()
	if r.err != nil {
		return nil, r.err
	}
	if n > uint64(len(data)) {
		return nil, errTruncated
	}
	p := r.take(int(n))
	return p, r.err
}

// zstd coders are pooled per level; each is single-threaded and reused for
// whole-buffer EncodeAll/DecodeAll calls.
var (
	zstdEncPools sync.Map // zstd.EncoderLevel -> *sync.Pool
	zstdDecPool  = sync.Pool{New: func() any { return mustNewZstdDecoder() }}
)

func mustNewZstdEncoder(level zstd.EncoderLevel) *zstd.Encoder {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(level),
		zstd.WithLowerEncoderMem(true),
	)
	if err != nil {
		panic(err)
	}
	return enc
}

func mustNewZstdDecoder() *zstd.Decoder {
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
	)
	if err != nil {
		panic(err)
	}
	return dec
}

func encoderPool(level zstd.EncoderLevel) *sync.Pool {
	if p, ok := zstdEncPools.Load(level); ok {
		return p.(*sync.Pool)
	}
	p, _ := zstdEncPools.LoadOrStore(level, &sync.Pool{
		New: func() any { return mustNewZstdEncoder(level) },
	})
	return p.(*sync.Pool)
}

func compressZstd(data []byte, level zstd.EncoderLevel) []byte {
	pool := encoderPool(level)
	enc := pool.Get().(*zstd.Encoder)
	defer pool.Put(enc)
	return enc.EncodeAll(data, nil)
}

// decompressZstd decodes data and requires exactly want bytes of output.
// A declared frame content size must equal want before the output is
// allocated.  Frames without one (payloads under 256 bytes) grow from a
// small buffer.
func decompressZstd(data []byte, want int) ([]byte, error) {
	var fh zstd.Header
	if err := fh.Decode(data); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	capHint := want
	if fh.HasFCS {
		if fh.FrameContentSize != uint64(want) {
			return nil, fmt.Errorf("%w: frame declares %d bytes, want %d", errCorrupt, fh.FrameContentSize, want)
		}
	} else {
		capHint = min(want, unsizedFrameCap)
	}
	dec := zstdDecPool.Get().(*zstd.Decoder)
	defer zstdDecPool.Put(dec)
	out, err := dec.DecodeAll(data, make([]byte, 0, capHint))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if len(out) != want {
		return nil, fmt.Errorf("%w: payload is %d bytes, want %d", errCorrupt, len(out), want)
	}
	return out, nil
}

// effortLevel maps encoder effort onto a zstd level.
func effortLevel(effort int) zstd.EncoderLevel {
	switch {
	case effort <= 2:
		return zstd.SpeedFastest
	case effort <= 5:
		return zstd.SpeedDefault
	case effort <= 7:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}
