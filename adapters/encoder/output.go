package encoder

import (
	"math"

	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
)

// DefaultInitialOutput is the starting size of the compressed output buffer.
const DefaultInitialOutput = 64

// outputGrower pulls compressed bytes out of an encoder into a buffer that
// doubles whenever the codec asks for more room.
type outputGrower struct {
	initial int
	max     int64 // 0 = unbounded
}

// drain runs ProcessOutput until a terminal status.  The write cursor is an
// explicit offset into buf, carried across every reallocation.  On success
// the result is truncated to the bytes actually written; on failure nothing
// is returned.
func (g outputGrower) drain(enc core.EncoderEngine) ([]byte, error) {
	size := g.initial
	if size <= 0 {
		size = DefaultInitialOutput
	}
	if g.max > 0 && int64(size) > g.max {
		size = int(g.max)
	}

	buf := make([]byte, size)
	offset := 0
	for {
		n, status := enc.ProcessOutput(buf[offset:])
		if n < 0 || n > len(buf)-offset {
			return nil, apperrors.Newf(apperrors.CategoryBackend, "encode.output", apperrors.ErrEncoderFailed,
				"codec reported %d bytes written into %d", n, len(buf)-offset)
		}
		offset += n

		switch status {
		case core.EncoderSuccess:
			return buf[:offset], nil
		case core.EncoderNeedMoreOutput:
			next, err := g.grow(len(buf))
			if err != nil {
				return nil, err
			}
			grown := make([]byte, next)
			copy(grown, buf[:offset])
			buf = grown
		default:
			return nil, apperrors.New(apperrors.CategoryBackend, "encode.output", apperrors.ErrEncoderFailed)
		}
	}
}

// grow returns the next buffer size: double the current one, clamped to max.
func (g outputGrower) grow(cur int) (int, error) {
	if cur > math.MaxInt/2 {
		return 0, apperrors.Newf(apperrors.CategoryResourceExhausted, "encode.output", apperrors.ErrOutputExhausted,
			"cannot grow past %d bytes", cur)
	}
	next := cur * 2
	if g.max > 0 && int64(next) > g.max {
		if int64(cur) >= g.max {
			return 0, apperrors.Newf(apperrors.CategoryResourceExhausted, "encode.output", apperrors.ErrOutputExhausted,
				"limit %d bytes", g.max)
		}
		next = int(g.max)
	}
	return next, nil
}
