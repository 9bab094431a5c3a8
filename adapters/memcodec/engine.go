// Package memcodec is a pure-Go codec engine speaking the same incremental
// protocol as libjxl.  It stores images in its own zstd-backed container and
// lets the bridge run, and be tested, without the C library.
package memcodec

import (
	"bytes"
	"runtime"

	"github.com/Skryldev/jxl-coder/core"
)

// Name is the registry name of this engine.
const Name = "memcodec"

// Magic opens every memcodec stream.
var Magic = []byte{0x8A, 'M', 'E', 'M', 'C', 0x0D, 0x0A, 0x1A}

// pixelsPerThread is the image area handled by one decode worker.
const pixelsPerThread = 256 * 256

// Engine implements core.Engine.  It is stateless and safe for concurrent use.
type Engine struct{}

// New returns the engine.
func New() *Engine { return &Engine{} }

func (*Engine) Name() string { return Name }

func (*Engine) NewDecoder() (core.DecoderEngine, error) { return newDecoder(), nil }

func (*Engine) NewEncoder() (core.EncoderEngine, error) { return newEncoder(), nil }

// CheckSignature recognises the memcodec magic as a private stream; a prefix
// of it is reported as not enough bytes.  JPEG XL streams are invalid here.
func (*Engine) CheckSignature(data []byte) core.Signature {
	if len(data) < len(Magic) {
		if bytes.HasPrefix(Magic, data) {
			return core.SignatureNotEnoughBytes
		}
		return core.SignatureInvalid
	}
	if bytes.Equal(data[:len(Magic)], Magic) {
		return core.SignaturePrivate
	}
	return core.SignatureInvalid
}

// SuggestThreads grows with the image area, bounded by the CPU count.
func (*Engine) SuggestThreads(xsize, ysize uint32) int {
	n := int(uint64(xsize)*uint64(ysize)/pixelsPerThread) + 1
	return min(n, runtime.NumCPU())
}

func (*Engine) DefaultWorkers() int { return runtime.NumCPU() }
