package memcodec

import (
	"errors"
	"fmt"

	"github.com/Skryldev/jxl-coder/core"
)

var (
	errNoHeader    = errors.New("memcodec: basic info not decoded yet")
	errNoICC       = errors.New("memcodec: image has no embedded ICC profile")
	errShortBuffer = errors.New("memcodec: buffer too small")
	errBadOutput   = errors.New("memcodec: unsupported output layout")
	errSubscribed  = errors.New("memcodec: events already subscribed")
)

// decoder emits the subscribed events in stream order: basic info, colour
// encoding, then the image.  It reports success once the last subscribed
// event has been delivered.
type decoder struct {
	events        core.Event
	started       bool
	workers       int
	unpremultiply bool

	data   []byte
	closed bool

	hdr     *header
	payload int

	emitted core.Event
	layout  core.PixelLayout
	out     []byte
}

func newDecoder() *decoder { return &decoder{workers: 1} }

func (d *decoder) SubscribeEvents(events core.Event) error {
	if d.started {
		return errSubscribed
	}
	d.events = events
	return nil
}

func (d *decoder) SetParallelism(workers int) error {
	if workers < 0 {
		return fmt.Errorf("%w: workers %d", errOutOfRange, workers)
	}
	d.workers = max(1, workers)
	return nil
}

func (d *decoder) SetUnpremultiplyAlpha(on bool) error {
	d.unpremultiply = on
	return nil
}

func (d *decoder) SetInput(data []byte) error {
	if d.closed {
		return errInputClosed
	}
	d.data = data
	return nil
}

func (d *decoder) CloseInput() { d.closed = true }

func (d *decoder) ProcessInput() core.DecoderStatus {
	d.started = true
	if d.data == nil {
		return core.DecoderError
	}
	if d.hdr == nil {
		h, off, err := parseHeader(d.data)
		switch {
		case errors.Is(err, errTruncated):
			return core.DecoderNeedMoreInput
		case err != nil:
			return core.DecoderError
		}
		d.hdr, d.payload = h, off
	}

	if d.pending(core.EventBasicInfo) {
		return core.DecoderBasicInfo
	}
	if d.pending(core.EventColorEncoding) {
		return core.DecoderColorEncoding
	}
	if d.events&core.EventFullImage != 0 && d.emitted&core.EventFullImage == 0 {
		if d.out == nil {
			return core.DecoderNeedImageOutBuffer
		}
		if err := d.decodePixels(); err != nil {
			if errors.Is(err, errTruncated) {
				return core.DecoderNeedMoreInput
			}
			return core.DecoderError
		}
		d.emitted |= core.EventFullImage
		return core.DecoderFullImage
	}
	return core.DecoderSuccess
}

// pending marks ev as emitted and reports whether it was still owed.
func (d *decoder) pending(ev core.Event) bool {
	if d.events&ev == 0 || d.emitted&ev != 0 {
		return false
	}
	d.emitted |= ev
	return true
}

func (d *decoder) BasicInfo() (core.BasicInfo, error) {
	if d.hdr == nil {
		return core.BasicInfo{}, errNoHeader
	}
	return d.hdr.info, nil
}

func (d *decoder) ICCProfileSize() (int, error) {
	if d.hdr == nil {
		return 0, errNoHeader
	}
	if !d.hdr.hasICC() {
		return 0, errNoICC
	}
	return len(d.hdr.icc), nil
}

func (d *decoder) ICCProfile(dst []byte) error {
	n, err := d.ICCProfileSize()
	if err != nil {
		return err
	}
	if len(dst) < n {
		return fmt.Errorf("%w: %d bytes, need %d", errShortBuffer, len(dst), n)
	}
	copy(dst, d.hdr.icc)
	return nil
}

func (d *decoder) ImageOutBufferSize(layout core.PixelLayout) (int, error) {
	if d.hdr == nil {
		return 0, errNoHeader
	}
	if layout.NumChannels < 1 || layout.NumChannels > 4 || layout.DataType > core.Float32 {
		return 0, fmt.Errorf("%w: %+v", errBadOutput, layout)
	}
	return layout.Size(d.hdr.info.Xsize, d.hdr.info.Ysize), nil
}

// SetImageOutBuffer accepts any buffer at least as large as the layout
// requires.
func (d *decoder) SetImageOutBuffer(layout core.PixelLayout, buf []byte) error {
	n, err := d.ImageOutBufferSize(layout)
	if err != nil {
		return err
	}
	if len(buf) < n {
		return fmt.Errorf("%w: %d bytes, need %d", errShortBuffer, len(buf), n)
	}
	d.layout, d.out = layout, buf
	return nil
}

func (d *decoder) decodePixels() error {
	compressed, err := payload(d.data, d.payload)
	if err != nil {
		return err
	}
	h := d.hdr
	size, _ := h.storedSize()
	pixels, err := decompressZstd(compressed, size)
	if err != nil {
		return err
	}

	colour := int(h.info.NumColorChannels)
	dstColour, dstAlpha := d.layout.NumChannels, false
	if dstColour == 2 || dstColour == 4 {
		dstColour, dstAlpha = dstColour-1, true
	}
	cv := converter{
		width:         int(h.info.Xsize),
		height:        int(h.info.Ysize),
		src:           newSampleCodec(h.stored.DataType, streamOrder, h.info.BitsPerSample),
		srcColour:     colour,
		srcAlpha:      h.info.NumExtraChannels == 1,
		dst:           newSampleCodec(d.layout.DataType, hostOrder, 0),
		dstColour:     dstColour,
		dstAlpha:      dstAlpha,
		unpremultiply: d.unpremultiply && h.info.AlphaPremultiplied,
	}
	cv.run(pixels, d.out, d.workers)
	return nil
}

func (d *decoder) Close() {
	d.data, d.out, d.hdr = nil, nil, nil
}
