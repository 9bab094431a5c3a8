//go:build libjxl

package libjxl

/*
#cgo pkg-config: libjxl libjxl_threads
#include <stdlib.h>
#include <string.h>
#include <jxl/decode.h>
#include <jxl/encode.h>
#include <jxl/resizable_parallel_runner.h>
#include <jxl/thread_parallel_runner.h>

static JxlDecoderStatus set_decoder_runner(JxlDecoder *dec, void *runner) {
    return JxlDecoderSetParallelRunner(dec, JxlResizableParallelRunner, runner);
}

static JxlEncoderStatus set_encoder_runner(JxlEncoder *enc, void *runner) {
    return JxlEncoderSetParallelRunner(enc, JxlThreadParallelRunner, runner);
}

static JxlEncoderStatus process_output(JxlEncoder *enc, uint8_t *buf, size_t size, size_t *written) {
    uint8_t *next = buf;
    size_t avail = size;
    JxlEncoderStatus status = JxlEncoderProcessOutput(enc, &next, &avail);
    *written = size - avail;
    return status;
}

static JxlEncoderStatus add_box(JxlEncoder *enc, const char *type, const uint8_t *contents, size_t size, int compress) {
    JxlBoxType box;
    memcpy(box, type, sizeof(box));
    return JxlEncoderAddBox(enc, box, contents, size, compress ? JXL_TRUE : JXL_FALSE);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/Skryldev/jxl-coder/core"
)

var errStatus = errors.New("libjxl: call failed")

// Available reports whether the binary was built against libjxl.
func Available() bool { return true }

// Engine implements core.Engine on top of libjxl.
type Engine struct{}

// New returns the libjxl engine.
func New() (core.Engine, error) { return &Engine{}, nil }

func (*Engine) Name() string { return Name }

func (*Engine) NewDecoder() (core.DecoderEngine, error) {
	dec := C.JxlDecoderCreate(nil)
	if dec == nil {
		return nil, fmt.Errorf("%w: JxlDecoderCreate", errStatus)
	}
	runner := C.JxlResizableParallelRunnerCreate(nil)
	if runner == nil {
		C.JxlDecoderDestroy(dec)
		return nil, fmt.Errorf("%w: JxlResizableParallelRunnerCreate", errStatus)
	}
	if C.set_decoder_runner(dec, runner) != C.JXL_DEC_SUCCESS {
		C.JxlResizableParallelRunnerDestroy(runner)
		C.JxlDecoderDestroy(dec)
		return nil, fmt.Errorf("%w: JxlDecoderSetParallelRunner", errStatus)
	}
	return &decoder{dec: dec, runner: runner}, nil
}

func (*Engine) NewEncoder() (core.EncoderEngine, error) {
	enc := C.JxlEncoderCreate(nil)
	if enc == nil {
		return nil, fmt.Errorf("%w: JxlEncoderCreate", errStatus)
	}
	return &encoder{enc: enc}, nil
}

func (*Engine) CheckSignature(data []byte) core.Signature {
	var p *C.uint8_t
	if len(data) > 0 {
		p = (*C.uint8_t)(unsafe.Pointer(&data[0]))
	}
	switch C.JxlSignatureCheck(p, C.size_t(len(data))) {
	case C.JXL_SIG_NOT_ENOUGH_BYTES:
		return core.SignatureNotEnoughBytes
	case C.JXL_SIG_CODESTREAM:
		return core.SignatureCodestream
	case C.JXL_SIG_CONTAINER:
		return core.SignatureContainer
	}
	return core.SignatureInvalid
}

func (*Engine) SuggestThreads(xsize, ysize uint32) int {
	return int(C.JxlResizableParallelRunnerSuggestThreads(C.uint64_t(xsize), C.uint64_t(ysize)))
}

func (*Engine) DefaultWorkers() int {
	return int(C.JxlThreadParallelRunnerDefaultNumWorkerThreads())
}

func jxlBool(b bool) C.JXL_BOOL {
	if b {
		return C.JXL_TRUE
	}
	return C.JXL_FALSE
}

func dataType(dt core.DataType) C.JxlDataType {
	switch dt {
	case core.Uint16:
		return C.JXL_TYPE_UINT16
	case core.Float16:
		return C.JXL_TYPE_FLOAT16
	case core.Float32:
		return C.JXL_TYPE_FLOAT
	}
	return C.JXL_TYPE_UINT8
}

func pixelFormat(l core.PixelLayout) C.JxlPixelFormat {
	return C.JxlPixelFormat{
		num_channels: C.uint32_t(l.NumChannels),
		data_type:    dataType(l.DataType),
		endianness:   C.JXL_NATIVE_ENDIAN,
		align:        0,
	}
}

// decoder owns C copies of the input and the output buffer: libjxl keeps
// both pointers across ProcessInput calls.
type decoder struct {
	dec    *C.JxlDecoder
	runner unsafe.Pointer

	in     unsafe.Pointer
	out    unsafe.Pointer
	outLen int
	dst    []byte
}

func decErr(call string, s C.JxlDecoderStatus) error {
	if s == C.JXL_DEC_SUCCESS {
		return nil
	}
	return fmt.Errorf("%w: %s returned %d", errStatus, call, int(s))
}

func (d *decoder) SubscribeEvents(events core.Event) error {
	var mask C.int
	if events&core.EventBasicInfo != 0 {
		mask |= C.JXL_DEC_BASIC_INFO
	}
	if events&core.EventColorEncoding != 0 {
		mask |= C.JXL_DEC_COLOR_ENCODING
	}
	if events&core.EventFullImage != 0 {
		mask |= C.JXL_DEC_FULL_IMAGE
	}
	return decErr("JxlDecoderSubscribeEvents", C.JxlDecoderSubscribeEvents(d.dec, mask))
}

func (d *decoder) SetParallelism(workers int) error {
	C.JxlResizableParallelRunnerSetThreads(d.runner, C.size_t(max(1, workers)))
	return nil
}

func (d *decoder) SetUnpremultiplyAlpha(on bool) error {
	return decErr("JxlDecoderSetUnpremultiplyAlpha", C.JxlDecoderSetUnpremultiplyAlpha(d.dec, jxlBool(on)))
}

func (d *decoder) SetInput(data []byte) error {
	if d.in != nil {
		C.JxlDecoderReleaseInput(d.dec)
		C.free(d.in)
	}
	d.in = C.CBytes(data)
	return decErr("JxlDecoderSetInput",
		C.JxlDecoderSetInput(d.dec, (*C.uint8_t)(d.in), C.size_t(len(data))))
}

func (d *decoder) CloseInput() { C.JxlDecoderCloseInput(d.dec) }

func (d *decoder) ProcessInput() core.DecoderStatus {
	switch C.JxlDecoderProcessInput(d.dec) {
	case C.JXL_DEC_SUCCESS:
		return core.DecoderSuccess
	case C.JXL_DEC_ERROR:
		return core.DecoderError
	case C.JXL_DEC_NEED_MORE_INPUT:
		return core.DecoderNeedMoreInput
	case C.JXL_DEC_BASIC_INFO:
		return core.DecoderBasicInfo
	case C.JXL_DEC_COLOR_ENCODING:
		return core.DecoderColorEncoding
	case C.JXL_DEC_NEED_IMAGE_OUT_BUFFER:
		return core.DecoderNeedImageOutBuffer
	case C.JXL_DEC_FULL_IMAGE:
		if d.out != nil {
			copy(d.dst, unsafe.Slice((*byte)(d.out), d.outLen))
		}
		return core.DecoderFullImage
	}
	return core.DecoderUnknown
}

func (d *decoder) BasicInfo() (core.BasicInfo, error) {
	var info C.JxlBasicInfo
	if err := decErr("JxlDecoderGetBasicInfo", C.JxlDecoderGetBasicInfo(d.dec, &info)); err != nil {
		return core.BasicInfo{}, err
	}
	return core.BasicInfo{
		Xsize:                 uint32(info.xsize),
		Ysize:                 uint32(info.ysize),
		BitsPerSample:         uint32(info.bits_per_sample),
		ExponentBitsPerSample: uint32(info.exponent_bits_per_sample),
		NumColorChannels:      uint32(info.num_color_channels),
		NumExtraChannels:      uint32(info.num_extra_channels),
		AlphaBits:             uint32(info.alpha_bits),
		AlphaExponentBits:     uint32(info.alpha_exponent_bits),
		AlphaPremultiplied:    info.alpha_premultiplied == C.JXL_TRUE,
		UsesOriginalProfile:   info.uses_original_profile == C.JXL_TRUE,
		HaveAnimation:         info.have_animation == C.JXL_TRUE,
		Orientation:           core.Orientation(info.orientation),
	}, nil
}

func (d *decoder) ICCProfileSize() (int, error) {
	var size C.size_t
	err := decErr("JxlDecoderGetICCProfileSize",
		C.JxlDecoderGetICCProfileSize(d.dec, C.JXL_COLOR_PROFILE_TARGET_DATA, &size))
	return int(size), err
}

func (d *decoder) ICCProfile(dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	return decErr("JxlDecoderGetColorAsICCProfile",
		C.JxlDecoderGetColorAsICCProfile(d.dec, C.JXL_COLOR_PROFILE_TARGET_DATA,
			(*C.uint8_t)(unsafe.Pointer(&dst[0])), C.size_t(len(dst))))
}

func (d *decoder) ImageOutBufferSize(layout core.PixelLayout) (int, error) {
	format := pixelFormat(layout)
	var size C.size_t
	err := decErr("JxlDecoderImageOutBufferSize", C.JxlDecoderImageOutBufferSize(d.dec, &format, &size))
	return int(size), err
}

// SetImageOutBuffer registers a C buffer of len(buf) bytes with libjxl; its
// contents are copied into buf when the frame completes.
func (d *decoder) SetImageOutBuffer(layout core.PixelLayout, buf []byte) error {
	if d.out == nil || d.outLen != len(buf) {
		if d.out != nil {
			C.free(d.out)
		}
		d.out = C.malloc(C.size_t(len(buf)))
		if d.out == nil {
			return fmt.Errorf("%w: malloc %d bytes", errStatus, len(buf))
		}
		d.outLen = len(buf)
	}
	d.dst = buf
	format := pixelFormat(layout)
	return decErr("JxlDecoderSetImageOutBuffer",
		C.JxlDecoderSetImageOutBuffer(d.dec, &format, d.out, C.size_t(d.outLen)))
}

func (d *decoder) Close() {
	if d.dec != nil {
		C.JxlDecoderDestroy(d.dec)
		d.dec = nil
	}
	if d.runner != nil {
		C.JxlResizableParallelRunnerDestroy(d.runner)
		d.runner = nil
	}
	if d.in != nil {
		C.free(d.in)
		d.in = nil
	}
	if d.out != nil {
		C.free(d.out)
		d.out = nil
	}
	d.dst = nil
}

type encoder struct {
	enc    *C.JxlEncoder
	runner unsafe.Pointer
}

func (e *encoder) encErr(call string, s C.JxlEncoderStatus) error {
	if s == C.JXL_ENC_SUCCESS {
		return nil
	}
	return fmt.Errorf("%w: %s: encoder error %d", errStatus, call, int(C.JxlEncoderGetError(e.enc)))
}

func (e *encoder) SetParallelism(workers int) error {
	if e.runner != nil {
		return fmt.Errorf("%w: parallel runner already set", errStatus)
	}
	e.runner = C.JxlThreadParallelRunnerCreate(nil, C.size_t(max(1, workers)))
	if e.runner == nil {
		return fmt.Errorf("%w: JxlThreadParallelRunnerCreate", errStatus)
	}
	return e.encErr("JxlEncoderSetParallelRunner", C.set_encoder_runner(e.enc, e.runner))
}

func (e *encoder) SetBasicInfo(info core.BasicInfo) error {
	var bi C.JxlBasicInfo
	C.JxlEncoderInitBasicInfo(&bi)
	bi.xsize = C.uint32_t(info.Xsize)
	bi.ysize = C.uint32_t(info.Ysize)
	bi.bits_per_sample = C.uint32_t(info.BitsPerSample)
	bi.exponent_bits_per_sample = C.uint32_t(info.ExponentBitsPerSample)
	bi.num_color_channels = C.uint32_t(info.NumColorChannels)
	bi.num_extra_channels = C.uint32_t(info.NumExtraChannels)
	bi.alpha_bits = C.uint32_t(info.AlphaBits)
	bi.alpha_exponent_bits = C.uint32_t(info.AlphaExponentBits)
	bi.alpha_premultiplied = jxlBool(info.AlphaPremultiplied)
	bi.uses_original_profile = jxlBool(info.UsesOriginalProfile)
	bi.have_animation = jxlBool(info.HaveAnimation)
	bi.orientation = C.JxlOrientation(info.Orientation)
	return e.encErr("JxlEncoderSetBasicInfo", C.JxlEncoderSetBasicInfo(e.enc, &bi))
}

func (e *encoder) SetExtraChannelInfo(index int, info core.ExtraChannelInfo) error {
	if info.Type != core.ExtraChannelAlpha {
		return fmt.Errorf("%w: extra channel type %d", errStatus, info.Type)
	}
	var ec C.JxlExtraChannelInfo
	C.JxlEncoderInitExtraChannelInfo(C.JXL_CHANNEL_ALPHA, &ec)
	ec.bits_per_sample = C.uint32_t(info.BitsPerSample)
	ec.exponent_bits_per_sample = C.uint32_t(info.ExponentBitsPerSample)
	ec.alpha_premultiplied = jxlBool(info.AlphaPremultiplied)
	return e.encErr("JxlEncoderSetExtraChannelInfo", C.JxlEncoderSetExtraChannelInfo(e.enc, C.size_t(index), &ec))
}

func (e *encoder) SetColorEncoding(enc core.ColorEncoding) error {
	var ce C.JxlColorEncoding
	if enc.IsSRGB() {
		C.JxlColorEncodingSetToSRGB(&ce, jxlBool(enc.ColorSpace == core.ColorSpaceGray))
	} else {
		ce.color_space = C.JXL_COLOR_SPACE_RGB
		if enc.ColorSpace == core.ColorSpaceGray {
			ce.color_space = C.JXL_COLOR_SPACE_GRAY
		}
		ce.white_point = C.JXL_WHITE_POINT_D65
		switch enc.Primaries {
		case core.ColorPrimariesP3:
			ce.primaries = C.JXL_PRIMARIES_P3
		case core.ColorPrimaries2100:
			ce.primaries = C.JXL_PRIMARIES_2100
		default:
			ce.primaries = C.JXL_PRIMARIES_SRGB
		}
		switch enc.Transfer {
		case core.TransferCurveLinear:
			ce.transfer_function = C.JXL_TRANSFER_FUNCTION_LINEAR
		case core.TransferCurvePQ:
			ce.transfer_function = C.JXL_TRANSFER_FUNCTION_PQ
		case core.TransferCurveHLG:
			ce.transfer_function = C.JXL_TRANSFER_FUNCTION_HLG
		default:
			ce.transfer_function = C.JXL_TRANSFER_FUNCTION_SRGB
		}
		ce.rendering_intent = C.JXL_RENDERING_INTENT_PERCEPTUAL
		if enc.RenderingIntent == core.RenderingIntentRelative {
			ce.rendering_intent = C.JXL_RENDERING_INTENT_RELATIVE
		}
	}
	return e.encErr("JxlEncoderSetColorEncoding", C.JxlEncoderSetColorEncoding(e.enc, &ce))
}

func (e *encoder) SetICCProfile(icc []byte) error {
	if len(icc) == 0 {
		return fmt.Errorf("%w: empty ICC profile", errStatus)
	}
	return e.encErr("JxlEncoderSetICCProfile",
		C.JxlEncoderSetICCProfile(e.enc, (*C.uint8_t)(unsafe.Pointer(&icc[0])), C.size_t(len(icc))))
}

func (e *encoder) UseBoxes() error {
	return e.encErr("JxlEncoderUseBoxes", C.JxlEncoderUseBoxes(e.enc))
}

func (e *encoder) AddBox(typ core.BoxType, contents []byte, compress bool) error {
	var p *C.uint8_t
	if len(contents) > 0 {
		p = (*C.uint8_t)(unsafe.Pointer(&contents[0]))
	}
	var c C.int
	if compress {
		c = 1
	}
	return e.encErr("JxlEncoderAddBox",
		C.add_box(e.enc, (*C.char)(unsafe.Pointer(&typ[0])), p, C.size_t(len(contents)), c))
}

func (e *encoder) NewFrameSettings() (core.FrameSettings, error) {
	fs := C.JxlEncoderFrameSettingsCreate(e.enc, nil)
	if fs == nil {
		return nil, fmt.Errorf("%w: JxlEncoderFrameSettingsCreate", errStatus)
	}
	return &frameSettings{e: e, fs: fs}, nil
}

func (e *encoder) CloseInput() { C.JxlEncoderCloseInput(e.enc) }

func (e *encoder) ProcessOutput(dst []byte) (int, core.EncoderStatus) {
	if len(dst) == 0 {
		return 0, core.EncoderNeedMoreOutput
	}
	var written C.size_t
	status := C.process_output(e.enc, (*C.uint8_t)(unsafe.Pointer(&dst[0])), C.size_t(len(dst)), &written)
	switch status {
	case C.JXL_ENC_SUCCESS:
		return int(written), core.EncoderSuccess
	case C.JXL_ENC_NEED_MORE_OUTPUT:
		return int(written), core.EncoderNeedMoreOutput
	}
	return int(written), core.EncoderError
}

func (e *encoder) Close() {
	if e.enc != nil {
		C.JxlEncoderDestroy(e.enc)
		e.enc = nil
	}
	if e.runner != nil {
		C.JxlThreadParallelRunnerDestroy(e.runner)
		e.runner = nil
	}
}

// frameSettings is owned by its encoder and freed with it.
type frameSettings struct {
	e  *encoder
	fs *C.JxlEncoderFrameSettings
}

func (f *frameSettings) SetBitDepth(depth core.BitDepth) error {
	var bd C.JxlBitDepth
	switch depth.Type {
	case core.BitDepthFromCodestream:
		bd._type = C.JXL_BIT_DEPTH_FROM_CODESTREAM
	case core.BitDepthCustom:
		bd._type = C.JXL_BIT_DEPTH_CUSTOM
	default:
		bd._type = C.JXL_BIT_DEPTH_FROM_PIXEL_FORMAT
	}
	bd.bits_per_sample = C.uint32_t(depth.BitsPerSample)
	bd.exponent_bits_per_sample = C.uint32_t(depth.ExponentBitsPerSample)
	return f.e.encErr("JxlEncoderSetFrameBitDepth", C.JxlEncoderSetFrameBitDepth(f.fs, &bd))
}

func (f *frameSettings) SetLossless(lossless bool) error {
	return f.e.encErr("JxlEncoderSetFrameLossless", C.JxlEncoderSetFrameLossless(f.fs, jxlBool(lossless)))
}

func (f *frameSettings) SetOption(opt core.FrameSetting, value int) error {
	id := C.JxlEncoderFrameSettingId(C.JXL_ENC_FRAME_SETTING_EFFORT)
	if opt == core.FrameSettingDecodingSpeed {
		id = C.JXL_ENC_FRAME_SETTING_DECODING_SPEED
	}
	return f.e.encErr("JxlEncoderFrameSettingsSetOption",
		C.JxlEncoderFrameSettingsSetOption(f.fs, id, C.int64_t(value)))
}

func (f *frameSettings) SetDistance(distance float32) error {
	return f.e.encErr("JxlEncoderSetFrameDistance", C.JxlEncoderSetFrameDistance(f.fs, C.float(distance)))
}

func (f *frameSettings) SetExtraChannelDistance(index int, distance float32) error {
	return f.e.encErr("JxlEncoderSetExtraChannelDistance",
		C.JxlEncoderSetExtraChannelDistance(f.fs, C.size_t(index), C.float(distance)))
}

func (f *frameSettings) AddImageFrame(layout core.PixelLayout, pixels []byte) error {
	if len(pixels) == 0 {
		return fmt.Errorf("%w: empty frame", errStatus)
	}
	format := pixelFormat(layout)
	return f.e.encErr("JxlEncoderAddImageFrame",
		C.JxlEncoderAddImageFrame(f.fs, &format, unsafe.Pointer(&pixels[0]), C.size_t(len(pixels))))
}
