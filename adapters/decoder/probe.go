package decoder

import (
	"context"

	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
)

// Probe reads only the basic info of data.  It subscribes to nothing else,
// so any other status from the codec means the stream is not behaving as a
// header-first image and the probe fails instead of decoding pixels.
func (d *JXL) Probe(ctx context.Context, data []byte) (width, height int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, apperrors.Wrap(apperrors.CategoryInput, "probe", err)
	}
	if len(data) == 0 {
		return 0, 0, apperrors.New(apperrors.CategoryInput, "probe", apperrors.ErrEmptyInput)
	}

	dec, err := d.engine.NewDecoder()
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.CategoryBackend, "probe.create", err)
	}
	defer dec.Close()

	if err := dec.SubscribeEvents(core.EventBasicInfo); err != nil {
		return 0, 0, apperrors.Wrap(apperrors.CategoryConfigRejected, "probe.subscribe", err)
	}
	if err := dec.SetInput(data); err != nil {
		return 0, 0, apperrors.Wrap(apperrors.CategoryConfigRejected, "probe.input", err)
	}
	dec.CloseInput()

	switch status := dec.ProcessInput(); status {
	case core.DecoderBasicInfo:
		info, err := dec.BasicInfo()
		if err != nil {
			return 0, 0, apperrors.Wrap(apperrors.CategoryMalformedInput, "probe.basic_info", err)
		}
		if err := checkArea("probe.basic_info", info, d.maxPixels); err != nil {
			return 0, 0, err
		}
		return int(info.Xsize), int(info.Ysize), nil
	case core.DecoderError:
		return 0, 0, apperrors.New(apperrors.CategoryMalformedInput, "probe", apperrors.ErrDecoderFailed)
	case core.DecoderNeedMoreInput:
		return 0, 0, apperrors.Newf(apperrors.CategoryMalformedInput, "probe", apperrors.ErrNeedMoreInput,
			"truncated header")
	default:
		return 0, 0, apperrors.Newf(apperrors.CategoryMalformedInput, "probe", apperrors.ErrUnexpectedEvent,
			"%s before basic info", status)
	}
}
