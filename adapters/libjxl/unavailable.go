//go:build !libjxl

package libjxl

import (
	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
)

// Available reports whether the binary was built against libjxl.
func Available() bool { return false }

// New always fails in builds without the libjxl tag.
func New() (core.Engine, error) {
	return nil, apperrors.Newf(apperrors.CategoryBackend, "libjxl", apperrors.ErrBackendUnavailable,
		"rebuild with -tags libjxl")
}
