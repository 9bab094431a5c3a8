//go:build !libjxl

package libjxl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skryldev/jxl-coder/adapters/libjxl"
	apperrors "github.com/Skryldev/jxl-coder/errors"
)

func TestUnavailableWithoutTag(t *testing.T) {
	assert.False(t, libjxl.Available())
	eng, err := libjxl.New()
	assert.Nil(t, eng)
	assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryBackend))
}
