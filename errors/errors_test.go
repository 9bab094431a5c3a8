package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Skryldev/jxl-coder/errors"
)

func TestWrapNil(t *testing.T) {
	assert.NoError(t, apperrors.Wrap(apperrors.CategoryInput, "op", nil))
}

func TestProcessingErrorChain(t *testing.T) {
	err := apperrors.Newf(apperrors.CategorySizeMismatch, "decode.buffer",
		apperrors.ErrBufferSizeMismatch, "got %d want %d", 3, 4)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBufferSizeMismatch)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategorySizeMismatch))
	assert.False(t, apperrors.IsCategory(err, apperrors.CategoryInput))
	assert.Equal(t, "[size_mismatch] decode.buffer: buffer size mismatch: got 3 want 4", err.Error())
}

func TestCategoryOfWrapped(t *testing.T) {
	inner := apperrors.New(apperrors.CategoryConfigRejected, "encode.basic_info", apperrors.ErrCodecRejected)
	outer := fmt.Errorf("batch item 2: %w", inner)

	assert.Equal(t, apperrors.CategoryConfigRejected, apperrors.CategoryOf(outer))
	assert.Equal(t, apperrors.Category(""), apperrors.CategoryOf(errors.New("plain")))
}
