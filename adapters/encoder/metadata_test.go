package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/jxl-coder/core"
	apperrors "github.com/Skryldev/jxl-coder/errors"
)

func TestExifBox(t *testing.T) {
	tiff := []byte("II*\x00\x08\x00\x00\x00")

	box, ok, err := exifBox(tiff, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.BoxExif, box.typ)
	assert.Equal(t, append([]byte{0, 0, 0, 0}, tiff...), box.contents)

	// APP1 marker is stripped.
	box, ok, err = exifBox(append([]byte("Exif\x00\x00"), tiff...), 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, append([]byte{0, 0, 0, 0}, tiff...), box.contents)

	// Over the limit: skipped, not an error.
	_, ok, err = exifBox(tiff, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = exifBox([]byte("not tiff"), 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}

func TestXMPBox(t *testing.T) {
	plain := []byte("<x:xmpmeta/>")

	box, err := xmpBox(plain)
	require.NoError(t, err)
	assert.Equal(t, core.BoxXMP, box.typ)
	assert.Equal(t, plain, box.contents)

	box, err = xmpBox(append([]byte{0xEF, 0xBB, 0xBF}, plain...))
	require.NoError(t, err)
	assert.Equal(t, plain, box.contents, "UTF-8 BOM removed")

	utf16le := []byte{0xFF, 0xFE}
	for _, r := range "<a/>" {
		utf16le = append(utf16le, byte(r), 0)
	}
	box, err = xmpBox(utf16le)
	require.NoError(t, err)
	assert.Equal(t, []byte("<a/>"), box.contents)

	_, err = xmpBox([]byte{'<', 0xC3, 0x28, '>'})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}
