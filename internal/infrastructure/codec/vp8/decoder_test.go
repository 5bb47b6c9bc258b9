package vp8

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lensrelay/internal/core/domain"
)

func TestDecode_InterFrameNeedsKeyFrame(t *testing.T) {
	d := NewDecoder()

	// Frame tag with the inter-frame bit set.
	_, err := d.Decode([]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, domain.ErrNeedKeyFrame)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	d := NewDecoder()

	_, err := d.Decode(nil)
	require.Error(t, err)

	// Key frame tag followed by a bad start code.
	_, err = d.Decode([]byte{0x00, 0x00, 0x00, 0xde, 0xad, 0xbe, 0x10, 0x00, 0x10, 0x00})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNeedKeyFrame)
}

func TestDecode_ReusableAfterError(t *testing.T) {
	d := NewDecoder()

	_, err := d.Decode([]byte{0x00})
	require.Error(t, err)

	_, err = d.Decode([]byte{0x01, 0x00, 0x00})
	assert.ErrorIs(t, err, domain.ErrNeedKeyFrame)
}
