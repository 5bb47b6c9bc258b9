package vpx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lensrelay/internal/core/domain"
)

func solidImage(w, h int, shade byte) *domain.Image {
	img := domain.NewImage(w, h)
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	return img
}

func TestDecoder_DecodesInterFrames(t *testing.T) {
	enc, err := NewEncoder(Config{BitRate: 500_000, FrameRate: 30, KeyFrameInterval: 10 * time.Second}, 64, 48)
	require.NoError(t, err)
	defer enc.Close()

	dec, err := NewDecoder()
	require.NoError(t, err)
	defer dec.Close()

	var encoded, decoded, inter int
	for i := 0; i < 10; i++ {
		data, err := enc.Encode(solidImage(64, 48, byte(40+i*10)))
		require.NoError(t, err)
		if len(data) == 0 {
			continue
		}
		encoded++
		if data[0]&0x01 == 1 {
			inter++
		}

		img, err := dec.Decode(data)
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, 64, img.Width)
		assert.Equal(t, 48, img.Height)
		decoded++
	}

	assert.Positive(t, inter)
	assert.Equal(t, encoded, decoded)
}

func TestDecoder_WaitsForKeyFrame(t *testing.T) {
	dec, err := NewDecoder()
	require.NoError(t, err)
	defer dec.Close()

	_, err = dec.Decode([]byte{0x01, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, domain.ErrNeedKeyFrame)

	_, err = dec.Decode(nil)
	assert.Error(t, err)
}

func TestDecoder_ClosedDecoderRejectsSamples(t *testing.T) {
	dec, err := NewDecoder()
	require.NoError(t, err)
	require.NoError(t, dec.Close())
	require.NoError(t, dec.Close())

	_, err = dec.Decode([]byte{0x10, 0x02, 0x00})
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}
