package imageutil

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDetectImage(t *testing.T) {
	mt, err := DetectImage(pngOf(t, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)

	_, err = DetectImage([]byte("just some text"))
	assert.Error(t, err)

	_, err = DetectImage(nil)
	assert.Error(t, err)
}

func TestShrink(t *testing.T) {
	small := pngOf(t, 10, 5)
	out, err := Shrink(small, 64)
	require.NoError(t, err)
	assert.Equal(t, small, out)

	big := pngOf(t, 200, 100)
	out, err = Shrink(big, 50)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 25, cfg.Height)
}

func TestEncodeBase64(t *testing.T) {
	data := pngOf(t, 8, 8)
	enc, err := EncodeBase64(data, DefaultMaxDimension)
	require.NoError(t, err)

	dec, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)
	assert.Equal(t, data, dec)

	_, err = EncodeBase64([]byte("%PDF-1.4"), DefaultMaxDimension)
	assert.Error(t, err)
}
