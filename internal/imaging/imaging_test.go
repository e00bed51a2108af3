package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func createTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(w, h, color.RGBA{200, 160, 40, 255}), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func createTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h, color.RGBA{0, 0, 255, 255})))
	return buf.Bytes()
}

func TestProcessJPEG(t *testing.T) {
	result, err := Processor{}.Process(bytes.NewReader(createTestJPEG(t, 100, 80)))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", result.MIME)
	assert.NotEmpty(t, result.Data)
	assert.Equal(t, 100, result.Width)
	assert.Equal(t, 80, result.Height)
}

func TestProcessPNGBecomesJPEG(t *testing.T) {
	result, err := Processor{}.Process(bytes.NewReader(createTestPNG(t, 100, 100)))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", result.MIME)

	_, format, err := image.Decode(bytes.NewReader(result.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestProcessDownscale(t *testing.T) {
	p := Processor{MaxDimension: 256}
	result, err := p.Process(bytes.NewReader(createTestJPEG(t, 1024, 512)))
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(result.Data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, 128, img.Bounds().Dy())
}

func TestProcessPortraitDownscale(t *testing.T) {
	p := Processor{MaxDimension: 100}
	result, err := p.Process(bytes.NewReader(createTestPNG(t, 50, 400)))
	require.NoError(t, err)
	assert.Equal(t, 12, result.Width)
	assert.Equal(t, 100, result.Height)
}

func TestProcessSmallImageNotUpscaled(t *testing.T) {
	result, err := Processor{}.Process(bytes.NewReader(createTestJPEG(t, 50, 30)))
	require.NoError(t, err)
	assert.Equal(t, 50, result.Width)
	assert.Equal(t, 30, result.Height)
}

func TestProcessRejectsUnsupported(t *testing.T) {
	_, err := Processor{}.Process(bytes.NewReader([]byte("GIF89a not really")))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Processor{}.Process(bytes.NewReader([]byte("hello world")))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeDataURL(t *testing.T) {
	raw := createTestPNG(t, 4, 4)
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	got, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
	assert.True(t, IsDataURL(url))

	result, err := Processor{}.ProcessDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", result.MIME)
}

func TestDecodeDataURLErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no prefix", "image/png;base64,AAAA"},
		{"no comma", "data:image/png;base64"},
		{"not base64", "data:image/png,rawbytes"},
		{"not image", "data:text/plain;base64,aGVsbG8="},
		{"bad payload", "data:image/png;base64,@@@"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDataURL(tt.in)
			assert.Error(t, err)
		})
	}
}
