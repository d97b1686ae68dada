package imagetransform

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/byteserve/pkg/apierr"
)

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTransformResizePNG(t *testing.T) {
	src := solidPNG(t, 100, 50)
	out, mimeType, err := Transform(bytes.NewReader(src), "image/png", Params{Width: 20})
	require.NoError(t, err)
	require.Equal(t, "image/png", mimeType)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 20, decoded.Bounds().Dx())
	require.Equal(t, 10, decoded.Bounds().Dy())
}

func TestTransformRecodeToJPEG(t *testing.T) {
	src := solidPNG(t, 10, 10)
	out, mimeType, err := Transform(bytes.NewReader(src), "image/png", Params{Format: "jpeg", Quality: 50})
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", mimeType)

	_, err = jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
}

func TestTransformRejectsUnsupportedSource(t *testing.T) {
	_, _, err := Transform(bytes.NewReader([]byte("not an image")), "image/webp", Params{})
	require.Error(t, err)
	require.Equal(t, apierr.BadRequest, apierr.KindOf(err))
}

func TestCacheKeyDeterministic(t *testing.T) {
	k1 := CacheKey("obj-1", Params{Width: 100, Height: 50, Format: "jpeg", Quality: 80})
	k2 := CacheKey("obj-1", Params{Width: 100, Height: 50, Format: "jpeg", Quality: 80})
	k3 := CacheKey("obj-1", Params{Width: 200, Height: 50, Format: "jpeg", Quality: 80})
	require.Equal(t, k1, k2)
	require.NotEqual(t, k1, k3)
}

func TestClampQuality(t *testing.T) {
	require.Equal(t, 85, ClampQuality(0))
	require.Equal(t, 100, ClampQuality(150))
	require.Equal(t, 42, ClampQuality(42))
}

func TestJPEGOrientationRejectsNonJPEG(t *testing.T) {
	_, ok := jpegOrientation([]byte("not a jpeg"))
	require.False(t, ok)
}
