// Package imagetransform decodes a source image, applies an optional
// resize/rotate, re-encodes it to a requested format, and derives the
// CacheKey under which pkg/objectapi's transform handler caches the
// result; this package itself does not touch the cache. No repo in the pack carries an
// actual image-processing implementation, but the cloudreve manifest
// in the reference pack depends on golang.org/x/image for exactly this
// kind of decode/resize pipeline, so this package is built on the same
// library rather than a hand-rolled resizer.
package imagetransform

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"

	"github.com/marmos91/byteserve/pkg/apierr"
)

// Params is a parsed, validated transform request.
type Params struct {
	Width   int    // 0 means "preserve"
	Height  int    // 0 means "preserve"
	Format  string // "" means "re-encode to source codec"
	Quality int    // 1..100, clamped; only applied for jpeg
	Rotate  bool   // honor EXIF orientation
}

// AllowedSourceMimeTypes are the source codecs C10 will decode.
var AllowedSourceMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
}

// CacheKey returns the C3 key for a given (objectID, params) pair,
// matching the spec's md5(objectId:w:h:f:q) construction.
func CacheKey(objectID string, p Params) string {
	w, h, f := "auto", "auto", "orig"
	if p.Width > 0 {
		w = fmt.Sprintf("%d", p.Width)
	}
	if p.Height > 0 {
		h = fmt.Sprintf("%d", p.Height)
	}
	if p.Format != "" {
		f = p.Format
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s:w%s:h%s:f%s:q%d", objectID, w, h, f, p.Quality)))
	return "image_transform_cache:" + hex.EncodeToString(sum[:])
}

// ClampQuality clamps q to [1,100], defaulting to 85 when q <= 0.
func ClampQuality(q int) int {
	switch {
	case q <= 0:
		return 85
	case q > 100:
		return 100
	default:
		return q
	}
}

// Transform decodes src (whose declared MIME type is sourceMimeType),
// applies p, and encodes the result, returning the encoded bytes and
// the MIME type they were encoded as.
func Transform(src io.Reader, sourceMimeType string, p Params) ([]byte, string, error) {
	if !AllowedSourceMimeTypes[sourceMimeType] {
		return nil, "", apierr.New(apierr.BadRequest, "unsupported source mime type %q for transform", sourceMimeType)
	}

	img, orientation, err := decodeWithOrientation(src, sourceMimeType)
	if err != nil {
		return nil, "", apierr.Wrap(apierr.BadRequest, err, "decode source image")
	}

	if p.Rotate {
		img = applyOrientation(img, orientation)
	}

	if p.Width > 0 || p.Height > 0 {
		img = resize(img, p.Width, p.Height)
	}

	targetFormat := p.Format
	if targetFormat == "" {
		targetFormat = sourceMimeType
	}
	return encode(img, targetFormat, ClampQuality(p.Quality))
}

func resize(src image.Image, width, height int) image.Image {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	dstW, dstH := width, height
	switch {
	case dstW == 0 && dstH == 0:
		return src
	case dstW == 0:
		dstW = srcW * dstH / srcH
	case dstH == 0:
		dstH = srcH * dstW / srcW
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

func decodeWithOrientation(r io.Reader, mimeType string) (image.Image, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read source bytes: %w", err)
	}
	orientation := 1
	if mimeType == "image/jpeg" || mimeType == "image/jpg" {
		if o, ok := jpegOrientation(data); ok {
			orientation = o
		}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("decode image: %w", err)
	}
	return img, orientation, nil
}

func encode(img image.Image, format string, quality int) ([]byte, string, error) {
	var buf bytes.Buffer
	switch normalizeFormat(format) {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, "", fmt.Errorf("encode gif: %w", err)
		}
		return buf.Bytes(), "image/gif", nil
	case "jpeg", "jpg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	default:
		return nil, "", apierr.New(apierr.BadRequest, "unsupported target format %q", format)
	}
}

func normalizeFormat(f string) string {
	switch f {
	case "image/jpeg", "image/jpg", "jpeg", "jpg":
		return "jpeg"
	case "image/png", "png":
		return "png"
	case "image/gif", "gif":
		return "gif"
	default:
		return f
	}
}
