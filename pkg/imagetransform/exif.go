package imagetransform

import (
	"bytes"
	"encoding/binary"
	"image"
)

// jpegOrientation extracts the EXIF orientation tag (0x0112) from a
// JPEG's APP1 segment, if present. This is a narrow, single-field
// extraction rather than general EXIF parsing, so it's done directly
// against the TIFF header bytes instead of pulling in a full EXIF
// library for one tag.
func jpegOrientation(data []byte) (int, bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return 0, false
	}
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return 0, false
		}
		marker := data[pos+1]
		if marker == 0xD9 || marker == 0xDA {
			return 0, false // end of image / start of scan, no APP1 found
		}
		segLen := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		segStart := pos + 4
		segEnd := pos + 2 + segLen
		if segEnd > len(data) {
			return 0, false
		}
		if marker == 0xE1 && segEnd-segStart >= 8 && bytes.HasPrefix(data[segStart:], []byte("Exif\x00\x00")) {
			return parseTIFFOrientation(data[segStart+6 : segEnd])
		}
		pos = segEnd
	}
	return 0, false
}

func parseTIFFOrientation(tiff []byte) (int, bool) {
	if len(tiff) < 8 {
		return 0, false
	}
	var order binary.ByteOrder
	switch string(tiff[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0, false
	}
	ifdOffset := order.Uint32(tiff[4:8])
	if int(ifdOffset)+2 > len(tiff) {
		return 0, false
	}
	entryCount := int(order.Uint16(tiff[ifdOffset : ifdOffset+2]))
	base := int(ifdOffset) + 2
	for i := 0; i < entryCount; i++ {
		off := base + i*12
		if off+12 > len(tiff) {
			break
		}
		tag := order.Uint16(tiff[off : off+2])
		if tag == 0x0112 {
			valueType := order.Uint16(tiff[off+2 : off+4])
			if valueType == 3 { // SHORT
				return int(order.Uint16(tiff[off+8 : off+10])), true
			}
		}
	}
	return 0, false
}

// applyOrientation rotates img for the EXIF orientations 3 (180°),
// 6 (90° clockwise) and 8 (270° clockwise). Every other value,
// including the mirrored orientations 2, 4, 5 and 7, returns img
// unchanged.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 3:
		return rotate180(img)
	case 6:
		return rotate90(img)
	case 8:
		return rotate270(img)
	default:
		return img
	}
}

func rotate90(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.Y-1-y, x, src.At(x, y))
		}
	}
	return dst
}

func rotate270(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(y, b.Max.X-1-x, src.At(x, y))
		}
	}
	return dst
}

func rotate180(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-x, b.Max.Y-1-y, src.At(x, y))
		}
	}
	return dst
}
