package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	// Decoders for reference photos in formats other than JPEG.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// jpegQuality is used when re-encoding reference photos for the face engines.
const jpegQuality = 95

// ToJPEG decodes an image in any registered format and re-encodes it as JPEG.
// JPEG input is passed through untouched.
func ToJPEG(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, JpegSOI) {
		return data, nil
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode %s as jpeg: %w", format, err)
	}
	return buf.Bytes(), nil
}

// ReadJPEG reads an image file and returns it as JPEG bytes.
func ReadJPEG(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ToJPEG(data)
}
