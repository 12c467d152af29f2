// Package imageutil prepares user supplied pictures before they are sent to the backend.
package imageutil

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxDimension bounds the longest edge of an encoded medicine image.
const DefaultMaxDimension = 1280

// DetectImage returns the MIME type of data and fails when it is not an image.
func DetectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("image is empty")
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("file is not an image (detected %s)", mt.String())
	}
	return mt.String(), nil
}

// ContentType sniffs data, falling back to application/octet-stream.
func ContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

// Shrink re-encodes data as JPEG when its longest edge exceeds maxDim.
// Smaller images, and formats the decoder does not know, are returned unchanged.
func Shrink(data []byte, maxDim int) ([]byte, error) {
	if maxDim <= 0 {
		return data, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || (cfg.Width <= maxDim && cfg.Height <= maxDim) {
		return data, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width >= cfg.Height {
		img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
	} else {
		img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpeg.DefaultQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64 validates, shrinks and base64-encodes an image for a JSON payload.
func EncodeBase64(data []byte, maxDim int) (string, error) {
	if _, err := DetectImage(data); err != nil {
		return "", err
	}
	shrunk, err := Shrink(data, maxDim)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(shrunk), nil
}
