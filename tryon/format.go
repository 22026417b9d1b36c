package tryon

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

const (
	dataURLImagePrefix = "data:image/"
	// DefaultImagePrefix is assumed for bare base64 payloads.
	DefaultImagePrefix = "data:image/jpeg;base64,"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ConvertToAPIBase64Format returns s unchanged when it is already an image
// data URL, otherwise frames it as a JPEG data URL. Applying it twice gives
// the same result as applying it once.
func ConvertToAPIBase64Format(s string) string {
	if strings.HasPrefix(s, dataURLImagePrefix) {
		return s
	}
	return DefaultImagePrefix + s
}

// EncodeImageDataURL frames raw image bytes as a data URL, sniffing the
// MIME type from content.
func EncodeImageDataURL(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("image is empty")
	}
	mimeType := http.DetectContentType(data)
	if !allowedImageTypes[mimeType] {
		return "", fmt.Errorf("unsupported image type: %s", mimeType)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
