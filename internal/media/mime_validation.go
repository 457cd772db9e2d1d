package media

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var allowedImageTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// sniffImage detects the content type from the payload bytes. Client-supplied
// content types are ignored.
func sniffImage(data []byte) (mimeType, ext string, err error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("image is empty")
	}
	detected := mimetype.Detect(data)
	mimeType = strings.ToLower(detected.String())
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	ext, ok := allowedImageTypes[mimeType]
	if !ok {
		return mimeType, "", fmt.Errorf("unsupported image type %q", mimeType)
	}
	return mimeType, ext, nil
}
