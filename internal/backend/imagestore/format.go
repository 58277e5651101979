package imagestore

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ProbeExtensions lists, in order, the extensions tried for images whose extension was never recorded.
var ProbeExtensions = []string{"jpg", "jpeg", "png", "webp"}

// MaxExtensionLength matches the width of the imagem_extensao column.
const MaxExtensionLength = 32

// Key returns the store key of the image of bula id.
func Key(id int64, extension string) string {
	return strconv.FormatInt(id, 10) + "." + extension
}

// Extension returns the lower-cased extension of filename without its dot.
// If filename has no extension the format is detected from the image header.
func Extension(filename string, data []byte) (string, error) {
	extension := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if len(extension) > MaxExtensionLength {
		return "", fmt.Errorf("extension of image %q is longer than %d characters", filename, MaxExtensionLength)
	}
	if extension != "" {
		return extension, nil
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to detect format of image %q: %w", filename, err)
	}
	return format, nil
}
