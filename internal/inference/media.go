package inference

import (
	"path/filepath"
	"strings"
)

// DefaultMediaType is used when neither the client nor the extension says
// anything more specific.
const DefaultMediaType = "image/jpeg"

var mediaTypesByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// MediaTypeFromName infers an image media type from a file name's extension.
func MediaTypeFromName(name string) string {
	if mt, ok := mediaTypesByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return DefaultMediaType
}

// ResolveMediaType prefers a declared type, falling back to the extension.
// Declared values like "application/octet-stream" carry no information and
// are ignored.
func ResolveMediaType(declared, name string) string {
	declared = strings.TrimSpace(strings.ToLower(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return MediaTypeFromName(name)
}
