package constants

import "strings"

// ImageExtensions holds the file extensions the batch client uploads and the
// extractor knows how to feed to an engine.
var ImageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
	"webp": {},
	"heic": {},
	"heif": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsImageExt reports whether ext (with or without the dot) is a known image extension.
func IsImageExt(ext string) bool {
	_, ok := ImageExtensions[NormalizeExt(ext)]
	return ok
}

// IsHEICExt reports whether ext needs an external converter before recognition.
func IsHEICExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "heic", "heif":
		return true
	}
	return false
}

// NeedsDecode reports whether ext is decoded in-process and re-encoded as PNG
// before being handed to tesseract.
func NeedsDecode(ext string) bool {
	switch NormalizeExt(ext) {
	case "webp", "bmp", "tif", "tiff", "gif":
		return true
	}
	return false
}

// ImageContentTypePrefix is the prefix every accepted upload content type carries.
const ImageContentTypePrefix = "image/"
