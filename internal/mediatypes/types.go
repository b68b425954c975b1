package mediatypes

import (
	"path/filepath"
	"sort"
	"strings"
)

// ImageExtensions maps file extensions to whether the thumbnail codec can
// decode them.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
}

// DefaultExtensions returns the recognised extensions, sorted.
func DefaultExtensions() []string {
	exts := make([]string, 0, len(ImageExtensions))
	for ext := range ImageExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// NormalizeExtensions lowercases the given extensions, adds a leading dot
// where missing and drops blanks and duplicates. The result is sorted so it
// can be used as a cache key.
func NormalizeExtensions(exts []string) []string {
	seen := make(map[string]bool, len(exts))
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if seen[ext] {
			continue
		}
		seen[ext] = true
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// IsImage reports whether name carries one of the recognised image extensions.
func IsImage(name string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(name))]
}

// GetMimeType returns the MIME type for a file extension.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}
