package files

import (
	"strings"

	"code.cloudfoundry.org/bytefmt"
)

// FormatSize renders a byte count for display, e.g. "1.5K".
func FormatSize(size int64) string {
	if size <= 0 {
		return "0B"
	}
	return bytefmt.ByteSize(uint64(size))
}

// IconType classifies a MIME type into an icon family.
func IconType(mimeType string) string {
	m := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(m, "image/"):
		return "image"
	case strings.HasPrefix(m, "video/"):
		return "video"
	case strings.HasPrefix(m, "audio/"):
		return "audio"
	case strings.Contains(m, "pdf"):
		return "pdf"
	case strings.Contains(m, "word") || strings.Contains(m, "document"):
		return "word"
	case strings.Contains(m, "excel") || strings.Contains(m, "spreadsheet"):
		return "excel"
	case strings.Contains(m, "powerpoint") || strings.Contains(m, "presentation"):
		return "powerpoint"
	case strings.Contains(m, "zip") || strings.Contains(m, "rar") || strings.Contains(m, "7z"):
		return "archive"
	default:
		return "file"
	}
}
