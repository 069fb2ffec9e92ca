package domain

import (
	"fmt"
	"strings"
)

// DefaultFormat is used when a request names no format.
const DefaultFormat = FormatPNG

// SupportedFormats lists the output formats in their canonical order.
var SupportedFormats = []Format{FormatPNG, FormatSVG, FormatTXT}

// ResolveFormat normalizes a requested format. An empty value selects the
// default; anything outside the supported set fails with UNSUPPORTED_FORMAT.
func ResolveFormat(requested string) (Format, error) {
	f := strings.ToLower(strings.TrimSpace(requested))
	if f == "" {
		return DefaultFormat, nil
	}
	for _, s := range SupportedFormats {
		if Format(f) == s {
			return s, nil
		}
	}
	return "", NewError(KindUnsupportedFormat,
		fmt.Sprintf("Unsupported format: %s. Supported formats: %s", requested, supportedList()))
}

func supportedList() string {
	names := make([]string, len(SupportedFormats))
	for i, f := range SupportedFormats {
		names[i] = string(f)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
