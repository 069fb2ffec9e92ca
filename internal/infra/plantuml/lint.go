package plantuml

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	startTag      = regexp.MustCompile(`(?m)^\s*@start(\w+)`)
	endTag        = regexp.MustCompile(`(?m)^\s*@end(\w+)`)
	remoteInclude = regexp.MustCompile(`(?mi)^\s*!include(url|sub)?\s+https?://\S+`)
)

// Lint returns engine-independent warnings for source. The result does not
// depend on validity and is stable for identical input.
func Lint(source string) []string {
	warnings := []string{}

	starts := startTag.FindAllStringSubmatch(source, -1)
	ends := endTag.FindAllStringSubmatch(source, -1)
	switch {
	case len(starts) == 0:
		warnings = append(warnings, "missing @startuml directive")
	case len(ends) == 0:
		warnings = append(warnings, fmt.Sprintf("missing @end%s directive", starts[0][1]))
	case starts[0][1] != ends[len(ends)-1][1]:
		warnings = append(warnings, fmt.Sprintf("@start%s is closed by @end%s", starts[0][1], ends[len(ends)-1][1]))
	}

	if len(starts) > 0 && len(ends) > 0 && body(source) == "" {
		warnings = append(warnings, "diagram has no content")
	}

	if remoteInclude.MatchString(source) {
		warnings = append(warnings, "remote !include directives depend on network access of the engine")
	}
	return warnings
}

// body returns the non-comment text between the first start and last end tag.
func body(source string) string {
	s := startTag.FindStringIndex(source)
	ends := endTag.FindAllStringIndex(source, -1)
	if s == nil || len(ends) == 0 {
		return ""
	}
	e := ends[len(ends)-1]
	if e[0] < s[1] {
		return ""
	}
	var kept []string
	for _, line := range strings.Split(source[s[1]:e[0]], "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "'") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
