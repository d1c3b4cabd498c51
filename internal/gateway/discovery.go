package gateway

import (
	"regexp"
	"strings"
)

// SafeFallbackFamily is chosen when nothing in the desired release line is listed.
const SafeFallbackFamily = "gemini-1.5-flash"

var releaseLine = regexp.MustCompile(`^([a-z]+-\d+(?:\.\d+)?)-([a-z0-9]+)`)

// PickModel chooses the listed model closest to desired: exact name, then desired without
// "-latest", then the same tier in the same release line, then anything in that line, then
// the safe fallback family, then the first listed model.
func PickModel(desired string, available []string) string {
	if len(available) == 0 {
		return ""
	}
	has := make(map[string]bool, len(available))
	for _, m := range available {
		has[m] = true
	}

	if has[desired] {
		return desired
	}
	stripped := strings.TrimSuffix(desired, "-latest")
	if has[stripped] {
		return stripped
	}

	if m := releaseLine.FindStringSubmatch(stripped); m != nil {
		line, tier := m[1]+"-", m[2]
		for _, name := range available {
			if strings.HasPrefix(name, line) && hasSegment(strings.TrimPrefix(name, line), tier) {
				return name
			}
		}
		for _, name := range available {
			if strings.HasPrefix(name, line) {
				return name
			}
		}
	}

	for _, name := range available {
		if name == SafeFallbackFamily || strings.HasPrefix(name, SafeFallbackFamily+"-") {
			return name
		}
	}
	return available[0]
}

func hasSegment(rest, segment string) bool {
	for _, s := range strings.Split(rest, "-") {
		if s == segment {
			return true
		}
	}
	return false
}
