package vision

import (
	"strings"
)

// ParseResponse parses a vision model response in format "field: value",
// one attribute per line. Field names are lowercased with spaces turned into
// underscores; later lines win over earlier ones.
func ParseResponse(raw string) map[string]string {
	fields := make(map[string]string)

	for _, line := range strings.Split(raw, "\n") {
		if key, value, ok := ParseLine(line); ok {
			fields[key] = value
		}
	}

	return fields
}

// ParseLine parses a single "field: value" line. Bullets and surrounding
// quotes are stripped.
func ParseLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*• ")
	if line == "" {
		return "", "", false
	}

	key, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}

	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.Join(strings.Fields(key), "_")
	value = strings.Trim(strings.TrimSpace(value), `"'.`)
	if key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}
