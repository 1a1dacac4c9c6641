package tamer

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTimecode parses "HH:MM:SS.fff", "MM:SS.fff", or plain seconds into
// seconds. Negative values are rejected; the fractional part is optional.
func ParseTimecode(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timecode")
	}
	if strings.Contains(s, "-") {
		return 0, fmt.Errorf("negative timecode %q", s)
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("malformed timecode %q", s)
	}

	// Leading fields are whole hours/minutes; only the seconds field may
	// carry a fraction.
	total := 0.0
	for i, part := range parts {
		last := i == len(parts)-1

		if last {
			seconds, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return 0, fmt.Errorf("malformed timecode %q: %w", s, err)
			}
			total = total*60 + seconds
			continue
		}

		field, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("malformed timecode %q: %w", s, err)
		}
		total = total*60 + float64(field)
	}

	return total, nil
}
