package youtube

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Segment is one caption line.
type Segment struct {
	Start    float64 // seconds from the start of the video
	Duration float64
	Text     string
}

// FormatTimestamp renders seconds as HH:MM:SS.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// ParseTimestamp parses "MM:SS" or "HH:MM:SS" (leading "[" / "]" allowed)
// into seconds.
func ParseTimestamp(ts string) (int, bool) {
	ts = strings.Trim(strings.TrimSpace(ts), "[]")
	if ts == "" {
		return 0, false
	}

	parts := strings.Split(ts, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}

	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// FormatTranscript renders segments ordered by start time as
// "[HH:MM:SS] text" lines. Empty segments are dropped and internal
// newlines are folded into spaces.
func FormatTranscript(segments []Segment) string {
	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	lines := make([]string, 0, len(ordered))
	for _, s := range ordered {
		text := strings.Join(strings.Fields(s.Text), " ")
		if text == "" {
			continue
		}
		lines = append(lines, "["+FormatTimestamp(s.Start)+"] "+text)
	}
	return strings.Join(lines, "\n")
}
