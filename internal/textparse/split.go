package textparse

import (
	"regexp"
	"strings"
)

// headerRe matches a line that opens a new log line: a level prefix or a
// bracketed pid/tid block.
var headerRe = regexp.MustCompile(`^\s*(?:\w+#\w+|#\w+|\[[^\]]*\bpid:[\d-]+\s+tid:)`)

// SplitEmbedded splits a payload that carries several log lines into one string per
// line. Lines that do not start a header are kept with the header before them. A
// payload with at most one header is returned unchanged as a single element.
func SplitEmbedded(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var starts []int
	for i, l := range lines {
		if headerRe.MatchString(l) {
			starts = append(starts, i)
		}
	}
	if len(starts) < 2 {
		return []string{text}
	}

	parts := make([]string, 0, len(starts))
	for i, s := range starts {
		from := s
		if i == 0 {
			from = 0
		}
		to := len(lines)
		if i+1 < len(starts) {
			to = starts[i+1]
		}
		part := strings.TrimSpace(strings.Join(lines[from:to], "\n"))
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
