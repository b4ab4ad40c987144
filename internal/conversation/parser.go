package conversation

import (
	"regexp"
	"strings"
)

// MaxRelatedQuestions caps ParseRelatedQuestions.
const MaxRelatedQuestions = 3

// listMarker matches a leading bullet ("-", "*", "•") or number ("1.", "2)").
var listMarker = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s*`)

// ParseRelatedQuestions splits a completion into at most MaxRelatedQuestions
// questions, one per non-blank line, with list markers removed.
func ParseRelatedQuestions(completion string) []string {
	out := make([]string, 0, MaxRelatedQuestions)
	for _, line := range strings.Split(completion, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == MaxRelatedQuestions {
			break
		}
	}
	return out
}
