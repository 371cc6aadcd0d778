package judges

import (
	"regexp"
	"strconv"

	"github.com/ahrav/gavel-rewards/internal/domain"
)

var (
	// scorePattern matches the word "score" followed by an integer, with
	// any punctuation or whitespace in between ("Score: 8", "score - 7").
	// A sign glued to the digits is captured so "Score: -3" is rejected.
	scorePattern = regexp.MustCompile(`(?i)score[^0-9a-z]*?(-?\d+)`)

	// integerPattern matches a standalone run of digits and any minus sign
	// directly before it.
	integerPattern = regexp.MustCompile(`(-?)\b(\d+)\b`)
)

// ExtractScore parses free-form judge output into a normalized score.
//
// The first labelled "score" whose integer lies within the 0-10 scale wins.
// Failing that, the first standalone non-negative integer within the scale
// is used. Anything else, including an out-of-range label such as
// "Score: 15" or a negative one, yields zero. ExtractScore never fails.
func ExtractScore(raw string) domain.Score {
	for _, m := range scorePattern.FindAllStringSubmatch(raw, -1) {
		if s, ok := parseRaw(m[1]); ok {
			return s
		}
	}

	for _, m := range integerPattern.FindAllStringSubmatch(raw, -1) {
		if m[1] == "-" {
			continue
		}
		if s, ok := parseRaw(m[2]); ok {
			return s
		}
	}

	return 0
}

func parseRaw(digits string) (domain.Score, bool) {
	// Long digit runs overflow Atoi; they are out of scale anyway.
	if len(digits) > 4 {
		return 0, false
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return domain.ScoreFromRaw(v)
}
