// Package caseid extracts TestRail case identifiers from test titles and
// tags, and merges case id lists.
package caseid

import (
	"regexp"
	"strconv"

	"github.com/sirupsen/logrus"
)

// pattern matches C123 or TC123 as a whole word.
var pattern = regexp.MustCompile(`\bT?C(\d+)\b`)

// exactPattern matches a token that is exactly one case identifier.
var exactPattern = regexp.MustCompile(`^T?C(\d+)$`)

// Extract returns every case id found in text, left to right.
// It returns nil when nothing matches.
func Extract(text string) []int {
	matches := pattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	ids := make([]int, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			// Only overflow can fail here; such a token is not a case id.
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// ExtractAll extracts case ids from several texts (a title and its tags)
// and returns them in first-seen order without duplicates.
func ExtractAll(texts ...string) []int {
	var ids []int
	for _, text := range texts {
		ids = Union(ids, Extract(text))
	}
	return ids
}

// First returns the first case id in text. When more than one id is
// present a warning is logged and only the first one is used.
func First(log logrus.FieldLogger, text string) (int, bool) {
	ids := Extract(text)
	if len(ids) == 0 {
		return 0, false
	}
	if len(ids) > 1 && log != nil {
		log.WithField("title", text).Warn("only 1st matched case id will be used")
	}
	return ids[0], true
}

// Valid reports whether token is exactly one case identifier.
func Valid(token string) bool {
	return exactPattern.MatchString(token)
}

// Union returns the ordered union of existing and added: the order of
// existing is kept, new ids are appended, and duplicates are dropped.
func Union(existing, added []int) []int {
	seen := make(map[int]bool, len(existing)+len(added))
	merged := make([]int, 0, len(existing)+len(added))

	for _, list := range [][]int{existing, added} {
		for _, id := range list {
			if seen[id] {
				continue
			}
			seen[id] = true
			merged = append(merged, id)
		}
	}

	if len(merged) == 0 && existing == nil && added == nil {
		return nil
	}
	return merged
}

// Filter returns the ids that are also present in allowed, in the order
// of ids.
func Filter(ids, allowed []int) []int {
	set := make(map[int]bool, len(allowed))
	for _, id := range allowed {
		set[id] = true
	}

	var kept []int
	for _, id := range ids {
		if set[id] {
			kept = append(kept, id)
		}
	}
	return kept
}
