package content

import (
	"regexp"
	"strconv"
	"strings"

	"knowledge-base/backend/internal/constants"
)

var (
	// [[note:12]] or [[12]]
	referencePattern = regexp.MustCompile(`\[\[(?:note:)?(\d+)\]\]`)
	// [Some title](/notes/12)
	noteLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\(/notes/(\d+)\)`)
)

// ExtractReferences returns the distinct note ids referenced by inline
// markers, in order of first appearance. Ids that do not fit an int64 are
// skipped.
func ExtractReferences(text string) []int64 {
	return distinctIDs(referencePattern.FindAllStringSubmatch(text, -1), 1)
}

// ExtractNoteLinks returns the distinct note ids targeted by markdown links
// of the form [title](/notes/<id>), in order of first appearance.
func ExtractNoteLinks(body string) []int64 {
	return distinctIDs(noteLinkPattern.FindAllStringSubmatch(body, -1), 2)
}

func distinctIDs(matches [][]string, group int) []int64 {
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(matches))
	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.ParseInt(m[group], 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// WordCount counts whitespace separated words
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// ReadingTime estimates whole minutes to read text, never less than one
func ReadingTime(text string) int {
	minutes := WordCount(text) / constants.WordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
