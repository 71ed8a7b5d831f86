// Package registry parses the Unicode emoji-test.txt listing into base records.
package registry

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"emojidb/internal/models"
	"emojidb/internal/slug"
)

const (
	groupPrefix    = "# group:"
	subgroupPrefix = "# subgroup:"

	// StatusFullyQualified is the only qualification level that yields a record
	StatusFullyQualified = "fully-qualified"

	maxLineBytes = 1024 * 1024
)

// Stats summarises a parse for logging
type Stats struct {
	Lines     int
	Groups    int
	Subgroups int
	Records   int
	// Dropped counts data lines whose status is not fully-qualified
	Dropped int
	// Malformed counts data lines without a ';' separator
	Malformed int
}

// parseState is the fold accumulator threaded through each line. The current
// group and subgroup carry forward until the next header changes them.
type parseState struct {
	group    string
	subgroup string
	records  []models.Record
	stats    Stats
}

// Parse turns registry text into records in source order
func Parse(text string) []models.Record {
	records, _ := ParseWithStats(text)
	return records
}

// ParseWithStats is Parse plus counters describing what was seen
func ParseWithStats(text string) ([]models.Record, Stats) {
	state := parseState{records: make([]models.Record, 0)}
	for _, line := range strings.Split(text, "\n") {
		state = step(state, line)
	}
	return state.records, state.stats
}

// ParseReader parses a registry from r without loading it into one string
func ParseReader(r io.Reader) ([]models.Record, Stats, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	state := parseState{records: make([]models.Record, 0)}
	for scanner.Scan() {
		state = step(state, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, state.stats, fmt.Errorf("failed to read registry: %w", err)
	}
	return state.records, state.stats, nil
}

// step applies one line to the accumulator and returns the new state
func step(state parseState, line string) parseState {
	line = strings.TrimRight(line, "\r")
	state.stats.Lines++

	switch {
	case strings.HasPrefix(line, groupPrefix):
		state.group = strings.TrimSpace(strings.TrimPrefix(line, groupPrefix))
		state.stats.Groups++
		return state
	case strings.HasPrefix(line, subgroupPrefix):
		state.subgroup = strings.TrimSpace(strings.TrimPrefix(line, subgroupPrefix))
		state.stats.Subgroups++
		return state
	case strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#"):
		return state
	}

	rec, ok, malformed := parseDataLine(line, state.group, state.subgroup)
	switch {
	case malformed:
		state.stats.Malformed++
	case !ok:
		state.stats.Dropped++
	default:
		state.records = append(state.records, rec)
		state.stats.Records++
	}
	return state
}

// parseDataLine handles "<code points> ; <status> # <glyph> <title>".
// The comment is split at the first '#' so glyphs such as the keycap "#️⃣"
// keep their leading hash.
func parseDataLine(line, group, subgroup string) (models.Record, bool, bool) {
	codeField, rest, found := strings.Cut(line, ";")
	if !found {
		return models.Record{}, false, true
	}

	statusField, comment, _ := strings.Cut(rest, "#")
	if strings.TrimSpace(statusField) != StatusFullyQualified {
		return models.Record{}, false, false
	}

	// A missing comment still yields a record, with no glyph or title
	comment = strings.TrimSpace(comment)
	glyph, title, _ := strings.Cut(comment, " ")
	title = slug.StripVersionPrefix(strings.TrimSpace(title))

	rec := models.NewRecord(
		slug.CategoryFor(group),
		slug.FormatSubCategory(subgroup),
		strings.TrimSpace(codeField),
		glyph,
		title,
	)
	return rec, true, false
}
