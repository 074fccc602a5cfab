// Package bibtex parses BibTeX entries into records, merges records from many
// sources into a deduplicated index, and writes the index back out.
package bibtex

import (
	"fmt"
	"regexp"
	"strings"
)

// Record is one BibTeX entry as it appeared in its source: the start line
// (beginning with @) through the closing line, terminators stripped.
type Record struct {
	Lines  []string
	Source string // Name of the input the record was parsed from
	Line   int    // 1-based line number of the start line within Source
}

// SearchMode controls which lines of a record are tested when extracting
// the key and identifier.
type SearchMode int

const (
	// SearchFull tests every line and uses the first one that matches.
	SearchFull SearchMode = iota
	// SearchFirstLine tests only the first line of the record.
	SearchFirstLine
)

// KeyField selects the record field used to deduplicate records.
type KeyField string

const (
	KeyCitationCode KeyField = "citation_code"
	KeyIdentifier   KeyField = "identifier"
)

var (
	// @type{key, ...
	keyPattern = regexp.MustCompile(`(?i)^@[^{]*\{([^,]*),`)
	// doi = {value}
	identifierPattern = regexp.MustCompile(`(?i)^\s*doi\s*=\s*\{(.*)\}`)
)

// Key returns the citation code of the record, or "" if none is found.
func (r Record) Key(mode SearchMode) string {
	return strings.TrimSpace(r.search(keyPattern, mode))
}

// Identifier returns the DOI of the record, or "" if none is found.
func (r Record) Identifier(mode SearchMode) string {
	return strings.TrimSpace(r.search(identifierPattern, mode))
}

// search returns group 1 of the first line matching re.
func (r Record) search(re *regexp.Regexp, mode SearchMode) string {
	lines := r.Lines
	if mode == SearchFirstLine && len(lines) > 1 {
		lines = lines[:1]
	}
	for _, line := range lines {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}

// String renders the record followed by one blank separator line.
func (r Record) String() string {
	var b strings.Builder
	for _, line := range r.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

// Of returns the deduplication key of rec for this field.
// Identifiers are normalized so that DOI spellings differing only in case or
// resolver prefix collapse onto one key.
func (f KeyField) Of(rec Record, mode SearchMode) string {
	if f == KeyIdentifier {
		return NormalizeDOI(rec.Identifier(mode))
	}
	return rec.Key(mode)
}

// ParseKeyField parses a key field name. Empty selects KeyCitationCode.
func ParseKeyField(s string) (KeyField, error) {
	switch KeyField(strings.ToLower(strings.TrimSpace(s))) {
	case "", KeyCitationCode:
		return KeyCitationCode, nil
	case KeyIdentifier:
		return KeyIdentifier, nil
	}
	return "", fmt.Errorf("invalid key field %q (valid: %s, %s)", s, KeyCitationCode, KeyIdentifier)
}

// ParseSearchMode parses "full" or "first_line". Empty selects SearchFull.
func ParseSearchMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return SearchFull, nil
	case "first_line", "first-line":
		return SearchFirstLine, nil
	}
	return 0, fmt.Errorf("invalid search mode %q (valid: full, first_line)", s)
}

func (m SearchMode) String() string {
	if m == SearchFirstLine {
		return "first_line"
	}
	return "full"
}

// NormalizeDOI normalizes a DOI for comparison.
// Removes common prefixes like "https://doi.org/" and lowercases.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "https://dx.doi.org/")
	doi = strings.TrimPrefix(doi, "doi.org/")
	doi = strings.TrimPrefix(doi, "DOI:")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(doi)
}
