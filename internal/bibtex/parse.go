package bibtex

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLineCapacity is the longest line accepted when reading a .bib file (1MB).
const MaxLineCapacity = 1024 * 1024

// Dropped describes an entry that was opened but never closed.
type Dropped struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
	Start  string `json:"start"`
}

// Parser splits lines of BibTeX text into records.
type Parser struct {
	Source    string
	OnDropped func(Dropped) // Called for each unclosed entry; may be nil
}

// Entries returns the records found in lines, in order. Each record is
// yielded as soon as its closing line is read.
//
// A line starting with @ opens an entry and a line starting with } closes it.
// Opening a new entry while one is still open drops the open one, as does
// reaching the end of input. A brace-delimited entry whose body closes on its
// start line is closed immediately. Lines outside any entry are ignored.
func (p *Parser) Entries(lines iter.Seq[string]) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		var (
			inside bool
			group  []string
			start  int
			n      int
		)
		for line := range lines {
			n++
			if strings.HasPrefix(line, "@") {
				if inside {
					p.drop(start, group[0])
				}
				inside = true
				group = nil
				start = n
			}
			if !inside {
				continue
			}
			group = append(group, line)
			if strings.HasPrefix(line, "}") || (n == start && closesOnStartLine(line)) {
				inside = false
				if !yield(Record{Lines: group, Source: p.Source, Line: start}) {
					return
				}
				group = nil
			}
		}
		if inside {
			p.drop(start, group[0])
		}
	}
}

func (p *Parser) drop(line int, startLine string) {
	if p.OnDropped != nil {
		p.OnDropped(Dropped{Source: p.Source, Line: line, Start: startLine})
	}
}

// braceEntryStart matches a start line whose entry body is brace-delimited.
var braceEntryStart = regexp.MustCompile(`^@[^{(]*\{`)

// closesOnStartLine reports whether a brace-delimited entry opened on line is
// also closed by the line's final brace.
func closesOnStartLine(line string) bool {
	if !braceEntryStart.MatchString(line) {
		return false
	}
	last := strings.LastIndex(line, "}")
	depth := 0
	for i, c := range line {
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth <= 0 {
				return depth == 0 && i == last
			}
		}
	}
	return false
}

// Lines splits s on line boundaries (LF or CRLF).
func Lines(s string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for line := range strings.Lines(s) {
			if !yield(trimEOL(line)) {
				return
			}
		}
	}
}

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// ParseString parses BibTeX text held in memory.
func ParseString(s, source string) ([]Record, []Dropped) {
	var dropped []Dropped
	p := &Parser{Source: source, OnDropped: func(d Dropped) { dropped = append(dropped, d) }}

	var records []Record
	for rec := range p.Entries(Lines(s)) {
		records = append(records, rec)
	}
	return records, dropped
}

// ParseReader parses BibTeX text from r. Input is decoded as UTF-8, or as
// UTF-16 when it starts with a UTF-16 byte order mark, and NFC-normalized.
func ParseReader(r io.Reader, source string) ([]Record, []Dropped, error) {
	decoded := transform.NewReader(r, transform.Chain(
		unicode.BOMOverride(unicode.UTF8.NewDecoder()),
		norm.NFC,
	))

	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineCapacity)
	lines := func(yield func(string) bool) {
		for scanner.Scan() {
			if !yield(trimEOL(scanner.Text())) {
				return
			}
		}
	}

	var dropped []Dropped
	p := &Parser{Source: source, OnDropped: func(d Dropped) { dropped = append(dropped, d) }}

	var records []Record
	for rec := range p.Entries(lines) {
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", source, err)
	}
	return records, dropped, nil
}

// ReadFile parses the .bib file at path into a RecordSet named after path.
func ReadFile(path string) (RecordSet, []Dropped, error) {
	f, err := os.Open(path)
	if err != nil {
		return RecordSet{}, nil, fmt.Errorf("opening bib file: %w", err)
	}
	defer f.Close()

	records, dropped, err := ParseReader(f, path)
	if err != nil {
		return RecordSet{}, nil, err
	}
	return RecordSet{Source: path, Records: records}, dropped, nil
}

// ReadFiles parses each path in order. It stops at the first I/O error.
func ReadFiles(paths []string) ([]RecordSet, []Dropped, error) {
	sets := make([]RecordSet, 0, len(paths))
	var dropped []Dropped
	for _, path := range paths {
		set, d, err := ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		sets = append(sets, set)
		dropped = append(dropped, d...)
	}
	return sets, dropped, nil
}
