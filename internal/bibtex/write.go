package bibtex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoClosingBrace is returned when a record has no closing brace to insert
// a field before.
var ErrNoClosingBrace = errors.New("record has no closing brace")

// Write writes every record of idx in index order, each followed by one
// blank line.
func Write(w io.Writer, idx *Index) error {
	bw := bufio.NewWriter(w)
	for _, rec := range idx.All() {
		for _, line := range rec.Lines {
			bw.WriteString(line)
			bw.WriteByte('\n')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteFile writes idx to path atomically.
func WriteFile(path string, idx *Index) error {
	return writeAtomic(path, func(w io.Writer) error {
		return Write(w, idx)
	})
}

// WriteRecordFile writes a single record to path atomically.
func WriteRecordFile(path string, rec Record) error {
	return writeAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, rec.String())
		return err
	})
}

// writeAtomic writes to a temp file in the target directory and renames it
// over path.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*.bib")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := write(tmpFile); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}

// FileField formats a JabRef-style file link: ":name:KIND".
func FileField(sourceName, sourceKind string) string {
	return fmt.Sprintf(":%s:%s", sourceName, sourceKind)
}

// WithField returns a copy of rec with `name = {value}` added as its last field,
// just before the closing brace of the entry.
func (r Record) WithField(name, value string) (Record, error) {
	last := len(r.Lines) - 1
	if last < 0 {
		return Record{}, ErrNoClosingBrace
	}
	closing := r.Lines[last]
	brace := strings.LastIndex(closing, "}")
	if brace < 0 {
		return Record{}, ErrNoClosingBrace
	}

	field := fmt.Sprintf("%s = {%s}", name, value)
	lines := append([]string(nil), r.Lines...)

	head := strings.TrimRight(closing[:brace], " \t")
	if strings.TrimSpace(head) != "" {
		// Closing brace shares a line with content: splice inline.
		lines[last] = withSeparator(head) + " " + field + closing[brace:]
		return Record{Lines: lines, Source: r.Source, Line: r.Line}, nil
	}

	if last > 0 {
		lines[last-1] = withSeparator(strings.TrimRight(lines[last-1], " \t"))
	}
	lines = append(lines[:last], "  "+field, closing)
	return Record{Lines: lines, Source: r.Source, Line: r.Line}, nil
}

// withSeparator appends a comma unless s already ends a field list element
// or opens the entry. A trailing % comment stays after the comma.
func withSeparator(s string) string {
	code, comment := splitComment(s)
	code = strings.TrimRight(code, " \t")
	if !strings.HasSuffix(code, ",") && !strings.HasSuffix(code, "{") {
		code += ","
	}
	if comment == "" {
		return code
	}
	return code + " " + comment
}

// splitComment splits s at the first % outside braces and quotes. Escaped \%
// is not a comment.
func splitComment(s string) (string, string) {
	depth := 0
	quoted := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case '"':
			if depth == 0 {
				quoted = !quoted
			}
		case '%':
			if depth == 0 && !quoted {
				return s[:i], s[i:]
			}
		}
	}
	return s, ""
}
