// Package pdf searches PDF files for identifier patterns.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxPages is how many leading pages the native extractor searches.
// Identifiers are almost always on the first page.
const DefaultMaxPages = 3

// ErrExtractor is returned when the extraction tool reports an error.
var ErrExtractor = errors.New("text extraction failed")

// Extractor searches a document for a pattern. Matches are returned one per
// line; no match returns "" and a nil error.
type Extractor interface {
	Grep(ctx context.Context, path, pattern string) (string, error)
}

// New returns the extractor with the given name: "native" (default) or "pdfgrep".
func New(name string) (Extractor, error) {
	switch name {
	case "", "native":
		return &Native{MaxPages: DefaultMaxPages}, nil
	case "pdfgrep":
		return &PDFGrep{}, nil
	}
	return nil, fmt.Errorf("invalid extractor: %s (valid: native, pdfgrep)", name)
}

// Native extracts text in-process and matches patterns with Go regexps.
type Native struct {
	MaxPages int // 0 searches every page
}

// Grep matches pattern case-insensitively against the document info
// dictionary and the text of the first MaxPages pages.
func (n *Native) Grep(ctx context.Context, path, pattern string) (string, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return "", fmt.Errorf("compiling pattern: %w", err)
	}

	text, err := ExtractText(ctx, path, n.MaxPages)
	if err != nil {
		return "", err
	}
	return strings.Join(re.FindAllString(text, -1), "\n"), nil
}

// ExtractText returns the Subject and Keywords metadata followed by the text
// of the first maxPages pages of a PDF.
func ExtractText(ctx context.Context, filePath string, maxPages int) (string, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: opening %s: %v", ErrExtractor, filePath, err)
	}
	defer f.Close()

	var builder strings.Builder

	info := r.Trailer().Key("Info")
	for _, key := range []string{"Subject", "Keywords"} {
		if v := info.Key(key).Text(); v != "" {
			builder.WriteString(v)
			builder.WriteString("\n")
		}
	}

	if maxPages <= 0 || maxPages > r.NumPage() {
		maxPages = r.NumPage()
	}

	for i := 1; i <= maxPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

// PDFGrep runs the external pdfgrep tool.
type PDFGrep struct {
	Command string // Defaults to "pdfgrep" on PATH
}

// Grep runs `pdfgrep -ioP pattern path`. Anything written to stderr is
// treated as a failure for this file.
func (g *PDFGrep) Grep(ctx context.Context, path, pattern string) (string, error) {
	command := g.Command
	if command == "" {
		command = "pdfgrep"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command, "-ioP", pattern, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if stderr.Len() > 0 {
		return "", fmt.Errorf("%w: %s", ErrExtractor, strings.TrimSpace(stderr.String()))
	}
	if err != nil {
		// pdfgrep exits 1 when nothing matched.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", nil
		}
		return "", fmt.Errorf("%w: running %s: %v", ErrExtractor, command, err)
	}

	return strings.TrimSpace(stdout.String()), nil
}
