// Package document resolves PDF articles to ADS BibTeX records.
package document

import (
	"context"
	"regexp"
	"strings"

	"github.com/dwillcox/pybib/internal/pdf"
)

// Patterns handed to the extractor. They must be valid for both Go regexps
// and PCRE, since pdfgrep evaluates them with -P.
const (
	DOIPattern   = `doi\s*:\s*[^ "'\n]*`
	ArXivPattern = `arXiv:[0-9.]+v?[0-9]* \[[a-zA-Z-.]+\] [0-9]{1,2} [a-zA-Z]+ [0-9]{4}`
)

var (
	doiCapture   = regexp.MustCompile(`(?i)doi\s*:\s*(\S*)`)
	arxivCapture = regexp.MustCompile(`(?i)(arXiv:[0-9.]+)`)
)

// Identifier is what a document is looked up by. At most one field is set;
// a DOI always wins over an arXiv ID.
type Identifier struct {
	DOI   string `json:"doi,omitempty"`
	ArXiv string `json:"arxiv,omitempty"`
}

// String returns the identifier as sent to ADS.
func (id Identifier) String() string {
	if id.DOI != "" {
		return id.DOI
	}
	return id.ArXiv
}

// IsZero reports whether no identifier was found.
func (id Identifier) IsZero() bool {
	return id.DOI == "" && id.ArXiv == ""
}

// Identify searches the file at path for a labelled DOI, then an unlabelled
// DOI, then an arXiv stamp. A zero Identifier with a nil error means the file
// carries none of them.
func Identify(ctx context.Context, ex pdf.Extractor, path string) (Identifier, error) {
	out, err := ex.Grep(ctx, path, DOIPattern)
	if err != nil {
		return Identifier{}, err
	}
	if doi := firstCapture(doiCapture, out); doi != "" {
		return Identifier{DOI: strings.TrimRight(doi, ".,;:)")}, nil
	}

	out, err = ex.Grep(ctx, path, pdf.BareDOIPattern)
	if err != nil {
		return Identifier{}, err
	}
	if doi := pdf.FindBareDOI(out); doi != "" {
		return Identifier{DOI: doi}, nil
	}

	out, err = ex.Grep(ctx, path, ArXivPattern)
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{ArXiv: firstCapture(arxivCapture, out)}, nil
}

// firstCapture returns the first non-empty capture of re over the lines of out.
func firstCapture(re *regexp.Regexp, out string) string {
	for line := range strings.Lines(out) {
		if m := re.FindStringSubmatch(line); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v
			}
		}
	}
	return ""
}
