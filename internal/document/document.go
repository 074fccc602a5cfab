package document

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dwillcox/pybib/internal/bibtex"
)

// FileKind is the JabRef file type recorded for linked documents.
const FileKind = "PDF"

// FileFieldName is the BibTeX field linking a record to its document.
const FileFieldName = "File"

var (
	// ErrNoIdentifier means the document carries no DOI or arXiv ID.
	ErrNoIdentifier = errors.New("no DOI or arXiv ID found")

	// ErrNotFound means ADS returned no paper for the identifier.
	ErrNotFound = errors.New("no ADS match")

	// ErrAmbiguous means ADS returned more than one paper for the identifier.
	ErrAmbiguous = errors.New("multiple ADS matches")

	// ErrNoExport means ADS exported no BibTeX for the resolved bibcode.
	ErrNoExport = errors.New("no BibTeX exported")

	// ErrUnresolved is returned when saving a document without a record.
	ErrUnresolved = errors.New("document not resolved")
)

// Document is a PDF being resolved to a BibTeX record.
type Document struct {
	Path       string
	ID         Identifier
	Bibcode    string
	Candidates []string // set when ADS returned several bibcodes
	Record     *bibtex.Record
	Err        error // why the document is unresolved, if it is
}

// Resolved reports whether the document has a record ready to save.
func (d *Document) Resolved() bool {
	return d.Record != nil
}

// Save writes the document's record, linked back to the document file, to
// <dir>/<bibcode>.bib and returns the written path.
func Save(doc *Document, dir string) (string, error) {
	if !doc.Resolved() {
		return "", fmt.Errorf("%s: %w", doc.Path, ErrUnresolved)
	}

	rec, err := doc.Record.WithField(FileFieldName, bibtex.FileField(doc.Path, FileKind))
	if err != nil {
		return "", fmt.Errorf("linking %s: %w", doc.Path, err)
	}

	path := filepath.Join(dir, doc.Bibcode+".bib")
	if err := bibtex.WriteRecordFile(path, rec); err != nil {
		return "", err
	}
	return path, nil
}
