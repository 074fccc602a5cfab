package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dwillcox/pybib/internal/bibtex"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// DocumentResult is one document in resolve output.
type DocumentResult struct {
	File       string   `json:"file"`
	DOI        string   `json:"doi,omitempty"`
	ArXiv      string   `json:"arxiv,omitempty"`
	Bibcode    string   `json:"bibcode,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	Output     string   `json:"output,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// ResolveResult is the response for resolve.
type ResolveResult struct {
	Documents []DocumentResult `json:"documents"`
	Resolved  int              `json:"resolved"`
	Failed    int              `json:"failed"`
}

// DuplicateInfo reports a replaced entry in merge output.
type DuplicateInfo struct {
	Key         string `json:"key"`
	Previous    string `json:"previous"`    // source:line of the replaced entry
	Replacement string `json:"replacement"` // source:line of the entry kept
}

// RejectedInfo reports an entry left out of merge output.
type RejectedInfo struct {
	Record string `json:"record"` // source:line
	Reason string `json:"reason"`
}

// MergeResult is the response for merge.
type MergeResult struct {
	Output     string           `json:"output"`
	Sources    []string         `json:"sources"`
	Records    int              `json:"records_read"`
	Written    int              `json:"records_written"`
	Duplicates []DuplicateInfo  `json:"duplicates"`
	Dropped    []bibtex.Dropped `json:"dropped"`
	Rejected   []RejectedInfo   `json:"rejected"`
}

// RootResult is the response for the combined flow.
type RootResult struct {
	TokenFile      string         `json:"token_file,omitempty"`
	Resolve        *ResolveResult `json:"resolve,omitempty"`
	ResolveSkipped []string       `json:"resolve_skipped,omitempty"` // files not looked up for lack of a token
	Merge          *MergeResult   `json:"merge,omitempty"`
}

// TokenResponse is the response for token show.
type TokenResponse struct {
	Token  string `json:"token"`
	Source string `json:"source,omitempty"`
}

// CacheInfoResponse is the response for cache info.
type CacheInfoResponse struct {
	Path    string `json:"path"`
	Size    int64  `json:"size_bytes"`
	Lookups int    `json:"lookups"`
	Entries int    `json:"entries"`
}

// location formats where a record starts.
func location(rec bibtex.Record) string {
	return fmt.Sprintf("%s:%d", rec.Source, rec.Line)
}

// maskToken hides all but the last four characters of a token.
func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}

// formatBytes formats bytes in a human-readable way.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
