package pdf

import (
	"regexp"
	"strings"
)

// BareDOIPattern matches a DOI without any "doi:" label: 10.XXXX/...
const BareDOIPattern = `10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`

var bareDOIRegex = regexp.MustCompile(BareDOIPattern)

// FindBareDOI finds the first plausible DOI in text.
func FindBareDOI(text string) string {
	for _, match := range bareDOIRegex.FindAllString(text, -1) {
		// Remove trailing punctuation
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return match
		}
	}
	return ""
}

// isValidDOI performs basic validation on a DOI.
func isValidDOI(doi string) bool {
	if len(doi) < 10 {
		return false
	}
	// Must start with 10. and have something after the /
	if !strings.HasPrefix(doi, "10.") {
		return false
	}
	slashIdx := strings.Index(doi, "/")
	if slashIdx == -1 || slashIdx >= len(doi)-1 {
		return false
	}
	return true
}
