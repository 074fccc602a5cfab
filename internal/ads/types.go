// Package ads provides a client for the NASA Astrophysics Data System API.
package ads

// Paper is one document returned by an ADS search.
type Paper struct {
	Bibcode    string   `json:"bibcode"`
	Title      []string `json:"title,omitempty"`
	DOI        []string `json:"doi,omitempty"`
	Identifier []string `json:"identifier,omitempty"`
}

// searchResponse is the body of /search/query.
type searchResponse struct {
	Response struct {
		NumFound int     `json:"numFound"`
		Docs     []Paper `json:"docs"`
	} `json:"response"`
	Error *struct {
		Msg string `json:"msg"`
	} `json:"error,omitempty"`
}

// exportRequest is the body sent to /export/bibtex.
type exportRequest struct {
	Bibcode []string `json:"bibcode"`
}

// exportResponse is the body of /export/bibtex.
type exportResponse struct {
	Msg    string `json:"msg"`
	Export string `json:"export"`
}
