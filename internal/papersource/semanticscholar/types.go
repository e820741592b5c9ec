// Package semanticscholar provides a client for the Semantic Scholar
// Graph API paper search endpoint.
//
// API documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// SearchResponse represents the response from the paper search endpoint.
type SearchResponse struct {
	// Total is the total number of papers matching the query.
	Total int `json:"total"`

	// Offset is the current offset in the result set.
	Offset int `json:"offset"`

	// Next is the offset for the next page of results.
	// A value of 0 indicates no more results.
	Next int `json:"next"`

	// Data contains the list of papers returned by the search, in the
	// order chosen by the upstream. That order is not contractually
	// stable and must not be relied upon beyond display.
	Data []PaperResult `json:"data"`
}

// PaperResult represents a single paper in the API response.
type PaperResult struct {
	// PaperID is the Semantic Scholar unique identifier for the paper.
	PaperID string `json:"paperId"`

	// Title is the title of the paper.
	Title string `json:"title"`

	// Abstract is the paper's abstract text.
	Abstract string `json:"abstract"`

	// Year is the publication year.
	Year int `json:"year"`

	// Authors is the list of paper authors.
	Authors []Author `json:"authors"`

	// URL is the Semantic Scholar landing page for the paper.
	URL string `json:"url"`

	// OpenAccessPDF contains information about the open access PDF if available.
	OpenAccessPDF *OpenAccessPDF `json:"openAccessPdf,omitempty"`
}

// Author represents a paper author in the API response.
type Author struct {
	// AuthorID is the Semantic Scholar unique identifier for the author.
	AuthorID string `json:"authorId,omitempty"`

	// Name is the author's name.
	Name string `json:"name"`
}

// OpenAccessPDF contains information about an open access PDF.
type OpenAccessPDF struct {
	// URL is the direct URL to the PDF.
	URL string `json:"url,omitempty"`

	// Status indicates the open access status (e.g. "HYBRID", "GOLD", "GREEN").
	Status string `json:"status,omitempty"`
}

// ErrorResponse represents an error response from the API.
type ErrorResponse struct {
	// Error is the error message from the API.
	Error string `json:"error,omitempty"`

	// Message is an alternative error message field.
	Message string `json:"message,omitempty"`
}
