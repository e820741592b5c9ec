// Package domain defines the core types shared by the retrieval and
// indexing components.
package domain

import "strings"

// Author represents a paper author as reported by the upstream catalog.
type Author struct {
	Name string `json:"name"`
}

// PaperRecord is one retrieved publication.
//
// ID is the stable identifier assigned by the upstream catalog and is
// unique per source. A record without an ID or abstract can still be
// downloaded and displayed but is not eligible for indexing.
type PaperRecord struct {
	// ID is the upstream paper identifier.
	ID string

	// Title is the paper title.
	Title string

	// Abstract is the paper abstract. Empty when the upstream does not
	// provide one.
	Abstract string

	// Year is the publication year.
	Year int

	// Authors is the ordered author list.
	Authors []Author

	// URL is the upstream landing page for the paper.
	URL string

	// OpenAccessPDFURL is the open-access artifact location, if any.
	OpenAccessPDFURL string

	// LocalFilePath is the absolute path of the downloaded artifact.
	// Empty until a fetch succeeds; set at most once.
	LocalFilePath string
}

// Indexable reports whether the record carries enough data to become an
// index entry: a non-empty abstract and a stable identifier.
func (p *PaperRecord) Indexable() bool {
	return p.ID != "" && p.Abstract != ""
}

// AuthorNames returns the author names joined with ", ", matching the
// format stored in index entry metadata.
func (p *PaperRecord) AuthorNames() string {
	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}
