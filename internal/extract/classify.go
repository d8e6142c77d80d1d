// Package extract turns uploaded files and web pages into plain text.
package extract

import (
	"path/filepath"
	"strings"
)

// SourceType selects the extraction and chunking strategy for an item.
type SourceType int

const (
	// PlainText covers .txt, .md, .html and any unrecognized extension.
	PlainText SourceType = iota
	// Pdf is a PDF document; text is extracted page by page.
	Pdf
	// Tabular is a CSV document chunked one row at a time.
	Tabular
	// URL is a web page fetched over HTTP.
	URL
)

func (s SourceType) String() string {
	switch s {
	case Pdf:
		return "pdf"
	case Tabular:
		return "tabular"
	case URL:
		return "url"
	default:
		return "plain_text"
	}
}

// Classify picks the SourceType for an uploaded file by extension,
// case-insensitively. URLs are never classified by name.
func Classify(name string) SourceType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return Pdf
	case ".csv":
		return Tabular
	default:
		return PlainText
	}
}
