package extract

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_extract.go -package=mocks research-backend/internal/extract Extractor,Fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrNoText is returned when a source yields no usable text.
	ErrNoText = errors.New("no text extracted")
	// ErrUnsupported is returned for source types an extractor cannot handle.
	ErrUnsupported = errors.New("unsupported source type")
)

// Extractor turns an uploaded file into text.
type Extractor interface {
	Extract(ctx context.Context, name string, data []byte, st SourceType) (string, error)
}

// Fetcher retrieves a web page and returns its visible text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FileExtractor handles PDF, CSV and plain text uploads. Plain text is
// further refined by extension: markdown is rendered to text and HTML is
// stripped of markup.
type FileExtractor struct {
	markdown *MarkdownText
}

// NewFileExtractor creates a FileExtractor.
func NewFileExtractor() *FileExtractor {
	return &FileExtractor{markdown: NewMarkdownText()}
}

// Extract returns the text of data. CSV documents are returned as decoded
// CSV source so the caller can chunk them by row.
func (e *FileExtractor) Extract(ctx context.Context, name string, data []byte, st SourceType) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch st {
	case Pdf:
		return PDFText(data)
	case Tabular:
		return decodeText(data), nil
	case PlainText:
		switch strings.ToLower(filepath.Ext(name)) {
		case ".md", ".markdown":
			return e.markdown.Text(data), nil
		case ".html", ".htm":
			return HTMLText(bytes.NewReader(data))
		default:
			return decodeText(data), nil
		}
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, st)
	}
}

// decodeText decodes bytes as UTF-8, dropping a byte order mark and
// replacing invalid sequences.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD")
}
