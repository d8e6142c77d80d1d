// Package chunker splits extracted text into bounded fragments for embedding.
package chunker

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultSize is the default maximum chunk length in runes.
	DefaultSize = 800
	// DefaultOverlap is the default window overlap for oversized sentences.
	DefaultOverlap = 150
)

// ErrInvalidParams is returned when size and overlap do not satisfy 0 <= overlap < size.
var ErrInvalidParams = errors.New("chunker: require size > 0 and 0 <= overlap < size")

// Split breaks text into sentence-aligned chunks of at most size runes.
//
// Sentences are packed greedily, joined by a single space. A sentence longer
// than size is cut into windows of size runes with stride size-overlap; this is
// the only place overlap applies.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w (size=%d, overlap=%d)", ErrInvalidParams, size, overlap)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}, nil
	}

	var (
		chunks []string
		buf    strings.Builder
		bufLen int
	)

	flush := func() {
		if bufLen > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
			bufLen = 0
		}
	}

	for _, s := range sentences(text) {
		n := utf8.RuneCountInString(s)

		joined := n
		if bufLen > 0 {
			joined += bufLen + 1
		}
		if joined <= size {
			if bufLen > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(s)
			bufLen = joined
			continue
		}

		flush()
		if n > size {
			chunks = append(chunks, windows(s, size, size-overlap)...)
			continue
		}
		buf.WriteString(s)
		bufLen = n
	}
	flush()

	return chunks, nil
}

// sentences splits text after '.', '!' or '?' when followed by whitespace.
// The whitespace run between sentences is dropped.
func sentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
		default:
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		out = append(out, string(runes[start:i+1]))
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func windows(s string, size, stride int) []string {
	runes := []rune(s)
	var out []string
	for i := 0; i < len(runes); i += stride {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// SplitRows renders every data row of a CSV document as one chunk of
// "column: value" pairs separated by " | ". Row length limits do not apply.
func SplitRows(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	rows := []string{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", len(rows), err)
		}
		if isBlank(record) {
			continue
		}

		items := make([]string, len(header))
		for i, col := range header {
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			items[i] = col + ": " + value
		}
		rows = append(rows, strings.Join(items, " | "))
	}

	return rows, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
