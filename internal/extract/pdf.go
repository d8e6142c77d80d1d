package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFText extracts the text of every page, pages separated by blank lines.
// Documents the reader cannot open (broken xref tables, odd object streams)
// are rewritten by pdfcpu in relaxed mode and read again.
func PDFText(data []byte) (string, error) {
	r, err := openPDF(data)
	if err != nil {
		repaired, rerr := repairPDF(data)
		if rerr != nil {
			return "", fmt.Errorf("failed to read pdf: %w", err)
		}
		if r, err = openPDF(repaired); err != nil {
			return "", fmt.Errorf("failed to read repaired pdf: %w", err)
		}
	}

	return pageTexts(r)
}

func openPDF(data []byte) (r *pdf.Reader, err error) {
	// The reader panics on some malformed objects.
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func repairPDF(data []byte) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &out, conf); err != nil {
		return nil, fmt.Errorf("failed to repair pdf: %w", err)
	}
	return out.Bytes(), nil
}

func pageTexts(r *pdf.Reader) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("malformed pdf page: %v", p)
		}
	}()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}

		t, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		if t = strings.TrimSpace(t); t != "" {
			pages = append(pages, t)
		}
	}

	return strings.Join(pages, "\n\n"), nil
}
