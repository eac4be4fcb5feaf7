package document

import (
	"bytes"
	"fmt"
	"io"

	"docquorum/internal/util"

	"github.com/ledongthuc/pdf"
)

// ExtractPages returns the plain text of every page, in order.
func ExtractPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	return readPages(r)
}

// ExtractPagesFromBytes is ExtractPages for an in-memory upload.
func ExtractPagesFromBytes(b []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return readPages(r)
}

// ReadAllPages reads an upload fully before extracting.
func ReadAllPages(rd io.Reader) ([]string, error) {
	b, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return ExtractPagesFromBytes(b)
}

func readPages(r *pdf.Reader) ([]string, error) {
	n := r.NumPage()
	pages := make([]string, 0, n)
	found := false
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		text = util.SanitizeText(text)
		if text != "" {
			found = true
		}
		pages = append(pages, text)
	}
	if !found {
		return nil, util.ErrNoExtractableText
	}
	return pages, nil
}
