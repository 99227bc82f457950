// Package pdfload extracts ordered page texts from stored PDF files.
// The extraction library is consumed as a black box; pipelines only see
// the Loader contract.
package pdfload

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/docuery/docuery/internal/chunker"
)

// Loader yields the ordered page texts of a stored document with their
// 0-based page indices. Zero pages is a distinct condition the caller
// must handle.
type Loader interface {
	Load(path string) ([]chunker.Page, error)
}

// FileLoader reads PDFs from the local filesystem.
type FileLoader struct{}

func (FileLoader) Load(path string) ([]chunker.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var pages []chunker.Page
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// Pages with undecodable content streams contribute no text
			// but keep their position in the sequence.
			continue
		}
		pages = append(pages, chunker.Page{Text: text, Index: i - 1})
	}
	return pages, nil
}
