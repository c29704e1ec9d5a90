package extraction

import (
	"bytes"
	"fmt"
	"image/png"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// TextLayer reads the embedded text of each PDF page.
type TextLayer interface {
	Pages(data []byte) ([]string, error)
}

// Renderer opens a PDF for page rasterisation.
type Renderer interface {
	Open(data []byte) (Pages, error)
}

// Pages is an opened document whose pages can be rendered to PNG.
type Pages interface {
	Count() int
	PNG(index int, dpi float64) ([]byte, error)
	Close() error
}

// PDFTextLayer reads text layers with ledongthuc/pdf.
type PDFTextLayer struct{}

// Pages returns one string per page, empty for pages without text.
func (PDFTextLayer) Pages(data []byte) (pages []string, err error) {
	// The reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("reading pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// FitzRenderer renders pages with MuPDF through go-fitz.
type FitzRenderer struct{}

func (FitzRenderer) Open(data []byte) (Pages, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	return &fitzPages{doc: doc}, nil
}

// fitzPages serialises rendering; a MuPDF document is not safe for parallel use.
type fitzPages struct {
	mu  sync.Mutex
	doc *fitz.Document
}

func (p *fitzPages) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.NumPage()
}

func (p *fitzPages) PNG(index int, dpi float64) ([]byte, error) {
	p.mu.Lock()
	img, err := p.doc.ImageDPI(index, dpi)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page %d: %w", index+1, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *fitzPages) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Close()
}
