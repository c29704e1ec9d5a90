package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

const ocrPrompt = `
Extract ALL text from this document image exactly as it appears.
Include:
- Patient names
- Bill numbers, policy numbers
- All amounts and charges
- All dates
- Doctor names
- Diagnoses
- Any other text visible

Return only the extracted text in a clear, organized format.
`

// visionPDF renders each page and OCRs it with the model. A failing page is
// skipped; the error is only returned when the document could not be opened
// or ctx ended.
func (e *Extractor) visionPDF(ctx context.Context, doc RawDocument) (string, error) {
	pages, err := e.renderer.Open(doc.Data)
	if err != nil {
		return "", err
	}
	defer pages.Close()

	total := pages.Count()
	count := total
	if e.cfg.MaxPages > 0 && count > e.cfg.MaxPages {
		slog.Warn("Document exceeds page limit, truncating vision OCR", "filename", doc.Filename, "pages", total, "max_pages", e.cfg.MaxPages)
		count = e.cfg.MaxPages
	}
	slog.Info("Processing pages with vision OCR", "filename", doc.Filename, "pages", count)

	results := make([]string, count)
	var g errgroup.Group
	g.SetLimit(e.cfg.VisionConcurrency)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			image, err := pages.PNG(i, e.cfg.RenderDPI)
			if err != nil {
				slog.Error("Failed to render page", "filename", doc.Filename, "page", i+1, "error", err)
				return nil
			}
			text, err := e.client.CompleteWithImage(ctx, ocrPrompt, image, "image/png")
			if err != nil {
				slog.Error("Vision OCR failed for page", "filename", doc.Filename, "page", i+1, "error", err)
				return nil
			}
			results[i] = strings.TrimSpace(text)
			if results[i] == "" {
				slog.Warn("No text extracted from page", "filename", doc.Filename, "page", i+1, "pages", count)
			} else {
				slog.Info("Vision OCR extracted page", "filename", doc.Filename, "page", i+1, "pages", count, "chars", utf8.RuneCountInString(results[i]))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return joinPages(results), nil
}

// visionImage OCRs an uploaded photo as a single page.
func (e *Extractor) visionImage(ctx context.Context, doc RawDocument, contentType string) (string, error) {
	image, err := imageToPNG(doc.Data, contentType)
	if err != nil {
		return "", err
	}

	text, err := e.client.CompleteWithImage(ctx, ocrPrompt, image, "image/png")
	if err != nil {
		return "", fmt.Errorf("vision OCR: %w", err)
	}
	return joinPages([]string{strings.TrimSpace(text)}), nil
}

// joinPages lays out page texts under "--- Page N ---" headers, skipping empty pages.
func joinPages(pages []string) string {
	var text strings.Builder
	for i, page := range pages {
		if page == "" {
			continue
		}
		fmt.Fprintf(&text, "\n--- Page %d ---\n%s\n", i+1, page)
	}
	return text.String()
}
