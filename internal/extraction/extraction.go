// Package extraction turns uploaded claim documents into plain text.
//
// PDFs are read through their embedded text layer first. When that yields too
// little text (scanned documents) or fails, each page is rendered and sent to
// the model's vision capability instead. Photos skip the text layer entirely.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zombor/superclaims/internal/cache"
	"github.com/zombor/superclaims/internal/llm"
	"github.com/zombor/superclaims/internal/metrics"
)

// Source records which path produced a document's text.
type Source string

const (
	SourceStructural Source = "structural"
	SourceVision     Source = "vision"
	SourceNone       Source = "none"
)

// ErrNoText is returned when neither path produced any text.
var ErrNoText = errors.New("no text extracted")

// RawDocument is one uploaded file.
type RawDocument struct {
	Filename    string
	Data        []byte
	ContentType string
}

// ExtractedText is the best-effort text of one RawDocument. Text is empty when
// extraction failed completely.
type ExtractedText struct {
	Filename string `json:"-"`
	Text     string `json:"text"`
	Source   Source `json:"source"`
}

// Config tunes extraction.
type Config struct {
	// MinTextChars is the shortest structural result accepted without vision fallback.
	MinTextChars int
	// RenderDPI is the resolution pages are rendered at for vision OCR.
	RenderDPI float64
	// MaxPages caps how many pages are sent to vision OCR. Zero means no cap.
	MaxPages int
	// VisionConcurrency bounds parallel page OCR calls for one document.
	VisionConcurrency int
	// CacheTTL is passed to the cache on every write. Zero uses the cache's default.
	CacheTTL time.Duration
}

// DefaultConfig returns the standard extraction settings.
func DefaultConfig() Config {
	return Config{
		MinTextChars:      50,
		RenderDPI:         200,
		MaxPages:          10,
		VisionConcurrency: 2,
	}
}

// Extractor extracts text from claim documents.
type Extractor struct {
	client   llm.Client
	layer    TextLayer
	renderer Renderer
	cfg      Config
	cache    cache.Cache
	metrics  *metrics.Pipeline
}

// New creates an Extractor using the real PDF text layer and renderer.
// store and m may be nil.
func New(client llm.Client, cfg Config, store cache.Cache, m *metrics.Pipeline) *Extractor {
	return NewWithDeps(client, PDFTextLayer{}, FitzRenderer{}, cfg, store, m)
}

// NewWithDeps creates an Extractor with explicit PDF collaborators (useful for testing).
func NewWithDeps(client llm.Client, layer TextLayer, renderer Renderer, cfg Config, store cache.Cache, m *metrics.Pipeline) *Extractor {
	def := DefaultConfig()
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = def.MinTextChars
	}
	if cfg.RenderDPI <= 0 {
		cfg.RenderDPI = def.RenderDPI
	}
	if cfg.VisionConcurrency <= 0 {
		cfg.VisionConcurrency = def.VisionConcurrency
	}

	return &Extractor{
		client:   client,
		layer:    layer,
		renderer: renderer,
		cfg:      cfg,
		cache:    store,
		metrics:  m,
	}
}

// Extract returns the text of doc. The returned ExtractedText is always usable;
// a non-nil error explains why its Text is empty.
func (e *Extractor) Extract(ctx context.Context, doc RawDocument) (ExtractedText, error) {
	key := cache.Key("extract", doc.Data)
	if cached, ok := e.cached(key); ok {
		slog.Info("Using cached extraction", "filename", doc.Filename, "chars", utf8.RuneCountInString(cached.Text), "source", cached.Source)
		e.metrics.RecordExtraction("cache")
		cached.Filename = doc.Filename
		return cached, nil
	}

	result, err := e.extract(ctx, doc)
	result.Filename = doc.Filename
	result.Text = strings.TrimSpace(result.Text)
	if result.Text == "" {
		result.Source = SourceNone
		if err == nil {
			err = ErrNoText
		}
		e.metrics.RecordExtraction(string(SourceNone))
		return result, err
	}

	e.metrics.RecordExtraction(string(result.Source))
	e.store(key, result)
	return result, nil
}

func (e *Extractor) extract(ctx context.Context, doc RawDocument) (ExtractedText, error) {
	contentType := ContentType(doc.Filename, doc.ContentType, doc.Data)
	if isImageType(contentType) {
		text, err := e.visionImage(ctx, doc, contentType)
		if err != nil {
			return ExtractedText{}, fmt.Errorf("reading image with vision: %w", err)
		}
		return ExtractedText{Text: text, Source: SourceVision}, nil
	}

	structural, err := e.structural(doc)
	if err != nil {
		slog.Warn("Structural extraction failed, falling back to vision", "filename", doc.Filename, "error", err)
		text, verr := e.visionPDF(ctx, doc)
		if verr != nil {
			return ExtractedText{}, fmt.Errorf("structural: %v; vision: %w", err, verr)
		}
		return ExtractedText{Text: text, Source: SourceVision}, nil
	}

	chars := utf8.RuneCountInString(strings.TrimSpace(structural))
	if chars >= e.cfg.MinTextChars {
		slog.Info("Extracted text layer", "filename", doc.Filename, "chars", chars)
		return ExtractedText{Text: structural, Source: SourceStructural}, nil
	}

	slog.Info("Minimal text layer, using vision OCR", "filename", doc.Filename, "chars", chars)
	text, err := e.visionPDF(ctx, doc)
	if strings.TrimSpace(text) != "" {
		return ExtractedText{Text: text, Source: SourceVision}, nil
	}
	// The short text layer is discarded even when vision finds nothing.
	if err != nil {
		return ExtractedText{}, fmt.Errorf("reading pdf with vision: %w", err)
	}
	return ExtractedText{}, nil
}

// structural joins the non-empty pages of the PDF text layer, one per line.
func (e *Extractor) structural(doc RawDocument) (string, error) {
	pages, err := e.layer.Pages(doc.Data)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		text.WriteString(page)
		text.WriteString("\n")
	}
	return text.String(), nil
}

func (e *Extractor) cached(key string) (ExtractedText, bool) {
	if e.cache == nil {
		return ExtractedText{}, false
	}
	data, ok := e.cache.Get(key)
	if !ok {
		return ExtractedText{}, false
	}

	var result ExtractedText
	if err := json.Unmarshal(data, &result); err != nil || strings.TrimSpace(result.Text) == "" {
		_ = e.cache.Delete(key)
		return ExtractedText{}, false
	}
	return result, true
}

func (e *Extractor) store(key string, result ExtractedText) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := e.cache.Set(key, data, e.cfg.CacheTTL); err != nil {
		slog.Warn("Failed to cache extraction", "filename", result.Filename, "error", err)
	}
}
