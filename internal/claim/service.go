package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/zombor/superclaims/internal/extraction"
	"github.com/zombor/superclaims/internal/llm"
	"github.com/zombor/superclaims/internal/metrics"
)

// TextExtractor produces text from an uploaded file.
type TextExtractor interface {
	Extract(ctx context.Context, doc extraction.RawDocument) (extraction.ExtractedText, error)
}

// DocumentClassifier assigns categories to document text.
type DocumentClassifier interface {
	Classify(ctx context.Context, filename, text string) (Category, error)
}

// DocumentValidator validates the documents of one claim.
type DocumentValidator interface {
	Validate(ctx context.Context, docs []Document) (ValidationReport, error)
}

// IDGenerator generates claim IDs.
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// Config bounds a single claim.
type Config struct {
	// MaxFiles is the most files one claim may contain. Zero means no limit.
	MaxFiles int
}

// Validation is the completeness and consistency part of a Result.
type Validation struct {
	MissingDocuments []Category `json:"missing_documents"`
	Discrepancies    []string   `json:"discrepancies"`
}

// Result is the processed claim returned to the caller.
type Result struct {
	ClaimID       string     `json:"-"`
	Documents     []Document `json:"documents"`
	Validation    Validation `json:"validation"`
	ClaimDecision Decision   `json:"claim_decision"`
}

// Service runs claims through extraction, classification, field extraction and validation.
type Service struct {
	cfg         Config
	extractor   TextExtractor
	classifier  DocumentClassifier
	processors  map[Category]Processor
	validator   DocumentValidator
	idGenerator IDGenerator
	metrics     *metrics.Pipeline
}

// NewService creates a Service whose components all talk to client. m may be nil.
func NewService(cfg Config, extractor TextExtractor, client llm.Client, m *metrics.Pipeline) *Service {
	return NewServiceWithDeps(
		cfg,
		extractor,
		NewClassifier(client, m),
		[]Processor{
			NewBillProcessor(client),
			NewDischargeSummaryProcessor(client),
			NewIDCardProcessor(client),
		},
		NewValidator(client),
		uuidGenerator{},
		m,
	)
}

// NewServiceWithDeps creates a Service with custom dependencies for testing.
func NewServiceWithDeps(
	cfg Config,
	extractor TextExtractor,
	classifier DocumentClassifier,
	processors []Processor,
	validator DocumentValidator,
	idGen IDGenerator,
	m *metrics.Pipeline,
) *Service {
	byCategory := make(map[Category]Processor, len(processors))
	for _, p := range processors {
		byCategory[p.Category()] = p
	}

	return &Service{
		cfg:         cfg,
		extractor:   extractor,
		classifier:  classifier,
		processors:  byCategory,
		validator:   validator,
		idGenerator: idGen,
		metrics:     m,
	}
}

// ProcessClaim processes files in upload order and validates the resulting
// documents. Files that cannot be read or classified are skipped; the only
// errors returned are for the claim as a whole.
func (s *Service) ProcessClaim(ctx context.Context, files []extraction.RawDocument) (*Result, error) {
	if s.cfg.MaxFiles > 0 && len(files) > s.cfg.MaxFiles {
		return nil, fmt.Errorf("%w: got %d, limit is %d", ErrTooManyFiles, len(files), s.cfg.MaxFiles)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("processing claim: %w", err)
	}

	claimID := s.idGenerator.Generate()
	slog.Info("Processing claim", "claim_id", claimID, "files", len(files))

	docs := []Document{}
	for _, file := range files {
		if doc, ok := s.processFile(ctx, claimID, file); ok {
			docs = append(docs, doc)
		}
	}

	// A cancelled request has nobody to report to.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("processing claim: %w", err)
	}

	report, err := s.validator.Validate(ctx, docs)
	if err != nil {
		slog.Error("Validation degraded", "claim_id", claimID, "error", err)
		s.metrics.RecordDegraded("validation")
	}

	slog.Info("Claim processed",
		"claim_id", claimID,
		"documents", len(docs),
		"missing", report.MissingDocuments,
		"status", report.Decision.Status,
	)
	s.metrics.RecordClaim(string(report.Decision.Status), len(docs))

	return &Result{
		ClaimID:   claimID,
		Documents: docs,
		Validation: Validation{
			MissingDocuments: nonNil(report.MissingDocuments),
			Discrepancies:    nonNil(report.Discrepancies),
		},
		ClaimDecision: report.Decision,
	}, nil
}

// processFile runs one file through extraction, classification and field
// extraction. It reports false when the file contributes no document.
func (s *Service) processFile(ctx context.Context, claimID string, file extraction.RawDocument) (Document, bool) {
	log := slog.With("claim_id", claimID, "filename", file.Filename)

	extracted, err := s.extractor.Extract(ctx, file)
	if err != nil {
		log.Warn("Text extraction degraded", "error", fmt.Errorf("%w: %w", ErrExtractionFailed, err))
		s.metrics.RecordDegraded("extraction")
	}
	if strings.TrimSpace(extracted.Text) == "" {
		log.Warn("Skipping file without text")
		return nil, false
	}
	log.Info("Extracted text", "chars", len([]rune(extracted.Text)), "source", extracted.Source)

	category, err := s.classifier.Classify(ctx, file.Filename, extracted.Text)
	if err != nil {
		log.Warn("Classification degraded", "error", err)
		s.metrics.RecordDegraded("classification")
	}

	processor, ok := s.processors[category]
	if !ok {
		log.Info("Skipping unprocessable document", "category", category)
		return nil, false
	}

	doc, err := processor.Process(ctx, extracted.Text)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("Field extraction degraded", "category", category, "error", err)
		}
		s.metrics.RecordDegraded("field_extraction")
	}
	return doc, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
