package claim

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zombor/superclaims/internal/llm"
	"github.com/zombor/superclaims/internal/metrics"
)

const classifyExcerptChars = 1000

// Classifier assigns a Category to extracted document text.
type Classifier struct {
	client  llm.Client
	metrics *metrics.Pipeline
}

// NewClassifier creates a Classifier. m may be nil.
func NewClassifier(client llm.Client, m *metrics.Pipeline) *Classifier {
	return &Classifier{client: client, metrics: m}
}

// Classify returns the document's category. Keyword rules are tried first;
// only text they cannot place is sent to the model. On failure it returns
// CategoryOther with an error wrapping ErrClassificationFailed.
func (c *Classifier) Classify(ctx context.Context, filename, text string) (Category, error) {
	if category, ok := classifyByKeywords(text); ok {
		slog.Info("Classified document by keywords", "filename", filename, "category", category)
		c.metrics.RecordClassification(string(category), "heuristic")
		return category, nil
	}

	category, err := c.classifyWithModel(ctx, text)
	c.metrics.RecordClassification(string(category), "model")
	if err != nil {
		return CategoryOther, err
	}
	slog.Info("Classified document with model", "filename", filename, "category", category)
	return category, nil
}

// classifyByKeywords applies the keyword rules in order; the first match wins.
func classifyByKeywords(text string) (Category, bool) {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "bill no") && (strings.Contains(lower, "amount") || strings.Contains(lower, "charges")) {
		return CategoryBill, true
	}
	if strings.Contains(lower, "discharge summary") || strings.Contains(lower, "discharged") {
		return CategoryDischargeSummary, true
	}
	if strings.Contains(lower, "policy") && strings.Contains(lower, "insurance") {
		return CategoryIDCard, true
	}
	return "", false
}

func (c *Classifier) classifyWithModel(ctx context.Context, text string) (Category, error) {
	prompt := fmt.Sprintf(classifyPrompt, truncate(text, classifyExcerptChars))

	raw, err := c.client.Complete(ctx, prompt)
	if err != nil {
		return CategoryOther, fmt.Errorf("%w: calling model: %w", ErrClassificationFailed, err)
	}
	slog.Debug("Classifier raw response", "response", raw)

	label := strings.TrimSpace(raw)
	category, ok := ParseCategory(label)
	if !ok {
		return CategoryOther, fmt.Errorf("%w: invalid label %q", ErrClassificationFailed, label)
	}
	return category, nil
}
