package claim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zombor/superclaims/internal/llm"
)

// Status is the claim decision.
type Status string

const (
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPending  Status = "pending"
)

// Decision is the recommendation for the whole claim.
type Decision struct {
	Status Status `json:"status"`
	Reason string `json:"reason"`
}

// ValidationReport is the outcome of validating a claim's documents.
type ValidationReport struct {
	MissingDocuments []Category
	Discrepancies    []string
	Decision         Decision
}

const (
	noDocumentsDiscrepancy  = "No documents were successfully processed"
	noDocumentsReason       = "No documents provided or all documents failed processing"
	unvalidatedDiscrepancy  = "Could not perform automated validation"
	unvalidatedReason       = "Manual review required due to validation errors"
	defaultValidationReason = "Validation completed"
)

const validationResponseSchema = `{
  "type": "object",
  "properties": {
    "discrepancies": {
      "type": ["array", "null"],
      "items": {"type": "string"}
    },
    "approval_recommendation": {
      "enum": ["approved", "rejected", "pending", null]
    },
    "reason": {"type": ["string", "null"]}
  }
}`

type validationResponse struct {
	Discrepancies          []string `json:"discrepancies"`
	ApprovalRecommendation *Status  `json:"approval_recommendation"`
	Reason                 *string  `json:"reason"`
}

// Validator checks a claim for missing documents and asks the model for cross-document discrepancies.
type Validator struct {
	client llm.Client
	schema *jsonschema.Schema
}

func NewValidator(client llm.Client) *Validator {
	return &Validator{
		client: client,
		schema: jsonschema.MustCompileString("validation_response.json", validationResponseSchema),
	}
}

// Validate always returns a usable ValidationReport. Missing documents are computed
// locally; if the model call fails the report asks for manual review and the
// error wraps ErrValidationFailed.
func (v *Validator) Validate(ctx context.Context, docs []Document) (ValidationReport, error) {
	missing := MissingCategories(docs)
	slog.Info("Validating claim", "documents", len(docs), "missing", missing)

	if len(docs) == 0 {
		return ValidationReport{
			MissingDocuments: missing,
			Discrepancies:    []string{noDocumentsDiscrepancy},
			Decision:         Decision{Status: StatusRejected, Reason: noDocumentsReason},
		}, nil
	}

	resp, err := v.ask(ctx, docs)
	if err != nil {
		return ValidationReport{
			MissingDocuments: missing,
			Discrepancies:    []string{unvalidatedDiscrepancy},
			Decision:         Decision{Status: StatusPending, Reason: unvalidatedReason},
		}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	report := ValidationReport{
		MissingDocuments: missing,
		Discrepancies:    resp.Discrepancies,
		Decision:         Decision{Status: StatusPending, Reason: defaultValidationReason},
	}
	if report.Discrepancies == nil {
		report.Discrepancies = []string{}
	}
	if resp.ApprovalRecommendation != nil {
		report.Decision.Status = *resp.ApprovalRecommendation
	}
	if resp.Reason != nil {
		report.Decision.Reason = *resp.Reason
	}
	return report, nil
}

func (v *Validator) ask(ctx context.Context, docs []Document) (*validationResponse, error) {
	serialized, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling documents: %w", err)
	}

	raw, err := v.client.Complete(ctx, fmt.Sprintf(validatePrompt, serialized))
	if err != nil {
		return nil, fmt.Errorf("calling model: %w", err)
	}
	slog.Debug("Validator raw response", "response", raw)

	var decoded any
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &decoded); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if obj, ok := decoded.(map[string]any); ok {
		if rec, ok := obj["approval_recommendation"].(string); ok {
			obj["approval_recommendation"] = strings.ToLower(strings.TrimSpace(rec))
		}
	}
	if err := v.schema.Validate(decoded); err != nil {
		return nil, fmt.Errorf("checking response: %w", err)
	}

	normalized, err := json.Marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("normalizing response: %w", err)
	}
	var resp validationResponse
	if err := json.Unmarshal(normalized, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}
