package claim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/zombor/superclaims/internal/llm"
)

const processExcerptChars = 3000

// Processor extracts the structured fields of one document category.
type Processor interface {
	Category() Category
	// Process always returns a Document of the processor's category. On
	// failure every optional field is nil and the error wraps ErrFieldExtractionFailed.
	Process(ctx context.Context, text string) (Document, error)
}

type fieldProcessor struct {
	category Category
	prompt   string
	build    func(fields map[string]any) Document
	fallback Document
	client   llm.Client
}

// NewBillProcessor extracts hospital bills.
func NewBillProcessor(client llm.Client) Processor {
	return &fieldProcessor{
		category: CategoryBill,
		prompt:   billPrompt,
		client:   client,
		fallback: Bill{Items: []BillItem{}},
		build: func(f map[string]any) Document {
			return Bill{
				HospitalName:  coerceString(f["hospital_name"]),
				TotalAmount:   coerceNumber(f["total_amount"]),
				DateOfService: coerceDate(f["date_of_service"]),
				Items:         []BillItem{},
			}
		},
	}
}

// NewDischargeSummaryProcessor extracts discharge summaries.
func NewDischargeSummaryProcessor(client llm.Client) Processor {
	return &fieldProcessor{
		category: CategoryDischargeSummary,
		prompt:   dischargeSummaryPrompt,
		client:   client,
		fallback: DischargeSummary{},
		build: func(f map[string]any) Document {
			return DischargeSummary{
				PatientName:   coerceString(f["patient_name"]),
				Diagnosis:     coerceString(f["diagnosis"]),
				AdmissionDate: coerceDate(f["admission_date"]),
				DischargeDate: coerceDate(f["discharge_date"]),
				DoctorName:    coerceString(f["doctor_name"]),
			}
		},
	}
}

// NewIDCardProcessor extracts insurance ID cards.
func NewIDCardProcessor(client llm.Client) Processor {
	return &fieldProcessor{
		category: CategoryIDCard,
		prompt:   idCardPrompt,
		client:   client,
		fallback: IDCard{},
		build: func(f map[string]any) Document {
			return IDCard{
				PolicyNumber:      coerceString(f["policy_number"]),
				PatientName:       coerceString(f["patient_name"]),
				DOB:               coerceDate(f["dob"]),
				InsuranceProvider: coerceString(f["insurance_provider"]),
			}
		},
	}
}

func (p *fieldProcessor) Category() Category {
	return p.category
}

func (p *fieldProcessor) Process(ctx context.Context, text string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return p.fallback, fmt.Errorf("%w: %w", ErrFieldExtractionFailed, err)
	}

	prompt := fmt.Sprintf(p.prompt, truncate(text, processExcerptChars))
	raw, err := p.client.Complete(ctx, prompt)
	if err != nil {
		return p.fallback, fmt.Errorf("%w: calling model: %w", ErrFieldExtractionFailed, err)
	}
	slog.Debug("Processor raw response", "category", p.category, "response", raw)

	fields, err := decodeObject(raw)
	if err != nil {
		slog.Warn("Unparseable extraction response", "category", p.category, "response", raw)
		return p.fallback, fmt.Errorf("%w: %w", ErrFieldExtractionFailed, err)
	}
	return p.build(fields), nil
}

// decodeObject parses a (possibly fenced) JSON object.
func decodeObject(raw string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &fields); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("parsing response: expected a JSON object")
	}
	return fields, nil
}
