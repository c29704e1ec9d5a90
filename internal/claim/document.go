// Package claim turns extracted document text into a validated insurance claim.
package claim

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Category is the kind of document a file was classified as.
type Category string

const (
	CategoryBill             Category = "bill"
	CategoryDischargeSummary Category = "discharge_summary"
	CategoryIDCard           Category = "id_card"
	CategoryOther            Category = "other"
)

// RequiredCategories lists the documents every complete claim needs, in report order.
var RequiredCategories = []Category{CategoryBill, CategoryDischargeSummary, CategoryIDCard}

// ParseCategory maps a label to a Category. Unknown labels report false.
func ParseCategory(label string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(label))); c {
	case CategoryBill, CategoryDischargeSummary, CategoryIDCard, CategoryOther:
		return c, true
	}
	return CategoryOther, false
}

// Document is the structured record extracted from one file. The concrete
// types are Bill, DischargeSummary and IDCard.
type Document interface {
	Category() Category
	document()
}

// Date is a calendar date serialised as YYYY-MM-DD.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate returns the Date for the given day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshaling date: %w", err)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("parsing date: %w", err)
	}
	d.Time = t
	return nil
}

// BillItem is one line of a hospital bill.
type BillItem struct {
	Description string   `json:"description"`
	Amount      *float64 `json:"amount"`
}

// Bill is a hospital bill. Items is never nil.
type Bill struct {
	HospitalName  *string    `json:"hospital_name"`
	TotalAmount   *float64   `json:"total_amount"`
	DateOfService *Date      `json:"date_of_service"`
	Items         []BillItem `json:"items"`
}

func (Bill) Category() Category { return CategoryBill }
func (Bill) document()          {}

func (b Bill) MarshalJSON() ([]byte, error) {
	type bill Bill
	if b.Items == nil {
		b.Items = []BillItem{}
	}
	return json.Marshal(struct {
		Type Category `json:"type"`
		bill
	}{CategoryBill, bill(b)})
}

// DischargeSummary is a hospital discharge summary.
type DischargeSummary struct {
	PatientName   *string `json:"patient_name"`
	Diagnosis     *string `json:"diagnosis"`
	AdmissionDate *Date   `json:"admission_date"`
	DischargeDate *Date   `json:"discharge_date"`
	DoctorName    *string `json:"doctor_name"`
}

func (DischargeSummary) Category() Category { return CategoryDischargeSummary }
func (DischargeSummary) document()          {}

func (d DischargeSummary) MarshalJSON() ([]byte, error) {
	type summary DischargeSummary
	return json.Marshal(struct {
		Type Category `json:"type"`
		summary
	}{CategoryDischargeSummary, summary(d)})
}

// IDCard is an insurance member card.
type IDCard struct {
	PolicyNumber      *string `json:"policy_number"`
	PatientName       *string `json:"patient_name"`
	DOB               *Date   `json:"dob"`
	InsuranceProvider *string `json:"insurance_provider"`
}

func (IDCard) Category() Category { return CategoryIDCard }
func (IDCard) document()          {}

func (c IDCard) MarshalJSON() ([]byte, error) {
	type card IDCard
	return json.Marshal(struct {
		Type Category `json:"type"`
		card
	}{CategoryIDCard, card(c)})
}

// MissingCategories returns the required categories not present in docs, in
// RequiredCategories order.
func MissingCategories(docs []Document) []Category {
	present := make(map[Category]bool, len(docs))
	for _, doc := range docs {
		present[doc.Category()] = true
	}

	missing := []Category{}
	for _, c := range RequiredCategories {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}
