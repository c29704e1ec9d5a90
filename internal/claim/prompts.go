package claim

// Prompt templates. Each takes the document text (or serialised documents) as its only %s verb.

const classifyPrompt = `
You are a document classification expert for insurance claims.

Text to classify:
%s

Choose ONE category:
- bill (if you see: bill number, charges, amounts, hospital fees)
- discharge_summary (if you see: discharge date, diagnosis, treatment)
- id_card (if you see: policy number, insurance details)
- other

Return ONLY the category name, nothing else.
`

const billPrompt = `
You are a data extraction expert. Extract EXACT information from this hospital bill.

TEXT:
%s

Extract these fields:
- hospital_name: Name of the hospital/medical facility
- total_amount: Total bill amount as a NUMBER (no currency symbols)
- date_of_service: Date in YYYY-MM-DD format

IMPORTANT: Return ONLY valid JSON in this exact format:
{
  "hospital_name": "extracted name or null",
  "total_amount": 12500,
  "date_of_service": "2024-04-10"
}

If you cannot find a field, use null. Do NOT include any explanation or markdown.
`

const dischargeSummaryPrompt = `
You are a data extraction expert. Extract EXACT information from this discharge summary.

TEXT:
%s

Extract these fields:
- patient_name: Full name of the patient
- diagnosis: Primary diagnosis or medical condition
- admission_date: Date admitted in YYYY-MM-DD format
- discharge_date: Date discharged in YYYY-MM-DD format
- doctor_name: Name of attending physician/doctor

IMPORTANT: Return ONLY valid JSON in this exact format:
{
  "patient_name": "extracted name or null",
  "diagnosis": "extracted diagnosis or null",
  "admission_date": "2024-04-01",
  "discharge_date": "2024-04-10",
  "doctor_name": "Dr. Name or null"
}

If you cannot find a field, use null. Do NOT include any explanation or markdown.
`

const idCardPrompt = `
You are a data extraction expert. Extract EXACT information from this insurance ID card.

TEXT:
%s

Extract these fields:
- policy_number: Insurance policy number
- patient_name: Name of the insured member
- dob: Date of birth in YYYY-MM-DD format
- insurance_provider: Name of insurance company

IMPORTANT: Return ONLY valid JSON in this exact format:
{
  "policy_number": "extracted number or null",
  "patient_name": "extracted name or null",
  "dob": "1985-05-15",
  "insurance_provider": "company name or null"
}

If you cannot find a field, use null. Do NOT include any explanation or markdown.
`

const validatePrompt = `
You are an insurance claim validator. Analyze these documents and check for discrepancies.

Documents:
%s

Check for:
1. Name consistency across documents
2. Date consistency (discharge date should be after admission date)
3. Missing critical information
4. Any suspicious patterns

Return ONLY valid JSON with this structure:
{
  "discrepancies": ["list of issues found"],
  "approval_recommendation": "approved" or "rejected" or "pending",
  "reason": "explanation for the decision"
}

Respond with ONLY the JSON object:
`

// truncate returns the first n runes of s.
func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
