// Package api defines the shared records and result contracts.
package api

// DateRange bounds a reporting period with ISO dates. Empty ends are open.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Contains reports whether an ISO date falls inside the range.
// Undated records are always included.
func (r DateRange) Contains(date *string) bool {
	if date == nil || *date == "" {
		return true
	}
	d := *date
	if len(d) > 10 {
		d = d[:10]
	}
	if r.Start != "" && d < r.Start {
		return false
	}
	if r.End != "" && d > r.End {
		return false
	}
	return true
}

// UpdateField names an ingredient field the core may ask to change.
type UpdateField string

const (
	FieldUnitCost         UpdateField = "unit_cost"
	FieldLatestPrice      UpdateField = "latest_price"
	FieldPerUnit          UpdateField = "per_unit"
	FieldCategory         UpdateField = "category"
	FieldPriceUpdated     UpdateField = "price_updated"
	FieldInvoiceUnit      UpdateField = "invoice_unit"
	FieldConversionFactor UpdateField = "conversion_factor"
	FieldConversionNotes  UpdateField = "conversion_notes"
)

// Numeric reports whether the field carries a number.
func (f UpdateField) Numeric() bool {
	switch f {
	case FieldUnitCost, FieldLatestPrice, FieldConversionFactor:
		return true
	}
	return false
}

// UpdateInstruction asks the ingredient store to set one field.
// Exactly one of Number or Text is set.
type UpdateInstruction struct {
	IngredientID string      `json:"ingredient_id"`
	Field        UpdateField `json:"field"`
	Number       *float64    `json:"number,omitempty"`
	Text         *string     `json:"text,omitempty"`
	Reason       string      `json:"reason,omitempty"`
}

// SetNumber builds a numeric update.
func SetNumber(id string, field UpdateField, v float64, reason string) UpdateInstruction {
	return UpdateInstruction{IngredientID: id, Field: field, Number: &v, Reason: reason}
}

// SetText builds a text update.
func SetText(id string, field UpdateField, v string, reason string) UpdateInstruction {
	return UpdateInstruction{IngredientID: id, Field: field, Text: &v, Reason: reason}
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
