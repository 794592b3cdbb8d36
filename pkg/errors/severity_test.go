package errors

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestSeverityRankOrder(t *testing.T) {
	order := []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%s should rank before %s", order[i-1], order[i])
		}
	}
}

func TestSeverityJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		S Severity `json:"s"`
	}{SeverityHigh})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"s":"high"}` {
		t.Errorf("marshal = %s; want {\"s\":\"high\"}", b)
	}

	var out struct {
		S Severity `json:"s"`
	}
	if err := json.Unmarshal([]byte(`{"s":"Critical"}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.S != SeverityCritical {
		t.Errorf("unmarshal = %s; want critical", out.S)
	}
	if err := json.Unmarshal([]byte(`{"s":"urgent"}`), &out); err == nil {
		t.Errorf("expected error for unknown severity")
	}
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("fix ingredient: %w", NewUnknownFieldError("color"))
	if !IsValidation(wrapped) {
		t.Errorf("IsValidation(%v) = false; want true", wrapped)
	}
	if IsNotFound(wrapped) {
		t.Errorf("IsNotFound(%v) = true; want false", wrapped)
	}
	if !IsNotFound(NewNotFoundError("ingredient", "abc")) {
		t.Errorf("IsNotFound should match not-found errors")
	}
	if IsValidation(fmt.Errorf("plain")) {
		t.Errorf("plain errors are not validation errors")
	}
}
