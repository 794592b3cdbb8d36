package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pg-png/wwithai-foodcost-sentinel/decision/alerts"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
)

type stubGen struct {
	reply  string
	err    error
	prompt string
}

func (s *stubGen) Generate(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

func candidates() []api.Candidate {
	return []api.Candidate{
		{Ingredient: api.Ingredient{Name: "Chicken Thigh", PerUnit: "kg", UnitCost: 7}, Score: 0.7},
		{Ingredient: api.Ingredient{Name: "Chicken Breast", PerUnit: "kg", UnitCost: 9}, Score: 0.6},
	}
}

func TestSuggestMatch(t *testing.T) {
	item := api.InvoiceLineItem{ProductName: "CHKN BRST 4KG", Unit: "case", UnitPrice: 36}

	tests := []struct {
		name    string
		reply   string
		want    string
		wantErr bool
	}{
		{"clean json", `{"choice": 2, "reason": "breast"}`, "2. Chicken Breast - breast", false},
		{"fenced and trailing comma", "```json\n{\"choice\": 1, \"reason\": \"thigh\",}\n```", "1. Chicken Thigh - thigh", false},
		{"none", `{"choice": 0, "reason": "different product"}`, "No good match - different product", false},
		{"out of range", `{"choice": 7, "reason": "?"}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGen{reply: tt.reply}
			got, err := NewSuggester(gen).SuggestMatch(context.Background(), item, candidates())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v; wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q; want %q", got, tt.want)
			}
			if !strings.Contains(gen.prompt, `"CHKN BRST 4KG"`) || !strings.Contains(gen.prompt, `2. "Chicken Breast"`) {
				t.Errorf("prompt missing context: %s", gen.prompt)
			}
		})
	}
}

func TestSuggestMatchErrors(t *testing.T) {
	s := NewSuggester(&stubGen{err: errors.New("quota exceeded")})
	if _, err := s.SuggestMatch(context.Background(), api.InvoiceLineItem{}, candidates()); err == nil {
		t.Error("expected generator error")
	}
	if _, err := s.SuggestMatch(context.Background(), api.InvoiceLineItem{}, nil); err == nil {
		t.Error("expected error without candidates")
	}
}

func TestAdviseChange(t *testing.T) {
	gen := &stubGen{reply: `{"recommendation": "Lock in a contract."}`}
	c := alerts.Change{Product: "Beef", OldPrice: 10, NewPrice: 12, ChangePct: 20, Unit: "kg"}

	got, err := NewSuggester(gen).AdviseChange(context.Background(), c, []string{"Pho", "Bun Bo"})
	if err != nil || got != "Lock in a contract." {
		t.Fatalf("AdviseChange = %q, %v", got, err)
	}
	if !strings.Contains(gen.prompt, "Affected Dishes: Pho, Bun Bo") || !strings.Contains(gen.prompt, "+20.0%") {
		t.Errorf("prompt = %s", gen.prompt)
	}

	empty := NewSuggester(&stubGen{reply: `{"recommendation": ""}`})
	if _, err := empty.AdviseChange(context.Background(), c, nil); err == nil {
		t.Error("expected error for empty recommendation")
	}
}

func TestMatchFallback(t *testing.T) {
	r := api.MatchResult{Candidates: candidates()}
	if got := MatchFallback(r); got != "Best guess: Chicken Thigh (70% similar). Confirm the match or pick another candidate." {
		t.Errorf("MatchFallback = %q", got)
	}
	if got := MatchFallback(api.MatchResult{}); !strings.HasPrefix(got, "No likely ingredient") {
		t.Errorf("MatchFallback(empty) = %q", got)
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), Config{}); err == nil {
		t.Error("expected error without api key")
	}
}
