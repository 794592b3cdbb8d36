// Package llm asks a Gemini model for match and price-change advice.
// Every caller falls back to template text when the model is not
// configured or fails.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"google.golang.org/genai"

	"github.com/pg-png/wwithai-foodcost-sentinel/decision/alerts"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.0-flash"

// Config configures the Gemini client.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// Generator produces text for a prompt. It is satisfied by the Gemini
// client and by test stubs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Gemini calls the Gemini API through the GenAI SDK.
type Gemini struct {
	client *genai.Client
	model  string
	temp   float32
}

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.1
	}
	return &Gemini{client: client, model: model, temp: temp}, nil
}

// Generate sends one prompt and returns the reply text.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temp),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	return result.Text(), nil
}

// Suggester turns model replies into match and price-change advice.
type Suggester struct {
	gen Generator
}

// NewSuggester wraps a generator.
func NewSuggester(gen Generator) *Suggester {
	return &Suggester{gen: gen}
}

var _ alerts.Advisor = (*Suggester)(nil)

// matchReply is the JSON shape requested for match suggestions.
type matchReply struct {
	Choice int    `json:"choice"`
	Reason string `json:"reason"`
}

// adviceReply is the JSON shape requested for price advice.
type adviceReply struct {
	Recommendation string `json:"recommendation"`
}

// SuggestMatch asks which candidate an ambiguous invoice line refers to.
func (s *Suggester) SuggestMatch(ctx context.Context, item api.InvoiceLineItem, candidates []api.Candidate) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no candidates")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Match this invoice item to the best ingredient from the list.\n\n")
	fmt.Fprintf(&b, "Invoice item: %q (%s, $%.2f)\n\nPossible ingredients:\n", item.ProductName, item.Unit, item.UnitPrice)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %q (%s, $%.4f)\n", i+1, c.Ingredient.Name, c.Ingredient.PerUnit, c.Ingredient.UnitCost)
	}
	fmt.Fprintf(&b, "\nReply with JSON {\"choice\": <1-%d, or 0 if none match>, \"reason\": \"<brief reason>\"}.", len(candidates))

	var reply matchReply
	if err := s.ask(ctx, b.String(), &reply); err != nil {
		return "", err
	}
	if reply.Choice < 0 || reply.Choice > len(candidates) {
		return "", fmt.Errorf("choice %d out of range", reply.Choice)
	}
	if reply.Choice == 0 {
		return "No good match - " + reply.Reason, nil
	}
	return fmt.Sprintf("%d. %s - %s", reply.Choice, candidates[reply.Choice-1].Ingredient.Name, reply.Reason), nil
}

// AdviseChange asks for a short recommendation on a supplier price move.
func (s *Suggester) AdviseChange(ctx context.Context, c alerts.Change, affected []string) (string, error) {
	dishes := "Unknown"
	if len(affected) > 0 {
		dishes = strings.Join(affected, ", ")
	}
	supplier := c.Supplier
	if supplier == "" {
		supplier = "Unknown"
	}
	prompt := fmt.Sprintf(`You are a restaurant cost control expert. Analyze this price change and give a brief, actionable recommendation (2-3 sentences max).

Ingredient: %s
Supplier: %s
Price Change: $%.2f -> $%.2f per %s (%+.1f%%)
Affected Dishes: %s
Period: %s to %s

Reply with JSON {"recommendation": "<text>"}.`,
		c.Product, supplier, c.OldPrice, c.NewPrice, c.Unit, c.ChangePct, dishes, c.OldDate, c.NewDate)

	var reply adviceReply
	if err := s.ask(ctx, prompt, &reply); err != nil {
		return "", err
	}
	if strings.TrimSpace(reply.Recommendation) == "" {
		return "", fmt.Errorf("empty recommendation")
	}
	return reply.Recommendation, nil
}

// ask generates, repairs and decodes a JSON reply.
func (s *Suggester) ask(ctx context.Context, prompt string, out interface{}) error {
	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	repaired, err := jsonrepair.RepairJSON(stripFence(raw))
	if err != nil {
		return fmt.Errorf("repair reply: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// MatchFallback is the template suggestion for an ambiguous match.
func MatchFallback(r api.MatchResult) string {
	if len(r.Candidates) == 0 {
		return "No likely ingredient found. Add this product as a new ingredient or map it manually."
	}
	top := r.Candidates[0]
	return fmt.Sprintf("Best guess: %s (%.0f%% similar). Confirm the match or pick another candidate.",
		top.Ingredient.Name, top.Score*100)
}
