package sentinel

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/pg-png/wwithai-foodcost-sentinel/internal/llm"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/confidence"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

// Reconciliation limits.
const (
	DefaultReconcileLimit = 30
	MaxReconcileLimit     = 200
	ClarificationLimit    = 20
	ReconcileMinPct       = 1.0
	suggestWorkers        = 4
)

// ReconcileSummary counts match outcomes.
type ReconcileSummary struct {
	TotalInvoiceItems    int `json:"total_invoice_items"`
	AutoMatched          int `json:"auto_matched"`
	NeedsClarification   int `json:"needs_clarification"`
	NoMatch              int `json:"no_match"`
	PriceChangesDetected int `json:"price_changes_detected"`
}

// ReconcileReport is the outcome of matching recent invoice lines.
type ReconcileReport struct {
	Summary            ReconcileSummary      `json:"summary"`
	AutoMatched        []api.MatchResult     `json:"auto_matched"`
	NeedsClarification []api.MatchResult     `json:"needs_clarification"`
	NoMatch            []api.InvoiceLineItem `json:"no_match"`
	PriceChanges       []api.PriceChange     `json:"price_changes"`
}

// Reconcile matches the most recent invoice lines against the catalog.
// A limit of zero uses DefaultReconcileLimit.
func (s *Service) Reconcile(ctx context.Context, limit int) (ReconcileReport, error) {
	switch {
	case limit == 0:
		limit = DefaultReconcileLimit
	case limit < 0 || limit > MaxReconcileLimit:
		return ReconcileReport{}, serrors.NewInvalidInputError("limit", "limit must be between 1 and 200")
	}

	snap, err := s.fetch(ctx, need{ingredients: true, invoices: true})
	if err != nil {
		return ReconcileReport{}, err
	}
	items := mostRecent(snap.items, limit)

	rep := ReconcileReport{
		AutoMatched:        []api.MatchResult{},
		NeedsClarification: []api.MatchResult{},
		NoMatch:            []api.InvoiceLineItem{},
	}
	results := make([]api.MatchResult, 0, len(items))
	for _, it := range items {
		r := s.matcher.FindMatches(it, snap.ingredients)
		results = append(results, r)
		switch {
		case r.Confidence == confidence.TierHigh:
			rep.AutoMatched = append(rep.AutoMatched, r)
		case r.NeedsClarification:
			rep.NeedsClarification = append(rep.NeedsClarification, r)
		default:
			rep.NoMatch = append(rep.NoMatch, it)
		}
	}

	rep.Summary = ReconcileSummary{
		TotalInvoiceItems:  len(items),
		AutoMatched:        len(rep.AutoMatched),
		NeedsClarification: len(rep.NeedsClarification),
		NoMatch:            len(rep.NoMatch),
	}
	if len(rep.NeedsClarification) > ClarificationLimit {
		rep.NeedsClarification = rep.NeedsClarification[:ClarificationLimit]
	}
	if err := s.suggest(ctx, rep.NeedsClarification); err != nil {
		return ReconcileReport{}, err
	}

	rep.PriceChanges = s.calc.FromMatches(results, ReconcileMinPct)
	if rep.PriceChanges == nil {
		rep.PriceChanges = []api.PriceChange{}
	}
	rep.Summary.PriceChangesDetected = len(rep.PriceChanges)

	s.log.Info().
		Int("items", rep.Summary.TotalInvoiceItems).
		Int("auto_matched", rep.Summary.AutoMatched).
		Int("clarify", rep.Summary.NeedsClarification).
		Int("price_changes", rep.Summary.PriceChangesDetected).
		Msg("Reconciled invoice items")
	return rep, nil
}

// suggest fills in a suggestion for each ambiguous match. Suggester
// failures fall back to the template text.
func (s *Service) suggest(ctx context.Context, results []api.MatchResult) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(suggestWorkers)
	for i := range results {
		r := &results[i]
		g.Go(func() error {
			r.Suggestion = llm.MatchFallback(*r)
			if s.suggester == nil || len(r.Candidates) == 0 {
				return nil
			}
			text, err := s.suggester.SuggestMatch(gctx, r.Item, r.Candidates)
			if err != nil {
				s.log.Warn().Err(err).Str("product", r.Item.ProductName).Msg("Match suggestion failed")
				return nil
			}
			r.Suggestion = text
			return nil
		})
	}
	return g.Wait()
}

// mostRecent returns up to limit lines, newest first. Undated lines sort last.
func mostRecent(items []api.InvoiceLineItem, limit int) []api.InvoiceLineItem {
	out := make([]api.InvoiceLineItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date() > out[j].Date()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ConfirmRequest records a user-confirmed match.
type ConfirmRequest struct {
	IngredientID string  `json:"ingredient_id"`
	ProductName  string  `json:"product_name,omitempty"`
	Price        float64 `json:"price"`
	Date         string  `json:"date,omitempty"`
}

// UpdateResult reports the instructions an operation produced.
type UpdateResult struct {
	Instructions []api.UpdateInstruction `json:"instructions"`
	Applied      bool                    `json:"applied"`
	Message      string                  `json:"message,omitempty"`
}

// ConfirmMatch records the invoice price as the ingredient's latest price.
func (s *Service) ConfirmMatch(ctx context.Context, req ConfirmRequest) (UpdateResult, error) {
	if req.IngredientID == "" {
		return UpdateResult{}, serrors.NewMissingAttributeError("ingredient_id")
	}
	if req.Price <= 0 {
		return UpdateResult{}, serrors.NewInvalidInputError("price", "price must be greater than zero")
	}
	date := req.Date
	if date == "" {
		date = s.today()
	}
	ing, err := s.ingredient(ctx, req.IngredientID)
	if err != nil {
		return UpdateResult{}, err
	}

	reason := "confirmed invoice match"
	if req.ProductName != "" {
		reason += ": " + req.ProductName
	}
	updates := []api.UpdateInstruction{
		api.SetNumber(ing.ID, api.FieldLatestPrice, req.Price, reason),
		api.SetText(ing.ID, api.FieldPriceUpdated, date, reason),
	}
	applied, err := s.apply(ctx, updates)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{
		Instructions: updates,
		Applied:      applied,
		Message:      "Latest price recorded for " + ing.Name,
	}, nil
}

// ingredient looks one ingredient up by id.
func (s *Service) ingredient(ctx context.Context, id string) (api.Ingredient, error) {
	snap, err := s.fetch(ctx, need{ingredients: true})
	if err != nil {
		return api.Ingredient{}, err
	}
	for _, ing := range snap.ingredients {
		if ing.ID == id {
			return ing, nil
		}
	}
	return api.Ingredient{}, serrors.NewNotFoundError("ingredient", id)
}
