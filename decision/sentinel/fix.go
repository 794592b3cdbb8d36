package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

// MaxBulkFixes bounds one bulk fix request.
const MaxBulkFixes = 20

// FixRequest sets one ingredient field. Value is a number for unit_cost
// and latest_price and a string for per_unit and category.
type FixRequest struct {
	IngredientID string          `json:"ingredient_id"`
	Field        api.UpdateField `json:"field"`
	Value        interface{}     `json:"value"`
	Reason       string          `json:"reason,omitempty"`
}

// fixable lists the fields FixIngredient accepts.
var fixable = map[api.UpdateField]bool{
	api.FieldUnitCost:    true,
	api.FieldLatestPrice: true,
	api.FieldPerUnit:     true,
	api.FieldCategory:    true,
}

// instructions validates a fix and builds its update instructions.
func (s *Service) instructions(req FixRequest) ([]api.UpdateInstruction, error) {
	if req.IngredientID == "" {
		return nil, serrors.NewMissingAttributeError("ingredient_id")
	}
	if req.Field == "" {
		return nil, serrors.NewMissingAttributeError("field")
	}
	if !fixable[req.Field] {
		return nil, serrors.NewUnknownFieldError(string(req.Field))
	}
	if req.Value == nil {
		return nil, serrors.NewMissingAttributeError("value")
	}
	reason := req.Reason
	if reason == "" {
		reason = "manual fix"
	}

	if req.Field.Numeric() {
		v, ok := number(req.Value)
		if !ok {
			return nil, serrors.NewInvalidInputError("value", fmt.Sprintf("%s must be a number", req.Field))
		}
		if v < 0 {
			return nil, serrors.NewInvalidInputError("value", fmt.Sprintf("%s must not be negative", req.Field))
		}
		out := []api.UpdateInstruction{api.SetNumber(req.IngredientID, req.Field, v, reason)}
		if req.Field == api.FieldUnitCost {
			out = append(out, api.SetText(req.IngredientID, api.FieldPriceUpdated, s.today(), reason))
		}
		return out, nil
	}

	v, ok := req.Value.(string)
	if !ok {
		return nil, serrors.NewInvalidInputError("value", fmt.Sprintf("%s must be a string", req.Field))
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, serrors.NewInvalidInputError("value", fmt.Sprintf("%s must not be empty", req.Field))
	}
	return []api.UpdateInstruction{api.SetText(req.IngredientID, req.Field, v, reason)}, nil
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// FixIngredient corrects one field of an existing ingredient.
func (s *Service) FixIngredient(ctx context.Context, req FixRequest) (UpdateResult, error) {
	updates, err := s.instructions(req)
	if err != nil {
		return UpdateResult{}, err
	}
	ing, err := s.ingredient(ctx, req.IngredientID)
	if err != nil {
		return UpdateResult{}, err
	}
	applied, err := s.apply(ctx, updates)
	if err != nil {
		return UpdateResult{}, err
	}
	msg := fmt.Sprintf("Updated %s of %s to %v", req.Field, ing.Name, req.Value)
	if req.Reason != "" {
		msg += " (" + req.Reason + ")"
	}
	return UpdateResult{Instructions: updates, Applied: applied, Message: msg}, nil
}

// FixError is a per-item bulk failure.
type FixError struct {
	IngredientID string `json:"ingredient_id"`
	Error        string `json:"error"`
}

// BulkFixResult reports a bulk fix.
type BulkFixResult struct {
	TotalRequested int                     `json:"total_requested"`
	SuccessCount   int                     `json:"success_count"`
	ErrorCount     int                     `json:"error_count"`
	Instructions   []api.UpdateInstruction `json:"instructions"`
	Errors         []FixError              `json:"errors"`
	Applied        bool                    `json:"applied"`
}

// FixIngredients applies up to MaxBulkFixes fixes. Invalid items are
// reported individually; the valid ones are written in one batch.
func (s *Service) FixIngredients(ctx context.Context, reqs []FixRequest) (BulkFixResult, error) {
	if len(reqs) == 0 {
		return BulkFixResult{}, serrors.NewMissingAttributeError("fixes")
	}
	if len(reqs) > MaxBulkFixes {
		return BulkFixResult{}, serrors.NewInvalidInputError("fixes", fmt.Sprintf("maximum %d fixes per request", MaxBulkFixes))
	}
	snap, err := s.fetch(ctx, need{ingredients: true})
	if err != nil {
		return BulkFixResult{}, err
	}
	known := make(map[string]bool, len(snap.ingredients))
	for _, ing := range snap.ingredients {
		known[ing.ID] = true
	}

	res := BulkFixResult{
		TotalRequested: len(reqs),
		Instructions:   []api.UpdateInstruction{},
		Errors:         []FixError{},
	}
	for _, req := range reqs {
		updates, err := s.instructions(req)
		if err == nil && !known[req.IngredientID] {
			err = serrors.NewNotFoundError("ingredient", req.IngredientID)
		}
		if err != nil {
			res.Errors = append(res.Errors, FixError{IngredientID: req.IngredientID, Error: err.Error()})
			continue
		}
		res.Instructions = append(res.Instructions, updates...)
		res.SuccessCount++
	}
	res.ErrorCount = len(res.Errors)

	if res.Applied, err = s.apply(ctx, res.Instructions); err != nil {
		return BulkFixResult{}, err
	}
	return res, nil
}
