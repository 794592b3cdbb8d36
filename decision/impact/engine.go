// Package impact provides the Recipe Impact Analyzer.
// Explodes recipe bills of materials through unit conversion and ingredient
// price changes to produce cost, margin and sales-weighted impact figures.
package impact

import (
	"math"
	"sort"

	"github.com/pg-png/wwithai-foodcost-sentinel/decision/variance"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/units"
)

// Default units when a recipe line or ingredient leaves them blank.
const (
	DefaultRecipeUnit = "g"
	DefaultCostUnit   = "kg"
)

// Engine is the Recipe Impact Analyzer
type Engine struct {
	converter  *units.Converter
	recipeUnit string
	costUnit   string
}

// NewEngine creates a new impact engine
func NewEngine() *Engine {
	return &Engine{
		converter:  units.NewConverter(nil),
		recipeUnit: DefaultRecipeUnit,
		costUnit:   DefaultCostUnit,
	}
}

// WithConverter replaces the unit converter
func (e *Engine) WithConverter(c *units.Converter) *Engine {
	e.converter = c
	return e
}

// WithDefaultUnits sets the units assumed for blank recipe lines and
// blank ingredient costing units
func (e *Engine) WithDefaultUnits(recipeUnit, costUnit string) *Engine {
	e.recipeUnit = recipeUnit
	e.costUnit = costUnit
	return e
}

// Request contains the materialized inputs for one analysis call
type Request struct {
	Recipes     []api.Recipe
	Ingredients *api.IngredientIndex
	Changes     variance.Changes
	Sales       api.SalesIndex
}

// AnalyzeAll analyzes every recipe, drops recipes with no resolved lines
// and orders the rest by absolute financial impact, largest first
func (e *Engine) AnalyzeAll(req Request) []api.RecipeImpactAnalysis {
	out := make([]api.RecipeImpactAnalysis, 0, len(req.Recipes))
	for _, r := range req.Recipes {
		if a, ok := e.Analyze(r, req.Ingredients, req.Changes, req.Sales); ok {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].TotalFinancialImpact) > math.Abs(out[j].TotalFinancialImpact)
	})
	return out
}

// Analyze computes the impact for one recipe. It reports false when no
// recipe line resolves to an ingredient.
func (e *Engine) Analyze(recipe api.Recipe, idx *api.IngredientIndex, changes variance.Changes, sales api.SalesIndex) (api.RecipeImpactAnalysis, bool) {
	a := api.RecipeImpactAnalysis{
		RecipeID:     recipe.ID,
		RecipeName:   recipe.Name,
		Category:     recipe.Category,
		SellingPrice: recipe.SellingPrice,
	}

	for _, line := range recipe.Lines {
		ing, ok := idx.Resolve(line.IngredientID, line.IngredientName)
		if !ok {
			continue
		}
		lc := e.lineCost(line, ing, changes)
		a.Lines = append(a.Lines, lc)
		a.ReferenceTotalCost += lc.ReferenceCost
		a.ActualTotalCost += lc.ActualCost
	}
	if len(a.Lines) == 0 {
		return api.RecipeImpactAnalysis{}, false
	}

	a.CostVariancePerPortion = a.ActualTotalCost - a.ReferenceTotalCost
	a.CostVariancePct = variance.Pct(a.ReferenceTotalCost, a.ActualTotalCost)
	a.UnitsSold = sales.UnitsSold(recipe.Name)
	a.TotalFinancialImpact = a.CostVariancePerPortion * a.UnitsSold

	price := 0.0
	if recipe.SellingPrice != nil {
		price = *recipe.SellingPrice
	}
	a.ReferenceMarginPct = marginPct(price, a.ReferenceTotalCost)
	a.ActualMarginPct = marginPct(price, a.ActualTotalCost)
	a.MarginImpactPct = a.ActualMarginPct - a.ReferenceMarginPct

	a.Tier, a.Recommendation = Recommend(a.CostVariancePct, a.TotalFinancialImpact, a.MarginImpactPct, price)
	return a, true
}

func (e *Engine) lineCost(line api.RecipeLine, ing api.Ingredient, changes variance.Changes) api.LineCost {
	from := line.Unit
	if from == "" {
		from = e.recipeUnit
	}
	to := ing.PerUnit
	if to == "" {
		to = e.costUnit
	}
	qty, verified := e.converter.ConvertChecked(line.Quantity, from, to)

	lc := api.LineCost{
		IngredientID:      ing.ID,
		IngredientName:    ing.Name,
		Quantity:          line.Quantity,
		Unit:              from,
		ConvertedQty:      qty,
		CostUnit:          to,
		UnitVerified:      verified,
		ReferenceUnitCost: ing.UnitCost,
	}

	// Invoice price, then the stored latest price, then the reference.
	switch pc, ok := changes[ing.ID]; {
	case ok:
		lc.ActualUnitCost = pc.ActualPrice
		lc.PriceSource = api.SourceInvoice
	case ing.LatestPrice != nil:
		lc.ActualUnitCost = *ing.LatestPrice
		lc.PriceSource = api.SourceLatest
	default:
		lc.ActualUnitCost = ing.UnitCost
		lc.PriceSource = api.SourceReference
	}

	lc.ReferenceCost = qty * lc.ReferenceUnitCost
	lc.ActualCost = qty * lc.ActualUnitCost
	lc.VariancePct = variance.Pct(lc.ReferenceCost, lc.ActualCost)
	return lc
}

func marginPct(price, cost float64) float64 {
	if price <= 0 {
		return 0
	}
	return (price - cost) / price * 100
}
