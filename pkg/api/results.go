package api

import (
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/confidence"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

// Candidate is a scored ingredient for an invoice item.
type Candidate struct {
	Ingredient Ingredient `json:"ingredient"`
	Score      float64    `json:"score"`
}

// MatchResult links an invoice item to zero or one ingredient.
type MatchResult struct {
	Item               InvoiceLineItem `json:"item"`
	Best               *Ingredient     `json:"best,omitempty"`
	Score              float64         `json:"score"`
	Confidence         confidence.Tier `json:"confidence"`
	Candidates         []Candidate     `json:"candidates"`
	NeedsClarification bool            `json:"needs_clarification"`
	Suggestion         string          `json:"suggestion,omitempty"`
}

// PriceChange compares a reference price to an aligned invoice price.
type PriceChange struct {
	IngredientID   string  `json:"ingredient_id"`
	IngredientName string  `json:"ingredient_name"`
	ProductName    string  `json:"product_name,omitempty"`
	ReferencePrice float64 `json:"reference_price"`
	ActualPrice    float64 `json:"actual_price"`
	Variance       float64 `json:"variance"`
	VariancePct    float64 `json:"variance_pct"`
	Unit           string  `json:"unit"`
	ReferenceDate  *string `json:"reference_date,omitempty"`
	ActualDate     *string `json:"actual_date,omitempty"`
	Verified       bool    `json:"verified"`
}

// PriceSource names where a line's actual unit cost came from.
type PriceSource string

const (
	SourceInvoice   PriceSource = "invoice"
	SourceLatest    PriceSource = "latest_price"
	SourceReference PriceSource = "reference"
)

// LineCost is one recipe line's cost breakdown.
type LineCost struct {
	IngredientID      string      `json:"ingredient_id"`
	IngredientName    string      `json:"ingredient_name"`
	Quantity          float64     `json:"quantity"`
	Unit              string      `json:"unit"`
	ConvertedQty      float64     `json:"converted_qty"`
	CostUnit          string      `json:"cost_unit"`
	UnitVerified      bool        `json:"unit_verified"`
	ReferenceUnitCost float64     `json:"reference_unit_cost"`
	ActualUnitCost    float64     `json:"actual_unit_cost"`
	ReferenceCost     float64     `json:"reference_cost"`
	ActualCost        float64     `json:"actual_cost"`
	VariancePct       float64     `json:"variance_pct"`
	PriceSource       PriceSource `json:"price_source"`
}

// Recommendation is the action tier for a recipe's cost variance.
type Recommendation string

const (
	RecommendStable      Recommendation = "stable"
	RecommendMonitor     Recommendation = "monitor"
	RecommendHigh        Recommendation = "high"
	RecommendCritical    Recommendation = "critical"
	RecommendOpportunity Recommendation = "opportunity"
	RecommendFavorable   Recommendation = "favorable"
)

// RecipeImpactAnalysis is the cost and margin impact for one recipe.
type RecipeImpactAnalysis struct {
	RecipeID               string         `json:"recipe_id"`
	RecipeName             string         `json:"recipe_name"`
	Category               string         `json:"category,omitempty"`
	Lines                  []LineCost     `json:"lines"`
	ReferenceTotalCost     float64        `json:"reference_total_cost"`
	ActualTotalCost        float64        `json:"actual_total_cost"`
	CostVariancePerPortion float64        `json:"cost_variance_per_portion"`
	CostVariancePct        float64        `json:"cost_variance_pct"`
	UnitsSold              float64        `json:"units_sold"`
	TotalFinancialImpact   float64        `json:"total_financial_impact"`
	SellingPrice           *float64       `json:"selling_price,omitempty"`
	ReferenceMarginPct     float64        `json:"reference_margin_pct"`
	ActualMarginPct        float64        `json:"actual_margin_pct"`
	MarginImpactPct        float64        `json:"margin_impact_pct"`
	Tier                   Recommendation `json:"tier"`
	Recommendation         string         `json:"recommendation"`
}

// IssueKind classifies a data-quality issue.
type IssueKind string

const (
	IssueDuplicate          IssueKind = "duplicate"
	IssueMissingPrice       IssueKind = "missing_price"
	IssueSuspiciousCost     IssueKind = "suspicious_unit_cost"
	IssueUnitMismatch       IssueKind = "unit_mismatch"
	IssueVarianceTooHigh    IssueKind = "variance_too_high"
	IssueNeedsConversion    IssueKind = "needs_conversion"
	IssueConversionMismatch IssueKind = "conversion_mismatch"
	IssuePriceAnomaly       IssueKind = "price_anomaly"
)

// AuditIssue is one flagged problem on an ingredient record.
type AuditIssue struct {
	ID                  string           `json:"id"`
	IngredientID        string           `json:"ingredient_id"`
	IngredientName      string           `json:"ingredient_name"`
	Kind                IssueKind        `json:"kind"`
	Severity            serrors.Severity `json:"severity"`
	Description         string           `json:"description"`
	CurrentValue        string           `json:"current_value"`
	SuggestedFix        string           `json:"suggested_fix"`
	ReferencePrice      *float64         `json:"reference_price,omitempty"`
	InvoicePrice        *float64         `json:"invoice_price,omitempty"`
	VariancePct         *float64         `json:"variance_pct,omitempty"`
	SuggestedConversion *PackConversion  `json:"suggested_conversion,omitempty"`
}
