package audit

import (
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

// TopPriorityLimit caps the quick-action list.
const TopPriorityLimit = 10

// Status is the overall audit outcome
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Summary counts audit findings
type Summary struct {
	TotalIngredients          int                   `json:"total_ingredients"`
	IngredientsWithPrice      int                   `json:"ingredients_with_price"`
	IngredientsWithoutPrice   int                   `json:"ingredients_without_price"`
	IngredientsWithConversion int                   `json:"ingredients_with_conversion"`
	InvoiceItemsAnalyzed      int                   `json:"invoice_items_analyzed"`
	TotalIssues               int                   `json:"total_issues"`
	CriticalIssues            int                   `json:"critical_issues"`
	HighIssues                int                   `json:"high_issues"`
	MediumIssues              int                   `json:"medium_issues"`
	LowIssues                 int                   `json:"low_issues"`
	InfoIssues                int                   `json:"info_issues"`
	IssuesByKind              map[api.IssueKind]int `json:"issues_by_kind"`
}

// Report is the full audit output
type Report struct {
	Status      Status           `json:"status"`
	Summary     Summary          `json:"summary"`
	Issues      []api.AuditIssue `json:"issues"`
	TopPriority []api.AuditIssue `json:"top_priority"`
}

// AllKinds lists every issue kind in report order.
var AllKinds = []api.IssueKind{
	api.IssuePriceAnomaly,
	api.IssueVarianceTooHigh,
	api.IssueMissingPrice,
	api.IssueSuspiciousCost,
	api.IssueDuplicate,
	api.IssueUnitMismatch,
	api.IssueNeedsConversion,
	api.IssueConversionMismatch,
}

// Run detects issues and builds the report.
func (e *Engine) Run(ingredients []api.Ingredient, latest map[string]api.InvoiceLineItem) Report {
	return BuildReport(ingredients, len(latest), e.Detect(ingredients, latest))
}

// BuildReport summarizes issues already ordered by Detect. Any critical
// issue fails the audit; high or medium issues warn.
func BuildReport(ingredients []api.Ingredient, invoiceItems int, issues []api.AuditIssue) Report {
	s := Summary{
		TotalIngredients:     len(ingredients),
		InvoiceItemsAnalyzed: invoiceItems,
		TotalIssues:          len(issues),
		IssuesByKind:         make(map[api.IssueKind]int, len(AllKinds)),
	}
	for _, k := range AllKinds {
		s.IssuesByKind[k] = 0
	}
	for _, ing := range ingredients {
		if ing.UnitCost > 0 {
			s.IngredientsWithPrice++
		} else {
			s.IngredientsWithoutPrice++
		}
		if ing.HasConversion() {
			s.IngredientsWithConversion++
		}
	}

	if issues == nil {
		issues = []api.AuditIssue{}
	}

	status := StatusPass
	for _, is := range issues {
		s.IssuesByKind[is.Kind]++
		switch is.Severity {
		case serrors.SeverityCritical:
			s.CriticalIssues++
			status = StatusFail
		case serrors.SeverityHigh:
			s.HighIssues++
		case serrors.SeverityMedium:
			s.MediumIssues++
		case serrors.SeverityLow:
			s.LowIssues++
		case serrors.SeverityInfo:
			s.InfoIssues++
		}
	}
	if status == StatusPass && s.HighIssues+s.MediumIssues > 0 {
		status = StatusWarn
	}

	top := issues
	if len(top) > TopPriorityLimit {
		top = top[:TopPriorityLimit]
	}
	return Report{Status: status, Summary: s, Issues: issues, TopPriority: top}
}
