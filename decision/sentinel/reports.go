package sentinel

import (
	"context"
	"time"

	"github.com/pg-png/wwithai-foodcost-sentinel/decision/alerts"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/audit"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/conversions"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/impact"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/variance"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

// Period names accepted by CostImpact.
const (
	PeriodWeek   = "week"
	PeriodMonth  = "month"
	PeriodYTD    = "ytd"
	PeriodCustom = "custom"
)

// AlertWindowDays is how far back price alerts look.
const AlertWindowDays = 90

// PeriodRequest selects a reporting period. An explicit Start overrides
// the named period; End defaults to today.
type PeriodRequest struct {
	Period string `json:"period,omitempty"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
}

// ResolvePeriod turns a request into a concrete date range.
func ResolvePeriod(req PeriodRequest, now time.Time) (api.DateRange, string, error) {
	period := req.Period
	if period == "" {
		period = PeriodWeek
	}
	for _, f := range [][2]string{{"start", req.Start}, {"end", req.End}} {
		if f[1] == "" {
			continue
		}
		if _, err := time.Parse(isoDate, f[1]); err != nil {
			return api.DateRange{}, "", serrors.NewInvalidInputError(f[0], "date must be YYYY-MM-DD")
		}
	}

	r := api.DateRange{Start: req.Start, End: req.End}
	switch period {
	case PeriodWeek, PeriodMonth, PeriodYTD, PeriodCustom:
	default:
		return api.DateRange{}, "", serrors.NewInvalidInputError("period", "period must be week, month, ytd or custom")
	}
	if r.Start == "" {
		switch period {
		case PeriodWeek:
			r.Start = now.AddDate(0, 0, -7).Format(isoDate)
		case PeriodMonth:
			r.Start = now.AddDate(0, -1, 0).Format(isoDate)
		case PeriodYTD:
			r.Start = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()).Format(isoDate)
		}
	}
	if r.End == "" {
		r.End = now.Format(isoDate)
	}
	if r.Start != "" && r.Start > r.End {
		return api.DateRange{}, "", serrors.NewInvalidInputError("start", "start must not be after end")
	}
	return r, period, nil
}

// CostImpact reports how invoice prices in the period moved recipe costs.
func (s *Service) CostImpact(ctx context.Context, req PeriodRequest) (impact.Report, error) {
	period, name, err := ResolvePeriod(req, s.now())
	if err != nil {
		return impact.Report{}, err
	}
	snap, err := s.fetch(ctx, need{ingredients: true, recipes: true, invoices: true, sales: true, period: period})
	if err != nil {
		return impact.Report{}, err
	}

	latest, priced := pricedLatest(snap.items)
	matched := make([]api.MatchResult, 0, len(latest))
	for _, k := range variance.SortedKeys(latest) {
		matched = append(matched, s.matcher.FindMatches(latest[k], snap.ingredients))
	}
	changes := s.calc.ByMatch(matched).Merge(s.calc.ByName(snap.ingredients, latest))
	analyses := s.impact.AnalyzeAll(impact.Request{
		Recipes:     snap.recipes,
		Ingredients: api.NewIngredientIndex(snap.ingredients),
		Changes:     changes,
		Sales:       api.NewSalesIndex(snap.sales),
	})

	rep := impact.BuildReport(analyses, changes, priced)
	rep.Period = period
	rep.PeriodType = name
	s.log.Info().
		Str("period", name).
		Int("recipes", rep.Summary.TotalRecipes).
		Int("price_changes", rep.Summary.IngredientsWithPriceChange).
		Float64("impact", rep.Summary.TotalFinancialImpact).
		Msg("Built cost impact report")
	return rep, nil
}

// Audit runs the anomaly detector over the catalog and latest prices.
func (s *Service) Audit(ctx context.Context) (audit.Report, error) {
	snap, err := s.fetch(ctx, need{ingredients: true, invoices: true})
	if err != nil {
		return audit.Report{}, err
	}
	latest, _ := pricedLatest(snap.items)
	rep := s.audit.Run(snap.ingredients, latest)
	s.log.Info().
		Str("status", string(rep.Status)).
		Int("issues", rep.Summary.TotalIssues).
		Int("critical", rep.Summary.CriticalIssues).
		Msg("Audited ingredients")
	return rep, nil
}

// Conversions proposes pack-size conversions for the latest invoice lines.
func (s *Service) Conversions(ctx context.Context) (conversions.Plan, error) {
	snap, err := s.fetch(ctx, need{ingredients: true, invoices: true})
	if err != nil {
		return conversions.Plan{}, err
	}
	latest, _ := pricedLatest(snap.items)
	return s.advisor.Analyze(snap.ingredients, latest), nil
}

// ApplyConversions applies the current conversion plan.
func (s *Service) ApplyConversions(ctx context.Context, req conversions.ApplyRequest) (conversions.ApplyResult, bool, error) {
	plan, err := s.Conversions(ctx)
	if err != nil {
		return conversions.ApplyResult{}, false, err
	}
	res := conversions.Apply(plan, req, s.today())
	applied, err := s.apply(ctx, res.Instructions)
	if err != nil {
		return conversions.ApplyResult{}, false, err
	}
	return res, applied, nil
}

// RuleResult reports the ingredients a conversion rule touched.
type RuleResult struct {
	UpdateResult
	Ingredients []api.Ingredient `json:"ingredients"`
}

// AddConversionRule sets a conversion on every ingredient whose name
// contains the rule keyword.
func (s *Service) AddConversionRule(ctx context.Context, r conversions.Rule) (RuleResult, error) {
	if err := r.Validate(); err != nil {
		return RuleResult{}, err
	}
	snap, err := s.fetch(ctx, need{ingredients: true})
	if err != nil {
		return RuleResult{}, err
	}
	updates, touched, err := conversions.ApplyRule(snap.ingredients, r)
	if err != nil {
		return RuleResult{}, err
	}
	applied, err := s.apply(ctx, updates)
	if err != nil {
		return RuleResult{}, err
	}
	if touched == nil {
		touched = []api.Ingredient{}
	}
	return RuleResult{
		UpdateResult: UpdateResult{Instructions: updates, Applied: applied},
		Ingredients:  touched,
	}, nil
}

// Alerts reports significant supplier price moves over the alert window.
func (s *Service) Alerts(ctx context.Context) (alerts.Report, error) {
	now := s.now()
	window := api.DateRange{
		Start: now.AddDate(0, 0, -AlertWindowDays).Format(isoDate),
		End:   now.Format(isoDate),
	}
	snap, err := s.fetch(ctx, need{ingredients: true, recipes: true, invoices: true, period: window})
	if err != nil {
		return alerts.Report{}, err
	}
	rep := s.alerts.Build(ctx, snap.items, snap.recipes, api.NewIngredientIndex(snap.ingredients))
	s.log.Info().Int("alerts", rep.Summary.TotalAlerts).Msg("Built price alerts")
	return rep, nil
}
