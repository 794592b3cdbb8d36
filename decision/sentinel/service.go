// Package sentinel orchestrates the food-cost engines over the record
// store. It fetches collaborator data, runs the pure engines and hands
// the resulting update instructions to a sink.
package sentinel

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pg-png/wwithai-foodcost-sentinel/decision/alerts"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/audit"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/conversions"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/impact"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/matching"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/packsize"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/variance"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
)

// IngredientProvider lists the ingredient catalog.
type IngredientProvider interface {
	ListIngredients(ctx context.Context) ([]api.Ingredient, error)
}

// RecipeProvider lists recipes with their lines joined.
type RecipeProvider interface {
	ListRecipes(ctx context.Context) ([]api.Recipe, error)
}

// InvoiceProvider lists invoice lines dated inside a range.
type InvoiceProvider interface {
	ListInvoiceItems(ctx context.Context, r api.DateRange) ([]api.InvoiceLineItem, error)
}

// SalesProvider lists product sales inside a range.
type SalesProvider interface {
	ListSales(ctx context.Context, r api.DateRange) ([]api.ProductSale, error)
}

// UpdateSink persists update instructions.
type UpdateSink interface {
	Apply(ctx context.Context, updates []api.UpdateInstruction) error
}

// Suggester proposes a resolution for an ambiguous match.
type Suggester interface {
	SuggestMatch(ctx context.Context, item api.InvoiceLineItem, candidates []api.Candidate) (string, error)
}

// Providers bundles the collaborators. Sales and Sink are optional.
type Providers struct {
	Ingredients IngredientProvider
	Recipes     RecipeProvider
	Invoices    InvoiceProvider
	Sales       SalesProvider
	Sink        UpdateSink
}

// Service runs the food-cost operations.
type Service struct {
	p         Providers
	matcher   *matching.Matcher
	parser    *packsize.Parser
	calc      *variance.Calculator
	impact    *impact.Engine
	audit     *audit.Engine
	advisor   *conversions.Advisor
	alerts    *alerts.Engine
	suggester Suggester
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a service with default engines.
func NewService(p Providers) *Service {
	parser := packsize.NewParser()
	return &Service{
		p:       p,
		matcher: matching.NewMatcher(matching.DefaultTables()),
		parser:  parser,
		calc:    variance.NewCalculator(parser),
		impact:  impact.NewEngine(),
		audit:   audit.NewEngine().WithParser(parser),
		advisor: conversions.NewAdvisor(parser),
		alerts:  alerts.NewEngine(),
		now:     time.Now,
		log:     zerolog.Nop(),
	}
}

// WithMatcher replaces the name matcher.
func (s *Service) WithMatcher(m *matching.Matcher) *Service {
	s.matcher = m
	return s
}

// WithParser replaces the pack-size parser used by every engine.
func (s *Service) WithParser(p *packsize.Parser) *Service {
	s.parser = p
	s.calc = variance.NewCalculator(p)
	s.audit = s.audit.WithParser(p)
	s.advisor = conversions.NewAdvisor(p)
	return s
}

// WithAuditEngine replaces the anomaly detector.
func (s *Service) WithAuditEngine(e *audit.Engine) *Service {
	s.audit = e.WithParser(s.parser)
	return s
}

// WithSuggester enables AI suggestions for ambiguous matches.
func (s *Service) WithSuggester(sg Suggester) *Service {
	s.suggester = sg
	return s
}

// WithAdvisor enables AI recommendations on price alerts.
func (s *Service) WithAdvisor(a alerts.Advisor) *Service {
	s.alerts = s.alerts.WithAdvisor(a)
	return s
}

// WithClock sets the time source used for periods and stamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.alerts = s.alerts.WithClock(now)
	return s
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l zerolog.Logger) *Service {
	s.log = l
	return s
}

// today is the clock date in ISO form.
func (s *Service) today() string {
	return s.now().Format(isoDate)
}

const isoDate = "2006-01-02"

// snapshot is the collaborator data one operation works on.
type snapshot struct {
	ingredients []api.Ingredient
	recipes     []api.Recipe
	items       []api.InvoiceLineItem
	sales       []api.ProductSale
}

// need selects which collaborators to fetch.
type need struct {
	ingredients bool
	recipes     bool
	invoices    bool
	sales       bool
	period      api.DateRange
}

// fetch loads the requested collaborator data concurrently.
func (s *Service) fetch(ctx context.Context, n need) (snapshot, error) {
	var snap snapshot
	g, ctx := errgroup.WithContext(ctx)

	if n.ingredients {
		g.Go(func() error {
			v, err := s.p.Ingredients.ListIngredients(ctx)
			if err != nil {
				return fmt.Errorf("failed to list ingredients: %w", err)
			}
			snap.ingredients = v
			return nil
		})
	}
	if n.recipes {
		g.Go(func() error {
			v, err := s.p.Recipes.ListRecipes(ctx)
			if err != nil {
				return fmt.Errorf("failed to list recipes: %w", err)
			}
			snap.recipes = v
			return nil
		})
	}
	if n.invoices {
		g.Go(func() error {
			v, err := s.p.Invoices.ListInvoiceItems(ctx, n.period)
			if err != nil {
				return fmt.Errorf("failed to list invoice items: %w", err)
			}
			snap.items = v
			return nil
		})
	}
	if n.sales && s.p.Sales != nil {
		g.Go(func() error {
			v, err := s.p.Sales.ListSales(ctx, n.period)
			if err != nil {
				return fmt.Errorf("failed to list sales: %w", err)
			}
			snap.sales = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	s.log.Debug().
		Int("ingredients", len(snap.ingredients)).
		Int("recipes", len(snap.recipes)).
		Int("invoice_items", len(snap.items)).
		Int("sales", len(snap.sales)).
		Msg("Fetched collaborator data")
	return snap, nil
}

// apply hands instructions to the sink. Without a sink the instructions
// are only returned to the caller.
func (s *Service) apply(ctx context.Context, updates []api.UpdateInstruction) (bool, error) {
	if len(updates) == 0 || s.p.Sink == nil {
		return false, nil
	}
	if err := s.p.Sink.Apply(ctx, updates); err != nil {
		return false, fmt.Errorf("failed to apply updates: %w", err)
	}
	s.log.Info().Int("updates", len(updates)).Msg("Applied ingredient updates")
	return true, nil
}

// pricedLatest keeps the latest line per product with a positive price.
func pricedLatest(items []api.InvoiceLineItem) (map[string]api.InvoiceLineItem, int) {
	priced := make([]api.InvoiceLineItem, 0, len(items))
	for _, it := range items {
		if it.UnitPrice > 0 {
			priced = append(priced, it)
		}
	}
	return variance.LatestByProduct(priced), len(priced)
}
