package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/pg-png/wwithai-foodcost-sentinel/db/ingestion"
	"github.com/pg-png/wwithai-foodcost-sentinel/db/snapshot"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/audit"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/conversions"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/report"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/sentinel"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
)

func dryRunFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Print update instructions without writing them",
	}
}

// saveRun records a run in ClickHouse when connected.
func saveRun(c *cli.Context, rt *session, kind string, period api.DateRange, impact float64, issues int, payload interface{}) {
	if rt.history == nil || !c.Bool("save") {
		return
	}
	id, err := rt.history.SaveRun(c.Context, kind, period, impact, issues, payload)
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("Failed to save analysis run")
		return
	}
	log.Info().Str("kind", kind).Str("run_id", id.String()).Msg("Saved analysis run")
}

func saveFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "save",
		Usage: "Record the run in ClickHouse (needs --clickhouse-dsn)",
	}
}

func printUpdate(c *cli.Context, res sentinel.UpdateResult) error {
	return emit(c, res,
		func() string {
			var b strings.Builder
			if res.Message != "" {
				fmt.Fprintf(&b, "%s\n\n", res.Message)
			}
			for _, u := range res.Instructions {
				fmt.Fprintf(&b, "- `%s` %s = %s (%s)\n", u.IngredientID, u.Field, value(u), u.Reason)
			}
			return b.String()
		},
		func(b *box) {
			b.title("UPDATE INSTRUCTIONS")
			for _, u := range res.Instructions {
				b.row(u.IngredientID+" "+string(u.Field), value(u))
			}
			b.row("Applied", strconv.FormatBool(res.Applied))
		})
}

func value(u api.UpdateInstruction) string {
	switch {
	case u.Number != nil:
		return strconv.FormatFloat(*u.Number, 'f', -1, 64)
	case u.Text != nil:
		return *u.Text
	}
	return ""
}

// =============================================================================
// MATCH COMMAND
// =============================================================================

func matchCommand() *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "Match recent invoice lines to ingredients and detect price changes",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: sentinel.DefaultReconcileLimit,
				Usage: "Number of most recent invoice lines",
			},
			formatFlag(),
		},
		Action: runMatch,
		Subcommands: []*cli.Command{
			{
				Name:  "confirm",
				Usage: "Confirm a match and record the invoice price",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "ingredient", Usage: "Ingredient ID", Required: true},
					&cli.StringFlag{Name: "product", Usage: "Invoice product name"},
					&cli.Float64Flag{Name: "price", Usage: "Invoice price", Required: true},
					&cli.StringFlag{Name: "date", Usage: "Invoice date (YYYY-MM-DD), default today"},
					dryRunFlag(),
					formatFlag(),
				},
				Action: func(c *cli.Context) error {
					rt, err := setup(c, c.Bool("dry-run"))
					if err != nil {
						return err
					}
					defer rt.Close()
					res, err := rt.svc.ConfirmMatch(c.Context, sentinel.ConfirmRequest{
						IngredientID: c.String("ingredient"),
						ProductName:  c.String("product"),
						Price:        c.Float64("price"),
						Date:         c.String("date"),
					})
					if err != nil {
						return err
					}
					return printUpdate(c, res)
				},
			},
		},
	}
}

func runMatch(c *cli.Context) error {
	rt, err := setup(c, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	rep, err := rt.svc.Reconcile(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	return emit(c, rep, func() string { return report.Reconcile(rep) }, func(b *box) {
		s := rep.Summary
		b.title("INVOICE RECONCILIATION")
		b.row("Invoice lines", strconv.Itoa(s.TotalInvoiceItems))
		b.row("Auto-matched", strconv.Itoa(s.AutoMatched))
		b.row("Needs clarification", strconv.Itoa(s.NeedsClarification))
		b.row("No match", strconv.Itoa(s.NoMatch))
		b.row("Price changes", strconv.Itoa(s.PriceChangesDetected))
		if len(rep.PriceChanges) > 0 {
			b.title("PRICE CHANGES")
			for _, pc := range rep.PriceChanges {
				b.row(pc.IngredientName, fmt.Sprintf("%s -> %s (%s)",
					report.Money(pc.ReferencePrice), report.Money(pc.ActualPrice), report.Pct(pc.VariancePct)))
			}
		}
	})
}

// =============================================================================
// IMPACT COMMAND
// =============================================================================

func impactCommand() *cli.Command {
	return &cli.Command{
		Name:  "impact",
		Usage: "Report how invoice prices moved recipe costs over a period",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "period", Aliases: []string{"p"}, Value: sentinel.PeriodWeek, Usage: "Period (week, month, ytd, custom)"},
			&cli.StringFlag{Name: "start", Usage: "Start date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "end", Usage: "End date (YYYY-MM-DD)"},
			saveFlag(),
			formatFlag(),
		},
		Action: runImpact,
	}
}

func runImpact(c *cli.Context) error {
	rt, err := setup(c, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	rep, err := rt.svc.CostImpact(c.Context, sentinel.PeriodRequest{
		Period: c.String("period"),
		Start:  c.String("start"),
		End:    c.String("end"),
	})
	if err != nil {
		return err
	}
	saveRun(c, rt, "cost_impact", rep.Period, rep.Summary.TotalFinancialImpact, rep.Summary.CriticalRecipes, rep)

	return emit(c, rep, func() string { return report.CostImpact(rep) }, func(b *box) {
		s := rep.Summary
		b.title(fmt.Sprintf("FOOD COST IMPACT (%s %s..%s)", rep.PeriodType, rep.Period.Start, rep.Period.End))
		b.row("Recipes", strconv.Itoa(s.TotalRecipes))
		b.row("Cost increases", strconv.Itoa(s.RecipesWithIncrease))
		b.row("Cost decreases", strconv.Itoa(s.RecipesWithDecrease))
		b.row("Critical", strconv.Itoa(s.CriticalRecipes))
		b.row("Financial impact", report.Money(s.TotalFinancialImpact))
		b.row("Average variance", report.Pct(s.AvgVariancePct))
		if n := len(rep.TopImpactedRecipes); n > 0 {
			b.title("TOP IMPACTED RECIPES")
			if n > 5 {
				n = 5
			}
			for _, a := range rep.TopImpactedRecipes[:n] {
				b.row(a.RecipeName, fmt.Sprintf("%s  %s", report.Pct(a.CostVariancePct), report.Money(a.TotalFinancialImpact)))
			}
		}
	})
}

// =============================================================================
// AUDIT COMMAND
// =============================================================================

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Check ingredient records for pricing and unit anomalies",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "fail-on-critical", Usage: "Exit with status 2 when the audit fails"},
			saveFlag(),
			formatFlag(),
		},
		Action: runAudit,
	}
}

func runAudit(c *cli.Context) error {
	rt, err := setup(c, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	rep, err := rt.svc.Audit(c.Context)
	if err != nil {
		return err
	}
	saveRun(c, rt, "audit", api.DateRange{}, 0, rep.Summary.TotalIssues, rep)

	err = emit(c, rep, func() string { return report.Audit(rep) }, func(b *box) {
		s := rep.Summary
		b.title("INGREDIENT AUDIT: " + strings.ToUpper(string(rep.Status)))
		b.row("Ingredients", strconv.Itoa(s.TotalIngredients))
		b.row("Without price", strconv.Itoa(s.IngredientsWithoutPrice))
		b.row("Issues", fmt.Sprintf("%d (critical %d, high %d)", s.TotalIssues, s.CriticalIssues, s.HighIssues))
		if len(rep.TopPriority) > 0 {
			b.title("TOP PRIORITY")
			for _, i := range rep.TopPriority {
				b.row(i.IngredientName, fmt.Sprintf("[%s] %s", i.Severity, i.Kind))
			}
		}
	})
	if err != nil {
		return err
	}
	if c.Bool("fail-on-critical") && rep.Status == audit.StatusFail {
		return cli.Exit("", 2)
	}
	return nil
}

// =============================================================================
// CONVERSIONS COMMAND
// =============================================================================

func conversionsCommand() *cli.Command {
	return &cli.Command{
		Name:   "conversions",
		Usage:  "Suggest pack-size conversions from invoice descriptions",
		Flags:  []cli.Flag{formatFlag()},
		Action: runConversions,
		Subcommands: []*cli.Command{
			{
				Name:  "apply",
				Usage: "Write suggested conversions",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "Apply every parsed suggestion, not only confident ones"},
					&cli.StringSliceFlag{Name: "ingredient", Usage: "Restrict to these ingredient IDs"},
					&cli.BoolFlag{Name: "skip-recalculate", Usage: "Keep current unit costs"},
					dryRunFlag(),
					formatFlag(),
				},
				Action: runApplyConversions,
			},
			{
				Name:  "rule",
				Usage: "Set a conversion on every ingredient whose name contains a keyword; without --keyword, apply the rules from --tables",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "keyword", Usage: "Product keyword"},
					&cli.StringFlag{Name: "unit", Usage: "Invoice unit"},
					&cli.Float64Flag{Name: "factor", Usage: "Base units per invoice unit"},
					&cli.StringFlag{Name: "notes", Usage: "Notes"},
					&cli.StringFlag{Name: "base-unit", Usage: "Base unit"},
					dryRunFlag(),
					formatFlag(),
				},
				Action: runRule,
			},
		},
	}
}

func runConversions(c *cli.Context) error {
	rt, err := setup(c, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	plan, err := rt.svc.Conversions(c.Context)
	if err != nil {
		return err
	}
	return emit(c, plan, func() string { return report.Conversions(plan) }, func(b *box) {
		s := plan.Summary
		b.title("PACK CONVERSIONS")
		b.row("Suggestions", strconv.Itoa(s.SuggestionsFound))
		b.row("Auto-applicable", strconv.Itoa(s.AutoApplyable))
		b.row("Already configured", strconv.Itoa(s.AlreadyConfigured))
		b.row("No match", strconv.Itoa(s.NoMatchFound))
		for _, sg := range plan.Suggestions {
			conv := "manual"
			if sg.Conversion != nil {
				conv = fmt.Sprintf("1 %s = %g", sg.Conversion.InvoiceUnit, sg.Conversion.Factor)
			}
			b.row(sg.IngredientName, conv)
		}
	})
}

func runApplyConversions(c *cli.Context) error {
	rt, err := setup(c, c.Bool("dry-run"))
	if err != nil {
		return err
	}
	defer rt.Close()

	res, applied, err := rt.svc.ApplyConversions(c.Context, conversions.ApplyRequest{
		ApplyAll:       c.Bool("all"),
		IngredientIDs:  c.StringSlice("ingredient"),
		RecalculateOff: c.Bool("skip-recalculate"),
	})
	if err != nil {
		return err
	}
	return printUpdate(c, sentinel.UpdateResult{
		Instructions: res.Instructions,
		Applied:      applied,
		Message:      fmt.Sprintf("%d conversions", len(res.Applied)),
	})
}

func runRule(c *cli.Context) error {
	rt, err := setup(c, c.Bool("dry-run"))
	if err != nil {
		return err
	}
	defer rt.Close()

	rules := rt.tables.Rules
	if c.String("keyword") != "" {
		rules = []conversions.Rule{{
			Keyword:     c.String("keyword"),
			InvoiceUnit: c.String("unit"),
			Factor:      c.Float64("factor"),
			Notes:       c.String("notes"),
			BaseUnit:    c.String("base-unit"),
		}}
	}
	if len(rules) == 0 {
		return fmt.Errorf("no rule given and no conversion_rules in --tables")
	}

	total := sentinel.UpdateResult{Applied: true}
	touched := 0
	for _, r := range rules {
		res, err := rt.svc.AddConversionRule(c.Context, r)
		if err != nil {
			return fmt.Errorf("rule %q: %w", r.Keyword, err)
		}
		total.Instructions = append(total.Instructions, res.Instructions...)
		total.Applied = total.Applied && res.Applied
		touched += len(res.Ingredients)
	}
	total.Message = fmt.Sprintf("%d rules touched %d ingredients", len(rules), touched)
	return printUpdate(c, total)
}

// =============================================================================
// ALERTS COMMAND
// =============================================================================

func alertsCommand() *cli.Command {
	return &cli.Command{
		Name:   "alerts",
		Usage:  "List significant supplier price moves",
		Flags:  []cli.Flag{formatFlag()},
		Action: runAlerts,
	}
}

func runAlerts(c *cli.Context) error {
	rt, err := setup(c, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	rep, err := rt.svc.Alerts(c.Context)
	if err != nil {
		return err
	}
	return emit(c, rep, func() string { return report.Alerts(rep) }, func(b *box) {
		b.title("PRICE ALERTS")
		b.row("Alerts", strconv.Itoa(rep.Summary.TotalAlerts))
		b.row("Monthly impact", report.Money(rep.Summary.TotalImpact))
		for _, a := range rep.Alerts {
			b.row(a.Change.Product, fmt.Sprintf("[%s] %s", a.ImpactLevel, report.Pct(a.Change.ChangePct)))
		}
	})
}

// =============================================================================
// FIX COMMAND
// =============================================================================

func fixCommand() *cli.Command {
	return &cli.Command{
		Name:  "fix",
		Usage: "Correct one ingredient field",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ingredient", Usage: "Ingredient ID", Required: true},
			&cli.StringFlag{Name: "field", Usage: "unit_cost, latest_price, per_unit or category", Required: true},
			&cli.StringFlag{Name: "value", Usage: "New value", Required: true},
			&cli.StringFlag{Name: "reason", Usage: "Reason recorded with the change"},
			dryRunFlag(),
			formatFlag(),
		},
		Action: runFix,
	}
}

func runFix(c *cli.Context) error {
	rt, err := setup(c, c.Bool("dry-run"))
	if err != nil {
		return err
	}
	defer rt.Close()

	field := api.UpdateField(c.String("field"))
	var v interface{} = c.String("value")
	if field.Numeric() {
		n, err := strconv.ParseFloat(c.String("value"), 64)
		if err != nil {
			return fmt.Errorf("%s needs a number: %w", field, err)
		}
		v = n
	}
	res, err := rt.svc.FixIngredient(c.Context, sentinel.FixRequest{
		IngredientID: c.String("ingredient"),
		Field:        field,
		Value:        v,
		Reason:       c.String("reason"),
	})
	if err != nil {
		return err
	}
	return printUpdate(c, res)
}

// =============================================================================
// INGEST / IMPORT COMMANDS
// =============================================================================

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Load invoice lines into the ClickHouse price history",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Value: "s3", Usage: "Source: s3, or a snapshot JSON file"},
			&cli.StringFlag{Name: "supplier", Usage: "Default supplier for lines without one"},
			&cli.IntFlag{Name: "batch-size", Value: 1000, Usage: "Insert batch size"},
		},
		Action: runIngest,
	}
}

func runIngest(c *cli.Context) error {
	ctx := c.Context
	rt := &session{}
	defer rt.Close()
	if err := openHistory(c, rt, true); err != nil {
		return err
	}

	adapter := ingestion.NewClickHouseAdapter(rt.history).WithBatchSize(c.Int("batch-size"))
	ingest := func(source string, items []api.InvoiceLineItem) error {
		res, err := adapter.Ingest(ctx, ingestion.IngestionInput{
			Source:    source,
			Supplier:  c.String("supplier"),
			FetchedAt: time.Now(),
			Items:     items,
		})
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", source, err)
		}
		fmt.Fprintf(stdout, "%s: %d lines, %d skipped, duplicate=%t (batch %s)\n",
			source, res.LineCount, res.Skipped, res.Duplicate, res.BatchID)
		return nil
	}

	from := c.String("from")
	if from != "s3" {
		s, err := snapshot.Load(from)
		if err != nil {
			return err
		}
		return ingest(from, s.Dataset().Invoices)
	}

	reader, err := openExports(ctx, c)
	if err != nil {
		return err
	}
	keys, err := reader.Keys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		items, err := reader.Read(ctx, k)
		if err != nil {
			log.Warn().Err(err).Str("key", k).Msg("Skipping export")
			continue
		}
		if err := ingest(k, items); err != nil {
			return err
		}
	}
	return nil
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Load a snapshot JSON file into the SQL record store",
		ArgsUsage: "<snapshot.json>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected one snapshot file")
			}
			src, err := snapshot.Load(c.Args().First())
			if err != nil {
				return err
			}
			rt := &session{}
			defer rt.Close()
			if err := openRecords(c, rt); err != nil {
				return err
			}
			if rt.sql == nil {
				return fmt.Errorf("import needs a sqlite or postgres store")
			}
			d := src.Dataset()
			if err := rt.sql.Import(c.Context, d); err != nil {
				return err
			}
			log.Info().
				Int("ingredients", len(d.Ingredients)).
				Int("recipes", len(d.Recipes)).
				Int("invoice_items", len(d.Invoices)).
				Int("sales", len(d.Sales)).
				Msg("Snapshot imported")
			return nil
		},
	}
}
