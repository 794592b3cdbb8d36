package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/pg-png/wwithai-foodcost-sentinel/api"
	"github.com/pg-png/wwithai-foodcost-sentinel/db/clickhouse"
	"github.com/pg-png/wwithai-foodcost-sentinel/db/objectstore"
	"github.com/pg-png/wwithai-foodcost-sentinel/db/snapshot"
	"github.com/pg-png/wwithai-foodcost-sentinel/db/sqlstore"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/sentinel"
	"github.com/pg-png/wwithai-foodcost-sentinel/internal/llm"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/platform"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/tables"
)

// Invoice sources.
const (
	invoicesFromStore      = "store"
	invoicesFromClickHouse = "clickhouse"
	invoicesFromS3         = "s3"
)

// records is what every record store offers.
type records interface {
	sentinel.IngredientProvider
	sentinel.RecipeProvider
	sentinel.InvoiceProvider
	sentinel.SalesProvider
	sentinel.UpdateSink
}

// session is the wired service plus what must be closed afterwards.
type session struct {
	svc     *sentinel.Service
	tables  tables.File
	records records
	sql     *sqlstore.Store
	history *clickhouse.Store
	pingers []api.Pinger
	closers []func() error
}

func (rt *session) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Close failed")
		}
	}
}

// openRecords opens the record store selected by --store.
func openRecords(c *cli.Context, rt *session) error {
	driver, dsn := c.String("store"), c.String("dsn")
	switch driver {
	case "snapshot":
		s, err := snapshot.Load(dsn)
		if err != nil {
			return err
		}
		rt.records = s
	case sqlstore.SQLite, sqlstore.Postgres:
		s, err := sqlstore.Open(driver, dsn)
		if err != nil {
			return fmt.Errorf("failed to open record store: %w", err)
		}
		rt.records, rt.sql = s, s
		rt.pingers = append(rt.pingers, s)
		rt.closers = append(rt.closers, s.Close)
	default:
		return fmt.Errorf("unknown store %q (sqlite, postgres, snapshot)", driver)
	}
	log.Debug().Str("store", driver).Msg("Record store opened")
	return nil
}

// openHistory connects to ClickHouse when a DSN is configured.
func openHistory(c *cli.Context, rt *session, required bool) error {
	dsn := c.String("clickhouse-dsn")
	if dsn == "" {
		if required {
			return fmt.Errorf("--clickhouse-dsn is required")
		}
		return nil
	}
	s, err := clickhouse.NewStoreFromDSN(dsn)
	if err != nil {
		return err
	}
	if err := s.Migrate(c.Context); err != nil {
		s.Close()
		return err
	}
	rt.history = s
	rt.pingers = append(rt.pingers, s)
	rt.closers = append(rt.closers, s.Close)
	return nil
}

func openExports(ctx context.Context, c *cli.Context) (*objectstore.Reader, error) {
	return objectstore.NewS3Reader(ctx, objectstore.Options{
		Bucket:   c.String("export-bucket"),
		Prefix:   c.String("export-prefix"),
		Region:   c.String("aws-region"),
		Endpoint: c.String("export-endpoint"),
	})
}

// setup wires the service from global flags. dryRun leaves the update
// sink unset so instructions are reported but not written.
func setup(c *cli.Context, dryRun bool) (*session, error) {
	ctx := c.Context
	rt := &session{}

	tf, err := tables.Load(c.String("tables"))
	if err != nil {
		return nil, err
	}
	rt.tables = tf

	if err := openRecords(c, rt); err != nil {
		rt.Close()
		return nil, err
	}
	if err := openHistory(c, rt, c.String("invoices") == invoicesFromClickHouse); err != nil {
		rt.Close()
		return nil, err
	}

	p := sentinel.Providers{
		Ingredients: rt.records,
		Recipes:     rt.records,
		Invoices:    rt.records,
		Sales:       rt.records,
	}
	switch src := c.String("invoices"); src {
	case invoicesFromStore:
	case invoicesFromClickHouse:
		p.Invoices = rt.history
	case invoicesFromS3:
		r, err := openExports(ctx, c)
		if err != nil {
			rt.Close()
			return nil, err
		}
		p.Invoices = r
	default:
		rt.Close()
		return nil, fmt.Errorf("unknown invoice source %q (store, clickhouse, s3)", src)
	}

	if !dryRun {
		if url := c.String("webhook-url"); url != "" {
			p.Sink = platform.NewWebhookSink(url, c.String("webhook-token"))
		} else {
			p.Sink = rt.records
		}
	}

	rt.svc = sentinel.NewService(p).
		WithMatcher(tf.Matcher()).
		WithParser(tf.Parser()).
		WithAuditEngine(tf.AuditEngine()).
		WithLogger(log.Logger)

	if key := c.String("gemini-key"); key != "" {
		gen, err := llm.NewGemini(ctx, llm.Config{APIKey: key, Model: c.String("gemini-model")})
		if err != nil {
			rt.Close()
			return nil, err
		}
		sg := llm.NewSuggester(gen)
		rt.svc.WithSuggester(sg).WithAdvisor(sg)
	}
	return rt, nil
}
