// Package sqlstore keeps ingredients, recipes, invoices and sales in a
// relational database. PostgreSQL runs in production; SQLite serves
// offline use and tests.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/pg-png/wwithai-foodcost-sentinel/db/snapshot"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

// Drivers.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Store is the relational record store.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects and migrates. Postgres connections are retried while the
// server starts.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case Postgres, SQLite:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if driver == SQLite {
		// One connection keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}

	attempts := 1
	if driver == Postgres {
		attempts = 10
	}
	for i := 0; i < attempts; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("Database not ready")
		if i < attempts-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping failed after retries: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", driver, err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ingredients (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL,
		unit_cost         DOUBLE PRECISION NOT NULL DEFAULT 0,
		latest_price      DOUBLE PRECISION,
		per_unit          TEXT NOT NULL DEFAULT '',
		category          TEXT,
		price_updated     TEXT,
		invoice_unit      TEXT,
		conversion_factor DOUBLE PRECISION,
		conversion_notes  TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS recipes (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		category      TEXT NOT NULL DEFAULT '',
		yield_qty     DOUBLE PRECISION NOT NULL DEFAULT 0,
		yield_unit    TEXT NOT NULL DEFAULT '',
		selling_price DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS recipe_lines (
		recipe_id       TEXT NOT NULL,
		position        INTEGER NOT NULL,
		ingredient_id   TEXT NOT NULL DEFAULT '',
		ingredient_name TEXT NOT NULL DEFAULT '',
		quantity        DOUBLE PRECISION NOT NULL DEFAULT 0,
		unit            TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (recipe_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS invoice_items (
		id           TEXT PRIMARY KEY,
		invoice_id   TEXT NOT NULL DEFAULT '',
		product_name TEXT NOT NULL,
		unit_price   DOUBLE PRECISION NOT NULL DEFAULT 0,
		quantity     DOUBLE PRECISION NOT NULL DEFAULT 0,
		unit         TEXT NOT NULL DEFAULT '',
		invoice_date TEXT,
		supplier     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_items_date ON invoice_items(invoice_date)`,
	`CREATE TABLE IF NOT EXISTS product_sales (
		product_name  TEXT NOT NULL,
		quantity_sold DOUBLE PRECISION NOT NULL DEFAULT 0,
		revenue       DOUBLE PRECISION NOT NULL DEFAULT 0,
		category      TEXT NOT NULL DEFAULT '',
		sale_date     TEXT
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $n for PostgreSQL.
func (s *Store) rebind(q string) string {
	if s.driver != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, tx *sql.Tx, q string, args ...interface{}) error {
	_, err := tx.ExecContext(ctx, s.rebind(q), args...)
	return err
}

// =============================================================================
// PROVIDERS
// =============================================================================

// ListIngredients returns every ingredient ordered by name.
func (s *Store) ListIngredients(ctx context.Context) ([]api.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit_cost, latest_price, per_unit, category, price_updated,
		       invoice_unit, conversion_factor, conversion_notes
		FROM ingredients ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query ingredients: %w", err)
	}
	defer rows.Close()

	out := []api.Ingredient{}
	for rows.Next() {
		var ing api.Ingredient
		var latest, factor sql.NullFloat64
		var category, updated, invUnit, notes sql.NullString
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.UnitCost, &latest, &ing.PerUnit, &category, &updated,
			&invUnit, &factor, &notes); err != nil {
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		ing.LatestPrice = nullFloat(latest)
		ing.Category = nullString(category)
		ing.PriceUpdated = nullString(updated)
		if invUnit.Valid && invUnit.String != "" && factor.Valid && factor.Float64 > 0 {
			ing.Conversion = &api.PackConversion{InvoiceUnit: invUnit.String, Factor: factor.Float64, Notes: notes.String}
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

// ListRecipes returns recipes with their lines joined in order.
func (s *Store) ListRecipes(ctx context.Context) ([]api.Recipe, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, yield_qty, yield_unit, selling_price
		FROM recipes ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query recipes: %w", err)
	}
	var recipes []api.Recipe
	pos := map[string]int{}
	for rows.Next() {
		var r api.Recipe
		var price sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.Name, &r.Category, &r.YieldQty, &r.YieldUnit, &price); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		r.SellingPrice = nullFloat(price)
		r.Lines = []api.RecipeLine{}
		pos[r.ID] = len(recipes)
		recipes = append(recipes, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := s.db.QueryContext(ctx, `
		SELECT recipe_id, ingredient_id, ingredient_name, quantity, unit
		FROM recipe_lines ORDER BY recipe_id, position`)
	if err != nil {
		return nil, fmt.Errorf("query recipe lines: %w", err)
	}
	defer lines.Close()
	for lines.Next() {
		var l api.RecipeLine
		if err := lines.Scan(&l.RecipeID, &l.IngredientID, &l.IngredientName, &l.Quantity, &l.Unit); err != nil {
			return nil, fmt.Errorf("scan recipe line: %w", err)
		}
		if i, ok := pos[l.RecipeID]; ok {
			recipes[i].Lines = append(recipes[i].Lines, l)
		}
	}
	if recipes == nil {
		recipes = []api.Recipe{}
	}
	return recipes, lines.Err()
}

// ListInvoiceItems returns invoice lines inside r, newest first.
// Undated lines are always included.
func (s *Store) ListInvoiceItems(ctx context.Context, r api.DateRange) ([]api.InvoiceLineItem, error) {
	q := s.rebind(`
		SELECT id, invoice_id, product_name, unit_price, quantity, unit, invoice_date, supplier
		FROM invoice_items
		WHERE invoice_date IS NULL OR invoice_date = ''
		   OR ((? = '' OR invoice_date >= ?) AND (? = '' OR invoice_date <= ?))
		ORDER BY invoice_date DESC, id`)
	rows, err := s.db.QueryContext(ctx, q, r.Start, r.Start, r.End, endOfDay(r.End))
	if err != nil {
		return nil, fmt.Errorf("query invoice items: %w", err)
	}
	defer rows.Close()

	out := []api.InvoiceLineItem{}
	for rows.Next() {
		var it api.InvoiceLineItem
		var date sql.NullString
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductName, &it.UnitPrice, &it.Quantity, &it.Unit, &date, &it.Supplier); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		it.InvoiceDate = nullString(date)
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListSales returns sales inside r. Undated sales are always included.
func (s *Store) ListSales(ctx context.Context, r api.DateRange) ([]api.ProductSale, error) {
	q := s.rebind(`
		SELECT product_name, quantity_sold, revenue, category
		FROM product_sales
		WHERE sale_date IS NULL OR sale_date = ''
		   OR ((? = '' OR sale_date >= ?) AND (? = '' OR sale_date <= ?))
		ORDER BY product_name`)
	rows, err := s.db.QueryContext(ctx, q, r.Start, r.Start, r.End, endOfDay(r.End))
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	out := []api.ProductSale{}
	for rows.Next() {
		var p api.ProductSale
		if err := rows.Scan(&p.ProductName, &p.QuantitySold, &p.Revenue, &p.Category); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// UPDATE SINK
// =============================================================================

// columns maps update fields to ingredient columns.
var columns = map[api.UpdateField]string{
	api.FieldUnitCost:         "unit_cost",
	api.FieldLatestPrice:      "latest_price",
	api.FieldPerUnit:          "per_unit",
	api.FieldCategory:         "category",
	api.FieldPriceUpdated:     "price_updated",
	api.FieldInvoiceUnit:      "invoice_unit",
	api.FieldConversionFactor: "conversion_factor",
	api.FieldConversionNotes:  "conversion_notes",
}

// Apply writes update instructions in one transaction. Instructions for
// unknown ingredients fail the whole batch.
func (s *Store) Apply(ctx context.Context, updates []api.UpdateInstruction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		col, ok := columns[u.Field]
		if !ok {
			return serrors.NewUnknownFieldError(string(u.Field))
		}
		var v interface{}
		switch {
		case u.Number != nil:
			v = *u.Number
		case u.Text != nil:
			v = *u.Text
		default:
			return serrors.NewMissingAttributeError("value")
		}
		res, err := tx.ExecContext(ctx, s.rebind(`UPDATE ingredients SET `+col+` = ? WHERE id = ?`), v, u.IngredientID)
		if err != nil {
			return fmt.Errorf("update %s.%s: %w", u.IngredientID, col, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return serrors.NewNotFoundError("ingredient", u.IngredientID)
		}
	}
	return tx.Commit()
}

// =============================================================================
// WRITES
// =============================================================================

// Dataset is a full set of records, as imported from a snapshot.
type Dataset = snapshot.Dataset

// Import upserts a dataset. Recipe lines are replaced per recipe.
func (s *Store) Import(ctx context.Context, d Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, ing := range d.Ingredients {
		var invUnit, notes sql.NullString
		var factor sql.NullFloat64
		if ing.Conversion != nil {
			invUnit = sql.NullString{String: ing.Conversion.InvoiceUnit, Valid: true}
			notes = sql.NullString{String: ing.Conversion.Notes, Valid: true}
			factor = sql.NullFloat64{Float64: ing.Conversion.Factor, Valid: true}
		}
		if err := s.exec(ctx, tx, `
			INSERT INTO ingredients (id, name, unit_cost, latest_price, per_unit, category, price_updated,
			                         invoice_unit, conversion_factor, conversion_notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name, unit_cost = excluded.unit_cost, latest_price = excluded.latest_price,
				per_unit = excluded.per_unit, category = excluded.category, price_updated = excluded.price_updated,
				invoice_unit = excluded.invoice_unit, conversion_factor = excluded.conversion_factor,
				conversion_notes = excluded.conversion_notes`,
			ing.ID, ing.Name, ing.UnitCost, ing.LatestPrice, ing.PerUnit, ing.Category, ing.PriceUpdated,
			invUnit, factor, notes); err != nil {
			return fmt.Errorf("import ingredient %s: %w", ing.ID, err)
		}
	}

	for _, r := range d.Recipes {
		if err := s.exec(ctx, tx, `
			INSERT INTO recipes (id, name, category, yield_qty, yield_unit, selling_price)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name, category = excluded.category, yield_qty = excluded.yield_qty,
				yield_unit = excluded.yield_unit, selling_price = excluded.selling_price`,
			r.ID, r.Name, r.Category, r.YieldQty, r.YieldUnit, r.SellingPrice); err != nil {
			return fmt.Errorf("import recipe %s: %w", r.ID, err)
		}
		if err := s.exec(ctx, tx, `DELETE FROM recipe_lines WHERE recipe_id = ?`, r.ID); err != nil {
			return fmt.Errorf("clear recipe lines %s: %w", r.ID, err)
		}
		for i, l := range r.Lines {
			if err := s.exec(ctx, tx, `
				INSERT INTO recipe_lines (recipe_id, position, ingredient_id, ingredient_name, quantity, unit)
				VALUES (?, ?, ?, ?, ?, ?)`,
				r.ID, i, l.IngredientID, l.IngredientName, l.Quantity, l.Unit); err != nil {
				return fmt.Errorf("import recipe line %s/%d: %w", r.ID, i, err)
			}
		}
	}

	for i, it := range d.Invoices {
		id := it.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", it.InvoiceID, i)
		}
		if err := s.exec(ctx, tx, `
			INSERT INTO invoice_items (id, invoice_id, product_name, unit_price, quantity, unit, invoice_date, supplier)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				invoice_id = excluded.invoice_id, product_name = excluded.product_name,
				unit_price = excluded.unit_price, quantity = excluded.quantity, unit = excluded.unit,
				invoice_date = excluded.invoice_date, supplier = excluded.supplier`,
			id, it.InvoiceID, it.ProductName, it.UnitPrice, it.Quantity, it.Unit, it.InvoiceDate, it.Supplier); err != nil {
			return fmt.Errorf("import invoice item %s: %w", id, err)
		}
	}

	if len(d.Sales) > 0 {
		if err := s.exec(ctx, tx, `DELETE FROM product_sales`); err != nil {
			return fmt.Errorf("clear sales: %w", err)
		}
		for _, p := range d.Sales {
			if err := s.exec(ctx, tx, `
				INSERT INTO product_sales (product_name, quantity_sold, revenue, category) VALUES (?, ?, ?, ?)`,
				p.ProductName, p.QuantitySold, p.Revenue, p.Category); err != nil {
				return fmt.Errorf("import sale %s: %w", p.ProductName, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Info().
		Int("ingredients", len(d.Ingredients)).
		Int("recipes", len(d.Recipes)).
		Int("invoice_items", len(d.Invoices)).
		Int("sales", len(d.Sales)).
		Msg("Imported dataset")
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}

// endOfDay widens an ISO date bound so timestamps on that day still match.
func endOfDay(d string) string {
	if d == "" || len(d) > 10 {
		return d
	}
	return d + "T23:59:59"
}
