package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pg-png/wwithai-foodcost-sentinel/db/snapshot"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/platform"
)

const dataset = `{
  "ingredients": [
    {"id": "i1", "name": "Chicken", "unit_cost": 5, "per_unit": "kg"},
    {"id": "i2", "name": "Rice", "unit_cost": 2, "per_unit": "kg"}
  ],
  "recipes": [{"id": "r1", "name": "Chicken Rice", "selling_price": 20,
    "lines": [{"ingredient_id": "i1", "quantity": 0.5, "unit": "kg"}]}],
  "invoice_items": [
    {"id": "a", "product_name": "Chicken", "unit_price": 6, "unit": "kg", "invoice_date": "2024-03-06"},
    {"id": "b", "product_name": "Dish soap", "unit_price": 3, "unit": "each", "invoice_date": "2024-03-03"}
  ],
  "sales": []
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	stdout = &out
	t.Cleanup(func() { stdout = os.Stdout })

	cfg := platform.Config{LogLevel: "error", StoreDriver: "snapshot"}
	err := newApp(cfg).Run(append([]string{"foodcost"}, args...))
	return out.String(), err
}

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(dataset), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMatchJSON(t *testing.T) {
	path := writeDataset(t)
	out, err := run(t, "--store", "snapshot", "--dsn", path, "match", "--format", "json")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	var rep struct {
		Summary struct {
			TotalInvoiceItems    int `json:"total_invoice_items"`
			AutoMatched          int `json:"auto_matched"`
			NoMatch              int `json:"no_match"`
			PriceChangesDetected int `json:"price_changes_detected"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	s := rep.Summary
	if s.TotalInvoiceItems != 2 || s.AutoMatched != 1 || s.NoMatch != 1 || s.PriceChangesDetected != 1 {
		t.Errorf("summary = %+v", s)
	}
}

func TestTableAndMarkdown(t *testing.T) {
	path := writeDataset(t)
	out, err := run(t, "--store", "snapshot", "--dsn", path, "match")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !strings.Contains(out, "INVOICE RECONCILIATION") || !strings.Contains(out, "╚") {
		t.Errorf("table output:\n%s", out)
	}

	out, err = run(t, "--store", "snapshot", "--dsn", path, "audit", "-f", "markdown")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !strings.HasPrefix(out, "## Ingredient Audit") {
		t.Errorf("markdown output:\n%s", out)
	}

	if _, err := run(t, "--store", "snapshot", "--dsn", path, "alerts", "-f", "yaml"); err == nil {
		t.Error("expected unknown format error")
	}
}

func TestFixWritesSnapshot(t *testing.T) {
	path := writeDataset(t)

	_, err := run(t, "--store", "snapshot", "--dsn", path, "fix",
		"--ingredient", "i2", "--field", "unit_cost", "--value", "2.4", "--dry-run")
	if err != nil {
		t.Fatalf("fix dry-run: %v", err)
	}
	s, _ := snapshot.Load(path)
	if got := s.Dataset().Ingredients[1].UnitCost; got != 2 {
		t.Errorf("dry run wrote unit cost %v", got)
	}

	_, err = run(t, "--store", "snapshot", "--dsn", path, "fix",
		"--ingredient", "i2", "--field", "unit_cost", "--value", "2.4", "--reason", "new supplier")
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	s, _ = snapshot.Load(path)
	if got := s.Dataset().Ingredients[1].UnitCost; got != 2.4 {
		t.Errorf("unit cost = %v; want 2.4", got)
	}

	if _, err := run(t, "--store", "snapshot", "--dsn", path, "fix",
		"--ingredient", "i2", "--field", "unit_cost", "--value", "cheap"); err == nil {
		t.Error("expected error for non-numeric value")
	}
}

func TestBoxPadding(t *testing.T) {
	b := &box{}
	b.title("TITLE")
	b.row("Financial impact", "$5.00")
	b.line(strings.Repeat("x", 100))
	var out bytes.Buffer
	b.flush(&out)

	for _, l := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if n := len([]rune(l)); n != boxWidth+2 {
			t.Errorf("line width %d: %q", n, l)
		}
	}
}
