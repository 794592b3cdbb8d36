package sqlstore

import (
	"context"
	"testing"

	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

func f64(v float64) *float64 { return &v }
func str(v string) *string    { return &v }

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(SQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	err = s.Import(context.Background(), Dataset{
		Ingredients: []api.Ingredient{
			{ID: "i1", Name: "Rice", UnitCost: 2, PerUnit: "kg", Category: str("Dry")},
			{ID: "i2", Name: "Eggs", UnitCost: 0.3, PerUnit: "each", LatestPrice: f64(0.35),
				Conversion: &api.PackConversion{InvoiceUnit: "case", Factor: 180, Notes: "180 eggs"}},
		},
		Recipes: []api.Recipe{{
			ID: "r1", Name: "Fried Rice", SellingPrice: f64(14),
			Lines: []api.RecipeLine{
				{IngredientID: "i1", Quantity: 200, Unit: "g"},
				{IngredientName: "Eggs", Quantity: 2, Unit: "each"},
			},
		}},
		Invoices: []api.InvoiceLineItem{
			{ID: "a", ProductName: "Rice", UnitPrice: 2.2, Unit: "kg", InvoiceDate: str("2024-03-01")},
			{ID: "b", ProductName: "Rice", UnitPrice: 2.4, Unit: "kg", InvoiceDate: str("2024-03-20")},
			{ID: "c", ProductName: "Eggs 15DZ", UnitPrice: 60, Unit: "case"},
		},
		Sales: []api.ProductSale{{ProductName: "Fried Rice", QuantitySold: 40, Revenue: 560}},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	return s
}

func TestListIngredients(t *testing.T) {
	s := openTest(t)
	got, err := s.ListIngredients(context.Background())
	if err != nil || len(got) != 2 {
		t.Fatalf("ListIngredients = %d, %v", len(got), err)
	}
	eggs, rice := got[0], got[1]
	if eggs.Conversion == nil || eggs.Conversion.Factor != 180 || *eggs.LatestPrice != 0.35 {
		t.Errorf("eggs = %+v", eggs)
	}
	if rice.Conversion != nil || rice.LatestPrice != nil || rice.CategoryName() != "Dry" {
		t.Errorf("rice = %+v", rice)
	}
}

func TestListRecipes(t *testing.T) {
	s := openTest(t)
	got, err := s.ListRecipes(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("ListRecipes = %+v, %v", got, err)
	}
	r := got[0]
	if *r.SellingPrice != 14 || len(r.Lines) != 2 || r.Lines[1].IngredientName != "Eggs" || r.Lines[0].Quantity != 200 {
		t.Errorf("recipe = %+v", r)
	}
}

func TestListInvoiceItemsRange(t *testing.T) {
	s := openTest(t)
	tests := []struct {
		r    api.DateRange
		want int
	}{
		{api.DateRange{}, 3},
		{api.DateRange{Start: "2024-03-10"}, 2},
		{api.DateRange{End: "2024-03-01"}, 2},
		{api.DateRange{Start: "2024-03-02", End: "2024-03-19"}, 1},
	}
	for _, tt := range tests {
		got, err := s.ListInvoiceItems(context.Background(), tt.r)
		if err != nil || len(got) != tt.want {
			t.Errorf("ListInvoiceItems(%+v) = %d, %v; want %d", tt.r, len(got), err, tt.want)
		}
	}

	all, _ := s.ListInvoiceItems(context.Background(), api.DateRange{})
	if all[0].ID != "b" || all[2].InvoiceDate != nil {
		t.Errorf("order = %s %s %s", all[0].ID, all[1].ID, all[2].ID)
	}
}

func TestListSales(t *testing.T) {
	s := openTest(t)
	got, err := s.ListSales(context.Background(), api.DateRange{Start: "2024-01-01"})
	if err != nil || len(got) != 1 || got[0].QuantitySold != 40 {
		t.Errorf("ListSales = %+v, %v", got, err)
	}
}

func TestApply(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	err := s.Apply(ctx, []api.UpdateInstruction{
		api.SetNumber("i1", api.FieldUnitCost, 2.4, "invoice"),
		api.SetText("i1", api.FieldPriceUpdated, "2024-03-20", "invoice"),
		api.SetText("i1", api.FieldInvoiceUnit, "bag", "conversion"),
		api.SetNumber("i1", api.FieldConversionFactor, 20, "conversion"),
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got, _ := s.ListIngredients(ctx)
	rice := got[1]
	if rice.UnitCost != 2.4 || *rice.PriceUpdated != "2024-03-20" || rice.Conversion == nil || rice.Conversion.Factor != 20 {
		t.Errorf("rice after apply = %+v", rice)
	}

	err = s.Apply(ctx, []api.UpdateInstruction{
		api.SetNumber("i2", api.FieldUnitCost, 9, "x"),
		api.SetNumber("missing", api.FieldUnitCost, 1, "x"),
	})
	if !serrors.IsNotFound(err) {
		t.Fatalf("Apply(missing) err = %v", err)
	}
	got, _ = s.ListIngredients(ctx)
	if got[0].UnitCost != 0.3 {
		t.Errorf("failed batch should roll back, eggs cost = %v", got[0].UnitCost)
	}

	if err := s.Apply(ctx, []api.UpdateInstruction{{IngredientID: "i1", Field: "name"}}); !serrors.IsValidation(err) {
		t.Errorf("Apply(unknown field) err = %v", err)
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: Postgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("rebind = %q", got)
	}
	lite := &Store{driver: SQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
	if _, err := Open("mysql", ""); err == nil {
		t.Error("expected unsupported driver error")
	}
}
