package api

import "strings"

// Ingredient is a canonical ingredient record from the ingredient store.
type Ingredient struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	UnitCost     float64         `json:"unit_cost"`
	LatestPrice  *float64        `json:"latest_price,omitempty"`
	PerUnit      string          `json:"per_unit"`
	Category     *string         `json:"category,omitempty"`
	Conversion   *PackConversion `json:"conversion,omitempty"`
	PriceUpdated *string         `json:"price_updated,omitempty"`
}

// PackConversion translates one invoice unit into base costing units.
type PackConversion struct {
	InvoiceUnit string  `json:"invoice_unit"`
	Factor      float64 `json:"factor"`
	Notes       string  `json:"notes,omitempty"`
}

// HasConversion reports whether a usable stored conversion exists.
func (i Ingredient) HasConversion() bool {
	return i.Conversion != nil && i.Conversion.Factor > 0
}

// CategoryName returns the category or "".
func (i Ingredient) CategoryName() string {
	if i.Category == nil {
		return ""
	}
	return *i.Category
}

// Recipe is a menu item with its bill of materials.
type Recipe struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Category     string       `json:"category,omitempty"`
	YieldQty     float64      `json:"yield_qty,omitempty"`
	YieldUnit    string       `json:"yield_unit,omitempty"`
	SellingPrice *float64     `json:"selling_price,omitempty"`
	Lines        []RecipeLine `json:"lines"`
}

// RecipeLine references an ingredient by id, or by name when the
// relation is unresolved.
type RecipeLine struct {
	RecipeID       string  `json:"recipe_id,omitempty"`
	IngredientID   string  `json:"ingredient_id,omitempty"`
	IngredientName string  `json:"ingredient_name,omitempty"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit,omitempty"`
}

// InvoiceLineItem is one extracted supplier invoice line.
type InvoiceLineItem struct {
	ID          string  `json:"id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit,omitempty"`
	InvoiceDate *string `json:"invoice_date,omitempty"`
	InvoiceID   string  `json:"invoice_id,omitempty"`
	Supplier    string  `json:"supplier,omitempty"`
}

// Date returns the invoice date or "".
func (it InvoiceLineItem) Date() string {
	if it.InvoiceDate == nil {
		return ""
	}
	return *it.InvoiceDate
}

// ProductSale is a POS sales aggregate for one product.
type ProductSale struct {
	ProductName  string  `json:"product_name"`
	QuantitySold float64 `json:"quantity_sold"`
	Revenue      float64 `json:"revenue"`
	Category     string  `json:"category,omitempty"`
}

// Key folds a name into the case-insensitive lookup key.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SalesIndex holds units sold keyed by lower-cased product name.
type SalesIndex map[string]float64

// NewSalesIndex sums quantities by product name.
func NewSalesIndex(sales []ProductSale) SalesIndex {
	idx := make(SalesIndex, len(sales))
	for _, s := range sales {
		idx[Key(s.ProductName)] += s.QuantitySold
	}
	return idx
}

// UnitsSold returns the units sold for a product, or 0.
func (s SalesIndex) UnitsSold(name string) float64 {
	return s[Key(name)]
}

// IngredientIndex resolves ingredients by id or case-insensitive name.
// The first record seen for a name wins.
type IngredientIndex struct {
	byID   map[string]Ingredient
	byName map[string]Ingredient
}

// NewIngredientIndex indexes a list of ingredients.
func NewIngredientIndex(ingredients []Ingredient) *IngredientIndex {
	idx := &IngredientIndex{
		byID:   make(map[string]Ingredient, len(ingredients)),
		byName: make(map[string]Ingredient, len(ingredients)),
	}
	for _, ing := range ingredients {
		if ing.ID != "" {
			idx.byID[ing.ID] = ing
		}
		k := Key(ing.Name)
		if _, ok := idx.byName[k]; !ok && k != "" {
			idx.byName[k] = ing
		}
	}
	return idx
}

// Resolve looks up by id, then by name.
func (x *IngredientIndex) Resolve(id, name string) (Ingredient, bool) {
	if id != "" {
		if ing, ok := x.byID[id]; ok {
			return ing, true
		}
	}
	if name != "" {
		if ing, ok := x.byName[Key(name)]; ok {
			return ing, true
		}
	}
	return Ingredient{}, false
}

// Len returns the number of indexed ids.
func (x *IngredientIndex) Len() int {
	return len(x.byID)
}
