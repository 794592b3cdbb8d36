// Package snapshot serves ingredient, recipe, invoice and sales records
// from a JSON export file.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

// Dataset is a full set of records.
type Dataset struct {
	Ingredients []api.Ingredient      `json:"ingredients"`
	Recipes     []api.Recipe          `json:"recipes"`
	Invoices    []api.InvoiceLineItem `json:"invoice_items"`
	Sales       []api.ProductSale     `json:"sales"`
}

// Store holds a dataset in memory. Applied updates are written back to
// the file when one is set.
type Store struct {
	mu   sync.RWMutex
	data Dataset
	path string
}

// New wraps an in-memory dataset.
func New(d Dataset) *Store {
	return &Store{data: d}
}

// Load reads a snapshot file.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var d Dataset
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	log.Debug().
		Str("path", path).
		Int("ingredients", len(d.Ingredients)).
		Int("recipes", len(d.Recipes)).
		Int("invoice_items", len(d.Invoices)).
		Msg("Snapshot loaded")
	return &Store{data: d, path: path}, nil
}

// Dataset returns a copy of the current records.
func (s *Store) Dataset() Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Dataset{
		Ingredients: append([]api.Ingredient(nil), s.data.Ingredients...),
		Recipes:     append([]api.Recipe(nil), s.data.Recipes...),
		Invoices:    append([]api.InvoiceLineItem(nil), s.data.Invoices...),
		Sales:       append([]api.ProductSale(nil), s.data.Sales...),
	}
}

func (s *Store) ListIngredients(_ context.Context) ([]api.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.Ingredient{}, s.data.Ingredients...), nil
}

func (s *Store) ListRecipes(_ context.Context) ([]api.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.Recipe{}, s.data.Recipes...), nil
}

// ListInvoiceItems returns items inside r, newest first.
func (s *Store) ListInvoiceItems(_ context.Context, r api.DateRange) ([]api.InvoiceLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []api.InvoiceLineItem{}
	for _, it := range s.data.Invoices {
		if r.Contains(it.InvoiceDate) {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date() > out[j].Date() })
	return out, nil
}

// ListSales returns every sales row; snapshot sales are period aggregates.
func (s *Store) ListSales(_ context.Context, _ api.DateRange) ([]api.ProductSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.ProductSale{}, s.data.Sales...), nil
}

// Apply sets ingredient fields. Either every update lands or none do.
func (s *Store) Apply(_ context.Context, updates []api.UpdateInstruction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ings := make([]api.Ingredient, len(s.data.Ingredients))
	copy(ings, s.data.Ingredients)
	pos := make(map[string]int, len(ings))
	for i, ing := range ings {
		pos[ing.ID] = i
	}
	for _, u := range updates {
		i, ok := pos[u.IngredientID]
		if !ok {
			return serrors.NewNotFoundError("ingredient", u.IngredientID)
		}
		if err := set(&ings[i], u); err != nil {
			return err
		}
	}

	prev := s.data.Ingredients
	s.data.Ingredients = ings
	if err := s.save(); err != nil {
		s.data.Ingredients = prev
		return err
	}
	return nil
}

func set(ing *api.Ingredient, u api.UpdateInstruction) error {
	if u.Field.Numeric() {
		if u.Number == nil {
			return serrors.NewInvalidInputError(string(u.Field), "number required")
		}
	} else if u.Text == nil {
		return serrors.NewInvalidInputError(string(u.Field), "text required")
	}

	conv := func() *api.PackConversion {
		if ing.Conversion == nil {
			ing.Conversion = &api.PackConversion{}
		} else {
			c := *ing.Conversion
			ing.Conversion = &c
		}
		return ing.Conversion
	}

	switch u.Field {
	case api.FieldUnitCost:
		ing.UnitCost = *u.Number
	case api.FieldLatestPrice:
		v := *u.Number
		ing.LatestPrice = &v
	case api.FieldPerUnit:
		ing.PerUnit = *u.Text
	case api.FieldCategory:
		v := *u.Text
		ing.Category = &v
	case api.FieldPriceUpdated:
		v := *u.Text
		ing.PriceUpdated = &v
	case api.FieldInvoiceUnit:
		conv().InvoiceUnit = *u.Text
	case api.FieldConversionFactor:
		conv().Factor = *u.Number
	case api.FieldConversionNotes:
		conv().Notes = *u.Text
	default:
		return serrors.NewUnknownFieldError(string(u.Field))
	}
	return nil
}

// save rewrites the backing file through a temp file. Caller holds mu.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
