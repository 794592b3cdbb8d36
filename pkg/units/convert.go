package units

type pair struct {
	from, to Unit
}

// Table holds direct multipliers keyed by (from, to).
type Table map[pair]float64

// DefaultTable returns the conversion multipliers used for costing.
func DefaultTable() Table {
	return Table{
		{Gram, Kilogram}:         0.001,
		{Gram, Pound}:            1 / GramsPerPound,
		{Kilogram, Gram}:         1000,
		{Kilogram, Pound}:        1000 / GramsPerPound,
		{Pound, Kilogram}:        GramsPerPound / 1000,
		{Pound, Gram}:            GramsPerPound,
		{Milliliter, Liter}:      0.001,
		{Milliliter, FluidOunce}: 0.033814,
		{Liter, Milliliter}:      1000,
		{Liter, FluidOunce}:      33.814,
		{FluidOunce, Liter}:      0.0295735,
		{FluidOunce, Milliliter}: 29.5735,
	}
}

// Pairs lists every (from, to) pair with a defined multiplier.
func (t Table) Pairs() [][2]Unit {
	out := make([][2]Unit, 0, len(t))
	for p := range t {
		out = append(out, [2]Unit{p.from, p.to})
	}
	return out
}

// Lookup returns the direct multiplier for a pair.
func (t Table) Lookup(from, to Unit) (float64, bool) {
	m, ok := t[pair{from, to}]
	return m, ok
}

// Converter converts quantities with a fixed table.
type Converter struct {
	table Table
}

// NewConverter creates a converter over the given table.
// A nil table uses DefaultTable.
func NewConverter(table Table) *Converter {
	if table == nil {
		table = DefaultTable()
	}
	return &Converter{table: table}
}

var std = NewConverter(nil)

// Convert converts qty between units with the default table.
func Convert(qty float64, from, to string) float64 {
	return std.Convert(qty, from, to)
}

// ConvertChecked is Convert plus whether the conversion is verified.
func ConvertChecked(qty float64, from, to string) (float64, bool) {
	return std.ConvertChecked(qty, from, to)
}

// Convert converts qty from one unit to another.
// When no multiplier exists the input quantity is returned unchanged.
func (c *Converter) Convert(qty float64, from, to string) float64 {
	out, _ := c.ConvertChecked(qty, from, to)
	return out
}

// ConvertChecked converts qty and reports whether the result is verified:
// false means no multiplier was found and qty came back unchanged.
func (c *Converter) ConvertChecked(qty float64, from, to string) (float64, bool) {
	f, t := Normalize(from), Normalize(to)
	if f == t {
		return qty, true
	}
	if m, ok := c.table.Lookup(f, t); ok {
		return qty * m, true
	}

	// Kitchen units go through their base unit first.
	base, bu := ToBase(qty, from)
	if bu != f {
		if bu == t {
			return base, true
		}
		if m, ok := c.table.Lookup(bu, t); ok {
			return base * m, true
		}
	}
	return qty, false
}
