// Package tables loads vocabulary and threshold overrides from YAML.
package tables

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/pg-png/wwithai-foodcost-sentinel/decision/audit"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/conversions"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/matching"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/packsize"
)

// File is the table document. Sections left out keep their defaults;
// synonym groups are merged into the default vocabulary.
type File struct {
	Matching matching.Tables    `yaml:"matching"`
	Packs    Packs              `yaml:"packs"`
	Audit    Audit              `yaml:"audit"`
	Rules    []conversions.Rule `yaml:"conversion_rules"`
}

// Packs overrides the pack-size parser tables.
type Packs struct {
	Known  []packsize.Known `yaml:"known"`
	Filler []string         `yaml:"filler"`
}

// Audit overrides the anomaly detector limits.
type Audit struct {
	Thresholds audit.Thresholds `yaml:"thresholds"`
	Ranges     []audit.Range    `yaml:"ranges"`
}

// Default returns the built-in tables.
func Default() File {
	return File{
		Matching: matching.DefaultTables(),
		Packs: Packs{
			Known:  packsize.DefaultKnown(),
			Filler: packsize.DefaultFiller,
		},
		Audit: Audit{
			Thresholds: audit.DefaultThresholds(),
			Ranges:     audit.DefaultRanges(),
		},
	}
}

// Parse decodes a table document over the defaults.
func Parse(data []byte) (File, error) {
	f := Default()
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("failed to parse tables: %w", err)
	}
	for i, r := range f.Rules {
		if err := r.Validate(); err != nil {
			return File{}, fmt.Errorf("conversion rule %d: %w", i, err)
		}
	}
	return f, nil
}

// Load reads a table file. An empty path returns the defaults.
func Load(path string) (File, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read tables: %w", err)
	}
	return Parse(data)
}

// Matcher builds a name matcher from the tables.
func (f File) Matcher() *matching.Matcher {
	return matching.NewMatcher(f.Matching)
}

// Parser builds a pack-size parser from the tables.
func (f File) Parser() *packsize.Parser {
	return packsize.NewParser().WithKnown(f.Packs.Known).WithFiller(f.Packs.Filler)
}

// AuditEngine builds an anomaly detector from the tables.
func (f File) AuditEngine() *audit.Engine {
	return audit.NewEngine().WithThresholds(f.Audit.Thresholds).WithRanges(f.Audit.Ranges).WithParser(f.Parser())
}
