package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/urfave/cli/v2"

	"github.com/pg-png/wwithai-foodcost-sentinel/decision/report"
)

// Output formats.
const (
	formatTable    = "table"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

var stdout io.Writer = os.Stdout

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   formatTable,
		Usage:   "Output format (table, json, markdown)",
	}
}

// emit writes v as JSON, md as Markdown, or calls table.
func emit(c *cli.Context, v interface{}, md func() string, table func(*box)) error {
	switch f := c.String("format"); f {
	case formatJSON:
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatMarkdown:
		_, err := fmt.Fprint(stdout, md())
		return err
	case formatTable, "":
		b := &box{}
		table(b)
		b.flush(stdout)
		return nil
	default:
		return fmt.Errorf("unknown format %q (table, json, markdown)", f)
	}
}

const boxWidth = 62

// box collects lines for a framed terminal table.
type box struct {
	lines []string
}

func (b *box) title(s string) {
	b.lines = append(b.lines, "\x00"+s)
}

func (b *box) row(label, value string) {
	b.line(fmt.Sprintf("%-28s %s", report.Truncate(label, 28), value))
}

func (b *box) line(s string) {
	b.lines = append(b.lines, s)
}

func (b *box) sep() {
	b.lines = append(b.lines, "\x01")
}

func (b *box) flush(w io.Writer) {
	bar := func(l, r string) {
		fmt.Fprint(w, l)
		for i := 0; i < boxWidth; i++ {
			fmt.Fprint(w, "═")
		}
		fmt.Fprintln(w, r)
	}
	pad := func(s string) {
		s = report.Truncate(s, boxWidth-2)
		fmt.Fprintf(w, "║  %s%*s║\n", s, boxWidth-2-utf8.RuneCountInString(s), "")
	}

	fmt.Fprintln(w)
	bar("╔", "╗")
	for i, l := range b.lines {
		switch {
		case l == "\x01":
			bar("╠", "╣")
		case len(l) > 0 && l[0] == 0:
			if i > 0 {
				bar("╠", "╣")
			}
			pad(l[1:])
			bar("╠", "╣")
		default:
			pad(l)
		}
	}
	bar("╚", "╝")
}
