// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders criteria, screening results and run summaries for
// the terminal, as tables or as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

// ColorMode selects when output is colored.
type ColorMode int

const (
	// ColorAuto colors unless NO_COLOR is set or TERM is dumb.
	ColorAuto ColorMode = iota
	// ColorAlways forces colors on.
	ColorAlways
	// ColorNever forces colors off.
	ColorNever
)

// ParseColorMode parses auto, always or never. Empty means auto.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q: must be auto, always, or never", s)
	}
}

// ResolveColors reports whether mode enables colors in the current environment.
func ResolveColors(mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false
		}
		if os.Getenv("TERM") == "dumb" {
			return false
		}
		return !color.NoColor
	}
}

// Printer writes human-readable output to one writer.
type Printer struct {
	out       io.Writer
	useColors bool
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer, mode ColorMode) *Printer {
	return &Printer{out: w, useColors: ResolveColors(mode)}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

func (p *Printer) paint(attrs []color.Attribute, s string) string {
	if !p.useColors {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

// Header prints a section title with an underline.
func (p *Printer) Header(title string) {
	fmt.Fprintf(p.out, "\n%s\n%s\n", p.paint([]color.Attribute{color.Bold}, title), strings.Repeat("-", len(title)))
}

// Info prints a plain line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Success prints a line marked as OK.
func (p *Printer) Success(format string, args ...any) {
	if p.useColors {
		fmt.Fprintln(p.out, p.paint([]color.Attribute{color.FgGreen}, "✓ "+fmt.Sprintf(format, args...)))
		return
	}
	fmt.Fprintf(p.out, "[OK] "+format+"\n", args...)
}

// Warning prints a line marked as a warning.
func (p *Printer) Warning(format string, args ...any) {
	if p.useColors {
		fmt.Fprintln(p.out, p.paint([]color.Attribute{color.FgYellow}, "⚠ "+fmt.Sprintf(format, args...)))
		return
	}
	fmt.Fprintf(p.out, "[WARN] "+format+"\n", args...)
}

// Verdict returns v colored by outcome: green pass, red fail, yellow review.
func (p *Printer) Verdict(v types.Verdict) string {
	switch v {
	case types.VerdictPass:
		return p.paint([]color.Attribute{color.FgGreen}, string(v))
	case types.VerdictFail:
		return p.paint([]color.Attribute{color.FgRed}, string(v))
	case types.VerdictNeedsReview:
		return p.paint([]color.Attribute{color.FgYellow}, string(v))
	}
	return string(v)
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}
