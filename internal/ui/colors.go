package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles is the palette the CLI prints with.
var Styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	key   lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		key:   NewStyle(t),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func (p *Palette) Title(s string) string   { return p.title.Render(s) }
func (p *Palette) Success(s string) string { return p.ok.Render("✓ " + s) }
func (p *Palette) Error(s string) string   { return p.err.Render("✗ " + s) }
func (p *Palette) Warn(s string) string    { return p.warn.Render(s) }
func (p *Palette) Help(s string) string    { return p.help.Render(s) }

// Field renders a "label: value" line with the label dimmed.
func (p *Palette) Field(label, value string) string {
	return p.help.Render(label+":") + " " + p.key.Render(value)
}

// Fprintln writes each line followed by a newline and stops at the first write error.
func Fprintln(w io.Writer, lines ...string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}
