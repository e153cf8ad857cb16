// Package ui styles command line output with lipgloss.
//
// [Palette] renders titles, status lines and "label: value" fields. Colors are dropped automatically
// when output is not a terminal, so the same strings are safe to pipe or assert on in tests.
package ui
