package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	addrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// printer writes trees and tables, styled only when writing to a
// terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.styled || text == "" {
		return text
	}
	return s.Render(text)
}

func (p *printer) line(l line) string {
	n := l.node
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", l.depth))
	if n.label != "" {
		b.WriteString(p.style(labelStyle, n.label))
		b.WriteString(": ")
	}
	if n.typ != "" {
		b.WriteString(p.style(typeStyle, n.typ))
		b.WriteString(" ")
	}
	b.WriteString(n.text)
	if n.addr != 0 {
		b.WriteString(" ")
		b.WriteString(p.style(addrStyle, fmt.Sprintf("@0x%x", n.addr)))
	}
	if n.err != nil {
		b.WriteString(" ")
		b.WriteString(p.style(errorStyle, "error: "+n.err.Error()))
	}
	return strings.TrimRight(b.String(), " ")
}

func (p *printer) tree(root *node) {
	for _, l := range flatten(root, 0, nil) {
		fmt.Fprintln(p.w, p.line(l))
	}
}

func (p *printer) title(text string) {
	fmt.Fprintln(p.w, p.style(titleStyle, text))
}

// table prints aligned key/value rows.
func (p *printer) table(rows [][2]string) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}
	for _, r := range rows {
		key := r[0] + ":" + strings.Repeat(" ", width-len(r[0]))
		fmt.Fprintf(p.w, "%s %s\n", p.style(labelStyle, key), r[1])
	}
}
