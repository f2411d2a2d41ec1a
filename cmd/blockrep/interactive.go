package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/blockrep/image"
)

type browserModel struct {
	img      *image.Image
	root     *node
	expanded map[*node]bool
	view     viewport.Model
	filename string
	lines    []line
	selected int
	ready    bool
}

func newBrowserModel(filename string, img *image.Image, root *node) *browserModel {
	m := &browserModel{
		img:      img,
		root:     root,
		filename: filename,
		expanded: map[*node]bool{root: true},
	}
	m.refresh()
	return m
}

// refresh recomputes the visible lines from the expanded set.
func (m *browserModel) refresh() {
	m.lines = m.visible(m.root, 0, m.lines[:0])
	if m.selected >= len(m.lines) {
		m.selected = len(m.lines) - 1
	}
}

func (m *browserModel) visible(n *node, depth int, out []line) []line {
	out = append(out, line{node: n, depth: depth})
	if !m.expanded[n] {
		return out
	}
	for _, c := range n.children {
		out = m.visible(c, depth+1, out)
	}
	return out
}

func (m *browserModel) Init() tea.Cmd {
	return nil
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - 4
		if !m.ready {
			m.view = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = height
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.lines)-1 {
				m.selected++
			}
		case "pgup":
			m.selected = max(0, m.selected-m.view.Height)
		case "pgdown":
			m.selected = min(len(m.lines)-1, m.selected+m.view.Height)
		case "home", "g":
			m.selected = 0
		case "end", "G":
			m.selected = len(m.lines) - 1
		case "enter", " ", "right", "l":
			n := m.lines[m.selected].node
			if len(n.children) > 0 {
				m.expanded[n] = !m.expanded[n] || msg.String() == "right" || msg.String() == "l"
				m.refresh()
			}
		case "left", "h":
			m.collapse()
		case "e":
			m.expandAll(m.lines[m.selected].node)
			m.refresh()
		}
	}

	if m.ready {
		m.scroll()
		m.view.SetContent(m.render())
	}
	return m, nil
}

// collapse folds the selected node, or moves to its parent when it is
// already folded.
func (m *browserModel) collapse() {
	cur := m.lines[m.selected]
	if m.expanded[cur.node] && len(cur.node.children) > 0 {
		m.expanded[cur.node] = false
		m.refresh()
		return
	}
	for i := m.selected - 1; i >= 0; i-- {
		if m.lines[i].depth < cur.depth {
			m.selected = i
			return
		}
	}
}

func (m *browserModel) expandAll(n *node) {
	if len(n.children) == 0 {
		return
	}
	m.expanded[n] = true
	for _, c := range n.children {
		m.expandAll(c)
	}
}

// scroll keeps the selected line inside the viewport.
func (m *browserModel) scroll() {
	switch {
	case m.selected < m.view.YOffset:
		m.view.SetYOffset(m.selected)
	case m.selected >= m.view.YOffset+m.view.Height:
		m.view.SetYOffset(m.selected - m.view.Height + 1)
	}
}

func (m *browserModel) render() string {
	styled := &printer{styled: true}
	plain := &printer{}
	var b strings.Builder
	for i, l := range m.lines {
		marker := "  "
		if len(l.node.children) > 0 {
			marker = "▸ "
			if m.expanded[l.node] {
				marker = "▾ "
			}
		}
		prefix := strings.Repeat("  ", l.depth) + marker
		if i == m.selected {
			b.WriteString(selectedStyle.Render(prefix + plain.line(line{node: l.node})))
		} else {
			b.WriteString(prefix + styled.line(line{node: l.node}))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *browserModel) View() string {
	if !m.ready {
		return "Loading image..."
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("blockrep"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString(" ")
	b.WriteString(helpStyle.Render(fmt.Sprintf("%d blocks, %d bytes, %s",
		m.img.Blocks, m.img.Used, m.img.Compression)))
	b.WriteString("\n\n")
	b.WriteString(m.view.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ move • enter toggle • ←/→ fold • e expand all • q quit"))
	return b.String()
}

func runInteractive(filename string, img *image.Image, root *node) error {
	p := tea.NewProgram(newBrowserModel(filename, img, root), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
