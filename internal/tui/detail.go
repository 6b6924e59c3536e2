package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"

	"todo-man/internal/hooks"
	"todo-man/internal/tasks"
)

// renderDetailMarkdown builds a markdown string that will be rendered for the viewport.
func renderDetailMarkdown(t tasks.Task, env *hooks.HookEnv) string {
	b := &strings.Builder{}
	title, _, _ := tasks.CleanOneLine(t.Text, 80)
	fmt.Fprintf(b, "# %s\n\n", title)
	status := "pending"
	if t.Completed { status = "completed" }
	fmt.Fprintf(b, "- ID: `%d`\n", t.ID)
	fmt.Fprintf(b, "- Status: **%s**\n", status)
	fmt.Fprintf(b, "- Created: %s\n", humanTime(t.CreatedAt))
	if title != t.Text {
		fmt.Fprintf(b, "\n## Text\n\n%s\n", t.Text)
	}
	// Hook-provided section
	if s, ok := env.RenderDetail(t); ok {
		fmt.Fprintf(b, "\n%s\n", s)
	}
	return b.String()
}

func (m *model) renderDetailViewport() {
	if m.detail == nil { return }
	content := renderDetailMarkdown(*m.detail, m.hooks)
	// Use glamour to render markdown to ANSI suitable for terminal
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if m.width > 0 { opts = append(opts, glamour.WithWordWrap(m.width-4)) }
	if r, err := glamour.NewTermRenderer(opts...); err == nil {
		if s, err2 := r.Render(content); err2 == nil { content = s }
	}
	m.vp = viewport.New(m.width, max(3, m.height-4))
	m.vp.SetContent(content)
}
