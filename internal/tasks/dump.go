package tasks

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"todo-man/internal/config"
)

// DumpMarkdown writes the task list with its stats to a markdown file.
// Each task is constrained to a single line.
func DumpMarkdown(filename string, list []Task) error {
	if err := config.EnsureDir(filepath.Dir(filename)); err != nil { return err }
	f, err := os.Create(filename)
	if err != nil { return err }
	defer f.Close()
	return WriteMarkdown(f, list)
}

// WriteMarkdown renders list as a GitHub-style checklist in insertion order.
func WriteMarkdown(w io.Writer, list []Task) error {
	const maxText = 120
	st := ComputeStats(list)
	b := &strings.Builder{}
	fmt.Fprintf(b, "# To-do list\n\n")
	fmt.Fprintf(b, "- Total: %d\n- Pending: %d\n- Completed: %d\n\n", st.Total, st.Pending, st.Completed)
	if len(list) == 0 {
		fmt.Fprintf(b, "_No tasks._\n")
	}
	for _, t := range list {
		text, _, truncated := CleanOneLine(t.Text, maxText)
		box := " "
		if t.Completed { box = "x" }
		fmt.Fprintf(b, "- [%s] %s\n", box, text)
		fmt.Fprintf(b, "  - ID: %d\n", t.ID)
		if !t.CreatedAt.IsZero() {
			// RFC3339 in local time for readability and timezone awareness
			fmt.Fprintf(b, "  - Created: %s\n", t.CreatedAt.Local().Format(time.RFC3339))
		}
		// Full text goes in a details block when the line had to be cut
		if truncated {
			fmt.Fprintf(b, "\n  <details><summary>%s</summary>\n\n  %s\n\n  </details>\n\n", escapeHTML(text), escapeHTML(oneLine(t.Text)))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Minimal HTML escaping for the <details> block
func escapeHTML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return r.Replace(s)
}
