package tui

import (
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"todo-man/internal/config"
	"todo-man/internal/hooks"
	"todo-man/internal/storage"
	"todo-man/internal/tasks"
	"todo-man/internal/zipper"
)

const (
	// removeDelay lets the row show as removing before it is deleted.
	removeDelay = 300 * time.Millisecond
	// shakeDuration is how long the empty-input cue stays up.
	shakeDuration = 500 * time.Millisecond
	maxRowText    = 200
)

// Backuper snapshots the database before destructive operations.
type Backuper interface {
	Backup(suffix string) (string, error)
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	checkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	doneStyle     = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B7280"})
	removingStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	emptyStyle    = lipgloss.NewStyle().Faint(true).PaddingLeft(2)
	statLabel     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#B0B7C3"})
	statValue     = lipgloss.NewStyle().Bold(true)
	inputStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
	shakeStyle    = inputStyle.Copy().BorderForeground(lipgloss.Color("9")).MarginLeft(1)
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type model struct {
	cfg    config.Config
	store  *tasks.Store
	backup Backuper
	hooks  *hooks.HookEnv

	list  list.Model
	input textinput.Model
	vp    viewport.Model
	spin  spinner.Model
	help  help.Model

	width     int
	height    int
	stats     tasks.Stats
	statusMsg string
	loading   bool
	adding    bool
	shaking   bool
	detail    *tasks.Task

	confirmingClear bool
	removing        map[int64]bool
}

type item struct {
	t        tasks.Task
	title    string
	removing bool
}

func (i item) Title() string {
	if i.removing {
		return removingStyle.Render("[-] " + i.title)
	}
	if i.t.Completed {
		return checkStyle.Render("[x] ") + doneStyle.Render(i.title)
	}
	return "[ ] " + i.title
}

func (i item) Description() string {
	return fmt.Sprintf("%s • #%d", humanTime(i.t.CreatedAt), i.t.ID)
}

func (i item) FilterValue() string { return i.t.Text }

type keymap struct {
	add        key.Binding
	submit     key.Binding
	cancel     key.Binding
	toggle     key.Binding
	del        key.Binding
	clearDone  key.Binding
	clearAll   key.Binding
	open       key.Binding
	back       key.Binding
	reload     key.Binding
	export     key.Binding
	dump       key.Binding
	help       key.Binding
	quit       key.Binding
}

func newKeymap() keymap {
	return keymap{
		add:       key.NewBinding(key.WithKeys("a", "i"), key.WithHelp("a", "add")),
		submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		toggle:    key.NewBinding(key.WithKeys(" ", "tab"), key.WithHelp("space", "toggle done")),
		del:       key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete")),
		clearDone: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear completed")),
		clearAll:  key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "clear all")),
		open:      key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter", "details")),
		back:      key.NewBinding(key.WithKeys("h", "esc", "q"), key.WithHelp("h", "back")),
		reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		export:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export zip")),
		dump:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "dump markdown")),
		help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keymap) ShortHelp() []key.Binding {
	return []key.Binding{k.add, k.toggle, k.del, k.clearDone, k.clearAll, k.help, k.quit}
}

func (k keymap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.add, k.submit, k.cancel},
		{k.toggle, k.del, k.open},
		{k.clearDone, k.clearAll, k.reload},
		{k.export, k.dump, k.help, k.quit},
	}
}

var keys = newKeymap()

// New builds the terminal view over an already loaded store. backup may be nil.
func New(cfg config.Config, store *tasks.Store, backup Backuper) model {
	lm := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	lm.Title = "To-do"
	lm.Styles.Title = titleStyle
	lm.SetShowStatusBar(false)
	lm.SetShowHelp(false)
	lm.SetFilteringEnabled(true)
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	ti := textinput.New()
	ti.Placeholder = "What needs to be done?"
	ti.CharLimit = 500
	ti.Prompt = "+ "
	m := model{
		cfg: cfg, store: store, backup: backup,
		list: lm, input: ti, spin: sp, help: help.New(),
		loading:  true,
		removing: map[int64]bool{},
	}
	m.stats = store.Stats()
	m.rebuild(store.Tasks())
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(loadHooksCmd(m.cfg), m.spin.Tick)
}

type hooksLoadedMsg struct{ env *hooks.HookEnv }
type removeMsg struct{ id int64 }
type shakeDoneMsg struct{}
type exportDoneMsg struct {
	path string
	what string
	err  error
}

func loadHooksCmd(cfg config.Config) tea.Cmd {
	return func() tea.Msg {
		hooks.EnableDebug(cfg.Debug)
		env, _ := hooks.LoadDir(cfg.HooksDir)
		return hooksLoadedMsg{env}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(m.width, max(3, m.height-8))
		m.help.Width = m.width
		m.input.Width = max(10, m.width-8)
		if m.detail != nil { m.renderDetailViewport() }
		return m, nil
	case hooksLoadedMsg:
		m.hooks = msg.env
		m.loading = false
		m.rebuild(m.store.Tasks())
		return m, nil
	case spinner.TickMsg:
		if !m.loading { return m, nil }
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case removeMsg:
		delete(m.removing, msg.id)
		ch, err := m.store.Delete(msg.id)
		m.apply(ch, err)
		return m, nil
	case shakeDoneMsg:
		m.shaking = false
		return m, nil
	case exportDoneMsg:
		if msg.err != nil {
			m.statusMsg = msg.what + " failed: " + msg.err.Error()
		} else {
			if ap, err := filepath.Abs(msg.path); err == nil { msg.path = ap }
			m.statusMsg = fmt.Sprintf("%s: %s", msg.what, msg.path)
		}
		return m, nil
	case tea.KeyMsg:
		if m.detail != nil {
			return m.updateDetail(msg)
		}
		if m.adding {
			return m.updateInput(msg)
		}
		if m.confirmingClear {
			m.confirmingClear = false
			if msg.String() == "y" || msg.String() == "Y" {
				m.clearAll()
			} else {
				m.statusMsg = "canceled"
			}
			return m, nil
		}
		// While the list filter is being typed, every key belongs to it
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, keys.quit):
			return m, tea.Quit
		case key.Matches(msg, keys.add):
			m.adding = true
			m.statusMsg = ""
			cmd := m.input.Focus()
			return m, cmd
		case key.Matches(msg, keys.toggle):
			if it, ok := m.list.SelectedItem().(item); ok && !m.removing[it.t.ID] {
				ch, err := m.store.Toggle(it.t.ID)
				m.apply(ch, err)
			}
			return m, nil
		case key.Matches(msg, keys.del):
			if it, ok := m.list.SelectedItem().(item); ok && !m.removing[it.t.ID] {
				id := it.t.ID
				m.removing[id] = true
				m.refreshRow(it.t)
				return m, tea.Tick(removeDelay, func(time.Time) tea.Msg { return removeMsg{id} })
			}
			return m, nil
		case key.Matches(msg, keys.clearDone):
			ch, err := m.store.ClearCompleted()
			m.apply(ch, err)
			if err == nil && ch.Kind == tasks.ChangeNone { m.statusMsg = "no completed tasks" }
			return m, nil
		case key.Matches(msg, keys.clearAll):
			if len(m.list.Items()) == 0 { return m, nil }
			m.confirmingClear = true
			m.statusMsg = "Clear all tasks? y/N"
			return m, nil
		case key.Matches(msg, keys.open):
			if it, ok := m.list.SelectedItem().(item); ok {
				t := it.t
				m.detail = &t
				m.renderDetailViewport()
			}
			return m, nil
		case key.Matches(msg, keys.reload):
			ch, err := m.store.Load()
			m.removing = map[int64]bool{}
			m.apply(ch, err)
			if err == nil { m.statusMsg = fmt.Sprintf("reloaded %d tasks", ch.Stats.Total) }
			return m, nil
		case key.Matches(msg, keys.export):
			path := filepath.Join(m.cfg.ExportDirOrCWD(), "todo-"+time.Now().Format("20060102-150405")+".zip")
			return m, exportCmd(m.store.Tasks(), path)
		case key.Matches(msg, keys.dump):
			path := filepath.Join(m.cfg.ExportDirOrCWD(), "todo-"+time.Now().Format("20060102-150405")+".md")
			return m, dumpCmd(m.store.Tasks(), path)
		case key.Matches(msg, keys.help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
	}

	// Delegate other events to list
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.submit):
		text, err := tasks.ValidateText(m.input.Value())
		if err != nil {
			m.shaking = true
			m.statusMsg = err.Error()
			return m, tea.Tick(shakeDuration, func(time.Time) tea.Msg { return shakeDoneMsg{} })
		}
		if m.hooks != nil { text = m.hooks.TransformText(text) }
		ch, err := m.store.Add(text)
		m.apply(ch, err)
		m.input.Reset()
		return m, nil
	case key.Matches(msg, keys.cancel), msg.Type == tea.KeyCtrlC:
		m.adding = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.back):
		m.detail = nil
		return m, nil
	case key.Matches(msg, keys.toggle):
		ch, err := m.store.Toggle(m.detail.ID)
		m.apply(ch, err)
		if t, ok := m.store.Find(m.detail.ID); ok {
			m.detail = &t
			m.renderDetailViewport()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// apply brings the rows and the stats bar in line with a store change.
func (m *model) apply(ch tasks.Change, err error) {
	switch ch.Kind {
	case tasks.ChangeAppend:
		n := len(m.list.Items())
		m.list.InsertItem(n, m.newItem(ch.Task))
		m.list.Select(len(m.list.VisibleItems()) - 1)
	case tasks.ChangeStats:
		if ch.Op == tasks.OpDelete {
			m.removeRow(ch.ID)
		} else {
			m.refreshRow(ch.Task)
		}
	case tasks.ChangeRedraw:
		m.rebuild(ch.Tasks)
	}
	if ch.Kind != tasks.ChangeNone {
		m.stats = ch.Stats
		m.statusMsg = ""
	}
	if err != nil {
		m.statusMsg = "error: " + err.Error()
		log.Printf("[tui] %s failed: %v", ch.Op, err)
	}
}

func (m *model) clearAll() {
	if m.backup != nil && m.cfg.BackupOnClear {
		p, err := m.backup.Backup(storage.BackupSuffix(time.Now()))
		if err != nil {
			m.statusMsg = "backup failed, nothing cleared: " + err.Error()
			return
		}
		if m.cfg.Debug { log.Printf("[tui] backup before clear-all: %s", p) }
	}
	ch, err := m.store.ClearAll()
	m.apply(ch, err)
}

func (m *model) newItem(t tasks.Task) item {
	title, _, _ := tasks.CleanOneLine(t.Text, maxRowText)
	if m.hooks != nil {
		if s, ok := m.hooks.RenderRow(t); ok {
			title, _, _ = tasks.CleanOneLine(s, maxRowText)
		}
	}
	return item{t: t, title: title, removing: m.removing[t.ID]}
}

func (m *model) rebuild(ts []tasks.Task) {
	items := make([]list.Item, 0, len(ts))
	for _, t := range ts {
		items = append(items, m.newItem(t))
	}
	m.list.SetItems(items)
}

func (m *model) rowIndex(id int64) int {
	for i, li := range m.list.Items() {
		if it, ok := li.(item); ok && it.t.ID == id { return i }
	}
	return -1
}

func (m *model) refreshRow(t tasks.Task) {
	if i := m.rowIndex(t.ID); i >= 0 {
		m.list.SetItem(i, m.newItem(t))
	}
}

func (m *model) removeRow(id int64) {
	for i := m.rowIndex(id); i >= 0; i = m.rowIndex(id) {
		m.list.RemoveItem(i)
	}
}

func (m model) View() string {
	if m.detail != nil {
		header := "(h) back  (space) toggle done  (↑/↓) scroll"
		if m.statusMsg != "" { header += "\n" + m.statusMsg }
		return header + "\n\n" + m.vp.View()
	}
	if m.loading {
		return fmt.Sprintf("%s Loading...", m.spin.View())
	}
	b := &strings.Builder{}
	if len(m.list.Items()) == 0 {
		b.WriteString(titleStyle.Render("To-do") + "\n\n")
		b.WriteString(emptyStyle.Render("No tasks yet. Press a to add one.") + "\n")
	} else {
		b.WriteString(m.list.View() + "\n")
	}
	b.WriteString(m.inputView() + "\n")
	b.WriteString(m.statsView())
	b.WriteString(footer(m.statusMsg))
	b.WriteString("\n" + m.help.View(keys))
	return b.String()
}

func (m model) inputView() string {
	if !m.adding {
		return statLabel.Render("press a to add a task")
	}
	if m.shaking {
		return shakeStyle.Render(m.input.View())
	}
	return inputStyle.Render(m.input.View())
}

func (m model) statsView() string {
	stat := func(label string, n int) string {
		return statLabel.Render(label+": ") + statValue.Render(strconv.Itoa(n))
	}
	return strings.Join([]string{
		stat("Total", m.stats.Total),
		stat("Pending", m.stats.Pending),
		stat("Completed", m.stats.Completed),
	}, "   ")
}

func footer(msg string) string {
	if msg == "" { return "" }
	if strings.HasPrefix(msg, "error:") { msg = errStyle.Render(msg) }
	return "\n" + msg
}

func exportCmd(ts []tasks.Task, path string) tea.Cmd {
	return func() tea.Msg {
		err := zipper.ExportTasks(ts, path)
		return exportDoneMsg{path: path, what: fmt.Sprintf("exported %d tasks", len(ts)), err: err}
	}
}

func dumpCmd(ts []tasks.Task, path string) tea.Cmd {
	return func() tea.Msg {
		err := tasks.DumpMarkdown(path, ts)
		return exportDoneMsg{path: path, what: "markdown written", err: err}
	}
}

func humanTime(t time.Time) string {
	if t.IsZero() { return "" }
	return t.Local().Format("2006-01-02 15:04")
}
