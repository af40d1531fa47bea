package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plexio/internal/formatter"
	"github.com/desertthunder/plexio/internal/models"
	"github.com/desertthunder/plexio/internal/services"
	"github.com/desertthunder/plexio/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	ConfirmDeleteView
	ProgressView
	ResultView
	ErrorView
)

// MultiExportName is the document written when more than one playlist is exported.
const MultiExportName = "Plex Playlists.json"

const (
	opExport = "Exporting"
	opDelete = "Deleting"
	opSort   = "Sorting"
	opImport = "Importing"
)

var errNoImportFile = errors.New("no import file: start the TUI with --file <path>")

// Options configures a [Model].
type Options struct {
	Catalog     services.Catalog
	Engine      *tasks.PlaylistEngine
	ImportFile  string                    // document imported with `i`
	ExportDir   string                    // default "."
	AfterImport func(*tasks.ImportResult) // called on the update loop after each import, e.g. to dump metrics
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	catalog    services.Catalog
	engine     *tasks.PlaylistEngine
	opts       Options
	width      int
	height     int
	list       list.Model
	playlists  []models.Playlist
	selected   map[string]bool // by rating key
	pending    []models.Playlist
	events     chan Msg
	op         string
	progress   tasks.ProgressUpdate
	done       int
	total      int
	cancel     *tasks.CancelToken
	cancelling bool
	summary    string
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Plex Playlists"
	return &Model{
		ctx:      ctx,
		view:     PlaylistListView,
		catalog:  opts.Catalog,
		engine:   opts.Engine,
		opts:     opts,
		list:     l,
		selected: map[string]bool{},
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init initializes the TUI by fetching playlists from the server.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// State returns the current view.
func (m *Model) State() ViewState { return m.view }

// Err returns the last operation error, if any.
func (m *Model) Err() error { return m.err }

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsPayload)
		if data.err != nil {
			m.fail(fmt.Errorf("failed to load playlists: %w", data.err))
			return m, nil
		}
		m.setPlaylists(data.playlists)
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForEvent()

	case MsgImportProgress:
		data := msg.data.(importProgressPayload)
		m.done, m.total = data.done, data.total
		return m, m.waitForEvent()

	case MsgOperationDone:
		data := msg.data.(operationPayload)
		m.events = nil
		m.cancel = nil
		m.cancelling = false
		if data.result != nil && m.opts.AfterImport != nil {
			m.opts.AfterImport(data.result)
		}
		if data.err != nil {
			m.fail(fmt.Errorf("%s failed: %w", strings.ToLower(data.op), data.err))
			return m, nil
		}
		m.summary = data.summary
		m.view = ResultView
		if data.op != opExport {
			clear(m.selected)
			return m, m.fetchPlaylists()
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.view {
	case PlaylistListView:
		return m.handleListKeys(msg)
	case ConfirmDeleteView:
		return m.handleConfirmKeys(msg)
	case ProgressView:
		return m.handleProgressKeys(msg)
	case ResultView, ErrorView:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			m.view = PlaylistListView
			m.summary = ""
			m.err = nil
		}
	}
	return m, nil
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		return m.updateList(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		if pl, ok := m.highlighted(); ok {
			m.selected[pl.RatingKey] = !m.selected[pl.RatingKey]
			return m, m.refreshItems()
		}
		return m, nil
	case key.Matches(msg, m.keys.export):
		targets := m.targets()
		if len(targets) == 0 {
			return m, nil
		}
		return m, m.startExport(targets)
	case key.Matches(msg, m.keys.delete):
		m.pending = m.targets()
		if len(m.pending) > 0 {
			m.view = ConfirmDeleteView
		}
		return m, nil
	case key.Matches(msg, m.keys.sort):
		if pl, ok := m.highlighted(); ok {
			return m, m.startSort(pl)
		}
		return m, nil
	case key.Matches(msg, m.keys.imports):
		if m.opts.ImportFile == "" {
			m.fail(errNoImportFile)
			return m, nil
		}
		return m, m.startImport(m.opts.ImportFile)
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchPlaylists()
	}

	return m.updateList(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		return m, m.startDelete(m.pending)
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.pending = nil
		m.view = PlaylistListView
	}
	return m, nil
}

func (m *Model) handleProgressKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "c":
		if m.cancel != nil {
			m.cancel.Cancel()
			m.cancelling = true
		}
	case "ctrl+c":
		if m.cancel != nil {
			m.cancel.Cancel()
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) fail(err error) {
	m.err = err
	m.view = ErrorView
}

func (m *Model) setPlaylists(playlists []models.Playlist) {
	m.playlists = playlists
	keep := make(map[string]bool, len(m.selected))
	for _, pl := range playlists {
		if m.selected[pl.RatingKey] {
			keep[pl.RatingKey] = true
		}
	}
	m.selected = keep
	m.refreshItems()
}

func (m *Model) refreshItems() tea.Cmd {
	items := make([]list.Item, len(m.playlists))
	for i, pl := range m.playlists {
		items[i] = playlistItem{playlist: pl, selected: m.selected[pl.RatingKey]}
	}
	return m.list.SetItems(items)
}

func (m *Model) highlighted() (models.Playlist, bool) {
	item, ok := m.list.SelectedItem().(playlistItem)
	if !ok {
		return models.Playlist{}, false
	}
	return item.playlist, true
}

// targets returns the marked playlists in list order, or the highlighted one when none are marked.
func (m *Model) targets() []models.Playlist {
	var out []models.Playlist
	for _, pl := range m.playlists {
		if m.selected[pl.RatingKey] {
			out = append(out, pl)
		}
	}
	if len(out) == 0 {
		if pl, ok := m.highlighted(); ok {
			out = append(out, pl)
		}
	}
	return out
}

// ExportPath returns the document written for playlists.
func ExportPath(dir string, playlists []models.Playlist) string {
	if len(playlists) == 1 {
		return filepath.Join(dir, tasks.SafeFileName(playlists[0].Title)+".json")
	}
	return filepath.Join(dir, MultiExportName)
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.catalog.Playlists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

// start runs fn in the background and switches to the progress view. Engine updates sent on the
// channel passed to fn are forwarded as [MsgProgressUpdate]; the returned Msg is delivered last.
func (m *Model) start(op string, fn func(updates chan<- tasks.ProgressUpdate, events chan<- Msg) Msg) tea.Cmd {
	events := make(chan Msg, 64)
	m.events = events
	m.view = ProgressView
	m.op = op
	m.progress = tasks.ProgressUpdate{}
	m.done, m.total = 0, 0
	m.summary = ""
	m.err = nil

	go func() {
		defer close(events)
		updates := make(chan tasks.ProgressUpdate, 32)
		forwarded := make(chan struct{})
		go func() {
			defer close(forwarded)
			for u := range updates {
				events <- progressUpdateMsg(u)
			}
		}()

		final := fn(updates, events)
		close(updates)
		<-forwarded
		events <- final
	}()

	return m.waitForEvent()
}

func (m *Model) waitForEvent() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *Model) startExport(playlists []models.Playlist) tea.Cmd {
	path := ExportPath(m.opts.ExportDir, playlists)
	return m.start(opExport, func(updates chan<- tasks.ProgressUpdate, _ chan<- Msg) Msg {
		err := m.engine.Export(m.ctx, m.catalog, playlists, path, updates)
		summary := fmt.Sprintf("Exported %d playlist(s) to %s", len(playlists), path)
		return operationDoneMsg(opExport, summary, nil, err)
	})
}

func (m *Model) startDelete(playlists []models.Playlist) tea.Cmd {
	m.pending = nil
	return m.start(opDelete, func(updates chan<- tasks.ProgressUpdate, _ chan<- Msg) Msg {
		res, err := m.engine.DeletePlaylists(m.ctx, m.catalog, playlists, updates)
		if err != nil {
			return operationDoneMsg(opDelete, "", nil, err)
		}
		return operationDoneMsg(opDelete, res.Message(), nil, nil)
	})
}

func (m *Model) startSort(pl models.Playlist) tea.Cmd {
	return m.start(opSort, func(updates chan<- tasks.ProgressUpdate, _ chan<- Msg) Msg {
		res, err := m.engine.SortByYear(m.ctx, m.catalog, pl, updates)
		if err != nil {
			return operationDoneMsg(opSort, "", nil, err)
		}
		return operationDoneMsg(opSort, res.Summary(), nil, nil)
	})
}

func (m *Model) startImport(path string) tea.Cmd {
	token := tasks.NewCancelToken()
	m.cancel = token
	return m.start(opImport, func(updates chan<- tasks.ProgressUpdate, events chan<- Msg) Msg {
		names, err := formatter.PreviewNames(m.engine.Fs(), path)
		if err != nil {
			return operationDoneMsg(opImport, "", nil, err)
		}

		progress := func(done, total int) {
			select {
			case events <- importProgressMsg(done, total):
			case <-m.ctx.Done():
			}
		}
		res, err := m.engine.Import(m.ctx, m.catalog, path, tasks.IdentityRenames(names...), tasks.ImportOpts{
			Progress: progress,
			Cancel:   token,
			Updates:  updates,
		})
		if err != nil {
			return operationDoneMsg(opImport, "", res, err)
		}

		summary := res.Summary()
		warning, err := formatter.CheckMissing(m.engine.Fs(), m.engine.MissingDir())
		if err != nil {
			return operationDoneMsg(opImport, summary, res, err)
		}
		if warning != "" {
			summary += "\n\n" + warning
		}
		return operationDoneMsg(opImport, summary, res, nil)
	})
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case PlaylistListView:
		return m.renderList()
	case ConfirmDeleteView:
		return m.renderConfirm()
	case ProgressView:
		return m.renderProgress()
	case ResultView:
		return m.renderResult()
	case ErrorView:
		return m.renderError()
	default:
		return ""
	}
}

func (m *Model) renderList() string {
	helpKeys := []key.Binding{m.keys.toggle, m.keys.export, m.keys.delete, m.keys.sort, m.keys.imports, m.keys.refresh, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.list.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	title := styles.warn.Render(fmt.Sprintf("Delete %d playlist(s)?", len(m.pending)))
	var names strings.Builder
	for _, pl := range m.pending {
		fmt.Fprintf(&names, "\n  • %s", pl.Title)
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n\n%s", title, names.String(), helpView)
}

// ProgressLine renders the progress of the running operation.
func (m *Model) ProgressLine() string {
	if m.op == opImport {
		line := fmt.Sprintf("Importing... %d / %d", m.done, m.total)
		if m.cancelling {
			line += " (cancelling)"
		}
		return line
	}
	return m.op + "..."
}

func (m *Model) renderProgress() string {
	title := styles.title.Render(m.ProgressLine())
	out := fmt.Sprintf("%s\n%s", title, styles.muted.Render(m.progress.Message))
	if m.op == opImport {
		out += "\n\n" + m.help.ShortHelpView([]key.Binding{m.keys.cancel})
	}
	return out
}

func (m *Model) renderResult() string {
	title := styles.ok.Render("✓ Done")
	body := m.summary
	if i := strings.Index(body, formatter.MissingWarning); i >= 0 {
		body = body[:i] + styles.warn.Render(formatter.MissingWarning) + body[i+len(formatter.MissingWarning):]
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, helpView)
}

func (m *Model) renderError() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Error: %v", m.err)), helpView)
}
