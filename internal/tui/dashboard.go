package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/voxsync/internal/api"
	"github.com/muurk/voxsync/internal/channel"
	"github.com/muurk/voxsync/internal/profiles"
	"github.com/muurk/voxsync/internal/session"
	"github.com/muurk/voxsync/internal/state"
	"github.com/muurk/voxsync/internal/ui"
)

// intentTimeout bounds one user intent, which may span two requests
const intentTimeout = 15 * time.Second

// Messages delivered by the session bridge
type snapshotMsg state.Snapshot
type connStateMsg channel.State
type noticeMsg struct{ err error }

// intentDoneMsg reports the end of an intent submitted from the dashboard
type intentDoneMsg struct {
	action string
	err    error
}

type dashboardMode int

const (
	modeNormal dashboardMode = iota
	modeSaveName
	modePickProfile
	modeConfirmDelete
)

type pickAction int

const (
	pickLoad pickAction = iota
	pickDelete
)

type rowKind int

const (
	rowInput rowKind = iota
	rowOutput
	rowBuffer
	rowRate
	rowEnabled
	rowParam
)

// dashboardRow is one editable line. param is set only for rowParam.
type dashboardRow struct {
	kind  rowKind
	param api.ParamRange
}

func dashboardRows() []dashboardRow {
	rows := []dashboardRow{
		{kind: rowInput},
		{kind: rowOutput},
		{kind: rowBuffer},
		{kind: rowRate},
		{kind: rowEnabled},
	}
	for _, p := range api.Params {
		rows = append(rows, dashboardRow{kind: rowParam, param: p})
	}
	return rows
}

// DashboardModel renders the session state and turns key presses into
// intents. It never changes state itself: edits go to the synchronizer and
// profile actions to the registry, and the canonical snapshot is re-read
// once no intent is in flight.
type DashboardModel struct {
	Session *session.Session

	Snapshot   state.Snapshot
	Connection channel.State
	Devices    []api.AudioDevice
	Profiles   []string

	// UI state
	Width  int
	Height int

	// Navigation
	Cursor       int
	Mode         dashboardMode
	PickAction   pickAction
	PickCursor   int
	DeleteTarget string
	ShowingHelp  bool

	NameInput    textinput.Model
	Spinner      spinner.Model
	LatencyMeter *ui.Meter
	CPUMeter     *ui.Meter

	Notice        string
	NoticeIsError bool

	rows     []dashboardRow
	inflight int

	// Help
	Help       help.Model
	Keys       dashboardKeyMap
	PromptKeys promptKeyMap
}

// NewDashboardModel creates a dashboard showing sess
func NewDashboardModel(sess *session.Session) DashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	nameInput := textinput.New()
	nameInput.Placeholder = "Profile name"
	nameInput.CharLimit = 64
	nameInput.Width = 40

	return DashboardModel{
		Session:      sess,
		Snapshot:     sess.State().Snapshot(),
		Connection:   sess.ConnectionState(),
		Devices:      sess.Devices(),
		Profiles:     sess.Profiles().List(),
		NameInput:    nameInput,
		Spinner:      s,
		LatencyMeter: ui.NewMeter("Latency", "ms", 100, MeterWidth),
		CPUMeter:     ui.NewMeter("CPU", "%", 100, MeterWidth),
		rows:         dashboardRows(),
		Help:         help.New(),
		Keys:         newDashboardKeyMap(),
		PromptKeys:   newPromptKeyMap(),
	}
}

// Init starts the spinner
func (m DashboardModel) Init() tea.Cmd {
	return m.Spinner.Tick
}

// Busy reports whether an intent is still running
func (m DashboardModel) Busy() bool {
	return m.inflight > 0
}

// Update handles messages and updates the model
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		// Optimistic edits stay on screen until their intents finish
		if m.inflight == 0 {
			m.Snapshot = state.Snapshot(msg)
		}
		return m, nil

	case connStateMsg:
		m.Connection = channel.State(msg)
		return m, nil

	case noticeMsg:
		m.setError(msg.err)
		return m, nil

	case intentDoneMsg:
		if m.inflight > 0 {
			m.inflight--
		}
		if m.inflight == 0 {
			m.Snapshot = m.Session.State().Snapshot()
		}
		m.Devices = m.Session.Devices()
		m.Profiles = m.Session.Profiles().List()
		if msg.err != nil {
			m.setError(msg.err)
		} else if msg.action != "" {
			m.setNotice(msg.action)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.Mode == modeSaveName {
		var cmd tea.Cmd
		m.NameInput, cmd = m.NameInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m DashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.ShowingHelp {
		if key.Matches(msg, m.Keys.Help, m.PromptKeys.Cancel, m.Keys.Quit) {
			m.ShowingHelp = false
		}
		return m, nil
	}

	switch m.Mode {
	case modeSaveName:
		return m.updateSaveName(msg)
	case modePickProfile:
		return m.updatePicker(msg)
	case modeConfirmDelete:
		return m.updateConfirmDelete(msg)
	}
	return m.updateNormalMode(msg)
}

// updateNormalMode handles input when no prompt is open
func (m DashboardModel) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Help):
		m.ShowingHelp = true

	case key.Matches(msg, m.Keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
		}

	case key.Matches(msg, m.Keys.Down):
		if m.Cursor < len(m.rows)-1 {
			m.Cursor++
		}

	case key.Matches(msg, m.Keys.Decrease):
		return m.adjust(-1)

	case key.Matches(msg, m.Keys.Increase):
		return m.adjust(1)

	case key.Matches(msg, m.Keys.Toggle):
		return m.setEnabled(!m.Snapshot.Config.Enabled)

	case key.Matches(msg, m.Keys.Save):
		m.Mode = modeSaveName
		m.NameInput.SetValue(m.Snapshot.Profile.Name)
		m.NameInput.CursorEnd()
		return m, m.NameInput.Focus()

	case key.Matches(msg, m.Keys.Load):
		m.openPicker(pickLoad)

	case key.Matches(msg, m.Keys.Delete):
		m.openPicker(pickDelete)

	case key.Matches(msg, m.Keys.Refresh):
		return m.refresh()
	}
	return m, nil
}

// adjust steps the value of the row under the cursor by dir (-1 or +1)
func (m DashboardModel) adjust(dir int) (tea.Model, tea.Cmd) {
	row := m.rows[m.Cursor]
	cfg := m.Snapshot.Config

	switch row.kind {
	case rowInput, rowOutput:
		edit, ok := nextDeviceEdit(m.Devices, cfg, row.kind == rowInput, dir)
		if !ok {
			m.setNotice("No matching devices. Press r to refresh.")
			return m, nil
		}
		return m.submitConfigEdit(edit)

	case rowBuffer:
		next := cycleInt(api.BufferSizes, cfg.BufferSize, dir)
		return m.submitConfigEdit(api.ConfigEdit{BufferSize: &next})

	case rowRate:
		next := cycleInt(api.SampleRates, cfg.SampleRate, dir)
		return m.submitConfigEdit(api.ConfigEdit{SampleRate: &next})

	case rowEnabled:
		return m.setEnabled(dir > 0)

	case rowParam:
		cur := row.param.Get(m.Snapshot.Profile)
		next := roundStep(row.param.Clamp(cur + float64(dir)*row.param.Step))
		if next == cur {
			return m, nil
		}
		return m.submitProfileEdit(row.param.Edit(next))
	}
	return m, nil
}

func (m DashboardModel) setEnabled(enabled bool) (tea.Model, tea.Cmd) {
	if enabled == m.Snapshot.Config.Enabled {
		return m, nil
	}
	return m.submitConfigEdit(api.ConfigEdit{Enabled: &enabled})
}

func (m DashboardModel) submitConfigEdit(edit api.ConfigEdit) (tea.Model, tea.Cmd) {
	m.Snapshot.Config = edit.Apply(m.Snapshot.Config)
	syncer := m.Session.State()
	return m.submit(func(ctx context.Context) (string, error) {
		_, err := syncer.ApplyLocalConfigEdit(ctx, edit)
		return "", err
	})
}

func (m DashboardModel) submitProfileEdit(edit api.ProfileEdit) (tea.Model, tea.Cmd) {
	m.Snapshot.Profile = edit.Apply(m.Snapshot.Profile)
	syncer := m.Session.State()
	return m.submit(func(ctx context.Context) (string, error) {
		_, err := syncer.ApplyLocalProfileEdit(ctx, edit)
		return "", err
	})
}

// submit runs fn as a command and reports its outcome as an intentDoneMsg
func (m DashboardModel) submit(fn func(ctx context.Context) (string, error)) (DashboardModel, tea.Cmd) {
	m.inflight++
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
		defer cancel()
		action, err := fn(ctx)
		return intentDoneMsg{action: action, err: err}
	}
}

func (m DashboardModel) refresh() (tea.Model, tea.Cmd) {
	sess := m.Session
	return m.submit(func(ctx context.Context) (string, error) {
		if err := sess.RefreshDevices(ctx); err != nil {
			return "", err
		}
		if err := sess.Profiles().Refresh(ctx); err != nil {
			return "", err
		}
		sess.Channel().RequestStatus()
		return "Refreshed devices and profiles", nil
	})
}

func (m *DashboardModel) openPicker(action pickAction) {
	if len(m.Profiles) == 0 {
		m.setNotice("No stored profiles. Press r to refresh.")
		return
	}
	m.Mode = modePickProfile
	m.PickAction = action
	m.PickCursor = 0
	for i, name := range m.Profiles {
		if name == m.Snapshot.Profile.Name {
			m.PickCursor = i
		}
	}
}

func (m DashboardModel) updateSaveName(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.PromptKeys.Cancel):
		m.Mode = modeNormal
		m.NameInput.Blur()
		return m, nil

	case key.Matches(msg, m.PromptKeys.Confirm):
		m.Mode = modeNormal
		m.NameInput.Blur()
		name := m.NameInput.Value()
		sess := m.Session
		return m.submit(func(ctx context.Context) (string, error) {
			p := sess.State().Snapshot().Profile
			if err := sess.Profiles().Save(ctx, name, p); err != nil {
				return "", err
			}
			saved := strings.TrimSpace(name)
			if saved != p.Name {
				if _, err := sess.State().ApplyLocalProfileEdit(ctx, api.ProfileEdit{Name: &saved}); err != nil {
					return "", err
				}
			}
			return "Saved profile " + saved, nil
		})
	}

	var cmd tea.Cmd
	m.NameInput, cmd = m.NameInput.Update(msg)
	return m, cmd
}

func (m DashboardModel) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.PromptKeys.Cancel):
		m.Mode = modeNormal

	case key.Matches(msg, m.PromptKeys.Up):
		if m.PickCursor > 0 {
			m.PickCursor--
		}

	case key.Matches(msg, m.PromptKeys.Down):
		if m.PickCursor < len(m.Profiles)-1 {
			m.PickCursor++
		}

	case key.Matches(msg, m.PromptKeys.Confirm):
		if m.PickCursor >= len(m.Profiles) {
			m.Mode = modeNormal
			return m, nil
		}
		name := m.Profiles[m.PickCursor]
		if m.PickAction == pickDelete {
			m.Mode = modeConfirmDelete
			m.DeleteTarget = name
			return m, nil
		}
		m.Mode = modeNormal
		reg := m.Session.Profiles()
		return m.submit(func(ctx context.Context) (string, error) {
			if _, err := reg.Load(ctx, name); err != nil {
				return "", err
			}
			return "Loaded profile " + name, nil
		})
	}
	return m, nil
}

func (m DashboardModel) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		name := m.DeleteTarget
		m.Mode = modeNormal
		m.DeleteTarget = ""
		reg := m.Session.Profiles()
		return m.submit(func(ctx context.Context) (string, error) {
			if err := reg.Delete(ctx, name); err != nil {
				return "", err
			}
			return "Deleted profile " + name, nil
		})

	case "n", "N", "esc", "q":
		m.Mode = modeNormal
		m.DeleteTarget = ""
	}
	return m, nil
}

func (m *DashboardModel) setNotice(text string) {
	m.Notice = text
	m.NoticeIsError = false
}

func (m *DashboardModel) setError(err error) {
	if err == nil {
		return
	}
	m.Notice = api.ShortMessage(err)
	m.NoticeIsError = true
}

// nextDeviceEdit picks the next device of the wanted direction. Position zero
// of the cycle is "no device", which clears the selection.
func nextDeviceEdit(devices []api.AudioDevice, cfg api.Config, input bool, dir int) (api.ConfigEdit, bool) {
	var candidates []api.AudioDevice
	for _, d := range devices {
		if (input && d.IsInput()) || (!input && d.IsOutput()) {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return api.ConfigEdit{}, false
	}

	current := cfg.OutputDevice
	if input {
		current = cfg.InputDevice
	}
	pos := 0
	if current != nil {
		for i, d := range candidates {
			if d.Index == *current {
				pos = i + 1
			}
		}
	}

	n := len(candidates) + 1
	pos = ((pos+dir)%n + n) % n
	if pos == 0 {
		if input {
			return api.ConfigEdit{ClearInput: true}, true
		}
		return api.ConfigEdit{ClearOutput: true}, true
	}

	idx := candidates[pos-1].Index
	if input {
		return api.ConfigEdit{InputDevice: &idx}, true
	}
	return api.ConfigEdit{OutputDevice: &idx}, true
}

// cycleInt returns the neighbour of current in values, wrapping at both ends.
// A current value not in values starts from the first or last entry.
func cycleInt(values []int, current, dir int) int {
	pos := -1
	for i, v := range values {
		if v == current {
			pos = i
		}
	}
	if pos < 0 {
		if dir > 0 {
			return values[0]
		}
		return values[len(values)-1]
	}
	n := len(values)
	return values[((pos+dir)%n+n)%n]
}

// roundStep drops float noise left by repeated step additions
func roundStep(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// View renders the dashboard
func (m DashboardModel) View() string {
	width, height := m.Width, m.Height
	if width == 0 {
		width = MinTerminalWidth
	}
	if height == 0 {
		height = 24
	}

	if m.ShowingHelp {
		body := SectionTitleStyle.Render("Keyboard shortcuts") + "\n\n" + m.Help.FullHelpView(m.Keys.FullHelp())
		return RenderModal(ModalStyle.Width(SafeModalWidth(64, width)).Render(body), width, height)
	}

	switch m.Mode {
	case modePickProfile:
		return RenderModal(ModalStyle.Width(SafeModalWidth(48, width)).Render(m.renderPicker()), width, height)
	case modeConfirmDelete:
		return RenderModal(ModalStyle.Width(SafeModalWidth(56, width)).Render(m.renderConfirmDelete()), width, height)
	}

	footer := m.Help.View(m.Keys)
	if m.Mode == modeSaveName {
		footer = m.Help.View(m.PromptKeys)
	}
	return RenderApplicationContainer(m.renderContent(), footer, width, height)
}

func (m DashboardModel) renderContent() string {
	var b strings.Builder

	b.WriteString(m.renderConnection())
	b.WriteString("\n")

	b.WriteString(SectionTitleStyle.Render("Engine"))
	b.WriteString("\n")
	if m.Snapshot.HasStatus {
		st := m.Snapshot.Status
		b.WriteString("  " + m.LatencyMeter.Render(st.LatencyMs) + "\n")
		b.WriteString("  " + m.CPUMeter.Render(st.CPUUsage) + "\n")
		running := "stopped"
		if st.Enabled {
			running = "running"
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", ui.LabelStyle.Width(10).Render("State"), running))
	} else {
		b.WriteString(ui.LabelStyle.Render("  Waiting for status...") + "\n")
	}

	b.WriteString(SectionTitleStyle.Render("Audio"))
	b.WriteString("\n")
	for i, row := range m.rows {
		if row.kind == rowParam && m.rows[i-1].kind != rowParam {
			title := "Profile: " + m.Snapshot.Profile.Name
			if profiles.LikelyProtected(m.Snapshot.Profile.Name) {
				title += " (default)"
			}
			b.WriteString(SectionTitleStyle.Render(title))
			b.WriteString("\n")
		}
		b.WriteString(m.renderRow(i, row))
		b.WriteString("\n")
	}

	if m.Mode == modeSaveName {
		b.WriteString("\n  Save profile as: ")
		b.WriteString(m.NameInput.View())
		b.WriteString("\n")
	}

	if m.Notice != "" {
		b.WriteString("\n")
		if m.NoticeIsError {
			b.WriteString("  " + NoticeErrorStyle.Render(ui.FailureMarker+" "+m.Notice))
		} else {
			b.WriteString("  " + NoticeStyle.Render(ui.SuccessMarker+" "+m.Notice))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (m DashboardModel) renderConnection() string {
	url := m.Session.Settings().Backend.URL
	var marker string
	switch m.Connection {
	case channel.Connected:
		marker = lipgloss.NewStyle().Foreground(SecondaryColor).Render(ui.ActiveMarker)
	case channel.Connecting:
		marker = m.Spinner.View()
	default:
		marker = lipgloss.NewStyle().Foreground(ErrorColor).Render(ui.IdleMarker)
	}
	return fmt.Sprintf("  %s %s  %s", marker, m.Connection.String(), ui.LabelStyle.Render(url))
}

func (m DashboardModel) renderRow(i int, row dashboardRow) string {
	cfg := m.Snapshot.Config
	var label, value string

	switch row.kind {
	case rowInput:
		label, value = "Input", deviceLabel(m.Devices, cfg.InputDevice)
	case rowOutput:
		label, value = "Output", deviceLabel(m.Devices, cfg.OutputDevice)
	case rowBuffer:
		label, value = "Buffer", fmt.Sprintf("%d samples", cfg.BufferSize)
	case rowRate:
		label, value = "Sample rate", fmt.Sprintf("%d Hz", cfg.SampleRate)
	case rowEnabled:
		label, value = "Processing", "off"
		if cfg.Enabled {
			value = "on"
		}
	case rowParam:
		v := row.param.Get(m.Snapshot.Profile)
		label = row.param.Label
		value = renderSlider(row.param, v) + "  " + row.param.Format(v)
	}

	text := RowLabelStyle.Render(label) + value
	if i == m.Cursor && m.Mode == modeNormal {
		return SelectedRowStyle.Render("→ " + text)
	}
	return RowStyle.Render(text)
}

func (m DashboardModel) renderPicker() string {
	var b strings.Builder
	title := "Load profile"
	if m.PickAction == pickDelete {
		title = "Delete profile"
	}
	b.WriteString(SectionTitleStyle.Render(title))
	b.WriteString("\n\n")
	for i, name := range m.Profiles {
		if i == m.PickCursor {
			b.WriteString(SelectedRowStyle.Render("→ " + name))
		} else {
			b.WriteString(RowStyle.Render(name))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.Help.View(m.PromptKeys))
	return b.String()
}

func (m DashboardModel) renderConfirmDelete() string {
	var b strings.Builder
	b.WriteString(ui.WarningTitleStyle.Render(fmt.Sprintf("Delete profile %q?", m.DeleteTarget)))
	b.WriteString("\n\n")
	if profiles.LikelyProtected(m.DeleteTarget) {
		b.WriteString(ui.LabelStyle.Render("Shipped defaults are usually protected by the backend."))
		b.WriteString("\n\n")
	}
	b.WriteString("y delete  ·  n cancel")
	return b.String()
}

func deviceLabel(devices []api.AudioDevice, idx *int) string {
	if idx == nil {
		return "(none)"
	}
	for _, d := range devices {
		if d.Index == *idx {
			return fmt.Sprintf("%s [%d]", d.Name, d.Index)
		}
	}
	return fmt.Sprintf("#%d", *idx)
}

func renderSlider(r api.ParamRange, v float64) string {
	span := r.Max - r.Min
	filled := 0
	if span > 0 {
		filled = int(math.Round((v - r.Min) / span * SliderWidth))
	}
	if filled < 0 {
		filled = 0
	}
	if filled > SliderWidth {
		filled = SliderWidth
	}
	return SliderFillStyle.Render(strings.Repeat("█", filled)) +
		SliderTrackStyle.Render(strings.Repeat("░", SliderWidth-filled))
}
