// SPDX-License-Identifier: MIT

// Package tui holds the terminal front ends: the live spectrum display and
// the input device picker.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pitchscope/internal/audio"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))
)

// Sample rates offered on the rate screen, besides the device default.
var pickerSampleRates = []float64{22050, 44100, 48000, 88200, 96000}

type screen int

const (
	listScreen screen = iota
	rateScreen
)

var (
	keyQuit  = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	keyUp    = key.NewBinding(key.WithKeys("up", "k"))
	keyDown  = key.NewBinding(key.WithKeys("down", "j"))
	keyEnter = key.NewBinding(key.WithKeys("enter"))
	keyBack  = key.NewBinding(key.WithKeys("esc"))
)

// Selection is the outcome of the device picker.
type Selection struct {
	DeviceID   int
	DeviceName string
	SampleRate float64
}

type devicesMsg struct{ devices []audio.Device }

type errMsg struct{ err error }

// DevicePickerModel lets the user choose a capture device and sample rate.
type DevicePickerModel struct {
	listDevices func() ([]audio.Device, error)

	devices  []audio.Device // Capture-capable devices only.
	cursor   int
	rates    []float64
	rateIdx  int
	screen   screen
	viewport viewport.Model
	ready    bool
	err      error

	selected  *Selection
	cancelled bool
}

// NewDevicePickerModel returns a picker that lists devices with list.
func NewDevicePickerModel(list func() ([]audio.Device, error)) DevicePickerModel {
	return DevicePickerModel{listDevices: list}
}

func (m DevicePickerModel) Init() tea.Cmd {
	list := m.listDevices
	return func() tea.Msg {
		devices, err := list()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

func (m DevicePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = m.devices[:0]
		for _, d := range msg.devices {
			if d.CanCapture() {
				m.devices = append(m.devices, d)
			}
		}
		m.refresh()

	case errMsg:
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			m.cancelled = true
			return m, tea.Quit
		}
		if m.screen == listScreen {
			return m.updateList(msg)
		}
		return m.updateRate(msg)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m DevicePickerModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keyUp):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keyDown):
		if m.cursor < len(m.devices)-1 {
			m.cursor++
		}
	case key.Matches(msg, keyEnter):
		if len(m.devices) == 0 {
			return m, nil
		}
		m.screen = rateScreen
		m.rates, m.rateIdx = ratesFor(m.devices[m.cursor].DefaultSampleRate)
	}
	m.refresh()
	return m, nil
}

func (m DevicePickerModel) updateRate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keyBack):
		m.screen = listScreen
	case key.Matches(msg, keyUp):
		if m.rateIdx > 0 {
			m.rateIdx--
		}
	case key.Matches(msg, keyDown):
		if m.rateIdx < len(m.rates)-1 {
			m.rateIdx++
		}
	case key.Matches(msg, keyEnter):
		d := m.devices[m.cursor]
		m.selected = &Selection{DeviceID: d.ID, DeviceName: d.Name, SampleRate: m.rates[m.rateIdx]}
		return m, tea.Quit
	}
	m.refresh()
	return m, nil
}

// ratesFor merges the device default into the offered rates and returns
// the index of the default.
func ratesFor(deviceDefault float64) ([]float64, int) {
	rates := append([]float64(nil), pickerSampleRates...)
	for i, r := range rates {
		if r == deviceDefault {
			return rates, i
		}
		if r > deviceDefault {
			rates = append(rates[:i], append([]float64{deviceDefault}, rates[i:]...)...)
			return rates, i
		}
	}
	return append(rates, deviceDefault), len(rates)
}

func (m *DevicePickerModel) refresh() {
	if !m.ready {
		return
	}
	if m.screen == listScreen {
		m.viewport.SetContent(m.renderDevices())
	} else {
		m.viewport.SetContent(m.renderRates())
	}
}

func (m DevicePickerModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.screen == listScreen {
		title = titleStyle.Render("Input Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Choose • q: Quit")
	} else {
		title = titleStyle.Render("Sample Rate")
		help = infoStyle.Render("↑/↓: Change • Enter: Start • Esc: Back • q: Quit")
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DevicePickerModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, d := range m.devices {
		entry := fmt.Sprintf("[%d] %s (%s)\n", d.ID, d.Name, d.Kind())
		entry += dimStyle.Render(fmt.Sprintf("    %d input channels, %.0f Hz, latency %v to %v",
			d.MaxInputChannels, d.DefaultSampleRate, d.LowInputLatency, d.HighInputLatency)) + "\n"
		if i == m.cursor {
			entry = highlightStyle.Render(entry)
		}
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DevicePickerModel) renderRates() string {
	var sb strings.Builder
	d := m.devices[m.cursor]
	fmt.Fprintf(&sb, "Device: %s\n\n", d.Name)

	for i, rate := range m.rates {
		marker := " "
		if i == m.rateIdx {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz", marker, rate)
		if rate == d.DefaultSampleRate {
			line += dimStyle.Render(" (default)")
		}
		if i == m.rateIdx {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// Selected returns the confirmed choice, or false if the user quit.
func (m DevicePickerModel) Selected() (Selection, bool) {
	if m.selected == nil || m.cancelled {
		return Selection{}, false
	}
	return *m.selected, true
}

// PickDevice runs the picker full screen. ok is false when the user quits
// without choosing.
func PickDevice(opts ...tea.ProgramOption) (sel Selection, ok bool, err error) {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	final, err := tea.NewProgram(NewDevicePickerModel(audio.GetDevices), opts...).Run()
	if err != nil {
		return Selection{}, false, err
	}
	m := final.(DevicePickerModel)
	if m.err != nil {
		return Selection{}, false, m.err
	}
	sel, ok = m.Selected()
	return sel, ok, nil
}
