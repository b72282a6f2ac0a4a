// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pitchscope/internal/transport"
)

var (
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	peakStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F25D94")).Bold(true)
	axisStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#F25D94")).
			Padding(0, 1).
			Bold(true)
	silenceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676")).
			Padding(0, 1)
)

// Partial block glyphs, from empty to full.
var barGlyphs = []rune(" ▁▂▃▄▅▆▇█")

type frameMsg transport.Frame

// SpectrumModel plots the normalized spectrum of the latest frame over a
// fixed frequency range and shows the detected note.
type SpectrumModel struct {
	lowHz, highHz float64
	width, height int
	frame         transport.Frame
	haveFrame     bool
	detections    uint64
}

// NewSpectrumModel returns a model plotting [lowHz, highHz].
func NewSpectrumModel(lowHz, highHz float64) SpectrumModel {
	return SpectrumModel{lowHz: lowHz, highHz: highHz, width: 80, height: 24}
}

func (m SpectrumModel) Init() tea.Cmd { return nil }

func (m SpectrumModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case frameMsg:
		m.frame = transport.Frame(msg)
		m.haveFrame = true
		if m.frame.Result.Detected {
			m.detections++
		}
	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"))) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m SpectrumModel) View() string {
	title := titleStyle.Render("pitchscope")
	if !m.haveFrame {
		return title + "\n\nWaiting for audio..."
	}

	label := silenceStyle.Render(m.frame.Result.String())
	if m.frame.Result.Detected {
		label = labelStyle.Render(m.frame.Result.String()) +
			dimStyle.Render(fmt.Sprintf("  %+.0f¢", m.frame.Result.Cents()))
	}

	bins, first := m.frame.Spectrum.DisplayBins(m.lowHz, m.highHz)
	peak := -1
	if m.frame.Result.Detected {
		peak = m.frame.Spectrum.Peak() - first
	}

	plotHeight := max(m.height-7, 1)
	plot := renderBars(bins, peak, max(m.width, 1), plotHeight)
	axis := axisStyle.Render(renderAxis(m.lowHz, m.highHz, max(m.width, 1)))
	status := infoStyle.Render(fmt.Sprintf("cycle %d • %d detections • q: quit", m.frame.Seq, m.detections))

	return fmt.Sprintf("%s %s\n\n%s\n%s\n\n%s", title, label, plot, axis, status)
}

// renderBars draws bins as width columns of height rows. Each column shows
// the largest bin that falls into it; the column holding the bin at index
// peak is highlighted.
func renderBars(bins []float64, peak, width, height int) string {
	if len(bins) == 0 || width <= 0 || height <= 0 {
		return strings.Repeat("\n", max(height-1, 0))
	}

	levels := len(barGlyphs) - 1
	cols := make([]int, width) // Height of each column in glyph steps.
	peakCol := -1
	for c := range width {
		lo := c * len(bins) / width
		hi := max((c+1)*len(bins)/width, lo+1)
		var v float64
		for i := lo; i < hi && i < len(bins); i++ {
			v = max(v, bins[i])
			if i == peak {
				peakCol = c
			}
		}
		cols[c] = int(min(max(v, 0), 1)*float64(height*levels) + 0.5)
	}

	var sb strings.Builder
	for row := height - 1; row >= 0; row-- {
		var line, hot strings.Builder
		for c, h := range cols {
			steps := min(max(h-row*levels, 0), levels)
			if c == peakCol {
				line.WriteString(barStyle.Render(hot.String()))
				hot.Reset()
				line.WriteString(peakStyle.Render(string(barGlyphs[steps])))
				continue
			}
			hot.WriteRune(barGlyphs[steps])
		}
		line.WriteString(barStyle.Render(hot.String()))
		sb.WriteString(line.String())
		if row > 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// renderAxis labels both ends of the plotted range.
func renderAxis(lowHz, highHz float64, width int) string {
	left := fmt.Sprintf("%.0f Hz", lowHz)
	right := fmt.Sprintf("%.0f Hz", highHz)
	gap := width - len(left) - len(right)
	if gap < 1 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", gap) + right
}

// SpectrumSink runs a SpectrumModel and feeds it frames from the loop.
// Emit never blocks: a frame the display has not picked up yet is replaced
// by the newer one.
type SpectrumSink struct {
	program *tea.Program
	latest  chan transport.Frame
	done    chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	started bool
	err     error
}

// NewSpectrumSink prepares the display. Start runs it.
func NewSpectrumSink(lowHz, highHz float64, opts ...tea.ProgramOption) *SpectrumSink {
	return &SpectrumSink{
		program: tea.NewProgram(NewSpectrumModel(lowHz, highHz), opts...),
		latest:  make(chan transport.Frame, 1),
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

// Start runs the program and the frame forwarder in the background.
func (s *SpectrumSink) Start() {
	s.started = true
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer close(s.done)
		_, s.err = s.program.Run()
	}()
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.stop:
				return
			case <-s.done:
				return
			case f := <-s.latest:
				s.program.Send(frameMsg(f))
			}
		}
	}()
}

// Done is closed when the display exits, including when the user quits.
func (s *SpectrumSink) Done() <-chan struct{} { return s.done }

// Emit hands a copy of frame to the display.
func (s *SpectrumSink) Emit(frame transport.Frame) error {
	frame.Spectrum = frame.Spectrum.Clone()
	for {
		select {
		case s.latest <- frame:
			return nil
		default:
		}
		select {
		case <-s.latest:
		default:
		}
	}
}

// Close quits the program and waits for it to restore the terminal.
func (s *SpectrumSink) Close() error {
	s.once.Do(func() {
		close(s.stop)
		if !s.started {
			return
		}
		s.program.Quit()
		s.wg.Wait()
	})
	return s.err
}

var _ transport.Sink = (*SpectrumSink)(nil)
