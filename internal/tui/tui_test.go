// SPDX-License-Identifier: MIT
package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pitchscope/internal/analysis"
	"pitchscope/internal/audio"
	"pitchscope/internal/notes"
	"pitchscope/internal/transport"
)

func testDevices() []audio.Device {
	return []audio.Device{
		{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{ID: 1, Name: "Built-in Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
		{ID: 2, Name: "USB Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 32000},
	}
}

func keyPress(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func drive(m tea.Model, msgs ...tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, msg := range msgs {
		m, cmd = m.Update(msg)
	}
	return m, cmd
}

func TestDevicePickerSelectsInputDevice(t *testing.T) {
	m := NewDevicePickerModel(func() ([]audio.Device, error) { return testDevices(), nil })
	msg := m.Init()()

	final, cmd := drive(m,
		tea.WindowSizeMsg{Width: 80, Height: 24},
		msg,
		keyPress("down"), // Built-in Mic -> USB Interface
		keyPress("enter"),
		keyPress("down"), // 32000 (default) -> 44100
		keyPress("enter"),
	)
	if cmd == nil {
		t.Fatal("expected a quit command after confirming")
	}

	sel, ok := final.(DevicePickerModel).Selected()
	if !ok {
		t.Fatal("no selection")
	}
	if sel.DeviceID != 2 || sel.SampleRate != 44100 {
		t.Errorf("selection = %+v, want device 2 at 44100 Hz", sel)
	}
}

func TestDevicePickerHidesOutputOnlyDevices(t *testing.T) {
	m := NewDevicePickerModel(func() ([]audio.Device, error) { return testDevices(), nil })
	final, _ := drive(m, tea.WindowSizeMsg{Width: 80, Height: 24}, m.Init()())

	view := final.View()
	if strings.Contains(view, "Speakers") {
		t.Error("output-only device listed")
	}
	if !strings.Contains(view, "Built-in Mic") {
		t.Errorf("input device missing from view:\n%s", view)
	}
}

func TestDevicePickerQuitAndBack(t *testing.T) {
	m := NewDevicePickerModel(func() ([]audio.Device, error) { return testDevices(), nil })
	final, _ := drive(m,
		tea.WindowSizeMsg{Width: 80, Height: 24},
		m.Init()(),
		keyPress("enter"),
		keyPress("esc"),
		keyPress("q"),
	)
	pm := final.(DevicePickerModel)
	if pm.screen != listScreen {
		t.Error("esc did not return to the list")
	}
	if _, ok := pm.Selected(); ok {
		t.Error("quitting should not select")
	}
}

func TestDevicePickerListError(t *testing.T) {
	m := NewDevicePickerModel(func() ([]audio.Device, error) { return nil, errors.New("no host API") })
	final, cmd := drive(m, m.Init()())
	if cmd == nil {
		t.Error("expected quit on listing error")
	}
	if !strings.Contains(final.View(), "no host API") {
		t.Errorf("view does not show the error: %q", final.View())
	}
}

func TestRatesFor(t *testing.T) {
	tests := []struct {
		def     float64
		wantIdx int
		wantLen int
	}{
		{44100, 1, 5},
		{32000, 1, 6},
		{8000, 0, 6},
		{192000, 5, 6},
	}
	for _, tt := range tests {
		rates, idx := ratesFor(tt.def)
		if idx != tt.wantIdx || len(rates) != tt.wantLen || rates[idx] != tt.def {
			t.Errorf("ratesFor(%v) = %v, %d", tt.def, rates, idx)
		}
	}
	if pickerSampleRates[1] != 44100 {
		t.Error("ratesFor modified the shared rate list")
	}
}

func testFrame(hz float64) transport.Frame {
	mags := make([]float64, 513)
	result := analysis.Silence
	if hz > 0 {
		bin := int(hz/43.06640625 + 0.5)
		mags[bin] = 1
		mags[bin+1] = 0.4
		result = analysis.Result{Detected: true, Frequency: float64(bin) * 43.06640625, Note: notes.Nearest(hz)}
	}
	return transport.Frame{
		Seq:      7,
		Result:   result,
		Spectrum: analysis.Spectrum{Magnitudes: mags, BinWidth: 43.06640625},
	}
}

func TestSpectrumModelView(t *testing.T) {
	m := NewSpectrumModel(0, 4000)
	if !strings.Contains(m.View(), "Waiting") {
		t.Errorf("initial view = %q", m.View())
	}

	final, _ := drive(m, tea.WindowSizeMsg{Width: 60, Height: 20}, frameMsg(testFrame(440)))
	view := final.View()
	for _, want := range []string{"A4 (440.0 Hz)", "-37¢", "0 Hz", "4000 Hz", "cycle 7"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	final, _ = drive(final, frameMsg(testFrame(0)))
	if !strings.Contains(final.View(), "silence") {
		t.Errorf("silent frame view:\n%s", final.View())
	}
	if got := final.(SpectrumModel).detections; got != 1 {
		t.Errorf("detections = %d, want 1", got)
	}
}

func TestSpectrumModelQuits(t *testing.T) {
	_, cmd := NewSpectrumModel(0, 4000).Update(keyPress("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not produce QuitMsg")
	}
}

func TestRenderBars(t *testing.T) {
	out := renderBars([]float64{0, 0.5, 1, 0}, -1, 4, 2)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d rows, want 2", len(lines))
	}
	// Column 2 is full height, column 1 fills exactly the bottom row.
	if !strings.Contains(lines[0], " █") {
		t.Errorf("top row = %q", lines[0])
	}
	if !strings.Contains(lines[1], " ██ ") {
		t.Errorf("bottom row = %q", lines[1])
	}

	if got := renderBars(nil, -1, 10, 3); strings.Count(got, "\n") != 2 {
		t.Errorf("empty plot should keep its height, got %q", got)
	}
}

func TestRenderAxis(t *testing.T) {
	got := renderAxis(0, 4000, 20)
	if len(got) != 20 || !strings.HasPrefix(got, "0 Hz") || !strings.HasSuffix(got, "4000 Hz") {
		t.Errorf("renderAxis() = %q", got)
	}
}

func TestSpectrumSinkLifecycle(t *testing.T) {
	var out bytes.Buffer
	s := NewSpectrumSink(0, 4000, tea.WithInput(nil), tea.WithOutput(&out), tea.WithoutSignalHandler())
	s.Start()

	for i := range 10 {
		f := testFrame(440)
		f.Seq = uint64(i + 1)
		if err := s.Emit(f); err != nil {
			t.Fatalf("Emit() error: %v", err)
		}
	}

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("Close() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not return")
	}

	select {
	case <-s.Done():
	default:
		t.Error("Done() not closed after Close")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestSpectrumSinkEmitWithoutDisplay(t *testing.T) {
	s := NewSpectrumSink(0, 4000)
	for range 3 {
		if err := s.Emit(testFrame(440)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() before Start error: %v", err)
	}
}
