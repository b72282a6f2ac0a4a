// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pitchscope/cmd"
	"pitchscope/internal/analysis"
	"pitchscope/internal/audio"
	"pitchscope/internal/config"
	"pitchscope/internal/engine"
	applog "pitchscope/internal/log"
	"pitchscope/internal/transport"
	"pitchscope/internal/transport/udp"
	"pitchscope/internal/tui"
	"pitchscope/pkg/build"
)

// logFile receives log output while the terminal display owns the screen.
const logFile = "pitchscope.log"

// main is the entry point for the note detector.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Build the analysis pipeline, frame source and sinks
//   - Run the analysis loop until cancelled or the source ends
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording if active
//   - Close sinks and report loop statistics
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Debugf("Build info incomplete: %v", err)
	}

	inv, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if inv == nil {
		return // --help or --version
	}
	configureLogging(inv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, inv)
	stop()
	if err != nil {
		applog.Fatalf("%v", err)
	}
}

func configureLogging(inv *cmd.Invocation) {
	level, _ := applog.ParseLevel(inv.Config.LogLevel)
	if inv.Verbose || inv.Config.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)
}

// run executes the parsed command.
func run(ctx context.Context, inv *cmd.Invocation) error {
	cfg := inv.Config

	switch inv.Command {
	case cmd.CommandList:
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(os.Stdout)

	case cmd.CommandDevices:
		sel, ok, err := tui.PickDevice()
		if err != nil || !ok {
			return err
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
		applog.Infof("Listening on [%d] %s at %.0f Hz", sel.DeviceID, sel.DeviceName, sel.SampleRate)

	case cmd.CommandAnalyze:
		info, err := audio.ProbeWAV(cfg.Source.WAVPath)
		if err != nil {
			return err
		}
		cfg.Audio.SampleRate = float64(info.SampleRate)
		applog.Infof("Analyzing %s (%d Hz, %d-bit, %d channels)",
			cfg.Source.WAVPath, info.SampleRate, info.BitDepth, info.Channels)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	return listen(ctx, cfg)
}

// ==================== CONCURRENT PHASE (Hot Path) ====================

// listen wires the configured source, pipeline and sinks into an analysis
// loop and runs it until ctx is cancelled, the source ends, or the user
// quits the display.
func listen(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pipeline, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	source, err := audio.NewSource(cfg)
	if err != nil {
		return err
	}

	policy, err := engine.ParseOverflowPolicy(cfg.Analysis.OverflowPolicy)
	if err != nil {
		return err
	}
	opts := engine.Options{
		SampleRate:   cfg.Audio.SampleRate,
		TickInterval: cfg.Loop.TickInterval,
		Overflow:     policy,
	}

	if cfg.Recording.Enabled {
		rec := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.BlockSize)
		name := audio.RecordingName(cfg.Recording.OutputDir, time.Now())
		if err := rec.Start(name); err != nil {
			return fmt.Errorf("cannot start recording: %w", err)
		}
		defer func() {
			if err := rec.Stop(); err != nil {
				applog.Errorf("Error stopping recording: %v", err)
				return
			}
			applog.Infof("Recording saved to: %s (%d frames)", name, rec.Frames())
		}()
		opts.Tap = rec
	}

	sink, display, err := newSinks(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			applog.Errorf("Error closing sinks: %v", err)
		}
	}()

	if display != nil {
		display.Start()
		go func() {
			select {
			case <-display.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	loop := engine.New(source, pipeline, sink, opts)
	err = loop.Run(ctx)

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	s := loop.Stats()
	applog.Infof("%d cycles: %d detections, %d silent, %d overflows (%d skipped)",
		s.Cycles, s.Detections, s.Silences, s.Overflows, s.Skipped)
	return err
}

// newPipeline builds the gate, analyzer and resolver from cfg.
func newPipeline(cfg *config.Config) (*analysis.Pipeline, error) {
	backend, err := analysis.ParseBackend(cfg.Analysis.FFTBackend)
	if err != nil {
		return nil, err
	}
	window, err := analysis.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		return nil, err
	}

	analyzer, err := analysis.NewSpectralAnalyzer(cfg.Audio.BlockSize, cfg.Audio.SampleRate,
		analysis.AnalyzerOptions{Backend: backend, Window: window})
	if err != nil {
		return nil, err
	}

	gate := analysis.NewSilenceGate(cfg.Analysis.AmplitudeThreshold)
	if cfg.Analysis.ThresholdRatio > 0 {
		gate.SetThresholdRatio(cfg.Analysis.ThresholdRatio)
	}
	applog.Debugf("Silence gate at %d (%.1f%% of full scale)", gate.Threshold(), gate.ThresholdRatio()*100)

	return analysis.NewPipeline(gate, analyzer, analysis.NewPitchResolver()), nil
}

// newSinks builds the fanout of enabled sinks. The logging sink is always
// present. display is non-nil when the terminal display is enabled; it has
// not been started.
func newSinks(cfg *config.Config) (sink transport.Sink, display *tui.SpectrumSink, err error) {
	sinks := transport.Fanout{transport.NewLoggingSink()}
	defer func() {
		if err != nil {
			_ = sinks.Close()
		}
	}()

	lowHz, highHz := cfg.Display.MinHz, cfg.Display.MaxHz

	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketSink(cfg.Transport.WebSocketAddress, lowHz, highHz)
		if err := ws.Start(); err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, ws)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return nil, nil, err
		}
		publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, lowHz, highHz)
		if err != nil {
			return nil, nil, errors.Join(err, sender.Close())
		}
		publisher.Start()
		sinks = append(sinks, publisher)
	}

	if cfg.Display.TUI {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open %s for the display session: %w", logFile, err)
		}
		applog.SetOutput(f)
		display = tui.NewSpectrumSink(lowHz, highHz)
		sinks = append(sinks, closerSink{f}, display)
	}

	return sinks, display, nil
}

// closerSink restores stderr logging and closes the display log file once
// the display has been closed.
type closerSink struct{ f *os.File }

func (closerSink) Emit(transport.Frame) error { return nil }

func (c closerSink) Close() error {
	applog.SetOutput(nil)
	return c.f.Close()
}
