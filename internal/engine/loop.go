// SPDX-License-Identifier: MIT
/*
Package engine runs the analysis loop: one cycle reads a block from the
frame source, gates it, analyzes and resolves it when it carries signal, and
emits the result to the sink.

	Idle -> Capturing -> Analyzing -> Emitting -> Capturing ...
	                 \-- silence ---------/
	any state -- cancel or fatal fault --> Stopped

Cycles never overlap. The source is opened when Run starts and closed on
every exit path, including panics inside a cycle.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"pitchscope/internal/analysis"
	"pitchscope/internal/audio"
	applog "pitchscope/internal/log"
	"pitchscope/internal/transport"
)

const component = "AnalysisLoop"

var loopLog = applog.For(component)

// ErrPanic classifies a panic recovered from inside a cycle.
var ErrPanic = errors.New("panic in analysis cycle")

// Tap receives every block read from the source, before gating.
type Tap interface {
	Write(block analysis.SampleBlock) error
}

// Options configures a Loop.
type Options struct {
	SampleRate   float64
	TickInterval time.Duration // 0 runs cycles back to back.
	Overflow     OverflowPolicy
	Tap          Tap // Optional, e.g. a WAV recorder.
}

// Stats counts what the loop has done so far.
type Stats struct {
	Cycles     uint64 // Blocks read, including overflowed reads.
	Detections uint64
	Silences   uint64
	Overflows  uint64
	Skipped    uint64 // Cycles that emitted nothing.
}

// Loop drives a FrameSource through a Pipeline into a Sink.
type Loop struct {
	source   audio.FrameSource
	pipeline *analysis.Pipeline
	sink     transport.Sink
	opts     Options

	state atomic.Int32
	seq   uint64

	cycles, detections, silences, overflows, skipped atomic.Uint64

	last    analysis.SampleBlock // Copy of the last good block.
	hasLast bool
	zero    analysis.SampleBlock

	now func() time.Time
}

// New returns an Idle loop. The source must not be open.
func New(source audio.FrameSource, pipeline *analysis.Pipeline, sink transport.Sink, opts Options) *Loop {
	n := pipeline.BlockSize()
	return &Loop{
		source:   source,
		pipeline: pipeline,
		sink:     sink,
		opts:     opts,
		last:     make(analysis.SampleBlock, n),
		zero:     make(analysis.SampleBlock, n),
		now:      time.Now,
	}
}

// State returns the current phase. Safe to call from any goroutine.
func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) setState(s State) { l.state.Store(int32(s)) }

// Stats returns a snapshot of the counters. Safe to call from any goroutine.
func (l *Loop) Stats() Stats {
	return Stats{
		Cycles:     l.cycles.Load(),
		Detections: l.detections.Load(),
		Silences:   l.silences.Load(),
		Overflows:  l.overflows.Load(),
		Skipped:    l.skipped.Load(),
	}
}

// Run opens the source and runs cycles until ctx is cancelled, the source
// reports io.EOF, or a fatal fault occurs. Cancellation and EOF return nil.
// A fatal fault is returned with the faulting component attached. The
// source is closed before Run returns; a close failure is joined to the
// result. Run may be called once.
func (l *Loop) Run(ctx context.Context) (err error) {
	if !l.state.CompareAndSwap(int32(Idle), int32(Capturing)) {
		return fmt.Errorf("%s: Run called in state %s", component, l.State())
	}

	if err := l.source.Open(l.opts.SampleRate, 1, l.pipeline.BlockSize()); err != nil {
		l.setState(Stopped)
		loopLog.Errorf("Cannot open %s: %v", sourceName(l.source), err)
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = &analysis.Fault{Component: component, Err: ErrPanic, Detail: fmt.Sprint(r)}
		}
		if cerr := l.source.Close(); cerr != nil {
			loopLog.Errorf("Closing %s: %v", sourceName(l.source), cerr)
			err = errors.Join(err, cerr)
		}
		l.setState(Stopped)
		if err != nil {
			loopLog.Errorf("Stopped by fatal fault in %s: %v", faultComponent(err), err)
		} else {
			loopLog.Infof("Stopped after %d cycles", l.cycles.Load())
		}
	}()

	var ticks <-chan time.Time
	if l.opts.TickInterval > 0 {
		ticker := time.NewTicker(l.opts.TickInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := l.cycle(); err != nil {
			if errors.Is(err, io.EOF) {
				loopLog.Infof("%s exhausted", sourceName(l.source))
				return nil
			}
			return err
		}

		if ticks != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticks:
			}
		}
	}
}

// cycle runs one read, gate, analyze, resolve, emit pass.
func (l *Loop) cycle() error {
	l.setState(Capturing)
	block, err := l.source.Read()
	readAt := l.now()
	if err != nil && !analysis.IsRecoverable(err) {
		return err
	}
	l.cycles.Add(1)

	if err != nil {
		l.overflows.Add(1)
		block = l.substitute(err)
		if block == nil {
			l.skipped.Add(1)
			return nil
		}
	} else {
		if err := analysis.CheckBlock(sourceName(l.source), block, len(l.last)); err != nil {
			return err
		}
		copy(l.last, block)
		l.hasLast = true
		if l.opts.Tap != nil {
			if err := l.opts.Tap.Write(block); err != nil {
				loopLog.Warnf("Tap write failed: %v", err)
			}
		}
	}

	signal, err := l.pipeline.Admit(block)
	if err != nil {
		return err
	}

	result, spectrum := analysis.Silence, l.pipeline.SilentSpectrum()
	if signal {
		l.setState(Analyzing)
		if result, spectrum, err = l.pipeline.Resolve(block); err != nil {
			return err
		}
		l.detections.Add(1)
	} else {
		l.silences.Add(1)
	}

	l.setState(Emitting)
	l.seq++
	frame := transport.Frame{Seq: l.seq, Time: readAt, Result: result, Spectrum: spectrum}
	if err := l.sink.Emit(frame); err != nil {
		loopLog.Warnf("Sink error on cycle %d: %v", l.seq, err)
	}
	return nil
}

// substitute returns the block to analyze in place of an overflowed read,
// or nil to skip the cycle.
func (l *Loop) substitute(cause error) analysis.SampleBlock {
	cycle := l.cycles.Load()
	switch l.opts.Overflow {
	case SkipCycle:
		loopLog.Warnf("%v on cycle %d, skipping", cause, cycle)
		return nil
	case ZeroBlock:
		loopLog.Warnf("%v on cycle %d, analyzing silence", cause, cycle)
		return l.zero
	default:
		if !l.hasLast {
			loopLog.Warnf("%v on cycle %d before any complete block, analyzing silence", cause, cycle)
			return l.zero
		}
		loopLog.Warnf("%v on cycle %d, repeating last block", cause, cycle)
		return l.last
	}
}

func sourceName(src audio.FrameSource) string {
	if n, ok := src.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "FrameSource"
}

func faultComponent(err error) string {
	if c := analysis.FaultComponent(err); c != "" {
		return c
	}
	return component
}
