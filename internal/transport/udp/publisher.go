// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	applog "pitchscope/internal/log"
	"pitchscope/internal/transport"
)

var publisherLog = applog.For("UDPPublisher")

// UDPPublisher is a Sink that keeps the latest frame and sends it over UDP
// on its own ticker, so the network never paces the analysis loop. It runs
// in a separate goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   *UDPSender    // The underlying UDP sender instance.
	interval time.Duration // The interval at which packets are sent.
	lowHz    float64
	highHz   float64

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	// Latest frame slot, written by Emit and read by the ticker goroutine.
	slotMu   sync.Mutex
	latest   Packet
	hasFrame bool

	sequenceNum  uint32    // Monotonically increasing sequence number for packets.
	truncateOnce sync.Once // Warns the first time a frame is cut to fit.

	// Reused by the publisher goroutine only.
	outgoing     Packet
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates a publisher sending the bins in [lowHz, highHz].
// If the interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender, lowHz, highHz float64) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond
		publisherLog.Warnf("Invalid interval provided, defaulting to %s", interval)
	}

	publisherLog.Infof("Initializing (Interval: %s, Range: %.0f-%.0f Hz)", interval, lowHz, highHz)

	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		lowHz:        lowHz,
		highHz:       highHz,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Emit copies the frame into the latest-frame slot. It never touches the
// network.
func (p *UDPPublisher) Emit(frame transport.Frame) error {
	bins, first := frame.Spectrum.DisplayBins(p.lowHz, p.highHz)
	if len(bins) > maxMagnitudes {
		p.truncateOnce.Do(func() {
			publisherLog.Warnf("Display range holds %d bins, sending the lowest %d to fit one datagram",
				len(bins), maxMagnitudes)
		})
		bins = bins[:maxMagnitudes]
	}

	p.slotMu.Lock()
	defer p.slotMu.Unlock()

	l := &p.latest
	l.Cycle = uint64(frame.Seq)
	l.Timestamp = frame.Time.UnixNano()
	l.Detected = frame.Result.Detected
	l.Frequency = float32(frame.Result.Frequency)
	l.NoteFrequency = float32(frame.Result.Note.Frequency)
	l.Label = frame.Result.Note.Label
	l.BinWidth = float32(frame.Spectrum.BinWidth)
	l.FirstBin = uint16(min(first, 1<<16-1))

	if cap(l.Magnitudes) < len(bins) {
		l.Magnitudes = make([]float32, len(bins))
	}
	l.Magnitudes = l.Magnitudes[:len(bins)]
	for i, v := range bins {
		l.Magnitudes[i] = float32(v)
	}

	p.hasFrame = true
	return nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		publisherLog.Warnf("Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture locals for the goroutine to avoid data races on p.ticker/p.doneChan
	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		publisherLog.Debugf("Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				publisherLog.Debugf("Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})

	p.mu.Unlock()

	p.wg.Wait()
	publisherLog.Infof("Publisher stopped after %d packets.", p.sequenceNum)
	return nil
}

// buildAndSendPacket copies the latest frame out of the slot, packs it and
// sends it. Nothing is sent before the first frame arrives.
func (p *UDPPublisher) buildAndSendPacket() {
	p.slotMu.Lock()
	if !p.hasFrame {
		p.slotMu.Unlock()
		return
	}
	mags := p.outgoing.Magnitudes
	p.outgoing = p.latest
	p.outgoing.Magnitudes = append(mags[:0], p.latest.Magnitudes...)
	p.slotMu.Unlock()

	p.sequenceNum++
	p.outgoing.Sequence = p.sequenceNum

	if err := p.outgoing.MarshalTo(p.packetBuffer); err != nil {
		publisherLog.Errorf("Error packing data into binary buffer: %v", err)
		return
	}

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err == nil {
		publisherLog.Debugf("Sent packet %d (%d bytes)", p.sequenceNum, len(packetBytes))
	}
}

// Close stops the publisher and closes the sender.
func (p *UDPPublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

// Ensure UDPPublisher satisfies the Sink interface at compile time.
var _ transport.Sink = (*UDPPublisher)(nil)
