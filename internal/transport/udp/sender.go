// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	applog "pitchscope/internal/log"
)

var senderLog = applog.For("UDP Sender")

// MaxDatagram is the largest payload a single IPv4 UDP datagram can carry.
const MaxDatagram = 65507

// errorLogEvery limits how often repeated send failures reach the log.
const errorLogEvery = 100

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("UDP sender is closed")

// UDPSender writes datagrams to one connected peer.
type UDPSender struct {
	mu     sync.Mutex // Guards conn against a concurrent Close.
	conn   *net.UDPConn
	target *net.UDPAddr

	packets atomic.Uint64
	bytes   atomic.Uint64
	errors  atomic.Uint64
}

// NewUDPSender connects to targetAddress ("host:port"). Connecting only fixes
// the peer; nothing is sent until Send.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	target, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, target)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	senderLog.Infof("Sending to %s from %s", conn.RemoteAddr(), conn.LocalAddr())
	return &UDPSender{conn: conn, target: target}, nil
}

// Send writes data as one datagram. Failures are counted, and the first of
// every errorLogEvery is logged.
func (s *UDPSender) Send(data []byte) error {
	if len(data) > MaxDatagram {
		return fmt.Errorf("packet of %d bytes exceeds the %d byte datagram limit", len(data), MaxDatagram)
	}

	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return ErrSenderClosed
	}
	n, err := conn.Write(data)
	s.mu.Unlock()

	if err != nil {
		if c := s.errors.Add(1); c%errorLogEvery == 1 {
			senderLog.Warnf("Send to %s failed (%d failures so far): %v", s.target, c, err)
		}
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	s.packets.Add(1)
	s.bytes.Add(uint64(n))
	return nil
}

// Target returns the resolved destination address.
func (s *UDPSender) Target() *net.UDPAddr { return s.target }

// Sent returns the number of datagrams and bytes written so far.
func (s *UDPSender) Sent() (packets, bytes uint64) {
	return s.packets.Load(), s.bytes.Load()
}

// Close closes the connection. Later calls return nil.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	packets, bytes := s.Sent()
	senderLog.Infof("Closing connection to %s after %d packets (%d bytes)", s.target, packets, bytes)
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}
