// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

/*
UDP Packet Structure (BigEndian)

+------------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description              |
|-------------------|----------------|--------------|--------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing |
| Timestamp         | int64          | 8            | Nanoseconds since epoch  |
| Cycle             | uint64         | 8            | Loop cycle of the frame  |
| Flags             | uint8          | 1            | Bit 0: note detected     |
| Frequency         | float32        | 4            | Peak bin centre, Hz      |
| Note Frequency    | float32        | 4            | Key reference, Hz        |
| Label Length      | uint8          | 1            | L                        |
| Label             | []byte         | L            | Key label, e.g. "A4"     |
| Bin Width         | float32        | 4            | Hz per bin               |
| First Bin         | uint16         | 2            | Index of Magnitudes[0]   |
| Magnitude Count   | uint16         | 2            | Number of floats (N)     |
| Magnitudes        | []float32      | N * 4        | Normalized, 0..1         |
+------------------------------------------------------------------------------+
*/

const flagDetected = 1 << 0

// Wire sizes of the fixed parts. maxMagnitudes is the most bins that fit in
// one datagram next to the longest label.
const (
	headerSize    = 30
	trailerSize   = 8
	maxLabelLen   = 255
	maxMagnitudes = (MaxDatagram - headerSize - maxLabelLen - trailerSize) / 4
)

// Packet is the decoded form of one datagram.
type Packet struct {
	Sequence      uint32
	Timestamp     int64
	Cycle         uint64
	Detected      bool
	Frequency     float32
	NoteFrequency float32
	Label         string
	BinWidth      float32
	FirstBin      uint16
	Magnitudes    []float32
}

// header is the fixed-size part preceding the label.
type header struct {
	Sequence      uint32
	Timestamp     int64
	Cycle         uint64
	Flags         uint8
	Frequency     float32
	NoteFrequency float32
	LabelLen      uint8
}

// trailer is the fixed-size part between the label and the magnitudes.
type trailer struct {
	BinWidth float32
	FirstBin uint16
	Count    uint16
}

// MarshalTo appends the wire form of p to buf, which is reset first.
func (p *Packet) MarshalTo(buf *bytes.Buffer) error {
	if len(p.Label) > maxLabelLen {
		return fmt.Errorf("label too long: %d bytes", len(p.Label))
	}
	if len(p.Magnitudes) > maxMagnitudes {
		return fmt.Errorf("too many magnitudes: %d", len(p.Magnitudes))
	}

	h := header{
		Sequence:      p.Sequence,
		Timestamp:     p.Timestamp,
		Cycle:         p.Cycle,
		Frequency:     p.Frequency,
		NoteFrequency: p.NoteFrequency,
		LabelLen:      uint8(len(p.Label)),
	}
	if p.Detected {
		h.Flags |= flagDetected
	}

	buf.Reset()
	err := binary.Write(buf, binary.BigEndian, &h)
	if err == nil {
		_, err = buf.WriteString(p.Label)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, &trailer{
			BinWidth: p.BinWidth,
			FirstBin: p.FirstBin,
			Count:    uint16(len(p.Magnitudes)),
		})
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, p.Magnitudes)
	}
	return err
}

// Unmarshal decodes a datagram produced by MarshalTo.
func Unmarshal(data []byte) (Packet, error) {
	r := bytes.NewReader(data)

	var h header
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return Packet{}, fmt.Errorf("short header: %w", err)
	}
	label := make([]byte, h.LabelLen)
	if _, err := io.ReadFull(r, label); err != nil {
		return Packet{}, fmt.Errorf("short label: %w", err)
	}
	var t trailer
	if err := binary.Read(r, binary.BigEndian, &t); err != nil {
		return Packet{}, fmt.Errorf("short trailer: %w", err)
	}
	mags := make([]float32, t.Count)
	if err := binary.Read(r, binary.BigEndian, mags); err != nil {
		return Packet{}, fmt.Errorf("short magnitudes: %w", err)
	}
	if r.Len() != 0 {
		return Packet{}, errors.New("trailing bytes after magnitudes")
	}

	return Packet{
		Sequence:      h.Sequence,
		Timestamp:     h.Timestamp,
		Cycle:         h.Cycle,
		Detected:      h.Flags&flagDetected != 0,
		Frequency:     h.Frequency,
		NoteFrequency: h.NoteFrequency,
		Label:         string(label),
		BinWidth:      t.BinWidth,
		FirstBin:      t.FirstBin,
		Magnitudes:    mags,
	}, nil
}
