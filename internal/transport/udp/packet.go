// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"seedscope/internal/analysis"
)

/*
Packet Structure (BigEndian)

| Field      | Data Type | Size (Bytes) | Description                 |
|------------|-----------|--------------|-----------------------------|
| Sequence   | uint32    | 4            | Frame sequence number       |
| Timestamp  | int64     | 8            | Nanoseconds since epoch     |
| Kind       | uint8     | 1            | 1 = spectrum, 2 = level     |
| Count      | uint16    | 2            | Number of levels (N)        |
| Levels     | []float32 | N * 4        | Normalized levels in [0, 1] |
| PeakL      | float32   | 4            | Left peak in dB             |
| PeakR      | float32   | 4            | Right peak in dB            |
*/

const (
	KindUnknown  uint8 = 0
	KindSpectrum uint8 = 1
	KindLevel    uint8 = 2

	headerSize = 4 + 8 + 1 + 2
	// MaxLevels is the largest level count a packet can carry.
	MaxLevels = math.MaxUint16
)

// ErrShortPacket is returned when decoding truncated input.
var ErrShortPacket = errors.New("short packet")

// KindCode maps a frame kind to its wire code.
func KindCode(kind string) uint8 {
	switch kind {
	case analysis.KindSpectrum:
		return KindSpectrum
	case analysis.KindLevel:
		return KindLevel
	}
	return KindUnknown
}

// KindName maps a wire code back to a frame kind.
func KindName(code uint8) string {
	switch code {
	case KindSpectrum:
		return analysis.KindSpectrum
	case KindLevel:
		return analysis.KindLevel
	}
	return ""
}

// PacketSize returns the encoded size of a frame with n levels.
func PacketSize(n int) int {
	return headerSize + 4*n + 8
}

// AppendPacket encodes f onto buf and returns the extended buffer.
func AppendPacket(buf []byte, f *analysis.Frame) ([]byte, error) {
	if len(f.Levels) > MaxLevels {
		return buf, fmt.Errorf("frame has %d levels, packet limit is %d", len(f.Levels), MaxLevels)
	}

	buf = binary.BigEndian.AppendUint32(buf, f.Seq)
	buf = binary.BigEndian.AppendUint64(buf, uint64(f.Time.UnixNano()))
	buf = append(buf, KindCode(f.Kind))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(f.Levels)))
	for _, v := range f.Levels {
		buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(v)))
	}
	buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(f.PeakL)))
	buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(f.PeakR)))
	return buf, nil
}

// Packet is a decoded datagram.
type Packet struct {
	Seq       uint32
	Timestamp int64
	Kind      uint8
	Levels    []float32
	PeakL     float32
	PeakR     float32
}

// DecodePacket parses one datagram.
func DecodePacket(data []byte) (Packet, error) {
	var p Packet
	r := bytes.NewReader(data)

	var count uint16
	for _, v := range []any{&p.Seq, &p.Timestamp, &p.Kind, &count} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return Packet{}, ErrShortPacket
		}
	}
	if r.Len() != 4*int(count)+8 {
		return Packet{}, fmt.Errorf("%w: %d payload bytes for %d levels", ErrShortPacket, r.Len(), count)
	}

	p.Levels = make([]float32, count)
	if err := binary.Read(r, binary.BigEndian, p.Levels); err != nil {
		return Packet{}, ErrShortPacket
	}
	if err := binary.Read(r, binary.BigEndian, &p.PeakL); err != nil {
		return Packet{}, ErrShortPacket
	}
	if err := binary.Read(r, binary.BigEndian, &p.PeakR); err != nil {
		return Packet{}, ErrShortPacket
	}
	return p, nil
}
