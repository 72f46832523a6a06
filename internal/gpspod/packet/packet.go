// Package packet implements the USB HID wire framing for the device: it
// assembles command payloads into one or more fixed-size transfer
// packets with headers, sequence numbers, packet indices, and a trailing
// CRC-16, and disassembles incoming packets back into payloads.
package packet

import (
	"encoding/binary"
	"fmt"
)

// Type tags the purpose of a packet.
type Type byte

const (
	TypeData Type = 0x01
	TypeAck  Type = 0x02
)

// ReportSize is the default HID report payload size (64 bytes output,
// 64 bytes input) for this device family. The transport may use a
// different size; Codec is parameterised on it.
const ReportSize = 64

// headerSize is the fixed packet header: report ID, type, seq, index,
// total, length.
const headerSize = 6

// crcSize is the trailing packet CRC-16.
const crcSize = 2

// Packet is a single wire-level transfer unit.
type Packet struct {
	ReportID byte
	Type     Type
	Seq      byte
	Index    byte
	Total    byte
	Payload  []byte
}

// MaxPayload returns the largest payload a packet can carry for the
// given report size.
func MaxPayload(reportSize int) int {
	return reportSize - headerSize - crcSize
}

// Marshal serialises p to a HID report of at most reportSize bytes:
// header, payload, and a trailing CRC-16 computed over every byte except
// the CRC itself. The report is not padded out to reportSize.
func (p *Packet) Marshal(reportSize int) ([]byte, error) {
	maxPayload := MaxPayload(reportSize)
	if len(p.Payload) > maxPayload {
		return nil, fmt.Errorf("packet: payload of %d bytes exceeds max %d for report size %d", len(p.Payload), maxPayload, reportSize)
	}

	buf := make([]byte, reportSize)
	buf[0] = p.ReportID
	buf[1] = byte(p.Type)
	buf[2] = p.Seq
	buf[3] = p.Index
	buf[4] = p.Total
	buf[5] = byte(len(p.Payload))
	copy(buf[headerSize:], p.Payload)

	end := headerSize + len(p.Payload)
	sum := crc16(buf[:end])
	binary.LittleEndian.PutUint16(buf[end:end+crcSize], sum)

	return buf[:end+crcSize], nil
}

// Unmarshal parses a raw HID report into a Packet, verifying its CRC-16.
func Unmarshal(raw []byte) (*Packet, error) {
	if len(raw) < headerSize+crcSize {
		return nil, fmt.Errorf("packet: report too short: %d bytes", len(raw))
	}

	length := int(raw[5])
	end := headerSize + length
	if end+crcSize > len(raw) {
		return nil, fmt.Errorf("packet: declared length %d overruns report of %d bytes", length, len(raw))
	}

	got := binary.LittleEndian.Uint16(raw[end : end+crcSize])
	want := crc16(raw[:end])
	if got != want {
		return nil, &CRCError{Kind: "packet", Got: got, Expected: want}
	}

	payload := make([]byte, length)
	copy(payload, raw[headerSize:end])

	return &Packet{
		ReportID: raw[0],
		Type:     Type(raw[1]),
		Seq:      raw[2],
		Index:    raw[3],
		Total:    raw[4],
		Payload:  payload,
	}, nil
}
