package replay

import (
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
)

// pdmlPacket is the subset of a Wireshark PDML export this reader
// cares about: each <packet> holds a <proto name="usb"> (or "usbhid")
// with a "usb.capdata" field carrying the captured report bytes as a
// colon-separated hex string.
type pdmlPacket struct {
	Protos []pdmlProto `xml:"proto"`
}

type pdmlProto struct {
	Name   string      `xml:"name,attr"`
	Fields []pdmlField `xml:"field"`
}

type pdmlField struct {
	Name  string      `xml:"name,attr"`
	Show  string      `xml:"show,attr"`
	Value string      `xml:"value,attr"`
	Sub   []pdmlField `xml:"field"`
}

type pdmlFile struct {
	XMLName xml.Name     `xml:"pdml"`
	Packets []pdmlPacket `xml:"packet"`
}

// ReadPDML parses a Wireshark PDML export and returns the sequence of
// raw USB-layer payload bytes captured in it, in capture order.
func ReadPDML(path string) ([][]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("replay: read pdml %s: %w", path, err)
	}
	var doc pdmlFile
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("replay: parse pdml: %w", err)
	}

	var out [][]byte
	for _, pkt := range doc.Packets {
		data, ok := findUSBData(pkt)
		if !ok {
			continue
		}
		out = append(out, data)
	}
	return out, nil
}

func findUSBData(pkt pdmlPacket) ([]byte, bool) {
	for _, proto := range pkt.Protos {
		if proto.Name != "usb" && proto.Name != "usbhid" {
			continue
		}
		if data, ok := findField(proto.Fields, "usb.capdata"); ok {
			return data, true
		}
	}
	return nil, false
}

func findField(fields []pdmlField, name string) ([]byte, bool) {
	for _, f := range fields {
		if f.Name == name {
			hexStr := strings.ReplaceAll(f.Value, ":", "")
			data, err := hex.DecodeString(hexStr)
			if err == nil {
				return data, true
			}
		}
		if data, ok := findField(f.Sub, name); ok {
			return data, ok
		}
	}
	return nil, false
}
