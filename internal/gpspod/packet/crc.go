package packet

import "github.com/snksoft/crc"

// crcParams is the CRC-16 parameter set used on the wire: CRC-16/ARC
// (poly 0x8005, init 0x0000, reflected in/out, no final xor), applied
// uniformly to both packet and message CRCs. It has not been checked
// against recorded device traffic.
var crcParams = crc.CRC16

// crc16 computes the CRC-16 of data using the device's parameter set.
func crc16(data []byte) uint16 {
	return uint16(crc.CalculateCRC(crcParams, data))
}
