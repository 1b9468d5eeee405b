// Package checksum implements the small set of integrity checks the
// per-family transports use: CRC-CCITT (Reefnet, Sensus Pro/Ultra),
// additive 8/16-bit sums (Mares Nemo, Reefnet Sensus), XOR (Suunto), and
// BCD digit packing used by a few vendor date/time fields. The CRC table
// below follows the same table-driven layout as the Bitmain CRC16
// table in usb_device.go (CalculateCRC16): a precomputed 256-entry
// table walked byte by byte, rather than a bit-serial loop.
package checksum

// crcCCITTTable is the standard CRC-CCITT (XModem, poly 0x1021) table,
// used by Reefnet Sensus Pro and Sensus Ultra page/handshake trailers.
var crcCCITTTable = buildCRCCCITTTable()

func buildCRCCCITTTable() [256]uint16 {
	var table [256]uint16
	const poly = 0x1021
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for b := 0; b < 8; b++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// CRCCCITT computes the CRC-CCITT checksum of data, starting from seed
// (callers pass 0 for a fresh computation).
func CRCCCITT(data []byte, seed uint16) uint16 {
	crc := seed
	for _, b := range data {
		crc = (crc << 8) ^ crcCCITTTable[(byte(crc>>8))^b]
	}
	return crc
}

// XOR8 returns the running XOR of data starting from seed; Suunto
// Vyper/Vyper2/D9 frames append this as their trailing checksum byte.
func XOR8(data []byte, seed byte) byte {
	c := seed
	for _, b := range data {
		c ^= b
	}
	return c
}

// AddUint8 returns the mod-256 sum of data starting from seed; Mares
// Nemo frames use two of these (one per redundant packet half).
func AddUint8(data []byte, seed byte) byte {
	c := seed
	for _, b := range data {
		c += b
	}
	return c
}

// AddUint16 returns the mod-65536 sum of data interpreted as a byte
// stream, starting from seed; Reefnet Sensus classic "DATA...END"
// trailers use this width.
func AddUint16(data []byte, seed uint16) uint16 {
	c := seed
	for _, b := range data {
		c += uint16(b)
	}
	return c
}

// BCDToBinary converts one binary-coded-decimal byte (high nibble tens,
// low nibble units) to its binary value. Several vendor clock fields
// encode the time this way.
func BCDToBinary(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}

// BinaryToBCD converts a 0-99 binary value to its BCD byte encoding.
func BinaryToBCD(v int) byte {
	return byte((v/10)<<4 | (v % 10))
}
