package protocol

// crc16Poly is the CCITT polynomial x^16 + x^12 + x^5 + 1
const crc16Poly = 0x1021

// CRC16XModem computes CRC-16/XModem (poly 0x1021, init 0x0000, no
// reflection, no final xor), one bit at a time MSB-first.
func CRC16XModem(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crc16Poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
