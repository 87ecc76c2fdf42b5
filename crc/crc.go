package crc

import "fmt"

// Mode S parity polynomial, x^24 term implied.
const ModeSPoly = 0xFFF409

const mask = 0xFFFFFF

type CRC struct {
	Name string
	Init uint32
	Poly uint32

	tbl Table
}

func NewCRC(name string, init, poly uint32) (crc CRC) {
	crc.Name = name
	crc.Init = init & mask
	crc.Poly = poly & mask
	crc.tbl = NewTable(crc.Poly)

	return
}

func (crc CRC) String() string {
	return fmt.Sprintf("{Name:%s Init:0x%06X Poly:0x%06X}", crc.Name, crc.Init, crc.Poly)
}

// Checksum returns the 24-bit remainder of data. For a Mode S message the
// parity field is Checksum(msg[:len(msg)-3]).
func (crc CRC) Checksum(data []byte) uint32 {
	return Checksum(crc.Init, data, crc.tbl)
}

type Table [256]uint32

func NewTable(poly uint32) (table Table) {
	for tIdx := range table {
		crc := uint32(tIdx) << 16
		for bIdx := 0; bIdx < 8; bIdx++ {
			if crc&0x800000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc = crc << 1
			}
		}
		table[tIdx] = crc & mask
	}
	return table
}

func Checksum(init uint32, data []byte, table Table) (crc uint32) {
	crc = init
	for _, v := range data {
		crc = (crc<<8 ^ table[byte(crc>>16)^v]) & mask
	}
	return
}
