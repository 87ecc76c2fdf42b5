package modes

import "strconv"

func addrKey(addr uint32) string {
	return strconv.FormatUint(uint64(addr), 16)
}

func (p *Parser) valid(msg []byte) bool {
	return p.Checksum(msg[:len(msg)-3]) == Parity(msg)
}

// fixSingleBitErrors flips each bit of msg in turn looking for a message with
// valid parity. On success msg is repaired in place and the index of the
// flipped bit is returned, otherwise -1.
func (p *Parser) fixSingleBitErrors(msg []byte) int {
	var aux [LongMsgBytes]byte
	fix := aux[:len(msg)]

	for j := 0; j < len(msg)<<3; j++ {
		copy(fix, msg)
		fix[j>>3] ^= 0x80 >> uint(j&7)

		if p.valid(fix) {
			copy(msg, fix)
			return j
		}
	}

	return -1
}

// fixTwoBitErrors is fixSingleBitErrors for every pair of bits. The result
// packs both bit indexes: first | second<<8.
func (p *Parser) fixTwoBitErrors(msg []byte) int {
	var aux [LongMsgBytes]byte
	fix := aux[:len(msg)]
	bits := len(msg) << 3

	for j := 0; j < bits; j++ {
		for i := j + 1; i < bits; i++ {
			copy(fix, msg)
			fix[j>>3] ^= 0x80 >> uint(j&7)
			fix[i>>3] ^= 0x80 >> uint(i&7)

			if p.valid(fix) {
				copy(msg, fix)
				return j | i<<8
			}
		}
	}

	return -1
}
