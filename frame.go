package sharpmem

// Mode bits of the first byte of a transaction. The bus shifts bytes LSB
// first, so bit 0 is the first bit the panel sees.
const (
	bitWriteCmd byte = 0x01 // M0: data update
	bitVCOM     byte = 0x02 // M1: COM inversion polarity
	bitClear    byte = 0x04 // M2: all clear
)

// maxLines is the largest row count addressable with the 9-bit 1-based line
// address.
const maxLines = 511

// trailer is sent once after the last line of a refresh.
var trailer = []byte{0x00, 0x00}

// lineLen returns the size of one line frame on the wire: two address bytes,
// the row data and one pad byte.
func lineLen(stride int) int {
	return 2 + stride + 1
}

// encodeLine builds the frame for physical row y into dst, which must be
// lineLen(len(row)) bytes long.
//
// The 1-based line number n is sent LSB first across the address bytes: bit 0
// of n goes into bit 7 of the first byte and bits 1..8 fill the second byte.
func encodeLine(dst []byte, y int, row []byte, v vcom) {
	n := y + 1
	dst[0] = byte(n&1)<<7 | v.bit() | bitWriteCmd
	dst[1] = byte(n >> 1)
	copy(dst[2:], row)
	dst[len(dst)-1] = 0x00
}

// clearFrame is the all clear command.
func clearFrame(v vcom) []byte {
	return []byte{v.bit() | bitClear, 0x00}
}

// holdFrame only carries VCOM; the panel keeps its contents.
func holdFrame(v vcom) []byte {
	return []byte{v.bit(), 0x00}
}
