// Package framebuf provides the 1-bit image format used by Sharp memory LCDs.
//
// Pixels are packed 8 per byte, row-major, least significant bit first: bit 0
// of a byte is the leftmost pixel of its 8-pixel group. Each row is padded to a
// whole number of bytes, so a 230 pixel wide panel uses 29 bytes per row. This
// is the byte layout the panel consumes on the wire, which lets the driver send
// rows verbatim.
//
// Memory layout example for a 10-pixel row:
//
//	Pixels: 0 1 2 3 4 5 6 7 | 8 9 (pad...)
//	Values: 1 0 1 1 0 0 0 0 | 0 1
//	Bytes:  0x0D            | 0x02
//
// A set bit is image1bit.On, a white (reflective) pixel. A cleared bit is a
// black pixel.
//
// Example usage:
//
//	buf := framebuf.New(image.Rect(0, 0, 144, 168))
//	buf.Fill(image1bit.On)
//	buf.SetBit(10, 20, image1bit.Off)
//
//	// Use with standard Go image operations
//	draw.Draw(buf, buf.Bounds(), image.NewUniform(image1bit.Off), image.Point{}, draw.Src)
package framebuf
