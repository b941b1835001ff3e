package framebuf

import (
	"image"
	"image/color"

	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Buffer is a 1-bit image where pixels are packed horizontally, LSB first.
type Buffer struct {
	Pix    []byte          // Pixel data (8 pixels per byte)
	Stride int             // Bytes per row
	Rect   image.Rectangle // Image bounds
}

// New creates a new Buffer with the specified bounds. All pixels start Off.
func New(r image.Rectangle) *Buffer {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return &Buffer{Rect: r}
	}
	stride := (w + 7) / 8
	return &Buffer{
		Pix:    make([]byte, stride*h),
		Stride: stride,
		Rect:   r,
	}
}

// ColorModel returns the color model of the image.
func (b *Buffer) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds returns the image bounds.
func (b *Buffer) Bounds() image.Rectangle {
	return b.Rect
}

// At returns the color of the pixel at (x, y).
// It implements the image.Image interface.
func (b *Buffer) At(x, y int) color.Color {
	return b.BitAt(x, y)
}

// BitAt returns the Bit of the pixel at (x, y).
func (b *Buffer) BitAt(x, y int) image1bit.Bit {
	if !(image.Point{X: x, Y: y}.In(b.Rect)) {
		return image1bit.Off
	}
	offset, mask := b.pixOffset(x, y)
	return b.Pix[offset]&mask != 0
}

// Set sets the color of the pixel at (x, y).
func (b *Buffer) Set(x, y int, c color.Color) {
	b.SetBit(x, y, image1bit.BitModel.Convert(c).(image1bit.Bit))
}

// SetBit sets the Bit of the pixel at (x, y).
// This is faster than Set() as it doesn't require color conversion.
func (b *Buffer) SetBit(x, y int, v image1bit.Bit) {
	if !(image.Point{X: x, Y: y}.In(b.Rect)) {
		return
	}
	offset, mask := b.pixOffset(x, y)
	if v {
		b.Pix[offset] |= mask
	} else {
		b.Pix[offset] &^= mask
	}
}

// Fill sets every bit of the buffer, padding included, to v.
func (b *Buffer) Fill(v image1bit.Bit) {
	fill := byte(0x00)
	if v {
		fill = 0xFF
	}
	for i := range b.Pix {
		b.Pix[i] = fill
	}
}

// Row returns the raw bytes of row y, relative to Rect.Min.Y. The returned
// slice aliases Pix.
func (b *Buffer) Row(y int) []byte {
	start := y * b.Stride
	return b.Pix[start : start+b.Stride]
}

// pixOffset returns the byte offset and bit mask for the pixel at (x, y).
func (b *Buffer) pixOffset(x, y int) (offset int, mask byte) {
	dx := x - b.Rect.Min.X
	offset = (y-b.Rect.Min.Y)*b.Stride + dx/8
	mask = 1 << uint(dx&7)
	return
}
