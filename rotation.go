package sharpmem

import (
	"tinygo.org/x/drivers"
)

// SetRotation sets the logical orientation used by SetPixel, Pixel and Draw.
// It only changes addressing; the buffer content is left as is.
func (d *Dev) SetRotation(r drivers.Rotation) error {
	if r > drivers.Rotation270 {
		return ErrInvalidRotation
	}
	d.rot = r
	return nil
}

// Rotation returns the current logical orientation.
func (d *Dev) Rotation() drivers.Rotation {
	return d.rot
}

// Width returns the logical width for the current rotation.
func (d *Dev) Width() int {
	if d.swapped() {
		return d.buf.Rect.Dy()
	}
	return d.buf.Rect.Dx()
}

// Height returns the logical height for the current rotation.
func (d *Dev) Height() int {
	if d.swapped() {
		return d.buf.Rect.Dx()
	}
	return d.buf.Rect.Dy()
}

func (d *Dev) swapped() bool {
	return d.rot == drivers.Rotation90 || d.rot == drivers.Rotation270
}

// physical maps a logical coordinate to the physical buffer. ok is false when
// (x, y) lies outside the logical bounds.
func (d *Dev) physical(x, y int) (px, py int, ok bool) {
	if x < 0 || y < 0 || x >= d.Width() || y >= d.Height() {
		return 0, 0, false
	}
	w, h := d.buf.Rect.Dx(), d.buf.Rect.Dy()
	switch d.rot {
	case drivers.Rotation90:
		x, y = y, x
		x = w - 1 - x
	case drivers.Rotation180:
		x = w - 1 - x
		y = h - 1 - y
	case drivers.Rotation270:
		x, y = y, x
		y = h - 1 - y
	}
	return x, y, true
}
