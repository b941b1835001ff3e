package sharpmem

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/bits"

	"github.com/flavioheleno/sharpmem/framebuf"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"tinygo.org/x/drivers"
)

var (
	// ErrTransportUnavailable is returned by NewSPI when the SPI port or the
	// CS pin cannot be set up.
	ErrTransportUnavailable = errors.New("sharpmem: transport unavailable")
	// ErrAllocationFailed is returned by NewSPI when no frame buffer can be
	// reserved for the requested geometry.
	ErrAllocationFailed = errors.New("sharpmem: frame buffer allocation failed")
	// ErrTransferFailed is returned when a write to the panel did not
	// complete. VCOM is left untouched in that case.
	ErrTransferFailed = errors.New("sharpmem: transfer failed")
	// ErrHalted is returned by operations on a halted device.
	ErrHalted = errors.New("sharpmem: halted")
	// ErrInvalidRotation is returned by SetRotation for values above
	// drivers.Rotation270.
	ErrInvalidRotation = errors.New("sharpmem: invalid rotation")
)

// Opts is the configuration for the memory LCD.
type Opts struct {
	// Physical panel dimensions in pixels
	W int // Width (default: 144)
	H int // Height (default: 168, must be ≤511)

	// SPI clock (default: 2MHz)
	Freq physic.Frequency

	// SoftwareLSB connects the port MSB first and reverses bits in software,
	// for SPI controllers that cannot shift LSB first.
	SoftwareLSB bool

	// Optional display enable pin (DISP), nil if tied high
	DISP gpio.PinOut
}

// Dev is the device handle for a memory LCD.
type Dev struct {
	// Communication
	c       conn.Conn
	cs      gpio.PinOut // Active HIGH
	disp    gpio.PinOut
	softLSB bool

	// Pixel buffer in physical orientation
	buf *framebuf.Buffer

	// Scratch for one line frame, and its bit reversed copy
	line []byte
	rev  []byte

	// State
	rot    drivers.Rotation
	vcom   vcom
	halted bool
}

// NewSPI creates a new memory LCD device connected via SPI.
//
// The SPI port is configured for Mode0, LSB first, 8-bit transfers, without
// the controller's chip select: cs is driven by the driver and, unlike most
// SPI peripherals, is active HIGH.
//
// opts can be nil to use defaults (LS013B7DH05, 144x168).
func NewSPI(p spi.Port, cs gpio.PinOut, opts *Opts) (*Dev, error) {
	// Apply defaults and validate options
	if opts == nil {
		o := LS013B7DH05
		opts = &o
	}
	if opts.W <= 0 {
		return nil, fmt.Errorf("%w: width must be positive", ErrAllocationFailed)
	}
	if opts.H <= 0 || opts.H > maxLines {
		return nil, fmt.Errorf("%w: height must be between 1 and %d", ErrAllocationFailed, maxLines)
	}
	if cs == nil {
		return nil, fmt.Errorf("%w: a CS pin is required", ErrTransportUnavailable)
	}
	freq := opts.Freq
	if freq == 0 {
		freq = 2 * physic.MegaHertz
	}

	mode := spi.Mode0 | spi.NoCS
	if !opts.SoftwareLSB {
		mode |= spi.LSBFirst
	}
	c, err := p.Connect(freq, mode, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}

	// Idle is LOW on this display
	if err := cs.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("%w: failed to pull CS low: %w", ErrTransportUnavailable, err)
	}
	if opts.DISP != nil {
		if err := opts.DISP.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("%w: failed to pull DISP high: %w", ErrTransportUnavailable, err)
		}
	}

	buf := framebuf.New(image.Rect(0, 0, opts.W, opts.H))
	buf.Fill(image1bit.On)

	d := &Dev{
		c:       c,
		cs:      cs,
		disp:    opts.DISP,
		softLSB: opts.SoftwareLSB,
		buf:     buf,
		line:    make([]byte, lineLen(buf.Stride)),
		rot:     drivers.Rotation0,
		vcom:    true,
	}
	if d.softLSB {
		d.rev = make([]byte, len(d.line))
	}
	return d, nil
}

// SetPixel sets the pixel at logical (x, y) on (white) or off (black).
// Coordinates outside Bounds() are ignored.
func (d *Dev) SetPixel(x, y int, on bool) {
	px, py, ok := d.physical(x, y)
	if !ok {
		return
	}
	d.buf.SetBit(px, py, image1bit.Bit(on))
}

// Pixel returns the pixel at logical (x, y). Coordinates outside Bounds()
// read as off.
func (d *Dev) Pixel(x, y int) bool {
	px, py, ok := d.physical(x, y)
	if !ok {
		return false
	}
	return bool(d.buf.BitAt(px, py))
}

// ClearBuffer sets every pixel of the buffer to white. The panel is not
// updated.
func (d *Dev) ClearBuffer() {
	d.buf.Fill(image1bit.On)
}

// Clear clears the buffer and sends the all clear command, which is quicker
// than refreshing a white buffer.
func (d *Dev) Clear() error {
	if d.halted {
		return ErrHalted
	}
	d.ClearBuffer()
	return d.transact(func() error {
		return d.tx(clearFrame(d.vcom))
	})
}

// Refresh sends the whole buffer to the panel, one line per transfer.
func (d *Dev) Refresh() error {
	return d.transact(func() error {
		for y := 0; y < d.buf.Rect.Dy(); y++ {
			encodeLine(d.line, y, d.buf.Row(y), d.vcom)
			if err := d.tx(d.line); err != nil {
				return err
			}
		}
		return d.tx(trailer)
	})
}

// Hold sends a frame that only alternates VCOM. The panel keeps its image.
//
// The panel needs VCOM to alternate at least once per second; a host that
// does not Refresh that often should call Hold in between.
func (d *Dev) Hold() error {
	return d.transact(func() error {
		return d.tx(holdFrame(d.vcom))
	})
}

// VCOM returns the polarity that the next transaction will carry.
func (d *Dev) VCOM() bool {
	return bool(d.vcom)
}

// transact runs fn with CS asserted. CS is released even when fn fails. VCOM
// flips once, and only when the whole transaction succeeded.
func (d *Dev) transact(fn func() error) (err error) {
	if d.halted {
		return ErrHalted
	}
	if err := d.cs.Out(gpio.High); err != nil {
		return fmt.Errorf("%w: failed to assert CS: %w", ErrTransferFailed, err)
	}
	defer func() {
		if e := d.cs.Out(gpio.Low); e != nil && err == nil {
			err = fmt.Errorf("%w: failed to release CS: %w", ErrTransferFailed, e)
		}
		if err == nil {
			d.vcom.toggle()
		}
	}()
	return fn()
}

// tx writes w as one transfer.
func (d *Dev) tx(w []byte) error {
	if d.softLSB {
		out := d.rev[:len(w)]
		for i, b := range w {
			out[i] = bits.Reverse8(b)
		}
		w = out
	}
	if err := d.c.Tx(w, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds returns the logical bounds of the display for the current rotation.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.Width(), d.Height())
}

// Write replaces the buffer with raw pixel data in physical orientation and
// refreshes the panel. The data must be exactly Stride * H bytes, in the
// framebuf layout.
//
// Once the size is accepted the buffer holds pixels even if the refresh
// fails; Write then reports len(pixels) along with the error.
func (d *Dev) Write(pixels []byte) (int, error) {
	if d.halted {
		return 0, ErrHalted
	}
	if len(pixels) != len(d.buf.Pix) {
		return 0, errors.New("sharpmem: invalid buffer size")
	}
	copy(d.buf.Pix, pixels)
	if err := d.Refresh(); err != nil {
		return len(pixels), err
	}
	return len(pixels), nil
}

// Draw draws an image onto the display and refreshes it.
// The dst rectangle is in logical coordinates. The src image is positioned at
// src point sp within the destination. Colors go through image1bit.BitModel.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if d.halted {
		return ErrHalted
	}

	// Clip to display bounds
	r := dst.Intersect(d.Bounds())
	if r.Empty() {
		return nil
	}
	sp = sp.Add(r.Min.Sub(dst.Min))

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := src.At(sp.X+x-r.Min.X, sp.Y+y-r.Min.Y)
			d.SetPixel(x, y, bool(image1bit.BitModel.Convert(c).(image1bit.Bit)))
		}
	}
	return d.Refresh()
}

// Halt stops the device. The DISP pin, if any, is pulled low to blank the
// panel. After calling Halt every operation that talks to the panel fails
// with ErrHalted.
func (d *Dev) Halt() error {
	d.halted = true
	if d.disp != nil {
		return d.disp.Out(gpio.Low)
	}
	return nil
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("sharpmem.Dev{%dx%d}", d.buf.Rect.Dx(), d.buf.Rect.Dy())
}

var _ display.Drawer = &Dev{}
var _ conn.Resource = &Dev{}
