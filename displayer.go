package sharpmem

import (
	"image/color"

	"periph.io/x/devices/v3/ssd1306/image1bit"
	"tinygo.org/x/drivers"
)

// Displayer adapts a Dev to the TinyGo drivers.Displayer interface, so
// tinyfont and the other TinyGo drawing packages can render to the panel.
//
// Colors are reduced to one bit with image1bit.BitModel: light colors turn
// pixels on (white), dark colors turn them off.
type Displayer struct {
	d *Dev
}

// Displayer returns the drivers.Displayer view of d.
func (d *Dev) Displayer() *Displayer {
	return &Displayer{d: d}
}

// Size returns the logical size of the display.
func (p *Displayer) Size() (x, y int16) {
	return int16(p.d.Width()), int16(p.d.Height())
}

// SetPixel sets the pixel at logical (x, y). Out of range pixels are ignored.
func (p *Displayer) SetPixel(x, y int16, c color.RGBA) {
	p.d.SetPixel(int(x), int(y), toBit(c))
}

// Display refreshes the panel.
func (p *Displayer) Display() error {
	return p.d.Refresh()
}

// SetRotation sets the logical orientation.
func (p *Displayer) SetRotation(r drivers.Rotation) error {
	return p.d.SetRotation(r)
}

// FillRectangle fills a logical rectangle with c. It only touches the buffer.
func (p *Displayer) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	on := toBit(c)
	for py := int(y); py < int(y)+int(height); py++ {
		for px := int(x); px < int(x)+int(width); px++ {
			p.d.SetPixel(px, py, on)
		}
	}
	return nil
}

func toBit(c color.RGBA) bool {
	return bool(image1bit.BitModel.Convert(c).(image1bit.Bit))
}

var _ drivers.Displayer = &Displayer{}
