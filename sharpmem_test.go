package sharpmem

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/flavioheleno/sharpmem/sharpmemtest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"tinygo.org/x/drivers"
)

func newTestDev(t *testing.T, opts Opts) (*Dev, *sharpmemtest.Panel) {
	t.Helper()
	p := sharpmemtest.NewPanel(opts.W, opts.H)
	d, err := NewSPI(p, p.CS(), &opts)
	if err != nil {
		t.Fatalf("NewSPI() error = %v", err)
	}
	return d, p
}

func TestOptsValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    *Opts
		wantErr error
	}{
		{"nil options (uses defaults)", nil, nil},
		{"LS013B7DH05", &LS013B7DH05, nil},
		{"LS018B7DH02 (9-bit lines)", &LS018B7DH02, nil},
		{"1x1 (minimum)", &Opts{W: 1, H: 1}, nil},
		{"511 lines (maximum)", &Opts{W: 8, H: 511}, nil},
		{"width zero", &Opts{W: 0, H: 64}, ErrAllocationFailed},
		{"negative width", &Opts{W: -8, H: 64}, ErrAllocationFailed},
		{"height zero", &Opts{W: 144, H: 0}, ErrAllocationFailed},
		{"512 lines", &Opts{W: 8, H: 512}, ErrAllocationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sharpmemtest.NewPanel(8, 8)
			d, err := NewSPI(p, p.CS(), tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewSPI() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil && d != nil {
				t.Error("NewSPI() returned a device along with an error")
			}
		})
	}
}

func TestNewSPIDefaults(t *testing.T) {
	p := sharpmemtest.NewPanel(144, 168)
	d, err := NewSPI(p, p.CS(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := d.Bounds(); got != image.Rect(0, 0, 144, 168) {
		t.Errorf("Bounds() = %v, want 144x168", got)
	}
	if got := p.Frequency(); got != 2*physic.MegaHertz {
		t.Errorf("Frequency = %s, want 2MHz", got)
	}
	want := spi.Mode0 | spi.NoCS | spi.LSBFirst
	if got := p.Mode(); got != want {
		t.Errorf("Mode = %v, want %v", got, want)
	}
	if p.CS().L != gpio.Low {
		t.Error("CS should idle LOW after NewSPI")
	}
	if !d.VCOM() {
		t.Error("VCOM should start set")
	}
	if d.Rotation() != drivers.Rotation0 {
		t.Errorf("Rotation() = %d, want 0", d.Rotation())
	}
	if len(d.buf.Pix) != 18*168 {
		t.Errorf("len(buffer) = %d, want %d", len(d.buf.Pix), 18*168)
	}
	for i, b := range d.buf.Pix {
		if b != 0xFF {
			t.Fatalf("buffer[%d] = 0x%02X, want 0xFF", i, b)
		}
	}
}

func TestNewSPISoftwareLSBMode(t *testing.T) {
	p := sharpmemtest.NewPanel(8, 8)
	if _, err := NewSPI(p, p.CS(), &Opts{W: 8, H: 8, SoftwareLSB: true, Freq: physic.MegaHertz}); err != nil {
		t.Fatal(err)
	}
	if p.Mode()&spi.LSBFirst != 0 {
		t.Error("SoftwareLSB should connect MSB first")
	}
	if got := p.Frequency(); got != physic.MegaHertz {
		t.Errorf("Frequency = %s, want 1MHz", got)
	}
}

func TestNewSPITransportUnavailable(t *testing.T) {
	p := sharpmemtest.NewPanel(8, 8)
	p.ConnectErr = errors.New("no such bus")

	d, err := NewSPI(p, p.CS(), &Opts{W: 8, H: 8})
	if !errors.Is(err, ErrTransportUnavailable) {
		t.Fatalf("NewSPI() error = %v, want ErrTransportUnavailable", err)
	}
	if d != nil {
		t.Error("NewSPI() should not return a device")
	}

	if _, err := NewSPI(p, nil, &Opts{W: 8, H: 8}); !errors.Is(err, ErrTransportUnavailable) {
		t.Errorf("NewSPI(nil cs) error = %v, want ErrTransportUnavailable", err)
	}
}

func TestDISPPin(t *testing.T) {
	p := sharpmemtest.NewPanel(8, 8)
	disp := &gpiotest.Pin{N: "DISP", L: gpio.Low}

	d, err := NewSPI(p, p.CS(), &Opts{W: 8, H: 8, DISP: disp})
	if err != nil {
		t.Fatal(err)
	}
	if disp.L != gpio.High {
		t.Error("DISP should be HIGH after NewSPI")
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if disp.L != gpio.Low {
		t.Error("DISP should be LOW after Halt")
	}
}

func TestDevHalt(t *testing.T) {
	d, p := newTestDev(t, Opts{W: 16, H: 4})
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}

	if err := d.Refresh(); !errors.Is(err, ErrHalted) {
		t.Errorf("Refresh() error = %v, want ErrHalted", err)
	}
	if err := d.Clear(); !errors.Is(err, ErrHalted) {
		t.Errorf("Clear() error = %v, want ErrHalted", err)
	}
	if err := d.Hold(); !errors.Is(err, ErrHalted) {
		t.Errorf("Hold() error = %v, want ErrHalted", err)
	}
	if _, err := d.Write(make([]byte, len(d.buf.Pix))); !errors.Is(err, ErrHalted) {
		t.Errorf("Write() error = %v, want ErrHalted", err)
	}
	if err := d.Draw(d.Bounds(), image.NewGray(d.Bounds()), image.Point{}); !errors.Is(err, ErrHalted) {
		t.Errorf("Draw() error = %v, want ErrHalted", err)
	}
	if n := len(p.Transactions()); n != 0 {
		t.Errorf("halted device sent %d transactions", n)
	}
}

func TestDevString(t *testing.T) {
	d, _ := newTestDev(t, LS027B7DH01)
	want := "sharpmem.Dev{400x240}"
	if got := d.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if d.ColorModel() != image1bit.BitModel {
		t.Error("ColorModel() did not return image1bit.BitModel")
	}
}

func TestClearBufferIdempotent(t *testing.T) {
	d, _ := newTestDev(t, Opts{W: 13, H: 5})
	d.SetPixel(3, 3, false)
	d.SetPixel(12, 0, false)

	d.ClearBuffer()
	once := append([]byte(nil), d.buf.Pix...)
	d.ClearBuffer()

	for i := range once {
		if once[i] != 0xFF || d.buf.Pix[i] != 0xFF {
			t.Errorf("buffer[%d] = 0x%02X / 0x%02X, want 0xFF", i, once[i], d.buf.Pix[i])
		}
	}
}

func TestClear(t *testing.T) {
	d, p := newTestDev(t, Opts{W: 16, H: 4})
	d.SetPixel(1, 1, false)
	if err := d.Refresh(); err != nil {
		t.Fatal(err)
	}
	if p.Image().BitAt(1, 1) {
		t.Fatal("panel should show the black pixel after Refresh")
	}

	if err := d.Clear(); err != nil {
		t.Fatal(err)
	}
	if !d.Pixel(1, 1) {
		t.Error("Clear should reset the buffer")
	}
	if !p.Image().BitAt(1, 1) {
		t.Error("Clear should blank the panel")
	}

	txns := p.Transactions()
	last := txns[len(txns)-1]
	if last.Kind != sharpmemtest.Clear {
		t.Errorf("last transaction = %v, want clear", last.Kind)
	}
	if want := []byte{0x04, 0x00}; string(last.Raw) != string(want) {
		t.Errorf("clear frame = % X, want % X", last.Raw, want)
	}
	if err := p.Err(); err != nil {
		t.Error(err)
	}
}

func TestRefreshMatchesPanel(t *testing.T) {
	for _, soft := range []bool{false, true} {
		name := "LSB first"
		if soft {
			name = "software LSB"
		}
		t.Run(name, func(t *testing.T) {
			d, p := newTestDev(t, Opts{W: 230, H: 303, SoftwareLSB: soft})
			for y := 0; y < d.Height(); y++ {
				for x := 0; x < d.Width(); x++ {
					d.SetPixel(x, y, (x*7+y*3)%5 != 0)
				}
			}
			if err := d.Refresh(); err != nil {
				t.Fatal(err)
			}
			if err := p.Err(); err != nil {
				t.Fatal(err)
			}

			img := p.Image()
			for i := range d.buf.Pix {
				if img.Pix[i] != d.buf.Pix[i] {
					t.Fatalf("panel byte %d = 0x%02X, want 0x%02X", i, img.Pix[i], d.buf.Pix[i])
				}
			}

			txns := p.Transactions()
			if len(txns) != 1 || txns[0].Kind != sharpmemtest.Write {
				t.Fatalf("transactions = %+v, want one write", txns)
			}
			if n := len(txns[0].Lines); n != 303 {
				t.Errorf("refresh wrote %d lines, want 303", n)
			}
			for i, line := range txns[0].Lines {
				if line != i {
					t.Fatalf("line %d sent as row %d, want ascending rows", i, line)
				}
			}
		})
	}
}

func TestVCOMToggle(t *testing.T) {
	d, p := newTestDev(t, Opts{W: 16, H: 4})

	ops := []struct {
		name string
		fn   func() error
	}{
		{"Clear", d.Clear},
		{"Refresh", d.Refresh},
		{"Hold", d.Hold},
		{"Refresh again", d.Refresh},
	}
	for _, op := range ops {
		before := d.VCOM()
		if err := op.fn(); err != nil {
			t.Fatalf("%s() error = %v", op.name, err)
		}
		if d.VCOM() == before {
			t.Errorf("%s() did not toggle VCOM", op.name)
		}
		if p.CS().L != gpio.Low {
			t.Errorf("%s() left CS asserted", op.name)
		}
	}

	// The first transaction carries the initial VCOM, and the panel checks
	// that it alternates afterwards.
	txns := p.Transactions()
	if !txns[0].VCOM {
		t.Error("first transaction should carry VCOM set")
	}
	if err := p.Err(); err != nil {
		t.Error(err)
	}
}

func TestTransferFailureKeepsVCOM(t *testing.T) {
	tests := []struct {
		name   string
		failTx int
		op     func(d *Dev) error
	}{
		{"clear", 1, (*Dev).Clear},
		{"hold", 1, (*Dev).Hold},
		{"refresh first line", 1, (*Dev).Refresh},
		{"refresh middle line", 3, (*Dev).Refresh},
		{"refresh trailer", 5, (*Dev).Refresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, p := newTestDev(t, Opts{W: 16, H: 4})
			p.FailTx = tt.failTx

			before := d.VCOM()
			err := tt.op(d)
			if !errors.Is(err, ErrTransferFailed) {
				t.Fatalf("error = %v, want ErrTransferFailed", err)
			}
			if !errors.Is(err, sharpmemtest.ErrInjected) {
				t.Errorf("error = %v, should wrap the transport error", err)
			}
			if d.VCOM() != before {
				t.Error("VCOM toggled after a failed transfer")
			}
			if p.CS().L != gpio.Low {
				t.Error("CS left asserted after a failed transfer")
			}

			// The device stays usable.
			p.FailTx = 0
			if err := d.Refresh(); err != nil {
				t.Fatal(err)
			}
			if d.VCOM() == before {
				t.Error("VCOM should toggle after the successful retry")
			}
			if err := p.Err(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	d, p := newTestDev(t, Opts{W: 16, H: 2})

	if _, err := d.Write(make([]byte, 3)); err == nil || err.Error() != "sharpmem: invalid buffer size" {
		t.Errorf("Write() error = %v, want 'sharpmem: invalid buffer size'", err)
	}

	pixels := []byte{0x01, 0x80, 0xF0, 0x0F}
	n, err := d.Write(pixels)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(pixels) {
		t.Errorf("Write() = %d, want %d", n, len(pixels))
	}
	img := p.Image()
	for i := range pixels {
		if img.Pix[i] != pixels[i] {
			t.Errorf("panel byte %d = 0x%02X, want 0x%02X", i, img.Pix[i], pixels[i])
		}
	}
}

func TestWriteRefreshFailure(t *testing.T) {
	d, p := newTestDev(t, Opts{W: 16, H: 2})
	p.FailTx = 2

	pixels := []byte{0x01, 0x80, 0xF0, 0x0F}
	n, err := d.Write(pixels)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("Write() error = %v, want ErrTransferFailed", err)
	}
	if n != len(pixels) {
		t.Errorf("Write() = %d, want %d since the buffer was replaced", n, len(pixels))
	}
	for i := range pixels {
		if d.buf.Pix[i] != pixels[i] {
			t.Errorf("buffer[%d] = 0x%02X, want 0x%02X", i, d.buf.Pix[i], pixels[i])
		}
	}
}

func TestHaltedClearKeepsBuffer(t *testing.T) {
	d, _ := newTestDev(t, Opts{W: 16, H: 4})
	d.SetPixel(1, 1, false)
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}

	if err := d.Clear(); !errors.Is(err, ErrHalted) {
		t.Fatalf("Clear() error = %v, want ErrHalted", err)
	}
	if d.Pixel(1, 1) {
		t.Error("Clear on a halted device should not touch the buffer")
	}
}

func TestDraw(t *testing.T) {
	d, p := newTestDev(t, Opts{W: 16, H: 8})
	if err := d.SetRotation(drivers.Rotation90); err != nil {
		t.Fatal(err)
	}

	src := image.NewGray(image.Rect(0, 0, 8, 16))
	for i := range src.Pix {
		src.Pix[i] = 0xFF
	}
	src.SetGray(2, 3, color.Gray{})

	// Partially off screen: clipped to Bounds().
	if err := d.Draw(image.Rect(-2, -3, 6, 13), src, image.Point{}); err != nil {
		t.Fatal(err)
	}
	if d.Pixel(0, 0) {
		t.Error("logical (0, 0) should be black")
	}
	if !d.Pixel(1, 0) || !d.Pixel(0, 1) {
		t.Error("neighbours of (0, 0) should be white")
	}

	// Rotation90 maps logical (0, 0) to physical (15, 0).
	if p.Image().BitAt(15, 0) {
		t.Error("panel physical (15, 0) should be black")
	}
}

func TestDrawEmpty(t *testing.T) {
	d, p := newTestDev(t, Opts{W: 16, H: 8})
	if err := d.Draw(image.Rect(100, 100, 120, 120), image.NewGray(image.Rect(0, 0, 20, 20)), image.Point{}); err != nil {
		t.Fatal(err)
	}
	if n := len(p.Transactions()); n != 0 {
		t.Errorf("off screen Draw sent %d transactions", n)
	}
}
