// Package sharpmemtest implements a simulated Sharp memory LCD for tests and
// previews.
//
// A Panel is a spi.Port paired with an active-high CS pin. Bytes written while
// CS is asserted are decoded on release with the panel's line protocol and
// applied to the Panel's own frame buffer, so what a driver sends can be
// compared with what the panel would show.
package sharpmemtest

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math/bits"
	"sync"

	"github.com/flavioheleno/sharpmem/framebuf"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// ErrInjected is returned by Tx when a failure was requested with FailTx.
var ErrInjected = errors.New("sharpmemtest: injected transfer failure")

// Mode bits as seen after LSB first reception.
const (
	bitWriteCmd = 0x01
	bitVCOM     = 0x02
	bitClear    = 0x04
)

// Kind is the command carried by a transaction.
type Kind int

// Transaction kinds.
const (
	Hold Kind = iota
	Write
	Clear
)

func (k Kind) String() string {
	switch k {
	case Hold:
		return "hold"
	case Write:
		return "write"
	case Clear:
		return "clear"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Transaction is one decoded CS assertion.
type Transaction struct {
	Kind  Kind
	VCOM  bool
	Lines []int  // 0-based rows updated by a Write
	Raw   []byte // bytes in LSB first order
}

// Panel is a simulated memory LCD.
type Panel struct {
	// ConnectErr is returned by Connect when set.
	ConnectErr error
	// FailTx makes the n-th call to Tx (1-based) fail with ErrInjected. 0
	// disables it.
	FailTx int

	mu        sync.Mutex
	cs        *CSPin
	img       *framebuf.Buffer
	freq      physic.Frequency
	mode      spi.Mode
	connected bool
	selected  bool
	aborted   bool
	pending   []byte
	txCount   int
	haveVCOM  bool
	lastVCOM  bool
	txns      []Transaction
	errs      []error
}

// NewPanel returns a white w x h panel.
func NewPanel(w, h int) *Panel {
	p := &Panel{
		img: framebuf.New(image.Rect(0, 0, w, h)),
	}
	p.img.Fill(image1bit.On)
	p.cs = &CSPin{Pin: gpiotest.Pin{N: "CS", Num: -1, L: gpio.Low}, p: p}
	return p
}

// CS returns the panel's chip select pin.
func (p *Panel) CS() *CSPin {
	return p.cs
}

// String implements spi.Port.
func (p *Panel) String() string {
	return fmt.Sprintf("sharpmemtest.Panel{%dx%d}", p.img.Rect.Dx(), p.img.Rect.Dy())
}

// Connect implements spi.Port.
func (p *Panel) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.connected {
		return nil, errors.New("sharpmemtest: Connect cannot be called twice")
	}
	if bits != 8 {
		return nil, fmt.Errorf("sharpmemtest: unsupported %d bits per word", bits)
	}
	p.connected = true
	p.freq = f
	p.mode = mode
	return &panelConn{p: p}, nil
}

// LimitSpeed implements spi.Port.
func (p *Panel) LimitSpeed(f physic.Frequency) error {
	return nil
}

// Close implements spi.PortCloser.
func (p *Panel) Close() error {
	return nil
}

// Frequency returns the clock requested by Connect.
func (p *Panel) Frequency() physic.Frequency {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freq
}

// Mode returns the mode requested by Connect.
func (p *Panel) Mode() spi.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// Image returns a copy of what the panel currently shows.
func (p *Panel) Image() *framebuf.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	img := &framebuf.Buffer{
		Pix:    make([]byte, len(p.img.Pix)),
		Stride: p.img.Stride,
		Rect:   p.img.Rect,
	}
	copy(img.Pix, p.img.Pix)
	return img
}

// Transactions returns the decoded transactions, oldest first.
func (p *Panel) Transactions() []Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Transaction(nil), p.txns...)
}

// Err returns every protocol violation seen so far, or nil.
func (p *Panel) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

func (p *Panel) violation(format string, args ...any) {
	p.errs = append(p.errs, fmt.Errorf("sharpmemtest: "+format, args...))
}

func (p *Panel) tx(w []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txCount++
	if p.FailTx != 0 && p.txCount == p.FailTx {
		p.aborted = true
		return ErrInjected
	}
	if !p.selected {
		p.violation("Tx of %d bytes while CS is not asserted", len(w))
		return nil
	}
	lsb := p.mode&spi.LSBFirst != 0
	for _, b := range w {
		if !lsb {
			b = bits.Reverse8(b)
		}
		p.pending = append(p.pending, b)
	}
	return nil
}

func (p *Panel) setSelected(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if on == p.selected {
		if on {
			p.violation("CS asserted twice")
		}
		return
	}
	p.selected = on
	if on {
		p.pending = nil
		p.aborted = false
		return
	}
	if !p.aborted {
		p.decode(p.pending)
	}
	p.pending = nil
}

func (p *Panel) decode(raw []byte) {
	if len(raw) < 2 {
		p.violation("short transaction % X", raw)
		return
	}
	t := Transaction{VCOM: raw[0]&bitVCOM != 0, Raw: raw}
	if p.haveVCOM && t.VCOM == p.lastVCOM {
		p.violation("VCOM did not alternate (still %t)", t.VCOM)
	}
	p.haveVCOM = true
	p.lastVCOM = t.VCOM

	switch {
	case raw[0]&bitClear != 0:
		t.Kind = Clear
		if len(raw) != 2 || raw[1] != 0x00 {
			p.violation("malformed clear % X", raw)
		}
		p.img.Fill(image1bit.On)
	case raw[0]&bitWriteCmd != 0:
		t.Kind = Write
		stride := p.img.Stride
		n := 2 + stride + 1
		rest := raw
		for len(rest) >= 2 {
			line := int(rest[0]>>7) | int(rest[1])<<1
			if line == 0 {
				break
			}
			if len(rest) < n {
				p.violation("truncated line %d", line)
				return
			}
			if line > p.img.Rect.Dy() {
				p.violation("line %d out of range", line)
				return
			}
			copy(p.img.Row(line-1), rest[2:2+stride])
			if rest[n-1] != 0x00 {
				p.violation("line %d pad byte is 0x%02X", line, rest[n-1])
			}
			t.Lines = append(t.Lines, line-1)
			rest = rest[n:]
		}
		if !bytes.Equal(rest, []byte{0x00, 0x00}) {
			p.violation("bad trailer % X", rest)
		}
	default:
		t.Kind = Hold
		if len(raw) != 2 || raw[1] != 0x00 {
			p.violation("malformed hold % X", raw)
		}
	}
	p.txns = append(p.txns, t)
}

// CSPin is the panel's chip select input. HIGH selects the panel.
type CSPin struct {
	gpiotest.Pin
	p *Panel
}

// Out implements gpio.PinOut.
func (c *CSPin) Out(l gpio.Level) error {
	if err := c.Pin.Out(l); err != nil {
		return err
	}
	c.p.setSelected(l == gpio.High)
	return nil
}

type panelConn struct {
	p *Panel
}

func (c *panelConn) String() string {
	return c.p.String()
}

func (c *panelConn) Tx(w, r []byte) error {
	if len(r) != 0 {
		return errors.New("sharpmemtest: the panel has no MISO line")
	}
	return c.p.tx(w)
}

func (c *panelConn) TxPackets(pkts []spi.Packet) error {
	for _, pkt := range pkts {
		if err := c.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

func (c *panelConn) Duplex() conn.Duplex {
	return conn.Half
}

var _ spi.PortCloser = &Panel{}
var _ spi.Conn = &panelConn{}
var _ gpio.PinOut = &CSPin{}
