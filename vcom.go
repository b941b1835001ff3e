package sharpmem

// vcom is the COM inversion polarity sent in the mode byte of every
// transaction. The panel needs it to alternate or the liquid crystal builds up
// a DC bias.
type vcom bool

func (v vcom) bit() byte {
	if v {
		return bitVCOM
	}
	return 0x00
}

func (v *vcom) toggle() {
	*v = !*v
}
