package sharpmem

// Geometry of the 1-bit memory LCDs this driver has been used with.
var (
	LS010B7DH04 = Opts{W: 128, H: 128}
	LS011B7DH03 = Opts{W: 160, H: 68}
	LS012B7DD01 = Opts{W: 184, H: 38}
	LS013B7DH03 = Opts{W: 128, H: 128}
	LS013B7DH05 = Opts{W: 144, H: 168}
	LS018B7DH02 = Opts{W: 230, H: 303}
	LS027B7DH01 = Opts{W: 400, H: 240}
	LS044Q7DH01 = Opts{W: 320, H: 240}
)
