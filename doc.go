// Package sharpmem controls a Sharp memory LCD via SPI.
//
// Memory LCDs (LS013B7DH05, LS027B7DH01 and friends) are 1-bit reflective
// panels with one bit of SRAM per pixel. They hold their image without power
// hungry refreshes, are written one line at a time, and need their COM
// inversion signal (VCOM) alternated by the host.
// This driver implements the display.Drawer interface from periph.io.
//
// # Display Characteristics
//
// - 1-bit monochrome, set bit = white (reflective), cleared bit = black
// - Line addressed writes, 1-based 9-bit line numbers (up to 511 lines)
// - Serial bits are shifted LSB first
// - Chip select is active HIGH, the opposite of most SPI peripherals
// - VCOM must alternate, at least once per second
//
// # Hardware Connection
//
// Connect the memory LCD to your system via SPI:
//
//	Display Pin → System Pin
//	GND         → GND
//	VIN         → 3.3V or 5V (breakout LDO)
//	SCLK        → SPI Clock (SCLK)
//	MOSI        → SPI Data (MOSI)
//	CS          → GPIO (any available pin, NOT the SPI controller's CE)
//	DISP        → Optional: GPIO, display on/off
//	EXTMODE     → GND (VCOM is sent in the serial frames)
//
// The SPI controller's own chip select is not used (spi.NoCS): it is active
// LOW, while the panel wants HIGH.
//
// # Basic Usage
//
// Example of creating and using the display:
//
//	package main
//
//	import (
//		"periph.io/x/conn/v3/gpio/gpioreg"
//		"periph.io/x/conn/v3/spi/spireg"
//		"github.com/flavioheleno/sharpmem"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		// Initialize periph.io
//		host.Init()
//
//		// Open SPI bus
//		spiBus, _ := spireg.Open("")
//
//		// Get the chip select GPIO pin
//		csPin := gpioreg.ByName("GPIO8")
//
//		// Create device
//		dev, _ := sharpmem.NewSPI(spiBus, csPin, &sharpmem.LS013B7DH05)
//		defer dev.Halt()
//
//		// Blank the panel
//		dev.Clear()
//
//		// Draw a black diagonal
//		for i := 0; i < dev.Height() && i < dev.Width(); i++ {
//			dev.SetPixel(i, i, false)
//		}
//
//		// Push the buffer to the panel
//		dev.Refresh()
//	}
//
// # VCOM
//
// Every Clear, Refresh and Hold carries the current VCOM polarity and flips
// it once the transfer completed. A failed transfer leaves VCOM as it was, so
// the next successful frame still alternates from the last one the panel
// accepted. The driver does not run a timer: a host that refreshes less than
// once per second should call Hold in between.
//
// # Rotation
//
// SetRotation changes the logical coordinate system used by SetPixel, Pixel
// and Draw. The buffer always stays in physical orientation, so a rotation
// change does not alter what is on screen until the next draw.
//
//	dev.SetRotation(drivers.Rotation90)
//	w, h := dev.Width(), dev.Height() // swapped
//
// # Text
//
// Displayer returns a TinyGo drivers.Displayer view of the device, which lets
// tinyfont render text:
//
//	tinyfont.WriteLine(dev.Displayer(), &proggy.TinySZ8pt7b, 4, 12, "Hello", color.RGBA{A: 255})
//	dev.Refresh()
//
// # SPI Bit Order
//
// The panel expects bits LSB first. The driver asks for spi.LSBFirst; when the
// controller cannot do that, set Opts.SoftwareLSB and the driver reverses each
// byte before sending it.
//
// # Testing Without Hardware
//
// The sharpmemtest package provides a simulated panel that decodes the SPI
// frames back into an image and reports protocol violations (wrong VCOM
// sequence, bad pad bytes, transfers outside CS). It is also what the
// sharpmem_preview example renders on the desktop.
//
// # Datasheet
//
// For the serial interface timing and frame layout, see:
// https://www.sharpsde.com/fileadmin/products/Displays/2016_SDE_App_Note_for_Memory_LCD_programming_V1.3.pdf
package sharpmem
