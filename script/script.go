// Package script drives a memory LCD from a line oriented command script.
//
// Each line holds one command. Tokens are split like a shell does, so text
// can be quoted and '#' starts a comment:
//
//	clear                     # clear buffer and panel
//	clearbuf                  # clear the buffer only
//	rotate 1                  # 0..3, quarter turns
//	pixel 10 20               # off (black) is the default
//	pixel 11 20 on            # white
//	fill 0 0 144 12 off       # x y w h
//	text 2 10 "Hello world"   # baseline at y
//	refresh
//	hold                      # alternate VCOM only
//	sleep 500ms
//
// Execution stops at the first failing command.
package script

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/google/shlex"
	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// Target is the display a script draws on. *sharpmem.Dev implements it.
type Target interface {
	Width() int
	Height() int
	SetPixel(x, y int, on bool)
	SetRotation(r drivers.Rotation) error
	ClearBuffer()
	Clear() error
	Refresh() error
	Hold() error
}

// Runner executes scripts against a Target.
type Runner struct {
	Target Target

	// Font used by the text command (default: proggy TinySZ8pt7b)
	Font tinyfont.Fonter
	// Log traces every executed command when set.
	Log *log.Logger
	// Sleep implements the sleep command (default: time.Sleep).
	Sleep func(time.Duration)
}

// Run executes every command read from r.
func (rn *Runner) Run(r io.Reader) error {
	s := bufio.NewScanner(r)
	line := 0
	for s.Scan() {
		line++
		args, err := shlex.Split(s.Text())
		if err != nil {
			return fmt.Errorf("script: line %d: %w", line, err)
		}
		if len(args) == 0 {
			continue
		}
		if rn.Log != nil {
			rn.Log.Printf("%d: %q", line, args)
		}
		if err := rn.exec(args[0], args[1:]); err != nil {
			return fmt.Errorf("script: line %d: %s: %w", line, args[0], err)
		}
	}
	return s.Err()
}

func (rn *Runner) exec(cmd string, args []string) error {
	t := rn.Target
	switch cmd {
	case "clear":
		if err := wantArgs(args, 0, 0); err != nil {
			return err
		}
		return t.Clear()
	case "clearbuf":
		if err := wantArgs(args, 0, 0); err != nil {
			return err
		}
		t.ClearBuffer()
		return nil
	case "refresh":
		if err := wantArgs(args, 0, 0); err != nil {
			return err
		}
		return t.Refresh()
	case "hold":
		if err := wantArgs(args, 0, 0); err != nil {
			return err
		}
		return t.Hold()
	case "rotate":
		if err := wantArgs(args, 1, 1); err != nil {
			return err
		}
		r, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return err
		}
		return t.SetRotation(drivers.Rotation(r))
	case "pixel":
		if err := wantArgs(args, 2, 3); err != nil {
			return err
		}
		v, err := ints(args[:2])
		if err != nil {
			return err
		}
		on, err := level(args[2:])
		if err != nil {
			return err
		}
		t.SetPixel(v[0], v[1], on)
		return nil
	case "fill":
		if err := wantArgs(args, 4, 5); err != nil {
			return err
		}
		v, err := ints(args[:4])
		if err != nil {
			return err
		}
		on, err := level(args[4:])
		if err != nil {
			return err
		}
		for y := v[1]; y < v[1]+v[3]; y++ {
			for x := v[0]; x < v[0]+v[2]; x++ {
				t.SetPixel(x, y, on)
			}
		}
		return nil
	case "text":
		if err := wantArgs(args, 3, 4); err != nil {
			return err
		}
		v, err := ints(args[:2])
		if err != nil {
			return err
		}
		on, err := level(args[3:])
		if err != nil {
			return err
		}
		font := rn.Font
		if font == nil {
			font = &proggy.TinySZ8pt7b
		}
		tinyfont.WriteLine(&pen{t: t, on: on}, font, int16(v[0]), int16(v[1]), args[2], color.RGBA{A: 255})
		return nil
	case "sleep":
		if err := wantArgs(args, 1, 1); err != nil {
			return err
		}
		dur, err := time.ParseDuration(args[0])
		if err != nil {
			return err
		}
		sleep := rn.Sleep
		if sleep == nil {
			sleep = time.Sleep
		}
		sleep(dur)
		return nil
	}
	return fmt.Errorf("unknown command")
}

func wantArgs(args []string, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return fmt.Errorf("want %d arguments, got %d", lo, len(args))
		}
		return fmt.Errorf("want %d to %d arguments, got %d", lo, hi, len(args))
	}
	return nil
}

func ints(args []string) ([]int, error) {
	v := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, err
		}
		v[i] = n
	}
	return v, nil
}

// level parses an optional on/off argument. Missing means off: black ink on
// the white panel.
func level(args []string) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	switch args[0] {
	case "on", "white", "1":
		return true, nil
	case "off", "black", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid level %q", args[0])
}

// pen draws every pixel tinyfont hands it with a fixed level.
type pen struct {
	t  Target
	on bool
}

func (p *pen) Size() (x, y int16) {
	return int16(p.t.Width()), int16(p.t.Height())
}

func (p *pen) SetPixel(x, y int16, c color.RGBA) {
	p.t.SetPixel(int(x), int(y), p.on)
}

func (p *pen) Display() error {
	return p.t.Refresh()
}

var _ drivers.Displayer = &pen{}
