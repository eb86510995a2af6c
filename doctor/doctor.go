package doctor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"duck/audio"
	"duck/config"
	"duck/hotkey"
	"duck/mpris"
)

type doctor struct {
	out     io.Writer
	in      *bufio.Reader
	newEnum func() (audio.Enumerator, error)
	sample  time.Duration
	hold    time.Duration

	// unattended skips prompts when stdin is not a terminal.
	unattended bool

	cfg  *config.Config
	enum audio.Enumerator

	mu   sync.Mutex
	undo func()
}

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(configPath string) int {
	resetTerminal()

	d := &doctor{
		out:     os.Stdout,
		in:      bufio.NewReader(os.Stdin),
		newEnum: audio.NewEnumerator,
		sample:  3 * time.Second,
		hold:    2 * time.Second,

		unattended: !term.IsTerminal(int(os.Stdin.Fd())),
	}
	d.setupInterruptHandler()
	defer d.close()
	return d.run(configPath)
}

func (d *doctor) printf(format string, args ...any) { fmt.Fprintf(d.out, format, args...) }
func (d *doctor) println(args ...any)               { fmt.Fprintln(d.out, args...) }

func (d *doctor) close() {
	if d.enum != nil {
		d.enum.Close()
	}
}

func (d *doctor) run(configPath string) int {
	d.println("duck doctor - interactive system diagnostics")
	d.println("============================================")

	allPass := d.checkConfig(configPath) && d.checkBackend() && d.checkSessions() && d.checkVolume()
	if allPass && !d.checkPlayer() {
		allPass = false
	}
	if allPass && !d.checkHotkey() {
		allPass = false
	}

	d.println()
	if allPass {
		d.println("All checks passed!")
		return 0
	}
	d.println("Some checks failed. See details above.")
	return 1
}

func (d *doctor) checkConfig(path string) bool {
	d.println()
	d.println("[1/6] Configuration")

	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			d.printf("  FAIL: no config directory: %v\n", err)
			return false
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			d.printf("  FAIL: %s is invalid:\n", path)
			for _, e := range verr.Errors {
				d.printf("    %s %s\n", e.Field, e.Message)
			}
			return false
		}
		d.printf("  FAIL: %v\n", err)
		return false
	}
	d.cfg = cfg
	d.printf("  PASS: %s\n", path)
	d.printf("    triggers: %s\n", strings.Join(cfg.MonitoredApps, ", "))
	d.printf("    music:    %s\n", strings.Join(cfg.MusicApps, ", "))
	return true
}

func (d *doctor) checkBackend() bool {
	d.println()
	d.println("[2/6] Audio backend")

	enum, err := d.newEnum()
	if err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}
	d.enum = enum
	sessions, err := enum.All()
	if err != nil {
		d.printf("  FAIL: cannot list sessions: %v\n", err)
		return false
	}
	d.printf("  PASS: connected, %d output session(s)\n", len(sessions))
	return true
}

type sessionPeak struct {
	s    audio.Session
	peak float64
}

func (d *doctor) role(process string) string {
	for _, a := range d.cfg.Apps() {
		if audio.MatchProcess(a.Name, process) {
			return a.Role.String()
		}
	}
	return "-"
}

// checkSessions samples every session for a few seconds and prints the
// loudest peak of each, marking the ones duck would react to.
func (d *doctor) checkSessions() bool {
	d.println()
	d.println("[3/6] Sessions and peak levels")
	if d.unattended {
		d.printf("Sampling for %s...", d.sample)
	} else {
		d.printf("Play sound in a monitored app, then press Enter (sampling %s)...", d.sample)
		d.in.ReadString('\n')
	}

	peaks := map[uint32]*sessionPeak{}
	deadline := time.Now().Add(d.sample)
	for {
		sessions, err := d.enum.All()
		if err != nil {
			d.printf("\n  FAIL: %v\n", err)
			return false
		}
		for _, s := range sessions {
			p, err := d.enum.Peak(s)
			if err != nil {
				continue
			}
			sp, ok := peaks[s.ID]
			if !ok {
				sp = &sessionPeak{s: s}
				peaks[s.ID] = sp
			}
			if p > sp.peak {
				sp.peak = p
			}
		}
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(d.cfg.Interval())
	}
	d.println()

	list := make([]*sessionPeak, 0, len(peaks))
	for _, sp := range peaks {
		list = append(list, sp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].s.ID < list[j].s.ID })

	heard := false
	for _, sp := range list {
		role := d.role(sp.s.Process)
		mark := " "
		if sp.peak > d.cfg.SilenceThreshold {
			mark = "*"
			if role == "trigger" {
				heard = true
			}
		}
		d.printf("  %s #%-4d %-20s %-8s peak %.4f  %s\n", mark, sp.s.ID, sp.s.Process, role, sp.peak, sp.s.Name)
	}
	if !heard {
		d.println("  FAIL: no monitored app produced sound above silence_threshold")
		return false
	}
	d.println("  PASS: a monitored app is audible")
	return true
}

func (d *doctor) musicSessions() (string, []audio.Session) {
	for _, app := range d.cfg.MusicApps {
		sessions, err := d.enum.Sessions(app)
		if err == nil && len(sessions) > 0 {
			return app, sessions
		}
	}
	return "", nil
}

func (d *doctor) checkVolume() bool {
	d.println()
	d.println("[4/6] Volume control")

	app, sessions := d.musicSessions()
	if len(sessions) == 0 {
		d.printf("  FAIL: none of %s is playing\n", strings.Join(d.cfg.MusicApps, ", "))
		return false
	}
	s := sessions[0]
	orig, err := d.enum.Volume(s)
	if err != nil {
		d.printf("  FAIL: cannot read volume of %s: %v\n", app, err)
		return false
	}
	d.printf("  %s volume is %.2f, lowering to %.2f for 2 seconds...\n", app, orig, d.cfg.DuckLevel)
	d.setUndo(func() { d.enum.SetVolume(s, orig) })
	if err := d.enum.SetVolume(s, d.cfg.DuckLevel); err != nil {
		d.setUndo(nil)
		d.printf("  FAIL: cannot set volume: %v\n", err)
		return false
	}
	time.Sleep(d.hold)
	d.setUndo(nil)
	if err := d.enum.SetVolume(s, orig); err != nil {
		d.printf("  FAIL: cannot restore volume: %v\n", err)
		return false
	}

	if d.unattended {
		d.println("  PASS: volume lowered and restored (not confirmed, stdin is not a terminal)")
		return true
	}
	d.printf("Did %s get quieter and come back? [y/n]: ", app)
	confirm, _ := d.in.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))
	if confirm != "y" && confirm != "yes" {
		d.println("  FAIL: volume change not confirmed")
		return false
	}
	d.println("  PASS: volume control verified by user")
	return true
}

func (d *doctor) checkPlayer() bool {
	d.println()
	d.println("[5/6] Media player control")
	if !d.cfg.PauseWhenDucked {
		d.println("  SKIP: pause_when_ducked is off")
		return true
	}
	c, err := mpris.New()
	if err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}
	defer c.Close()

	for _, app := range d.cfg.MusicApps {
		paused, err := c.Pause(app)
		if err != nil {
			d.printf("  FAIL: pause %s: %v\n", app, err)
			return false
		}
		if paused {
			time.Sleep(time.Second)
			if err := c.Resume(app); err != nil {
				d.printf("  FAIL: resume %s: %v\n", app, err)
				return false
			}
			d.printf("  PASS: paused and resumed %s\n", app)
			return true
		}
	}
	d.println("  FAIL: no playing MPRIS player matches music_apps")
	return false
}

func (d *doctor) checkHotkey() bool {
	d.println()
	d.println("[6/6] Hotkey detection")
	msg, err := hotkey.Diagnose()
	if err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}
	d.printf("  %s\n", msg)
	d.printf("Press %s...\n", hotkey.Combo)

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		d.printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		d.println("  PASS: hotkey detected")
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		// evdev readers can leave the terminal in raw mode
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		d.println("  FAIL: timeout waiting for hotkey")
		return false
	}
}
