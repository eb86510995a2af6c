package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"duck/audio"
	"duck/beep"
	"duck/config"
	"duck/ducking"
	"duck/hotkey"
	"duck/log"
)

// waitStateTimeout bounds WAIT_STATE so a stuck machine fails the run.
const waitStateTimeout = 10 * time.Second

// runTestMode drives the real core against in-memory sessions, one command
// per stdin line:
//
//	START app vol    open a session for app at volume vol
//	STOP app         end every session of app
//	PLAY app peak    set app's peak level (default 0.5)
//	SILENCE app      set app's peak level to 0
//	FAIL app / HEAL app   make enumeration of app fail or recover
//	ENABLE, DISABLE, TOGGLE, HOTKEY
//	SLEEP ms
//	WAIT_STATE state wait until the machine reaches state
//	VOLUME app       print "VOLUME app level" to stdout
//	STATE            print "STATE state enabled" to stdout
//	RELOAD path      load path and apply it
//	QUIT             shut down, restoring volume, and exit
func runTestMode(configPath string) {
	beep.Disable()

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	fake := audio.NewFakeEnumerator()
	d := ducking.New(fake, cfg, log.Logger())

	triggers, music := configNames(cfg)
	log.SessionStart("fake", triggers, music, d.IsEnabled())

	prev := d.State()
	d.OnStateChange(func(s ducking.State) {
		log.Transition(prev.String(), s.String())
		prev = s
	})

	hk := hotkey.NewFake()
	toggles := hotkey.NewToggler(hk, 0)
	defer toggles.Stop()
	go func() {
		for range toggles.Toggles() {
			d.Toggle()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	quit := func(code int) {
		d.Shutdown()
		log.SessionEnd(d.Ducks())
		log.Close()
		os.Exit(code)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if err := testCommand(d, fake, hk, fields); err != nil {
			if errors.Is(err, errQuit) {
				quit(0)
			}
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", strings.Join(fields, " "), err)
			quit(1)
		}
	}
	quit(0)
}

var errQuit = errors.New("quit")

func testCommand(d *ducking.Ducker, fake *audio.FakeEnumerator, hk *hotkey.FakeHotkey, fields []string) error {
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	num := func(i int, def float64) (float64, error) {
		if arg(i) == "" {
			return def, nil
		}
		return strconv.ParseFloat(arg(i), 64)
	}

	switch strings.ToUpper(fields[0]) {
	case "START":
		vol, err := num(2, 1)
		if err != nil {
			return err
		}
		fake.Start(arg(1), vol)
	case "STOP":
		fake.Stop(arg(1))
	case "PLAY":
		peak, err := num(2, 0.5)
		if err != nil {
			return err
		}
		fake.SetPeak(arg(1), peak)
	case "SILENCE":
		fake.SetPeak(arg(1), 0)
	case "FAIL":
		fake.Fail(arg(1), errors.New("scripted failure"))
	case "HEAL":
		fake.Fail(arg(1), nil)
	case "ENABLE":
		d.Enable()
	case "DISABLE":
		d.Disable()
	case "TOGGLE":
		d.Toggle()
	case "HOTKEY":
		hk.SimPress()
	case "SLEEP":
		ms, err := strconv.Atoi(arg(1))
		if err != nil {
			return err
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
	case "WAIT_STATE":
		return waitState(d, arg(1))
	case "VOLUME":
		if v, ok := fake.VolumeOf(arg(1)); ok {
			fmt.Printf("VOLUME %s %.4f\n", arg(1), v)
		} else {
			fmt.Printf("VOLUME %s absent\n", arg(1))
		}
	case "STATE":
		fmt.Printf("STATE %s %t\n", d.State(), d.IsEnabled())
	case "RELOAD":
		cfg, err := config.Load(arg(1))
		if err != nil {
			return err
		}
		return d.Reload(cfg)
	case "QUIT":
		return errQuit
	default:
		return errors.New("unknown command")
	}
	return nil
}

func waitState(d *ducking.Ducker, want string) error {
	deadline := time.Now().Add(waitStateTimeout)
	for time.Now().Before(deadline) {
		if d.State().String() == want {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("state is %s after %s", d.State(), waitStateTimeout)
}
