package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/term"

	"duck/audio"
	"duck/beep"
	"duck/config"
	"duck/doctor"
	"duck/ducking"
	"duck/hotkey"
	"duck/log"
	"duck/login"
	"duck/mpris"
	"duck/shutdown"
	"duck/tray"
)

var version = "dev"

// hotkeyGap drops key bounce between two toggles.
const hotkeyGap = 250 * time.Millisecond

var (
	activeDucker *ducking.Ducker
	activePlayer *mpris.Client
	stopWatch    context.CancelFunc
)

var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		ducks := 0
		if activeDucker != nil {
			// Restores the music app before anything else goes away.
			activeDucker.Shutdown()
			ducks = activeDucker.Ducks()
		}
		if stopWatch != nil {
			stopWatch()
		}
		if activePlayer != nil {
			activePlayer.Close()
		}
		log.SessionEnd(ducks)
		log.Close()
		tray.Quit()
		if tuiProgram != nil {
			tuiProgram.Quit()
		}
		quitGUI()
		os.Exit(0)
	})
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func reportError(msg string, err error) {
	log.Errorf("%s: %v", msg, err)
	if activeDucker != nil && activeDucker.Config().Chime {
		beep.PlayError()
	}
	tray.SetError(err.Error())
	emit(func(s EventSink) { s.Error(err.Error()) })
}

// loginArgs are the flags a login launch starts with: tray only, same
// config and log locations as this run.
func loginArgs(configPath, logPath string) []string {
	args := []string{"-tui=false"}
	if configPath != "" {
		args = append(args, "-config", configPath)
	}
	if logPath != "" {
		args = append(args, "-logpath", logPath)
	}
	return args
}

func configNames(cfg *config.Config) (triggers, music []string) {
	for _, a := range cfg.Apps() {
		if a.Role == config.Target {
			music = append(music, a.Name)
		} else {
			triggers = append(triggers, a.Name)
		}
	}
	return triggers, music
}

func run() {
	configFlag := flag.String("config", "", "config file path (default: OS-specific location, created with defaults if missing)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	debugFlag := flag.Bool("debug", false, "Log every poll tick and fade step")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven, fake audio sessions)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	flag.Bool("gui", false, "Run with settings window (requires -tags gui build)")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	log.SetDebug(*debugFlag)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("duck %s\n", version)
		os.Exit(0)
	}

	if *doctorFlag {
		os.Exit(doctor.Run(*configFlag))
	}

	if *testFlag {
		runTestMode(*configFlag)
		return
	}

	configPath := *configFlag
	if configPath == "" {
		if configPath, err = config.DefaultPath(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// Fail fast on a bad document, before daemonizing hides the message.
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	useTUI := *tuiFlag && term.IsTerminal(int(os.Stdout.Fd())) && !guiMode

	// Daemonize in non-TUI mode: re-exec in background, return shell prompt
	if !*tuiFlag && !guiMode && os.Getenv("_DUCK_BG") == "" {
		exe, _ := os.Executable()
		cmd := exec.Command(exe, os.Args[1:]...)
		cmd.Env = append(os.Environ(), "_DUCK_BG=1")
		devnull, _ := os.Open(os.DevNull)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = devnull, devnull, devnull
		if err := cmd.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	go beep.Init()

	enum, err := audio.NewEnumerator()
	if err != nil {
		log.Errorf("audio init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio sessions: %v\n", err)
		os.Exit(1)
	}

	ducker := ducking.New(enum, cfg, log.Logger())
	activeDucker = ducker

	if p, err := mpris.New(); err != nil {
		log.Warnf("media player control unavailable: %v", err)
	} else {
		activePlayer = p
		ducker.SetPlayer(p)
	}

	triggers, music := configNames(cfg)
	log.SessionStart(audio.Backend, triggers, music, ducker.IsEnabled())

	prev := ducker.State()
	ducker.OnStateChange(func(s ducking.State) {
		log.Transition(prev.String(), s.String())
		prev = s
		tray.SetState(s.String())
		emit(func(sink EventSink) { sink.StateChanged(s) })
	})
	ducker.OnEnabledChange(func(on bool) {
		if on {
			log.Info("ducking_enabled")
		} else {
			log.Info("ducking_disabled")
		}
		tray.SetEnabled(on)
		emit(func(sink EventSink) { sink.EnabledChanged(on) })
	})

	apply := func(next *config.Config) {
		if err := ducker.Reload(next); err != nil {
			reportError("config reload rejected", err)
			return
		}
		tuiSend(ConfigMsg{Config: next})
		logToTUI("config reloaded")
	}
	reload := func() {
		next, err := config.Load(configPath)
		if err != nil {
			reportError("config reload failed", err)
			return
		}
		apply(next)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopWatch = cancel
	if err := config.Watch(ctx, configPath, func(next *config.Config, err error) {
		if err != nil {
			reportError("config watch", err)
			return
		}
		apply(next)
	}); err != nil {
		log.Warnf("config hot reload disabled: %v", err)
	}

	// Start TUI
	if useTUI {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram(ducker, reload)
		tuiMu.Unlock()
		addSink(tuiSink{})

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			gracefulShutdown()
		}()
	}

	if guiMode {
		// fyne owns the main thread and draws the tray itself.
		bindGUI(configPath, ducker)
	} else {
		tray.OnToggle(ducker.Toggle)
		tray.OnReload(reload)
		tray.OnSettings(settingsHandler(configPath))
		tray.SetEnabled(ducker.IsEnabled())
		tray.SetState(ducker.State().String())
		tray.SetLogin(login.Enabled())
		tray.OnLogin(func(on bool) error {
			if on {
				return login.Enable(loginArgs(*configFlag, *logPathFlag))
			}
			return login.Disable()
		})
		trayQuit := tray.Init()
		go func() {
			<-trayQuit
			gracefulShutdown()
		}()
	}

	shutdown.Handle(ctx, gracefulShutdown, func() {
		log.Info("reload_signal")
		reload()
	})

	// Outside linux the hotkey needs the mainthread loop, which fyne
	// replaces in gui mode.
	hk := hotkey.New()
	if guiMode && runtime.GOOS != "linux" {
		log.Info("hotkey disabled in gui mode")
	} else if err := hk.Register(); err != nil {
		log.Warnf("hotkey register error: %v", err)
		logToTUI("hotkey %s unavailable: %v", hotkey.Combo, err)
	} else {
		defer hk.Unregister()
		toggles := hotkey.NewToggler(hk, hotkeyGap)
		defer toggles.Stop()
		go func() {
			for range toggles.Toggles() {
				on := ducker.Toggle()
				log.Info(fmt.Sprintf("hotkey_toggle enabled=%t", on))
				if ducker.Config().Chime {
					beep.Toggle(on)
				}
			}
		}()
	}

	if err := ducker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("poll loop error: %v", err)
	}
	// Run returns once Shutdown has been called elsewhere.
	gracefulShutdown()
}
