package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transitionFile *os.File
	logMu          sync.Mutex
	logReady       bool
	debug          bool
	pid            int
	dir            string
)

// ResolveDir picks the log directory: the -logpath flag, then
// DUCK_LOG_PATH, then the OS default. Relative paths resolve against the
// working directory.
func ResolveDir(flagPath string) (string, error) {
	for _, p := range []string{flagPath, os.Getenv("DUCK_LOG_PATH")} {
		if p != "" {
			return absolute(p)
		}
	}
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// SetDebug lowers the diagnostics level so per-tick events are written.
// It may be called before or after Init.
func SetDebug(on bool) {
	logMu.Lock()
	defer logMu.Unlock()
	debug = on
	if logReady {
		diagLog = diagLog.Level(level())
	}
}

func level() zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transitionPath := filepath.Join(dir, "transitions_log.txt")
	transitionFile, err = os.OpenFile(transitionPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).Level(level()).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transitionFile != nil {
		transitionFile.Close()
		transitionFile = nil
	}
	logReady = false
}

// Logger returns the diagnostics logger for injection into the core, or a
// disabled logger before Init.
func Logger() zerolog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	if !logReady {
		return zerolog.Nop()
	}
	return diagLog
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Transition appends one human-readable line per duck state change.
func Transition(from, to string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if transitionFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s -> %s\n", time.Now().Format("2006-01-02 15:04:05"), pid, from, to)
	transitionFile.WriteString(line)
}

func SessionStart(backend string, triggers, music []string, enabled bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("backend", backend).
		Str("triggers", strings.Join(triggers, ",")).
		Str("music", strings.Join(music, ",")).
		Bool("enabled", enabled).
		Msg("session_start")
}

func SessionEnd(ducks int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("ducks", ducks).
		Msg("session_end")
}
