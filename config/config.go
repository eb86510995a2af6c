// Package config loads, validates, stores and watches the duck settings
// document.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultDuckLevel        = 0.1
	DefaultNormalLevel      = 1.0
	DefaultFadeDuration     = 0.8 // seconds
	DefaultFadeSteps        = 20
	DefaultCheckInterval    = 0.1 // seconds
	DefaultRestoreTicks     = 3
	DefaultSilenceThreshold = 0.0001
)

// Config is read-only once loaded. A reload builds a new value and swaps
// it into a Store.
//
// RestoreTicks is at least 2 so a single silent tick never starts a fade
// back up.
type Config struct {
	DuckLevel        float64  `toml:"duck_level" json:"duck_level" validate:"gte=0,lte=1,ltefield=NormalLevel"`
	NormalLevel      float64  `toml:"normal_level" json:"normal_level" validate:"gte=0,lte=1"`
	FadeDuration     float64  `toml:"fade_duration" json:"fade_duration" validate:"gte=0,lte=60"`
	FadeSteps        int      `toml:"fade_steps" json:"fade_steps" validate:"min=1,max=1000"`
	CheckInterval    float64  `toml:"check_interval" json:"check_interval" validate:"gte=0.01,lte=10"`
	RestoreTicks     int      `toml:"restore_ticks" json:"restore_ticks" validate:"min=2,max=1000"`
	SilenceThreshold float64  `toml:"silence_threshold" json:"silence_threshold" validate:"gte=0,lt=1"`
	MonitoredApps    []string `toml:"monitored_apps" json:"monitored_apps" validate:"min=1,dive,required"`
	MusicApps        []string `toml:"music_apps" json:"music_apps" validate:"min=1,dive,required"`
	PauseWhenDucked  bool     `toml:"pause_when_ducked" json:"pause_when_ducked"`
	StartEnabled     bool     `toml:"start_enabled" json:"start_enabled"`
	Chime            bool     `toml:"chime" json:"chime"`
}

func Default() *Config {
	return &Config{
		DuckLevel:        DefaultDuckLevel,
		NormalLevel:      DefaultNormalLevel,
		FadeDuration:     DefaultFadeDuration,
		FadeSteps:        DefaultFadeSteps,
		CheckInterval:    DefaultCheckInterval,
		RestoreTicks:     DefaultRestoreTicks,
		SilenceThreshold: DefaultSilenceThreshold,
		MonitoredApps:    []string{"chrome.exe", "msedge.exe", "firefox.exe", "discord.exe"},
		MusicApps:        []string{"spotify.exe"},
		StartEnabled:     true,
		Chime:            true,
	}
}

func (c *Config) Fade() time.Duration {
	return time.Duration(c.FadeDuration * float64(time.Second))
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.CheckInterval * float64(time.Second))
}

type Role int

const (
	Trigger Role = iota
	Target
)

func (r Role) String() string {
	if r == Target {
		return "target"
	}
	return "trigger"
}

type MonitoredApp struct {
	Name string
	Role Role
}

// Apps lists every configured application, triggers first.
func (c *Config) Apps() []MonitoredApp {
	apps := make([]MonitoredApp, 0, len(c.MonitoredApps)+len(c.MusicApps))
	for _, n := range c.MonitoredApps {
		apps = append(apps, MonitoredApp{Name: n, Role: Trigger})
	}
	for _, n := range c.MusicApps {
		apps = append(apps, MonitoredApp{Name: n, Role: Target})
	}
	return apps
}

// FieldError describes one invalid setting.
type FieldError struct {
	Field   string
	Message string
	Value   any
}

// ValidationError collects every invalid setting of a document.
type ValidationError struct {
	Errors []FieldError
}

func (v *ValidationError) Add(field, message string, value any) {
	v.Errors = append(v.Errors, FieldError{Field: field, Message: message, Value: value})
}

func (v *ValidationError) Error() string {
	parts := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		if e.Field == "" {
			parts[i] = e.Message
			continue
		}
		parts[i] = e.Field + " " + e.Message
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report document keys instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
}

func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must list at least %s entry", e.Param())
		}
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", e.Param())
	case "ltefield":
		return "must not exceed normal_level"
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

// Validate checks ranges, level ordering and app lists. It returns a
// *ValidationError naming every bad field.
func (c *Config) Validate() error {
	verr := &ValidationError{}
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, e := range fieldErrs {
			verr.Add(e.Field(), formatValidationMessage(e), e.Value())
		}
	}

	triggers := make(map[string]bool, len(c.MonitoredApps))
	for _, n := range c.MonitoredApps {
		triggers[normalize(n)] = true
	}
	for _, n := range c.MusicApps {
		if triggers[normalize(n)] {
			verr.Add("music_apps", "must not also be listed in monitored_apps", n)
		}
	}

	if len(verr.Errors) > 0 {
		return verr
	}
	return nil
}

// normalize mirrors audio.NormalizeProcess without importing it.
func normalize(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".exe")
}

// DefaultPath is config.toml under the per-user config directory.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "duck", "config.toml"), nil
}

// Load reads and validates path. A missing file is created with defaults.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// read decodes path over the defaults so omitted keys keep default values.
func read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if isJSON(path) {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return cfg, nil
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		verr := &ValidationError{}
		for _, k := range undecoded {
			verr.Add(k.String(), "is not a known setting", nil)
		}
		return nil, verr
	}
	return cfg, nil
}

// Save writes cfg to path, replacing the file in one rename.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	var buf bytes.Buffer
	if isJSON(path) {
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return err
		}
	} else {
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Store publishes the active Config to concurrent readers.
type Store struct {
	p atomic.Pointer[Config]
}

func NewStore(c *Config) *Store {
	s := &Store{}
	s.p.Store(c)
	return s
}

func (s *Store) Load() *Config {
	return s.p.Load()
}

// Swap installs c and returns the previous config.
func (s *Store) Swap(c *Config) *Config {
	return s.p.Swap(c)
}
