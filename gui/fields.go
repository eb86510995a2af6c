// Package gui is the fyne settings window and tray host used by -gui and
// -settings builds.
package gui

import (
	"fmt"
	"strconv"
	"strings"

	"duck/config"
)

// formValues is what the settings window holds, before parsing.
type formValues struct {
	DuckLevel    float64
	NormalLevel  float64
	FadeDuration string
	RestoreTicks string
	Pause        bool
	StartEnabled bool
	Chime        bool
	Monitored    string
	Music        string
}

func valuesFrom(c *config.Config) formValues {
	return formValues{
		DuckLevel:    c.DuckLevel,
		NormalLevel:  c.NormalLevel,
		FadeDuration: strconv.FormatFloat(c.FadeDuration, 'f', -1, 64),
		RestoreTicks: strconv.Itoa(c.RestoreTicks),
		Pause:        c.PauseWhenDucked,
		StartEnabled: c.StartEnabled,
		Chime:        c.Chime,
		Monitored:    strings.Join(c.MonitoredApps, "\n"),
		Music:        strings.Join(c.MusicApps, "\n"),
	}
}

// parseApps accepts one app per line or a comma separated list.
func parseApps(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == ','
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// build returns a copy of base with the form applied. Settings the window
// does not show keep base's values. The result is validated.
func (v formValues) build(base *config.Config) (*config.Config, error) {
	c := *base
	c.DuckLevel = v.DuckLevel
	c.NormalLevel = v.NormalLevel
	c.PauseWhenDucked = v.Pause
	c.StartEnabled = v.StartEnabled
	c.Chime = v.Chime
	c.MonitoredApps = parseApps(v.Monitored)
	c.MusicApps = parseApps(v.Music)

	fade, err := strconv.ParseFloat(strings.TrimSpace(v.FadeDuration), 64)
	if err != nil {
		return nil, fmt.Errorf("fade duration %q is not a number of seconds", v.FadeDuration)
	}
	c.FadeDuration = fade

	ticks, err := strconv.Atoi(strings.TrimSpace(v.RestoreTicks))
	if err != nil {
		return nil, fmt.Errorf("restore delay %q is not a whole number of ticks", v.RestoreTicks)
	}
	c.RestoreTicks = ticks

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func percent(level float64) string {
	return fmt.Sprintf("%.0f%%", level*100)
}
