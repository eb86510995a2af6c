//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// duckTheme is the default dark theme with an amber accent matching the
// tray icon.
type duckTheme struct{}

func (d *duckTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.RGBA{24, 24, 24, 255}
	case theme.ColorNameForeground:
		return color.RGBA{210, 210, 210, 255}
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return color.RGBA{255, 179, 64, 255}
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (d *duckTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (d *duckTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (d *duckTheme) Size(name fyne.ThemeSizeName) float32 {
	return theme.DefaultTheme().Size(name)
}
