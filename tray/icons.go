package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
)

var (
	iconIdle   []byte
	iconFading []byte
	iconDucked []byte
	iconOff    []byte
	iconError  []byte
)

func init() {
	transparent := color.RGBA{A: 0}
	amber := color.RGBA{R: 255, G: 179, B: 64, A: 255}
	orange := color.RGBA{R: 255, G: 120, B: 20, A: 255}
	grey := color.RGBA{R: 150, G: 150, B: 150, A: 255}
	dotR := 44.0 / 6.5
	iconIdle = renderIcon(44, &transparent, 44.0/8, nil)
	iconFading = renderIcon(44, &amber, dotR, nil)
	iconDucked = renderIcon(44, &orange, dotR, nil)
	iconOff = renderIcon(44, &transparent, 44.0/8, &grey)
	iconError = renderBadgeIcon(44, &transparent, 44.0/8)
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("encodePNG: " + err.Error())
	}
	return buf.Bytes()
}

// drawCircleIcon paints a filled disc with a centered dot. ring replaces
// the default black disc colour.
func drawCircleIcon(img *image.RGBA, size int, dot *color.RGBA, dotR float64, ring *color.RGBA) {
	cx, cy := float64(size)/2, float64(size)/2
	r := float64(size)/2 - 1
	var fill color.Color = color.Black
	if ring != nil {
		fill = ring
	}
	for y := range size {
		for x := range size {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			if dot != nil && d <= dotR {
				img.Set(x, y, dot)
			} else if d <= r {
				img.Set(x, y, fill)
			}
		}
	}
}

func renderIcon(size int, dot *color.RGBA, dotR float64, ring *color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	drawCircleIcon(img, size, dot, dotR, ring)
	return encodePNG(img)
}

func renderBadgeIcon(size int, dot *color.RGBA, dotR float64) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	drawCircleIcon(img, size, dot, dotR, nil)

	// yellow "!" badge, bottom-right
	s := float64(size)
	badgeR := s * 0.34
	badgeCX, badgeCY := s-badgeR+0.5, s-badgeR+0.5
	dark := color.RGBA{R: 40, G: 40, B: 40, A: 255}
	yellow := color.RGBA{R: 255, G: 204, B: 0, A: 255}
	bangHW := badgeR * 0.24

	for y := range size {
		for x := range size {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			if math.Hypot(fx-badgeCX, fy-badgeCY) > badgeR {
				continue
			}
			localY := (fy - (badgeCY - badgeR*0.7)) / (badgeR * 1.4)
			localX := math.Abs(fx - badgeCX)
			isBar := localX <= bangHW && localY >= 0.1 && localY <= 0.62
			isDot := localX <= bangHW && localY >= 0.72 && localY <= 0.85
			if isBar || isDot {
				img.Set(x, y, dark)
			} else {
				img.Set(x, y, yellow)
			}
		}
	}
	return encodePNG(img)
}
