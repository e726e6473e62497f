package a11y

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Overlay palette. These are the visual states the contrast tests hold to
// WCAG: outlines against the page surface, label text against its chip.
const (
	SurfaceColor       = "#ffffff"
	ActiveOutlineColor = "#4338ca"
	HoverOutlineColor  = "#1d4ed8"
	LabelTextColor     = "#1f2937"
)

// Color is an sRGB color with 8-bit channels.
type Color struct {
	R, G, B uint8
}

// ParseHexColor reads "#rgb" or "#rrggbb".
func ParseHexColor(s string) (Color, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(raw) {
	case 3:
		raw = string([]byte{raw[0], raw[0], raw[1], raw[1], raw[2], raw[2]})
	case 6:
	default:
		return Color{}, fmt.Errorf("parse hex color %q: want 3 or 6 digits", s)
	}
	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("parse hex color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// RelativeLuminance implements the WCAG 2.x formula.
func RelativeLuminance(c Color) float64 {
	lin := func(channel uint8) float64 {
		s := float64(channel) / 255
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.R) + 0.7152*lin(c.G) + 0.0722*lin(c.B)
}

// ContrastRatio returns the WCAG contrast ratio between two colors, from 1
// to 21, independent of argument order.
func ContrastRatio(a, b Color) float64 {
	la, lb := RelativeLuminance(a), RelativeLuminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

// MeetsAA reports WCAG 2.1 AA conformance for text: 4.5:1, or 3:1 for
// large text.
func MeetsAA(ratio float64, largeText bool) bool {
	if largeText {
		return ratio >= 3
	}
	return ratio >= 4.5
}

// MeetsAAA reports WCAG 2.1 AAA conformance for text: 7:1, or 4.5:1 for
// large text.
func MeetsAAA(ratio float64, largeText bool) bool {
	if largeText {
		return ratio >= 4.5
	}
	return ratio >= 7
}

// MeetsNonText reports the 3:1 minimum WCAG 1.4.11 asks of non-text UI
// pieces like the region outlines.
func MeetsNonText(ratio float64) bool {
	return ratio >= 3
}
