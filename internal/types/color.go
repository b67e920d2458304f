package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ColorDef is an RGB color with a transparency byte (0 is opaque).
type ColorDef struct {
	R, G, B, T uint8
}

// White is the fallback color for labels without a definition.
var White = ColorDef{R: 255, G: 255, B: 255}

// RGB builds an opaque color.
func RGB(r, g, b uint8) ColorDef { return ColorDef{R: r, G: g, B: b} }

// RGBT builds a color with the given transparency.
func RGBT(r, g, b, t uint8) ColorDef { return ColorDef{R: r, G: g, B: b, T: t} }

// String renders the color as #rrggbb, or #rrggbbtt when not opaque.
func (c ColorDef) String() string {
	if c.T == 0 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.T)
}

// ParseColor parses #rrggbb or #rrggbbtt.
func ParseColor(s string) (ColorDef, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return ColorDef{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return ColorDef{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(h) == 6 {
		return ColorDef{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
	}
	return ColorDef{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), T: uint8(v)}, nil
}

func (c ColorDef) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ColorDef) UnmarshalText(b []byte) error {
	parsed, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
