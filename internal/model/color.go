package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidParameter is returned for malformed colors, densities, distances
// and notification types. Nothing is mutated when it is returned.
var ErrInvalidParameter = errors.New("invalid parameter")

// Color is an RGB particle color.
type Color struct {
	R uint8 `yaml:"r"`
	G uint8 `yaml:"g"`
	B uint8 `yaml:"b"`
}

// ColorRed is the default color of a new permanent region.
var ColorRed = Color{R: 255}

// namedColors mirrors the server's built-in dye palette.
var namedColors = map[string]Color{
	"WHITE":   {R: 255, G: 255, B: 255},
	"SILVER":  {R: 192, G: 192, B: 192},
	"GRAY":    {R: 128, G: 128, B: 128},
	"BLACK":   {R: 0, G: 0, B: 0},
	"RED":     {R: 255, G: 0, B: 0},
	"MAROON":  {R: 128, G: 0, B: 0},
	"YELLOW":  {R: 255, G: 255, B: 0},
	"OLIVE":   {R: 128, G: 128, B: 0},
	"LIME":    {R: 0, G: 255, B: 0},
	"GREEN":   {R: 0, G: 128, B: 0},
	"AQUA":    {R: 0, G: 255, B: 255},
	"TEAL":    {R: 0, G: 128, B: 128},
	"BLUE":    {R: 0, G: 0, B: 255},
	"NAVY":    {R: 0, G: 0, B: 128},
	"FUCHSIA": {R: 255, G: 0, B: 255},
	"PURPLE":  {R: 128, G: 0, B: 128},
	"ORANGE":  {R: 255, G: 165, B: 0},
}

// NewColor validates r, g and b as 0..255 components.
func NewColor(r, g, b int) (Color, error) {
	for _, c := range [...]int{r, g, b} {
		if c < 0 || c > 255 {
			return Color{}, fmt.Errorf("%w: rgb component %d out of range 0-255", ErrInvalidParameter, c)
		}
	}
	return Color{R: uint8(r), G: uint8(g), B: uint8(b)}, nil
}

// ColorByName resolves a palette color name, case-insensitively.
func ColorByName(name string) (Color, error) {
	c, ok := namedColors[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Color{}, fmt.Errorf("%w: unknown color %q", ErrInvalidParameter, name)
	}
	return c, nil
}

// ColorNames returns the palette names in sorted order.
func ColorNames() []string {
	names := make([]string, 0, len(namedColors))
	for n := range namedColors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// String returns the color as "r,g,b".
func (c Color) String() string {
	return fmt.Sprintf("%d,%d,%d", c.R, c.G, c.B)
}
