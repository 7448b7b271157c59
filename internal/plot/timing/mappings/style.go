package mappings

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Palette used by the experiment figures.
var (
	PaletteBlue   = color.RGBA{R: 114, G: 158, B: 206, A: 255}
	PaletteOrange = color.RGBA{R: 255, G: 158, B: 74, A: 255}
	PaletteGreen  = color.RGBA{R: 103, G: 191, B: 92, A: 255}
	PaletteRed    = color.RGBA{R: 237, G: 102, B: 93, A: 255}
)

var namedColors = map[string]color.RGBA{
	"blue":   PaletteBlue,
	"orange": PaletteOrange,
	"green":  PaletteGreen,
	"red":    PaletteRed,
	"black":  {A: 255},
	"white":  {R: 255, G: 255, B: 255, A: 255},
}

// HatchDirection is the slope of the hatch strokes.
type HatchDirection int

const (
	HatchNone HatchDirection = iota
	// HatchForward draws "/" strokes.
	HatchForward
	// HatchBackward draws "\" strokes.
	HatchBackward
)

// Hatch is a parsed hatch pattern such as "/", "//" or "\\".
// Repeating the stroke character increases the density.
type Hatch struct {
	Direction HatchDirection
	Density   int
}

func (h Hatch) IsZero() bool {
	return h.Direction == HatchNone || h.Density <= 0
}

func (h Hatch) String() string {
	switch {
	case h.IsZero():
		return ""
	case h.Direction == HatchForward:
		return strings.Repeat("/", h.Density)
	default:
		return strings.Repeat(`\`, h.Density)
	}
}

// ParseHatch accepts an empty string or a run of a single stroke character.
func ParseHatch(s string) (Hatch, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Hatch{}, nil
	}
	var dir HatchDirection
	switch s[0] {
	case '/':
		dir = HatchForward
	case '\\':
		dir = HatchBackward
	default:
		return Hatch{}, fmt.Errorf("unsupported hatch %q", s)
	}
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return Hatch{}, fmt.Errorf("mixed hatch strokes in %q", s)
		}
	}
	return Hatch{Direction: dir, Density: len(s)}, nil
}

// ParseColor resolves a palette name or a "#rrggbb" hex string.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 || hex == s {
		return color.RGBA{}, fmt.Errorf("invalid color %q (want palette name or #rrggbb)", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// ActorStyle describes how one actor's bars are drawn. Offset and Width are
// in category units, so 0.4 is 40% of the spacing between two ticks.
type ActorStyle struct {
	Legend string
	Color  color.RGBA
	Hatch  Hatch
	Offset float64
	Width  float64
}

// TikzColorName is the xcolor name defined for the actor in TikZ output.
func (as ActorStyle) TikzColorName(actor string) string {
	return "timing" + actor
}

// ToTikzOptions returns the \addplot options for the actor's bars.
func (as ActorStyle) ToTikzOptions(actor string) string {
	name := as.TikzColorName(actor)
	options := fmt.Sprintf("fill=%s,draw=black,bar width=%g,bar shift=%g", name, as.Width, as.Offset)
	switch {
	case as.Hatch.IsZero():
	case as.Hatch.Direction == HatchForward:
		options += ",postaction={pattern=north east lines}"
	default:
		options += ",postaction={pattern=north west lines}"
	}
	return options
}

// ChartSpec holds the fixed rendering parameters of one figure.
type ChartSpec struct {
	WidthIn, HeightIn float64
	XMin, XMax        float64
	YMin, YMax        float64
	Labels            []string
	XLabel, YLabel    string
	Victim, Attacker  ActorStyle
}
