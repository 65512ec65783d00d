package runview

import (
	"math/rand/v2"
	"slices"
)

// Color is a display color token (a CSS hex value in the built-in palette).
type Color string

// Palette is the fixed ordered set of assignable colors.
type Palette []Color

// DefaultPalette has ten distinct colors. Namespaces with more than ten items
// reuse colors.
var DefaultPalette = Palette{
	"#1f77b4",
	"#ff7f0e",
	"#2ca02c",
	"#d62728",
	"#9467bd",
	"#8c564b",
	"#e377c2",
	"#7f7f7f",
	"#bcbd22",
	"#17becf",
}

// At returns the color for ordinal i, wrapping around the palette.
func (p Palette) At(i int) Color {
	if len(p) == 0 {
		return ""
	}
	if i < 0 {
		i = -i
	}
	return p[i%len(p)]
}

// Contains reports whether c is part of the palette.
func (p Palette) Contains(c Color) bool {
	return slices.Contains(p, c)
}

// shuffleColors performs an in-place Fisher–Yates shuffle.
func shuffleColors(colors []Color, rng *rand.Rand) {
	for i := len(colors) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		colors[i], colors[j] = colors[j], colors[i]
	}
}
