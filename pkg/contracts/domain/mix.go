package domain

import "fmt"

// Mix identifies one injected grout formulation stage.
// The sensor stream encodes it as an integer code 1-5; the set is
// closed, so unknown codes are rejected at load time rather than
// carried through the pipeline.
type Mix int

const (
	MixWater Mix = 1
	MixA     Mix = 2
	MixB     Mix = 3
	MixC     Mix = 4
	MixD     Mix = 5
)

// mixLabels maps each code to its report label. The mapping is
// bijective; MixCount and the summary report rely on that.
var mixLabels = map[Mix]string{
	MixWater: "Water",
	MixA:     "Mix A",
	MixB:     "Mix B",
	MixC:     "Mix C",
	MixD:     "Mix D",
}

// mixColors carries the fixed display color per mix used by every
// chart view, so series coloring stays consistent across the UI.
var mixColors = map[Mix]string{
	MixWater: "#1f77b4",
	MixA:     "#ff7f0e",
	MixB:     "#2ca02c",
	MixC:     "#d62728",
	MixD:     "#9467bd",
}

// String returns the human-readable mix label.
func (m Mix) String() string {
	if label, ok := mixLabels[m]; ok {
		return label
	}
	return fmt.Sprintf("Mix(%d)", int(m))
}

// Color returns the display color (hex) for chart series.
func (m Mix) Color() string {
	if color, ok := mixColors[m]; ok {
		return color
	}
	return "#7f7f7f"
}

// Valid reports whether the code belongs to the closed set.
func (m Mix) Valid() bool {
	_, ok := mixLabels[m]
	return ok
}

// ParseMix converts a raw integer code from the sensor stream.
func ParseMix(code int) (Mix, error) {
	m := Mix(code)
	if !m.Valid() {
		return 0, fmt.Errorf("unknown mix code %d", code)
	}
	return m, nil
}

// AllMixes returns the five mixes in report order (Water first).
func AllMixes() []Mix {
	return []Mix{MixWater, MixA, MixB, MixC, MixD}
}
