package domain

import "strconv"

// MixCountHeaders is the column order of the mix count report.
var MixCountHeaders = []string{"Mix Type", "Count"}

// MixCount tallies how many segments used each mix across all holes
// of one input file. All five mixes are always present, zero or not.
type MixCount map[Mix]int

// NewMixCount returns a tally with every mix initialized to zero so
// the report always lists the full closed set.
func NewMixCount() MixCount {
	counts := make(MixCount, 5)
	for _, m := range AllMixes() {
		counts[m] = 0
	}
	return counts
}

// Add records one segment of the given mix.
func (c MixCount) Add(m Mix) {
	c[m]++
}

// Total returns the number of segments tallied.
func (c MixCount) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Rows renders the tally in fixed report order (Water first).
func (c MixCount) Rows() [][]string {
	rows := make([][]string, 0, len(AllMixes()))
	for _, m := range AllMixes() {
		rows = append(rows, []string{m.String(), strconv.Itoa(c[m])})
	}
	return rows
}
