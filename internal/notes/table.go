// SPDX-License-Identifier: MIT
/*
Package notes holds the equal-tempered piano key table (A0 to C8, A4 = 440 Hz)
and nearest-key lookup.

The table is a package-level sorted array built once at init and never
mutated, so it may be read from any goroutine without locking.
*/
package notes

import (
	"math"
	"sort"
	"strings"
)

// Note is one piano key: its reference frequency and display label.
type Note struct {
	Frequency float64 // Reference frequency in Hz.
	Label     string  // e.g. "A4", "C4 (Middle C)".
}

// Cents returns the deviation of freq from the key in cents. Positive values
// are sharp. Returns 0 for non-positive input.
func (n Note) Cents(freq float64) float64 {
	if freq <= 0 || n.Frequency <= 0 {
		return 0
	}
	return 1200 * math.Log2(freq/n.Frequency)
}

// Keys is the number of piano keys in the table.
const Keys = 88

// table is ordered by ascending frequency. Frequencies are rounded to two
// decimals as they appear on a standard piano key chart.
var table = [Keys]Note{
	{27.5, "A0"}, {29.14, "A#0"}, {30.87, "B0"},
	{32.7, "C1"}, {34.65, "C#1"}, {36.71, "D1"}, {38.89, "D#1"}, {41.2, "E1"}, {43.65, "F1"},
	{46.25, "F#1"}, {49.0, "G1"}, {51.91, "G#1"}, {55.0, "A1"}, {58.27, "A#1"}, {61.74, "B1"},
	{65.41, "C2"}, {69.3, "C#2"}, {73.42, "D2"}, {77.78, "D#2"}, {82.41, "E2"}, {87.31, "F2"},
	{92.5, "F#2"}, {98.0, "G2"}, {103.83, "G#2"}, {110.0, "A2"}, {116.54, "A#2"}, {123.47, "B2"},
	{130.81, "C3"}, {138.59, "C#3"}, {146.83, "D3"}, {155.56, "D#3"}, {164.81, "E3"}, {174.61, "F3"},
	{185.0, "F#3"}, {196.0, "G3"}, {207.65, "G#3"}, {220.0, "A3"}, {233.08, "A#3"}, {246.94, "B3"},
	{261.63, "C4 (Middle C)"}, {277.18, "C#4"}, {293.66, "D4"}, {311.13, "D#4"}, {329.63, "E4"},
	{349.23, "F4"}, {369.99, "F#4"}, {392.0, "G4"}, {415.3, "G#4"}, {440.0, "A4"}, {466.16, "A#4"},
	{493.88, "B4"}, {523.25, "C5"}, {554.37, "C#5"}, {587.33, "D5"}, {622.25, "D#5"}, {659.26, "E5"},
	{698.46, "F5"}, {739.99, "F#5"}, {783.99, "G5"}, {830.61, "G#5"}, {880.0, "A5"}, {932.33, "A#5"},
	{987.77, "B5"}, {1046.5, "C6"}, {1108.73, "C#6"}, {1174.66, "D6"}, {1244.51, "D#6"}, {1318.51, "E6"},
	{1396.91, "F6"}, {1479.98, "F#6"}, {1567.98, "G6"}, {1661.22, "G#6"}, {1760.0, "A6"}, {1864.66, "A#6"},
	{1975.53, "B6"}, {2093.0, "C7"}, {2217.46, "C#7"}, {2349.32, "D7"}, {2489.02, "D#7"}, {2637.02, "E7"},
	{2793.83, "F7"}, {2959.96, "F#7"}, {3135.96, "G7"}, {3322.44, "G#7"}, {3520.0, "A7"}, {3729.31, "A#7"},
	{3951.07, "B7"}, {4186.01, "C8"},
}

var byLabel map[string]Note

func init() {
	byLabel = make(map[string]Note, Keys)
	for i, n := range table {
		if i > 0 && n.Frequency <= table[i-1].Frequency {
			panic("notes: table frequencies must be strictly increasing")
		}
		byLabel[n.Label] = n
		if name, _, ok := strings.Cut(n.Label, " "); ok {
			byLabel[name] = n
		}
	}
}

// Notes returns a copy of the table in ascending frequency order.
func Notes() []Note {
	out := make([]Note, Keys)
	copy(out, table[:])
	return out
}

// Nearest returns the key whose reference frequency is closest to freq.
// It is total: queries below A0 or above C8 resolve to the edge key. When
// freq sits exactly between two keys the lower one wins, matching a linear
// scan that keeps the first minimum.
func Nearest(freq float64) Note {
	// First key at or above freq; the answer is it or its lower neighbour.
	i := sort.Search(Keys, func(i int) bool { return table[i].Frequency >= freq })
	switch {
	case i == 0:
		return table[0]
	case i == Keys:
		return table[Keys-1]
	}
	lo, hi := table[i-1], table[i]
	if math.Abs(hi.Frequency-freq) < math.Abs(freq-lo.Frequency) {
		return hi
	}
	return lo
}

// Lookup returns the key with the given label. A key whose label carries a
// nickname, such as "C4 (Middle C)", is also found by its bare name.
func Lookup(label string) (Note, bool) {
	n, ok := byLabel[label]
	return n, ok
}
