package treatment

import (
	"sort"
	"strconv"
	"strings"
)

// FormatToothNumbers renders a tooth selection as a compact display
// string: sorted ascending, strictly consecutive runs of three or more
// collapse to "a-b", runs of exactly two stay "a, b".
func FormatToothNumbers(teeth []int) string {
	if len(teeth) == 0 {
		return ""
	}

	sorted := make([]int, len(teeth))
	copy(sorted, teeth)
	sort.Ints(sorted)

	var parts []string
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i] == sorted[i-1]+1 {
			continue
		}
		run := sorted[start:i]
		if len(run) >= 3 {
			parts = append(parts, strconv.Itoa(run[0])+"-"+strconv.Itoa(run[len(run)-1]))
		} else {
			for _, t := range run {
				parts = append(parts, strconv.Itoa(t))
			}
		}
		start = i
	}
	return strings.Join(parts, ", ")
}

// ValidFDINumber reports whether n is a valid FDI tooth number: quadrants
// 1-4 positions 1-8 for permanent teeth, quadrants 5-8 positions 1-5 for
// primary teeth.
func ValidFDINumber(n int) bool {
	quadrant := n / 10
	position := n % 10
	switch {
	case quadrant >= 1 && quadrant <= 4:
		return position >= 1 && position <= 8
	case quadrant >= 5 && quadrant <= 8:
		return position >= 1 && position <= 5
	default:
		return false
	}
}
