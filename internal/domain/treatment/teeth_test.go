package treatment

import "testing"

func TestFormatToothNumbers(t *testing.T) {
	tests := []struct {
		name  string
		teeth []int
		want  string
	}{
		{"empty", nil, ""},
		{"single", []int{11}, "11"},
		{"pair stays comma list", []int{11, 12}, "11, 12"},
		{"run of three collapses", []int{11, 12, 13}, "11-13"},
		{"non-consecutive", []int{11, 13}, "11, 13"},
		{"run plus straggler", []int{11, 12, 13, 15}, "11-13, 15"},
		{"unsorted input", []int{15, 11, 13, 12}, "11-13, 15"},
		{"two runs", []int{21, 22, 23, 31, 32, 33, 34}, "21-23, 31-34"},
		{"pair between runs", []int{11, 12, 13, 15, 16, 21, 22, 23}, "11-13, 15, 16, 21-23"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatToothNumbers(tt.teeth); got != tt.want {
				t.Errorf("FormatToothNumbers(%v) = %q, want %q", tt.teeth, got, tt.want)
			}
		})
	}
}

func TestValidFDINumber(t *testing.T) {
	tests := []struct {
		n    int
		want bool
	}{
		{11, true},
		{18, true},
		{48, true},
		{51, true},
		{55, true},
		{85, true},
		{10, false},
		{19, false},
		{49, false},
		{56, false},
		{86, false},
		{0, false},
		{-11, false},
		{90, false},
	}
	for _, tt := range tests {
		if got := ValidFDINumber(tt.n); got != tt.want {
			t.Errorf("ValidFDINumber(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}
