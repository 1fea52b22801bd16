package main

import "testing"

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"abort", "abort"},
		{"8", 8},
		{"0.5", 0.5},
		{"true", true},
		{"", ""},
		{"Escribe: {{.Idea}}", "Escribe: {{.Idea}}"},
		{"[1, 2]", "[1, 2]"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseValue(tt.in); got != tt.want {
				t.Errorf("parseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}
