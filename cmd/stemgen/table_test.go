package main

import (
	"strings"
	"testing"
)

func TestRenderTableRightAlignsRequestedColumns(t *testing.T) {
	out := renderTable(
		[]string{"Stem", "Score"},
		[][]string{{"vocals", "12.5"}, {"drums", "7.0"}},
		1,
	)
	// Header text is upper-cased by the table style.
	if !strings.Contains(out, "STEM") || !strings.Contains(out, "vocals") {
		t.Fatalf("table output missing content:\n%s", out)
	}
	// Right alignment pads the short score on the left.
	if !strings.Contains(out, " 7.0 ") || strings.Contains(out, "7.0  ") {
		t.Fatalf("score column not right aligned:\n%s", out)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"A", "B", "C"},
		[][]string{{"only"}},
	)
	if !strings.Contains(out, "only") {
		t.Fatalf("row content missing:\n%s", out)
	}
	if renderTable(nil, nil) != "" {
		t.Fatal("empty headers should render nothing")
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   uint64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tc := range cases {
		if got := formatBytes(tc.in); got != tc.want {
			t.Fatalf("formatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
