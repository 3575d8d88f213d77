package pgxsource

import (
	"io"
	"strings"
	"testing"
)

func TestCopyTableSQL(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		columns []string
		want    string
	}{
		{
			name:  "whole table",
			table: "events",
			want:  `COPY "events" TO STDOUT`,
		},
		{
			name:    "column list",
			table:   "events",
			columns: []string{"id", "name"},
			want:    `COPY "events"("id", "name") TO STDOUT`,
		},
		{
			name:  "mixed case identifier",
			table: "Events",
			want:  `COPY "Events" TO STDOUT`,
		},
		{
			name:  "embedded quote",
			table: `ev"il`,
			want:  `COPY "ev""il" TO STDOUT`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CopyTableSQL(tt.table, tt.columns...); got != tt.want {
				t.Errorf("CopyTableSQL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCopyQuerySQL(t *testing.T) {
	got := CopyQuerySQL("SELECT 1")
	want := "COPY (SELECT 1) TO STDOUT"
	if got != want {
		t.Errorf("CopyQuerySQL = %q, want %q", got, want)
	}
}

func TestLineReader(t *testing.T) {
	lr := newLineReader(strings.NewReader("a\tb\n\nlast\n"))

	want := []string{"a\tb", "", "last"}
	for i, w := range want {
		line, err := lr.ReadLine()
		if err != nil {
			t.Fatalf("line %d: ReadLine error = %v", i, err)
		}
		if string(line) != w {
			t.Errorf("line %d = %q, want %q", i, line, w)
		}
	}
	if _, err := lr.ReadLine(); err != io.EOF {
		t.Errorf("ReadLine at end error = %v, want io.EOF", err)
	}
}

func TestLineReader_UnterminatedFinalLine(t *testing.T) {
	// A truncated payload still surfaces its last partial line.
	lr := newLineReader(strings.NewReader("complete\npartial"))

	line, err := lr.ReadLine()
	if err != nil || string(line) != "complete" {
		t.Fatalf("ReadLine = (%q, %v), want (\"complete\", nil)", line, err)
	}
	line, err = lr.ReadLine()
	if err != nil || string(line) != "partial" {
		t.Fatalf("ReadLine = (%q, %v), want (\"partial\", nil)", line, err)
	}
	if _, err := lr.ReadLine(); err != io.EOF {
		t.Errorf("ReadLine at end error = %v, want io.EOF", err)
	}
}

func TestLineReader_Empty(t *testing.T) {
	lr := newLineReader(strings.NewReader(""))
	if _, err := lr.ReadLine(); err != io.EOF {
		t.Errorf("ReadLine error = %v, want io.EOF", err)
	}
}
