package dataparser

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeSamples(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stats_time.out")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write samples: %v", err)
	}
	return path
}

func TestLoadSamples_SplitsBaselinesAndPairs(t *testing.T) {
	path := writeSamples(t, "1000", "2000", "1500", "2500", "1800", "2900")

	got, err := LoadSamples(path, 2)
	if err != nil {
		t.Fatalf("LoadSamples: %v", err)
	}
	want := &SampleFile{
		Path:             path,
		VictimBaseline:   1000,
		AttackerBaseline: 2000,
		Victim:           []int64{1500, 1800},
		Attacker:         []int64{2500, 2900},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("samples mismatch (-want +got):\n%s", diff)
	}
	if got.Stages() != 2 {
		t.Fatalf("expected 2 stages, got %d", got.Stages())
	}
}

func TestLoadSamples_TooShort(t *testing.T) {
	path := writeSamples(t, "1", "2", "3")

	_, err := LoadSamples(path, 8)
	var ife *InputFormatError
	if !errors.As(err, &ife) {
		t.Fatalf("expected InputFormatError, got %v", err)
	}
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "expected 18 lines") {
		t.Fatalf("error should state the required line count: %v", err)
	}
}

func TestLoadSamples_NonIntegerLine(t *testing.T) {
	path := writeSamples(t, "1000", "2000", "abc", "2500")

	_, err := LoadSamples(path, 1)
	var ife *InputFormatError
	if !errors.As(err, &ife) {
		t.Fatalf("expected InputFormatError, got %v", err)
	}
	if ife.Line != 3 {
		t.Fatalf("expected line 3, got %d", ife.Line)
	}
	if !strings.Contains(err.Error(), `"abc"`) || !strings.Contains(err.Error(), ":3:") {
		t.Fatalf("error should identify the bad line: %v", err)
	}
}

func TestLoadSamples_CounterOutOfRange(t *testing.T) {
	path := writeSamples(t, "1000", "2000", "18446744073709551615", "2500")

	_, err := LoadSamples(path, 1)
	var ife *InputFormatError
	if !errors.As(err, &ife) || ife.Line != 3 {
		t.Fatalf("expected InputFormatError on line 3, got %v", err)
	}
	if !errors.Is(err, strconv.ErrRange) {
		t.Fatalf("expected wrapped strconv.ErrRange, got %v", err)
	}
	if !strings.Contains(err.Error(), "64-bit") {
		t.Fatalf("error should name the counter range: %v", err)
	}
}

func TestLoadSamples_MissingFile(t *testing.T) {
	_, err := LoadSamples(filepath.Join(t.TempDir(), "nope.out"), 1)
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped os.ErrNotExist, got %v", err)
	}
}

func TestParseSamples_EdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		stages  int
		wantErr bool
		want    *SampleFile
	}{
		{
			name:   "surrounding whitespace",
			input:  " 10 \r\n\t20\n30\n40\n",
			stages: 1,
			want:   &SampleFile{Path: "mem", VictimBaseline: 10, AttackerBaseline: 20, Victim: []int64{30}, Attacker: []int64{40}},
		},
		{
			name:   "trailing blank and extra lines ignored",
			input:  "10\n20\n30\n40\n\n99\n",
			stages: 1,
			want:   &SampleFile{Path: "mem", VictimBaseline: 10, AttackerBaseline: 20, Victim: []int64{30}, Attacker: []int64{40}},
		},
		{
			name:   "no trailing newline",
			input:  "10\n20\n30\n40",
			stages: 1,
			want:   &SampleFile{Path: "mem", VictimBaseline: 10, AttackerBaseline: 20, Victim: []int64{30}, Attacker: []int64{40}},
		},
		{
			name:   "negative values",
			input:  "-5\n20\n-10\n40\n",
			stages: 1,
			want:   &SampleFile{Path: "mem", VictimBaseline: -5, AttackerBaseline: 20, Victim: []int64{-10}, Attacker: []int64{40}},
		},
		{name: "blank line inside samples", input: "10\n\n30\n40\n50\n", stages: 1, wantErr: true},
		{name: "float value", input: "10\n20\n3.5\n40\n", stages: 1, wantErr: true},
		{name: "overflow", input: "10\n20\n99999999999999999999\n40\n", stages: 1, wantErr: true},
		{name: "empty input", input: "", stages: 1, wantErr: true},
		{name: "odd count", input: "10\n20\n30\n", stages: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSamples(strings.NewReader(tt.input), "mem", tt.stages)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedInput) {
					t.Fatalf("expected malformed input error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSamples: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("samples mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSamples_RejectsNonPositiveStages(t *testing.T) {
	_, err := ParseSamples(strings.NewReader("1\n2\n"), "mem", 0)
	if err == nil {
		t.Fatalf("expected error for zero stages")
	}
}

func TestReadSamples_ReturnsRawContent(t *testing.T) {
	path := writeSamples(t, "10", "20", "11", "22")

	sf, raw, err := ReadSamples(path, 1)
	if err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	if string(raw) != "10\n20\n11\n22\n" {
		t.Fatalf("unexpected raw content %q", raw)
	}
	if sf.Victim[0] != 11 || sf.Attacker[0] != 22 {
		t.Fatalf("unexpected samples %+v", sf)
	}

	_, _, err = ReadSamples(filepath.Join(t.TempDir(), "missing.out"), 1)
	if !errors.Is(err, ErrMalformedInput) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected malformed input wrapping not-exist, got %v", err)
	}
}

func TestLoadSamples_RecordedRuns(t *testing.T) {
	tests := []struct {
		file             string
		stages           int
		victimBaseline   int64
		attackerBaseline int64
		lastVictim       int64
	}{
		{file: "heap_spray.out", stages: 6, victimBaseline: 4803320, attackerBaseline: 9071150, lastVictim: 136390922},
		// The trailing extra value is ignored.
		{file: "buffer_overflow.out", stages: 8, victimBaseline: 3102410, attackerBaseline: 3391870, lastVictim: 21351222},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			sf, err := LoadSamples(filepath.Join("testdata", tt.file), tt.stages)
			if err != nil {
				t.Fatalf("LoadSamples: %v", err)
			}
			if sf.VictimBaseline != tt.victimBaseline || sf.AttackerBaseline != tt.attackerBaseline {
				t.Fatalf("baselines %d/%d", sf.VictimBaseline, sf.AttackerBaseline)
			}
			if sf.Stages() != tt.stages || sf.Victim[tt.stages-1] != tt.lastVictim {
				t.Fatalf("unexpected samples %+v", sf)
			}
		})
	}
}
