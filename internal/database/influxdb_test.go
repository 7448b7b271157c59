package database

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"attack-timing/internal/dataframe"

	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

func testFrames() *dataframe.TimingFrames {
	return &dataframe.TimingFrames{
		Variant:        "heap-spray",
		ClockFrequency: 1000,
		Labels:         []string{"", "1", "2", " ", "Find set"},
		Victim: dataframe.StageSeries{
			Actor:    dataframe.ActorVictim,
			Baseline: 100,
			Samples:  []int64{1100, 2100},
			Values:   []float64{0, 1, 2, 0, 0.1},
		},
		Attacker: dataframe.StageSeries{
			Actor:    dataframe.ActorAttacker,
			Baseline: 200,
			Samples:  []int64{4200, 8200},
			Values:   []float64{0, 4, 8, 0, 0.2},
		},
	}
}

func tagsOf(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func fieldsOf(p *write.Point) map[string]interface{} {
	out := map[string]interface{}{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestFramePoints(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	points, err := framePoints(testFrames(), "abc123", ts)
	if err != nil {
		t.Fatalf("framePoints: %v", err)
	}
	if len(points) != 10 {
		t.Fatalf("expected 10 points, got %d", len(points))
	}

	first := points[0]
	if first.Name() != MeasurementTiming {
		t.Fatalf("unexpected measurement %s", first.Name())
	}
	wantTags := map[string]string{"variant": "heap-spray", "actor": "victim", "checksum": "abc123", "stage_label": ""}
	if diff := cmp.Diff(wantTags, tagsOf(first)); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
	if _, ok := fieldsOf(first)["sample"]; ok {
		t.Fatalf("stage 0 has no raw sample")
	}

	stage2 := points[2]
	fields := fieldsOf(stage2)
	if fields["sample"] != int64(2100) || fields["elapsed_ms"] != 2.0 || fields["stage"] != int64(2) {
		t.Fatalf("unexpected stage 2 fields: %v", fields)
	}
	if !stage2.Time().Equal(ts.Add(2 * time.Microsecond)) {
		t.Fatalf("unexpected timestamp %v", stage2.Time())
	}

	findSet := points[9]
	if tagsOf(findSet)["actor"] != "attacker" || tagsOf(findSet)["stage_label"] != "Find set" {
		t.Fatalf("unexpected last point tags: %v", tagsOf(findSet))
	}
	if _, ok := fieldsOf(findSet)["sample"]; ok {
		t.Fatalf("find-set bar has no raw sample")
	}
}

func TestFramePoints_LabelMismatch(t *testing.T) {
	frames := testFrames()
	frames.Labels = frames.Labels[:3]
	if _, err := framePoints(frames, "", time.Now()); err == nil {
		t.Fatalf("expected label mismatch error")
	}
	if _, err := framePoints(nil, "", time.Now()); err == nil {
		t.Fatalf("expected error for nil frames")
	}
}

type recordingWriter struct {
	points []*write.Point
	err    error
}

func (w *recordingWriter) WritePoint(_ context.Context, point ...*write.Point) error {
	if w.err != nil {
		return w.err
	}
	w.points = append(w.points, point...)
	return nil
}

func testClient(w pointWriter) *InfluxDBClient {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &InfluxDBClient{writeAPI: w, bucket: "test", logger: logger}
}

func TestWriteFrames(t *testing.T) {
	w := &recordingWriter{}
	idb := testClient(w)
	if err := idb.WriteFrames(context.Background(), testFrames(), "abc123", time.Now()); err != nil {
		t.Fatalf("WriteFrames: %v", err)
	}
	if len(w.points) != 10 {
		t.Fatalf("expected 10 points written, got %d", len(w.points))
	}

	failing := testClient(&recordingWriter{err: errors.New("unauthorized")})
	if err := failing.WriteFrames(context.Background(), testFrames(), "abc123", time.Now()); err == nil {
		t.Fatalf("expected write error")
	}
}

func TestWriteMetadata(t *testing.T) {
	w := &recordingWriter{}
	idb := testClient(w)
	meta := NewRunMetadata(testFrames(), "abc123", "stats_time.out", "variant: {}", "dev")
	if meta.Stages != 2 || meta.Variant != "heap-spray" || meta.Hostname == "" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if err := idb.WriteMetadata(context.Background(), meta, time.Now()); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if len(w.points) != 1 || w.points[0].Name() != MeasurementMeta {
		t.Fatalf("expected one metadata point, got %d", len(w.points))
	}
	if tagsOf(w.points[0])["checksum"] != "abc123" {
		t.Fatalf("metadata not tagged with checksum")
	}
}

// rowsFrom mirrors what QueryFrames reads back after WriteFrames(ts).
func rowsFrom(frames *dataframe.TimingFrames, ts time.Time) []frameRow {
	var rows []frameRow
	for _, s := range frames.Series() {
		for i, v := range s.Values {
			r := frameRow{
				Time:           ts.Add(time.Duration(i) * time.Microsecond),
				Actor:          string(s.Actor),
				Label:          frames.Labels[i],
				Stage:          i,
				ElapsedMS:      v,
				Baseline:       s.Baseline,
				ClockFrequency: frames.ClockFrequency,
			}
			if i >= 1 && i <= len(s.Samples) {
				sample := s.Samples[i-1]
				r.Sample = &sample
			}
			rows = append(rows, r)
		}
	}
	return rows
}

func TestFramesFromRows_RoundTrip(t *testing.T) {
	want := testFrames()
	rows := rowsFrom(want, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	// Query results are not guaranteed to arrive in stage order.
	rows[0], rows[3] = rows[3], rows[0]

	got, err := framesFromRows(want.Variant, rows)
	if err != nil {
		t.Fatalf("framesFromRows: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestFramesFromRows_Errors(t *testing.T) {
	if _, err := framesFromRows("x", nil); err == nil {
		t.Fatalf("expected error for no rows")
	}

	rows := rowsFrom(testFrames(), time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	victimOnly := rows[:5]
	if _, err := framesFromRows("x", victimOnly); err == nil {
		t.Fatalf("expected error for missing attacker")
	}

	gap := append([]frameRow(nil), rows...)
	gap = append(gap[:1], gap[2:]...)
	if _, err := framesFromRows("x", gap); err == nil {
		t.Fatalf("expected error for a missing stage")
	}
}

func TestFramesFromRows_RepublishedRunKeepsLatest(t *testing.T) {
	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	stale := testFrames()
	stale.Victim.Values[1] = 99
	want := testFrames()

	// Query results are grouped and sorted by stage, so both runs interleave.
	var rows []frameRow
	oldRows, newRows := rowsFrom(stale, first), rowsFrom(want, second)
	for i := range newRows {
		rows = append(rows, oldRows[i], newRows[i])
	}

	got, err := framesFromRows(want.Variant, rows)
	if err != nil {
		t.Fatalf("framesFromRows: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}

	// Identical republish, same as re-running publish on unchanged input.
	rows = append(rowsFrom(want, first), rowsFrom(want, second)...)
	if _, err := framesFromRows(want.Variant, rows); err != nil {
		t.Fatalf("identical republish: %v", err)
	}
}

func TestFluxString(t *testing.T) {
	tests := map[string]string{
		"abc123":          "abc123",
		`ab"c`:            `ab\"c`,
		`a\b`:             `a\\b`,
		"${x}":            `\${x}`,
		`") |> drop() //`: `\") |> drop() //`,
	}
	for in, want := range tests {
		if got := fluxString(in); got != want {
			t.Errorf("fluxString(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConnectionConfigFromEnv(t *testing.T) {
	t.Setenv("INFLUXDB_HOST", "http://localhost:8086")
	t.Setenv("INFLUXDB_TOKEN", "token")
	t.Setenv("INFLUXDB_ORG", "lab")
	t.Setenv("INFLUXDB_BUCKET", "")

	_, err := ConnectionConfigFromEnv()
	if err == nil {
		t.Fatalf("expected error for missing bucket")
	}

	t.Setenv("INFLUXDB_BUCKET", "timing")
	cfg, err := ConnectionConfigFromEnv()
	if err != nil {
		t.Fatalf("ConnectionConfigFromEnv: %v", err)
	}
	want := ConnectionConfig{Host: "http://localhost:8086", Token: "token", Org: "lab", Bucket: "timing"}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}
