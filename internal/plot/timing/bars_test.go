package timing

import (
	"math"
	"testing"

	"attack-timing/internal/plot/timing/mappings"

	"gonum.org/v1/plot/vg"
)

func TestHatchLines_StayInsideRectangle(t *testing.T) {
	r := vg.Rectangle{Min: vg.Point{X: 10, Y: 5}, Max: vg.Point{X: 30, Y: 80}}
	for _, dir := range []mappings.HatchDirection{mappings.HatchForward, mappings.HatchBackward} {
		lines := hatchLines(r, 4, dir)
		if len(lines) == 0 {
			t.Fatalf("direction %v: expected hatch lines", dir)
		}
		for _, l := range lines {
			if len(l) != 2 {
				t.Fatalf("expected segments, got %d points", len(l))
			}
			for _, p := range l {
				if p.X < r.Min.X-1e-9 || p.X > r.Max.X+1e-9 || p.Y < r.Min.Y-1e-9 || p.Y > r.Max.Y+1e-9 {
					t.Fatalf("direction %v: point %v outside %v", dir, p, r)
				}
			}
			dx := float64(l[1].X - l[0].X)
			dy := float64(l[1].Y - l[0].Y)
			slope := dy / dx
			want := 1.0
			if dir == mappings.HatchBackward {
				want = -1
			}
			if math.Abs(slope-want) > 1e-9 {
				t.Fatalf("direction %v: slope %v, want %v", dir, slope, want)
			}
		}
	}
}

func TestHatchLines_DensityAddsLines(t *testing.T) {
	r := vg.Rectangle{Min: vg.Point{X: 0, Y: 0}, Max: vg.Point{X: 20, Y: 50}}
	sparse := hatchLines(r, 6, mappings.HatchForward)
	dense := hatchLines(r, 3, mappings.HatchForward)
	if len(dense) <= len(sparse) {
		t.Fatalf("halving spacing should add lines: %d vs %d", len(dense), len(sparse))
	}
}

func TestHatchLines_Degenerate(t *testing.T) {
	flat := vg.Rectangle{Min: vg.Point{X: 0, Y: 5}, Max: vg.Point{X: 10, Y: 5}}
	if got := hatchLines(flat, 2, mappings.HatchForward); got != nil {
		t.Fatalf("expected no lines for a flat bar, got %d", len(got))
	}
	r := vg.Rectangle{Max: vg.Point{X: 10, Y: 10}}
	if got := hatchLines(r, 0, mappings.HatchForward); got != nil {
		t.Fatalf("expected no lines for zero spacing")
	}
	if got := hatchLines(r, 2, mappings.HatchNone); got != nil {
		t.Fatalf("expected no lines without a hatch")
	}
}

func TestStageBars_DataRangeIgnoresNonPositive(t *testing.T) {
	b := newStageBars([]float64{0, 2, -1, 50}, mappings.ActorStyle{Offset: -0.2, Width: 0.4})
	xmin, xmax, ymin, ymax := b.DataRange()
	if math.Abs(xmin-(-0.4)) > 1e-12 || math.Abs(xmax-2.8) > 1e-12 {
		t.Fatalf("x range %v..%v", xmin, xmax)
	}
	if ymin != 2 || ymax != 50 {
		t.Fatalf("y range %v..%v", ymin, ymax)
	}

	empty := newStageBars([]float64{0, 0}, mappings.ActorStyle{Width: 0.4})
	if _, _, ymin, ymax := empty.DataRange(); ymin != 1 || ymax != 1 {
		t.Fatalf("all-zero series should report a unit range, got %v..%v", ymin, ymax)
	}
}
