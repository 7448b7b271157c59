package timing

import (
	"image/color"
	"math"

	"attack-timing/internal/plot/timing/mappings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// stageBars draws one actor's bars. Unlike plotter.BarChart it never
// transforms values outside the y axis range, so it is safe on a log axis:
// bars rise from the lower bound and are clipped at the upper bound, and
// values at or below the lower bound are not drawn.
type stageBars struct {
	values []float64
	style  mappings.ActorStyle

	outline      draw.LineStyle
	hatchLine    draw.LineStyle
	hatchSpacing vg.Length
}

var (
	_ plot.Plotter     = (*stageBars)(nil)
	_ plot.DataRanger  = (*stageBars)(nil)
	_ plot.Thumbnailer = (*stageBars)(nil)
)

func newStageBars(values []float64, style mappings.ActorStyle) *stageBars {
	return &stageBars{
		values: append([]float64(nil), values...),
		style:  style,
		outline: draw.LineStyle{
			Color: color.Black,
			Width: vg.Points(0.5),
		},
		hatchLine: draw.LineStyle{
			Color: color.Black,
			Width: vg.Points(0.5),
		},
		hatchSpacing: vg.Points(6),
	}
}

func (b *stageBars) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	yMin, yMax := plt.Y.Min, plt.Y.Max

	for i, v := range b.values {
		if math.IsNaN(v) || v <= yMin {
			continue
		}
		top := math.Min(v, yMax)
		center := float64(i) + b.style.Offset
		r := vg.Rectangle{
			Min: vg.Point{X: trX(center - b.style.Width/2), Y: trY(yMin)},
			Max: vg.Point{X: trX(center + b.style.Width/2), Y: trY(top)},
		}
		b.drawBar(&c, r)
	}
}

func (b *stageBars) drawBar(c *draw.Canvas, r vg.Rectangle) {
	pts := []vg.Point{
		{X: r.Min.X, Y: r.Min.Y},
		{X: r.Min.X, Y: r.Max.Y},
		{X: r.Max.X, Y: r.Max.Y},
		{X: r.Max.X, Y: r.Min.Y},
	}
	c.FillPolygon(b.style.Color, c.ClipPolygonXY(pts))

	if !b.style.Hatch.IsZero() {
		spacing := b.hatchSpacing / vg.Length(b.style.Hatch.Density)
		lines := hatchLines(r, spacing, b.style.Hatch.Direction)
		if len(lines) > 0 {
			c.StrokeLines(b.hatchLine, c.ClipLinesXY(lines...)...)
		}
	}

	outline := append(pts, pts[0])
	c.StrokeLines(b.outline, c.ClipLinesXY(outline)...)
}

// DataRange covers every bar including its offset. The generator pins the
// axes afterwards, so this only matters when the plot is reused elsewhere.
func (b *stageBars) DataRange() (xmin, xmax, ymin, ymax float64) {
	half := b.style.Width / 2
	xmin = b.style.Offset - half
	xmax = float64(len(b.values)-1) + b.style.Offset + half

	ymin, ymax = math.Inf(1), math.Inf(-1)
	for _, v := range b.values {
		if v <= 0 || math.IsNaN(v) {
			continue
		}
		ymin = math.Min(ymin, v)
		ymax = math.Max(ymax, v)
	}
	if ymin > ymax {
		ymin, ymax = 1, 1
	}
	return xmin, xmax, ymin, ymax
}

// Thumbnail draws the legend swatch with the same fill and hatch as the bars.
func (b *stageBars) Thumbnail(c *draw.Canvas) {
	b.drawBar(c, c.Rectangle)
}

// hatchLines returns 45 degree segments covering r, spaced along the x axis.
func hatchLines(r vg.Rectangle, spacing vg.Length, dir mappings.HatchDirection) [][]vg.Point {
	if spacing <= 0 || r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y {
		return nil
	}
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X, r.Max.Y

	var lines [][]vg.Point
	switch dir {
	case mappings.HatchForward:
		// y = x + k
		for k := y0 - x1 + spacing; k < y1-x0; k += spacing {
			xs := maxLength(x0, y0-k)
			xe := minLength(x1, y1-k)
			if xe > xs {
				lines = append(lines, []vg.Point{{X: xs, Y: xs + k}, {X: xe, Y: xe + k}})
			}
		}
	case mappings.HatchBackward:
		// y = -x + k
		for k := x0 + y0 + spacing; k < x1+y1; k += spacing {
			xs := maxLength(x0, k-y1)
			xe := minLength(x1, k-y0)
			if xe > xs {
				lines = append(lines, []vg.Point{{X: xs, Y: k - xs}, {X: xe, Y: k - xe}})
			}
		}
	}
	return lines
}

func minLength(a, b vg.Length) vg.Length {
	if a < b {
		return a
	}
	return b
}

func maxLength(a, b vg.Length) vg.Length {
	if a > b {
		return a
	}
	return b
}
