package timing

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"attack-timing/internal/dataframe"
	"attack-timing/internal/plot/timing/mappings"
	plotTemplate "attack-timing/internal/plot/timing/templates/plot"
	wrapperTemplate "attack-timing/internal/plot/timing/templates/wrapper"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

type TimingPlotGenerator struct {
	logger *logrus.Logger
}

func NewTimingPlotGenerator(logger *logrus.Logger) *TimingPlotGenerator {
	return &TimingPlotGenerator{
		logger: logger,
	}
}

// TikzOptions carries the provenance written into the TikZ header.
type TikzOptions struct {
	Description  string
	InputPath    string
	Checksum     string
	PlotFileName string
}

var formatAliases = map[string]string{
	"png":  "png",
	"jpg":  "jpg",
	"jpeg": "jpg",
	"tif":  "tif",
	"tiff": "tif",
	"svg":  "svg",
	"pdf":  "pdf",
	"eps":  "eps",
}

// FormatFromPath maps an output file extension to a gonum/plot format.
func FormatFromPath(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	format, ok := formatAliases[ext]
	if !ok {
		return "", fmt.Errorf("unsupported image format %q for %s", ext, path)
	}
	return format, nil
}

func checkSpec(frames *dataframe.TimingFrames, spec mappings.ChartSpec) error {
	if frames == nil {
		return fmt.Errorf("no timing frames to plot")
	}
	if spec.YMin <= 0 || spec.YMax <= spec.YMin {
		return fmt.Errorf("log axis needs 0 < ymin < ymax (got %g, %g)", spec.YMin, spec.YMax)
	}
	if spec.WidthIn <= 0 || spec.HeightIn <= 0 {
		return fmt.Errorf("figure size must be positive (got %gx%g in)", spec.WidthIn, spec.HeightIn)
	}
	for _, s := range frames.Series() {
		if len(s.Values) != len(spec.Labels) {
			return fmt.Errorf("%s series has %d values for %d labels", s.Actor, len(s.Values), len(spec.Labels))
		}
	}
	return nil
}

// BuildPlot lays out the grouped log-scale bar chart. Axis bounds come from
// spec and are never derived from the data.
func (g *TimingPlotGenerator) BuildPlot(frames *dataframe.TimingFrames, spec mappings.ChartSpec) (*plot.Plot, error) {
	if err := checkSpec(frames, spec); err != nil {
		return nil, err
	}

	p := plot.New()
	p.X.Label.Text = spec.XLabel
	p.Y.Label.Text = spec.YLabel
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	victim := newStageBars(frames.Victim.Values, spec.Victim)
	attacker := newStageBars(frames.Attacker.Values, spec.Attacker)
	p.Add(victim, attacker)

	p.NominalX(spec.Labels...)
	// NominalX hides the axis line; keep it like the y axis.
	p.X.LineStyle.Width = p.Y.LineStyle.Width
	p.X.Tick.Length = p.Y.Tick.Length

	p.X.Min, p.X.Max = spec.XMin, spec.XMax
	p.Y.Min, p.Y.Max = spec.YMin, spec.YMax

	p.Legend.Add(spec.Victim.Legend, victim)
	p.Legend.Add(spec.Attacker.Legend, attacker)
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.Padding = vg.Millimeter

	for _, s := range frames.Series() {
		clipped := 0
		for _, v := range s.Values[1:] {
			if v <= spec.YMin || v > spec.YMax {
				clipped++
			}
		}
		if clipped > 0 {
			g.logger.WithFields(logrus.Fields{
				"variant": frames.Variant,
				"actor":   s.Actor,
				"clipped": clipped,
			}).Debug("Some bars fall outside the y axis range")
		}
	}

	return p, nil
}

// Render writes the chart in the given format to w.
func (g *TimingPlotGenerator) Render(w io.Writer, frames *dataframe.TimingFrames, spec mappings.ChartSpec, format string) error {
	p, err := g.BuildPlot(frames, spec)
	if err != nil {
		return err
	}

	width := vg.Length(spec.WidthIn) * vg.Inch
	height := vg.Length(spec.HeightIn) * vg.Inch
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return fmt.Errorf("failed to create %s canvas: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode %s image: %w", format, err)
	}
	return nil
}

// SaveImage renders in memory first so a failed render never leaves a
// truncated file behind. The format follows the path's extension.
func (g *TimingPlotGenerator) SaveImage(path string, frames *dataframe.TimingFrames, spec mappings.ChartSpec) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := g.Render(&buf, frames, spec, format); err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	g.logger.WithFields(logrus.Fields{
		"variant": frames.Variant,
		"path":    path,
		"format":  format,
		"bytes":   buf.Len(),
	}).Info("Timing plot written")
	return nil
}

// GenerateTikz returns the pgfplots figure and its LaTeX wrapper.
func (g *TimingPlotGenerator) GenerateTikz(frames *dataframe.TimingFrames, spec mappings.ChartSpec, opts TikzOptions) (string, string, error) {
	if err := checkSpec(frames, spec); err != nil {
		return "", "", err
	}

	plotData := g.preparePlotData(frames, spec, opts)
	wrapperData := g.prepareWrapperData(frames, opts)

	plotOutput, err := g.renderPlot(plotData)
	if err != nil {
		return "", "", fmt.Errorf("failed to render plot: %w", err)
	}

	wrapperOutput, err := g.renderWrapper(wrapperData)
	if err != nil {
		return "", "", fmt.Errorf("failed to render wrapper: %w", err)
	}

	g.logger.WithField("variant", frames.Variant).Debug("TikZ plot generated")
	return plotOutput, wrapperOutput, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

func latexEscape(s string) string {
	return latexEscaper.Replace(s)
}

func (g *TimingPlotGenerator) preparePlotData(
	frames *dataframe.TimingFrames,
	spec mappings.ChartSpec,
	opts TikzOptions,
) *plotTemplate.PlotData {

	ticks := make([]string, len(spec.Labels))
	labels := make([]string, len(spec.Labels))
	for i, l := range spec.Labels {
		ticks[i] = strconv.Itoa(i)
		labels[i] = "{" + latexEscape(l) + "}"
	}

	styles := map[dataframe.Actor]mappings.ActorStyle{
		dataframe.ActorVictim:   spec.Victim,
		dataframe.ActorAttacker: spec.Attacker,
	}

	var colors []plotTemplate.ColorDef
	var plotSeries []plotTemplate.PlotSeries
	for _, s := range frames.Series() {
		style := styles[s.Actor]
		actor := string(s.Actor)
		colors = append(colors, plotTemplate.ColorDef{
			Name: style.TikzColorName(actor),
			R:    style.Color.R,
			G:    style.Color.G,
			B:    style.Color.B,
		})

		series := plotTemplate.PlotSeries{
			Actor:       actor,
			Style:       style.ToTikzOptions(actor),
			LegendEntry: latexEscape(style.Legend),
			Coordinates: []string{},
		}
		// Log mode cannot place bars at or below ymin; leave them out.
		for i, v := range s.Values {
			if v <= spec.YMin {
				if i > 0 {
					series.Clipped++
				}
				continue
			}
			series.Coordinates = append(series.Coordinates, fmt.Sprintf("(%d,%s)", i, formatNumber(v)))
		}
		plotSeries = append(plotSeries, series)
	}

	return &plotTemplate.PlotData{
		Variant:          frames.Variant,
		Description:      opts.Description,
		InputPath:        opts.InputPath,
		Checksum:         opts.Checksum,
		Stages:           len(frames.Victim.Samples),
		ClockFrequency:   formatNumber(frames.ClockFrequency),
		VictimBaseline:   frames.Victim.Baseline,
		AttackerBaseline: frames.Attacker.Baseline,
		WidthIn:          formatNumber(spec.WidthIn),
		HeightIn:         formatNumber(spec.HeightIn),
		XLabel:           latexEscape(spec.XLabel),
		YLabel:           latexEscape(spec.YLabel),
		XMin:             formatNumber(spec.XMin),
		XMax:             formatNumber(spec.XMax),
		YMin:             formatNumber(spec.YMin),
		YMax:             formatNumber(spec.YMax),
		XTicks:           strings.Join(ticks, ","),
		XTickLabels:      strings.Join(labels, ","),
		Colors:           colors,
		Plots:            plotSeries,
	}
}

func (g *TimingPlotGenerator) prepareWrapperData(frames *dataframe.TimingFrames, opts TikzOptions) *wrapperTemplate.WrapperData {
	fileName := opts.PlotFileName
	if fileName == "" {
		fileName = fmt.Sprintf("timing-%s.tikz", frames.Variant)
	}
	return &wrapperTemplate.WrapperData{
		Variant:      frames.Variant,
		Checksum:     opts.Checksum,
		PlotFileName: fileName,
		ShortCaption: "Execution time per recovered byte",
		Caption:      fmt.Sprintf("Victim and attacker execution time per size of the recovered secret (%s)", latexEscape(frames.Variant)),
	}
}

func (g *TimingPlotGenerator) renderPlot(data *plotTemplate.PlotData) (string, error) {
	tmpl, err := template.New("plot").Parse(plotTemplate.PlotTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse plot template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute plot template: %w", err)
	}

	return buf.String(), nil
}

func (g *TimingPlotGenerator) renderWrapper(data *wrapperTemplate.WrapperData) (string, error) {
	tmpl, err := template.New("wrapper").Parse(wrapperTemplate.WrapperTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse wrapper template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute wrapper template: %w", err)
	}

	return buf.String(), nil
}
