package plot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"attack-timing/internal/dataframe"
	"attack-timing/internal/logging"
	"attack-timing/internal/plot/export"
	"attack-timing/internal/plot/timing"
	"attack-timing/internal/plot/timing/mappings"

	"github.com/sirupsen/logrus"
)

type PlotManager struct {
	timingGenerator *timing.TimingPlotGenerator
	converter       export.Converter
	logger          *logrus.Logger
}

type Option func(*PlotManager)

// WithConverter enables PDF conversion through an external tool.
func WithConverter(c export.Converter) Option {
	return func(pm *PlotManager) {
		pm.converter = c
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(pm *PlotManager) {
		if logger != nil {
			pm.logger = logger
		}
	}
}

func NewPlotManager(opts ...Option) *PlotManager {
	pm := &PlotManager{
		logger: logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(pm)
	}
	pm.timingGenerator = timing.NewTimingPlotGenerator(pm.logger)
	return pm
}

// RenderOptions names the files produced for one variant. Only Output is
// required; empty paths disable the matching artifact.
type RenderOptions struct {
	Output      string
	TikzPath    string
	SVGPath     string
	PDFPath     string
	Checksum    string
	InputPath   string
	Description string
}

type RenderResult struct {
	Output      string
	TikzPath    string
	WrapperPath string
	SVGPath     string
	PDFPath     string
	// ConversionErr is set when the optional PDF conversion failed. The
	// primary output is still in place.
	ConversionErr error
}

// Files lists every artifact that was written.
func (r *RenderResult) Files() []string {
	var files []string
	for _, f := range []string{r.Output, r.TikzPath, r.WrapperPath, r.SVGPath, r.PDFPath} {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

// Render writes the primary image, then the optional TikZ figure, then the
// optional PDF conversion. Only a failure of the first two is returned as
// an error.
func (pm *PlotManager) Render(ctx context.Context, frames *dataframe.TimingFrames, spec mappings.ChartSpec, opts RenderOptions) (*RenderResult, error) {
	if opts.Output == "" {
		return nil, fmt.Errorf("output path is required")
	}

	if err := pm.timingGenerator.SaveImage(opts.Output, frames, spec); err != nil {
		return nil, err
	}
	result := &RenderResult{Output: opts.Output}

	if opts.TikzPath != "" {
		wrapperPath, err := pm.writeTikz(frames, spec, opts)
		if err != nil {
			return result, err
		}
		result.TikzPath = opts.TikzPath
		result.WrapperPath = wrapperPath
	}

	if pm.converter != nil {
		svgPath, pdfPath, err := pm.convert(ctx, frames, spec, opts)
		if svgPath != "" {
			result.SVGPath = svgPath
		}
		if err != nil {
			result.ConversionErr = err
			pm.logger.WithFields(logrus.Fields{
				"variant": frames.Variant,
				"output":  opts.Output,
			}).WithError(err).Warn("PDF conversion failed, keeping primary output")
		} else {
			result.PDFPath = pdfPath
		}
	} else if opts.SVGPath != "" {
		if err := pm.timingGenerator.SaveImage(opts.SVGPath, frames, spec); err != nil {
			return result, err
		}
		result.SVGPath = opts.SVGPath
	}

	return result, nil
}

// GenerateTikz returns the pgfplots figure and its wrapper without writing.
func (pm *PlotManager) GenerateTikz(frames *dataframe.TimingFrames, spec mappings.ChartSpec, opts RenderOptions) (plotTikz, wrapperTex string, err error) {
	return pm.timingGenerator.GenerateTikz(frames, spec, timing.TikzOptions{
		Description:  opts.Description,
		InputPath:    opts.InputPath,
		Checksum:     opts.Checksum,
		PlotFileName: filepath.Base(opts.TikzPath),
	})
}

func (pm *PlotManager) writeTikz(frames *dataframe.TimingFrames, spec mappings.ChartSpec, opts RenderOptions) (string, error) {
	plotTikz, wrapperTex, err := pm.GenerateTikz(frames, spec, opts)
	if err != nil {
		return "", err
	}

	if err := writeFile(opts.TikzPath, plotTikz); err != nil {
		return "", err
	}
	wrapperPath := WrapperPath(opts.TikzPath)
	if err := writeFile(wrapperPath, wrapperTex); err != nil {
		return "", err
	}

	pm.logger.WithFields(logrus.Fields{
		"variant": frames.Variant,
		"tikz":    opts.TikzPath,
		"wrapper": wrapperPath,
	}).Info("TikZ figure written")
	return wrapperPath, nil
}

// convert renders an SVG intermediate and hands it to the converter. The
// SVG path is returned whenever the intermediate was written.
func (pm *PlotManager) convert(ctx context.Context, frames *dataframe.TimingFrames, spec mappings.ChartSpec, opts RenderOptions) (string, string, error) {
	svgPath := opts.SVGPath
	if svgPath == "" {
		svgPath = replaceExt(opts.Output, ".svg")
	}
	pdfPath := opts.PDFPath
	if pdfPath == "" {
		pdfPath = replaceExt(opts.Output, ".pdf")
	}
	if filepath.Clean(pdfPath) == filepath.Clean(opts.Output) {
		pdfPath = replaceExt(opts.Output, "") + "-inkscape.pdf"
	}
	if filepath.Clean(svgPath) == filepath.Clean(opts.Output) {
		svgPath = replaceExt(opts.Output, "") + "-intermediate.svg"
	}

	if err := pm.timingGenerator.SaveImage(svgPath, frames, spec); err != nil {
		return "", "", fmt.Errorf("failed to write svg intermediate: %w", err)
	}
	if err := pm.converter.Convert(ctx, svgPath, pdfPath); err != nil {
		return svgPath, "", err
	}

	pm.logger.WithFields(logrus.Fields{
		"variant": frames.Variant,
		"svg":     svgPath,
		"pdf":     pdfPath,
	}).Info("PDF conversion finished")
	return svgPath, pdfPath, nil
}

// WrapperPath derives the LaTeX wrapper file name from the TikZ path.
func WrapperPath(tikzPath string) string {
	return replaceExt(tikzPath, "") + "-wrapper.tex"
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
