package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"attack-timing/internal/database"
	"attack-timing/internal/logging"
	"attack-timing/internal/plot"
	"attack-timing/internal/plot/export"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type renderFlags struct {
	selection
	tikz           bool
	svg            bool
	convert        bool
	converter      string
	pdfVersion     string
	legacyInkscape bool
	spoolDir       string
}

func newRenderCommand() *cobra.Command {
	var flags renderFlags

	renderCmd := &cobra.Command{
		Use:   "render [variant...]",
		Short: "Render timing charts",
		Long: "Render the victim/attacker timing chart of each variant. Without arguments every " +
			"built-in variant is rendered; the image format follows the output file extension.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), cmd.OutOrStdout(), args, flags)
		},
	}

	addSelectionFlags(renderCmd, &flags.selection)
	renderCmd.Flags().StringVarP(&flags.output, "output", "o", "", "Override the output image path (single variant only)")
	renderCmd.Flags().BoolVar(&flags.tikz, "tikz", false, "Also write a pgfplots figure and LaTeX wrapper next to the image")
	renderCmd.Flags().BoolVar(&flags.svg, "svg", false, "Also write an SVG copy next to the image")
	renderCmd.Flags().BoolVar(&flags.convert, "convert", false, "Convert an SVG rendering to PDF with Inkscape")
	renderCmd.Flags().StringVar(&flags.converter, "converter", export.DefaultInkscapePath, "Inkscape executable used by --convert")
	renderCmd.Flags().StringVar(&flags.pdfVersion, "pdf-version", export.DefaultPDFVersion, "PDF version requested from Inkscape")
	renderCmd.Flags().BoolVar(&flags.legacyInkscape, "legacy-inkscape", false, "Use the Inkscape 0.92 command line")
	renderCmd.Flags().StringVar(&flags.spoolDir, "spool-dir", "", "Write a gzip JSON run artifact to this directory (default $ATTACK_TIMING_SPOOL_DIR)")

	return renderCmd
}

func addSelectionFlags(cmd *cobra.Command, sel *selection) {
	cmd.Flags().StringVarP(&sel.configFile, "config", "c", "", "Path to a YAML variant file")
	cmd.Flags().StringVarP(&sel.input, "input", "i", "", "Override the sample file path (single variant only)")
}

func runRender(ctx context.Context, out io.Writer, args []string, flags renderFlags) error {
	logger := logging.GetLogger()

	sources, err := resolveVariants(args, flags.selection)
	if err != nil {
		return err
	}

	var opts []plot.Option
	if flags.convert {
		opts = append(opts, plot.WithConverter(export.NewInkscapeConverter(
			export.WithInkscapePath(flags.converter),
			export.WithPDFVersion(flags.pdfVersion),
			export.WithLegacyCLI(flags.legacyInkscape),
		)))
	}
	pm := plot.NewPlotManager(opts...)

	spoolDir := flags.spoolDir
	if spoolDir == "" {
		spoolDir = strings.TrimSpace(os.Getenv("ATTACK_TIMING_SPOOL_DIR"))
	}

	var errs []error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := src.cfg.Variant.Name
		if err := renderVariant(ctx, out, pm, src, flags, spoolDir); err != nil {
			logger.WithField("variant", name).WithError(err).Error("Failed to render variant")
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func renderVariant(ctx context.Context, out io.Writer, pm *plot.PlotManager, src variantSource, flags renderFlags, spoolDir string) error {
	logger := logging.GetLogger()

	in, err := loadRun(src)
	if err != nil {
		return err
	}

	output := in.cfg.Variant.Output
	opts := plot.RenderOptions{
		Output:      output,
		Checksum:    in.checksum,
		InputPath:   in.cfg.Variant.Input,
		Description: in.cfg.Variant.Description,
	}
	if flags.tikz {
		opts.TikzPath = replaceExt(output, ".tikz")
	}
	if flags.svg {
		opts.SVGPath = replaceExt(output, ".svg")
	}

	res, err := pm.Render(ctx, in.frames, in.spec, opts)
	if err != nil {
		return err
	}
	if res.ConversionErr != nil {
		var toolErr *export.ExternalToolError
		if errors.As(res.ConversionErr, &toolErr) {
			logger.WithField("tool", toolErr.Tool).Debug(strings.TrimSpace(toolErr.Output))
		}
	}

	files := res.Files()
	if spoolDir != "" {
		artifact := database.BuildSpoolArtifact(in.samples, in.frames, in.checksum, in.configContent, files)
		path, err := database.WriteSpoolArtifact(spoolDir, artifact)
		if err != nil {
			logger.WithField("spool_dir", spoolDir).WithError(err).Warn("Failed to write spool artifact")
		} else {
			logger.WithField("path", path).Info("Spool artifact written")
			files = append(files, path)
		}
	}

	logger.WithFields(logrus.Fields{
		"variant":  in.cfg.Variant.Name,
		"checksum": in.checksum,
		"files":    len(files),
	}).Info("Variant rendered")

	for _, f := range files {
		fmt.Fprintln(out, f)
	}
	return nil
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
