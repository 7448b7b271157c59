package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"attack-timing/internal/config"
	"attack-timing/internal/logging"
	"attack-timing/internal/plot"

	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	var sel selection

	validateCmd := &cobra.Command{
		Use:   "validate [variant...]",
		Short: "Check sample files and print the computed series",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), args, sel)
		},
	}
	addSelectionFlags(validateCmd, &sel)
	return validateCmd
}

func runValidate(out io.Writer, args []string, sel selection) error {
	logger := logging.GetLogger()

	sources, err := resolveVariants(args, sel)
	if err != nil {
		return err
	}

	var errs []error
	for i, src := range sources {
		in, err := loadRun(src)
		if err != nil {
			logger.WithField("variant", src.cfg.Variant.Name).WithError(err).Error("Validation failed")
			errs = append(errs, fmt.Errorf("%s: %w", src.cfg.Variant.Name, err))
			continue
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		if err := printSeries(out, in); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

func printSeries(out io.Writer, in *runInput) error {
	fmt.Fprintf(out, "variant:  %s\n", in.cfg.Variant.Name)
	fmt.Fprintf(out, "input:    %s\n", in.cfg.Variant.Input)
	fmt.Fprintf(out, "checksum: %s\n", in.checksum)
	fmt.Fprintf(out, "baseline: victim=%d attacker=%d\n", in.samples.VictimBaseline, in.samples.AttackerBaseline)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tlabel\tvictim (ms)\tattacker (ms)")
	for i, label := range in.frames.Labels {
		fmt.Fprintf(tw, "%d\t%q\t%s\t%s\n",
			i,
			label,
			strconv.FormatFloat(in.frames.Victim.Values[i], 'g', 6, 64),
			strconv.FormatFloat(in.frames.Attacker.Values[i], 'g', 6, 64),
		)
	}
	return tw.Flush()
}

func newTikzCommand() *cobra.Command {
	var sel selection
	var onlyPlot, onlyWrapper bool

	tikzCmd := &cobra.Command{
		Use:   "tikz <variant>",
		Short: "Print the pgfplots figure and LaTeX wrapper of a variant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printTikz(cmd.OutOrStdout(), args, sel, onlyPlot, onlyWrapper)
		},
	}
	addSelectionFlags(tikzCmd, &sel)
	tikzCmd.Flags().BoolVar(&onlyPlot, "plot", false, "Print only the plot file (TikZ)")
	tikzCmd.Flags().BoolVar(&onlyWrapper, "wrapper", false, "Print only the wrapper file (LaTeX)")
	return tikzCmd
}

func printTikz(out io.Writer, args []string, sel selection, onlyPlot, onlyWrapper bool) error {
	logger := logging.GetLogger()

	if len(args) == 0 && sel.configFile == "" {
		return fmt.Errorf("name a variant or pass --config")
	}
	sources, err := resolveVariants(args, sel)
	if err != nil {
		return err
	}
	in, err := loadRun(sources[0])
	if err != nil {
		return err
	}

	tikzName := "timing-" + in.cfg.Variant.Name + ".tikz"
	pm := plot.NewPlotManager()
	plotTikz, wrapperTex, err := pm.GenerateTikz(in.frames, in.spec, plot.RenderOptions{
		TikzPath:    tikzName,
		Checksum:    in.checksum,
		InputPath:   in.cfg.Variant.Input,
		Description: in.cfg.Variant.Description,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to generate plot")
		return fmt.Errorf("failed to generate plot: %w", err)
	}

	// Determine what to print
	showPlot := !onlyWrapper
	showWrapper := !onlyPlot

	if showPlot {
		fmt.Fprintln(out, "="+strings.Repeat("=", 78)+"=")
		fmt.Fprintf(out, "PLOT FILE: %s\n", tikzName)
		fmt.Fprintln(out, "="+strings.Repeat("=", 78)+"=")
		fmt.Fprintln(out, plotTikz)
	}
	if showWrapper {
		fmt.Fprintln(out, "="+strings.Repeat("=", 78)+"=")
		fmt.Fprintf(out, "WRAPPER FILE: %s\n", plot.WrapperPath(tikzName))
		fmt.Fprintln(out, "="+strings.Repeat("=", 78)+"=")
		fmt.Fprintln(out, wrapperTex)
	}

	logger.Debug("TikZ plot generated successfully")
	return nil
}

func newVariantsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List the built-in variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSTAGES\tINPUT\tOUTPUT\tDESCRIPTION")
			for _, name := range config.VariantNames() {
				cfg, _ := config.LookupVariant(name)
				v := cfg.Variant
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", v.Name, v.Stages, v.Input, v.Output, v.Description)
			}
			return tw.Flush()
		},
	}
}
