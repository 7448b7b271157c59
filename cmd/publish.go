package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"attack-timing/internal/config"
	"attack-timing/internal/database"
	"attack-timing/internal/logging"
	"attack-timing/internal/plot"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newPublishCommand() *cobra.Command {
	var sel selection

	publishCmd := &cobra.Command{
		Use:   "publish [variant...]",
		Short: "Write computed series to InfluxDB",
		Long:  "Write one point per actor and bar, plus run metadata, to the bucket named by the INFLUXDB_* environment variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), cmd.OutOrStdout(), args, sel)
		},
	}
	addSelectionFlags(publishCmd, &sel)
	return publishCmd
}

func runPublish(ctx context.Context, out io.Writer, args []string, sel selection) error {
	logger := logging.GetLogger()

	sources, err := resolveVariants(args, sel)
	if err != nil {
		return err
	}
	conn, err := database.ConnectionConfigFromEnv()
	if err != nil {
		return err
	}

	// Parse everything before connecting so bad input never leaves a
	// partial run in the bucket.
	var runs []*runInput
	for _, src := range sources {
		in, err := loadRun(src)
		if err != nil {
			return fmt.Errorf("%s: %w", src.cfg.Variant.Name, err)
		}
		runs = append(runs, in)
	}

	dbClient, err := database.NewInfluxDBClient(ctx, conn)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	now := time.Now()
	var errs []error
	for _, in := range runs {
		if err := dbClient.WriteFrames(ctx, in.frames, in.checksum, now); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", in.cfg.Variant.Name, err))
			continue
		}
		meta := database.NewRunMetadata(in.frames, in.checksum, in.cfg.Variant.Input, in.configContent, Version)
		if err := dbClient.WriteMetadata(ctx, meta, now); err != nil {
			logger.WithField("variant", in.cfg.Variant.Name).WithError(err).Warn("Failed to write run metadata")
		}
		fmt.Fprintf(out, "%s\t%s\n", in.cfg.Variant.Name, in.checksum)
	}
	return errors.Join(errs...)
}

func newReplotCommand() *cobra.Command {
	var variant, checksum, output string
	var tikz bool

	replotCmd := &cobra.Command{
		Use:   "replot",
		Short: "Render a chart from series stored in InfluxDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplot(cmd.Context(), cmd.OutOrStdout(), variant, checksum, output, tikz)
		},
	}
	replotCmd.Flags().StringVar(&variant, "variant", "", "Built-in variant whose chart layout is used")
	replotCmd.Flags().StringVar(&checksum, "checksum", "", "Checksum printed by publish")
	replotCmd.Flags().StringVarP(&output, "output", "o", "", "Output image path (default: the variant's output)")
	replotCmd.Flags().BoolVar(&tikz, "tikz", false, "Also write a pgfplots figure and LaTeX wrapper")
	replotCmd.MarkFlagRequired("variant")
	replotCmd.MarkFlagRequired("checksum")
	return replotCmd
}

func runReplot(ctx context.Context, out io.Writer, variant, checksum, output string, tikz bool) error {
	logger := logging.GetLogger()

	cfg, ok := config.LookupVariant(variant)
	if !ok {
		return fmt.Errorf("unknown variant %q", variant)
	}
	if !config.IsSampleChecksum(checksum) {
		return fmt.Errorf("invalid checksum %q: expected %d lowercase hex characters as printed by publish", checksum, config.SampleChecksumLength)
	}
	spec, err := cfg.Chart.Spec()
	if err != nil {
		return err
	}
	if output == "" {
		output = cfg.Variant.Output
	}

	conn, err := database.ConnectionConfigFromEnv()
	if err != nil {
		return err
	}
	dbClient, err := database.NewInfluxDBClient(ctx, conn)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	frames, err := dbClient.QueryFrames(ctx, variant, checksum)
	if err != nil {
		return err
	}
	if len(frames.Labels) != len(spec.Labels) {
		return fmt.Errorf("stored run has %d bars, variant %s expects %d", len(frames.Labels), variant, len(spec.Labels))
	}

	opts := plot.RenderOptions{Output: output, Checksum: checksum}
	if tikz {
		opts.TikzPath = replaceExt(output, ".tikz")
	}
	res, err := plot.NewPlotManager().Render(ctx, frames, spec, opts)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"variant":  variant,
		"checksum": checksum,
	}).Info("Replotted stored run")
	for _, f := range res.Files() {
		fmt.Fprintln(out, f)
	}
	return nil
}
