package cmd

import (
	"fmt"
	"strings"

	"attack-timing/internal/config"
	"attack-timing/internal/dataframe"
	"attack-timing/internal/dataparser"
	"attack-timing/internal/logging"
	"attack-timing/internal/plot/timing/mappings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// selection is the variant choice shared by render, validate, tikz and publish.
type selection struct {
	configFile string
	input      string
	output     string
}

type variantSource struct {
	cfg     *config.VariantConfig
	content string
}

// runInput is everything derived from one variant and its sample file.
type runInput struct {
	cfg           *config.VariantConfig
	configContent string
	samples       *dataparser.SampleFile
	checksum      string
	frames        *dataframe.TimingFrames
	spec          mappings.ChartSpec
}

// resolveVariants returns the variants named by args, or the one in
// --config, or every built-in variant when nothing is named.
func resolveVariants(args []string, sel selection) ([]variantSource, error) {
	var sources []variantSource

	if sel.configFile != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("variant names cannot be combined with --config")
		}
		cfg, content, err := config.LoadVariantWithContent(sel.configFile)
		if err != nil {
			return nil, err
		}
		sources = append(sources, variantSource{cfg: cfg, content: content})
	} else {
		names := args
		if len(names) == 0 {
			names = config.VariantNames()
		}
		seen := map[string]bool{}
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			cfg, ok := config.LookupVariant(name)
			if !ok {
				return nil, fmt.Errorf("unknown variant %q (known: %s)", name, strings.Join(config.VariantNames(), ", "))
			}
			content, err := yaml.Marshal(cfg)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize variant %s: %w", name, err)
			}
			sources = append(sources, variantSource{cfg: cfg, content: string(content)})
		}
	}

	if (sel.input != "" || sel.output != "") && len(sources) != 1 {
		return nil, fmt.Errorf("--input and --output need exactly one variant, got %d", len(sources))
	}
	for _, s := range sources {
		if sel.input != "" {
			s.cfg.Variant.Input = sel.input
		}
		if sel.output != "" {
			s.cfg.Variant.Output = sel.output
		}
	}
	return sources, nil
}

// loadRun reads the sample file of a variant and computes its series.
func loadRun(src variantSource) (*runInput, error) {
	logger := logging.GetLogger()
	cfg := src.cfg

	if cfg.Variant.Input == "" {
		return nil, fmt.Errorf("variant %s has no input file", cfg.Variant.Name)
	}

	samples, raw, err := dataparser.ReadSamples(cfg.Variant.Input, cfg.Variant.Stages)
	if err != nil {
		return nil, err
	}

	checksum, err := config.SampleChecksum(cfg, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum %s: %w", cfg.Variant.Input, err)
	}

	frames, err := dataframe.BuildFrames(samples, cfg)
	if err != nil {
		return nil, err
	}

	spec, err := cfg.Chart.Spec()
	if err != nil {
		return nil, fmt.Errorf("invalid chart for variant %s: %w", cfg.Variant.Name, err)
	}

	logger.WithFields(logrus.Fields{
		"variant":  cfg.Variant.Name,
		"input":    cfg.Variant.Input,
		"stages":   cfg.Variant.Stages,
		"checksum": checksum,
	}).Debug("Loaded samples")

	return &runInput{
		cfg:           cfg,
		configContent: src.content,
		samples:       samples,
		checksum:      checksum,
		frames:        frames,
		spec:          spec,
	}, nil
}
