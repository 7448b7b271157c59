package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"attack-timing/internal/logging"

	"gopkg.in/yaml.v3"
)

func LoadVariant(filepath string) (*VariantConfig, error) {
	config, _, err := LoadVariantWithContent(filepath)
	return config, err
}

// LoadVariantWithContent parses a YAML variant file. When variant.base names
// a built-in variant, the file only needs to list the fields it overrides.
func LoadVariantWithContent(filepath string) (*VariantConfig, string, error) {
	logger := logging.GetLogger()

	data, err := os.ReadFile(filepath)
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to read variant file")
		return nil, "", err
	}

	originalContent := string(data)
	expanded := expandEnvVars(originalContent)

	var probe struct {
		Variant struct {
			Base string `yaml:"base"`
		} `yaml:"variant"`
	}
	if err := yaml.Unmarshal([]byte(expanded), &probe); err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to parse variant file")
		return nil, "", err
	}

	config := &VariantConfig{}
	if probe.Variant.Base != "" {
		base, ok := LookupVariant(probe.Variant.Base)
		if !ok {
			return nil, "", fmt.Errorf("unknown base variant %q (known: %s)", probe.Variant.Base, strings.Join(VariantNames(), ", "))
		}
		config = base
	}

	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to parse variant file")
		return nil, "", err
	}

	if err := ValidateVariant(config); err != nil {
		return nil, "", fmt.Errorf("invalid variant %s: %w", filepath, err)
	}

	return config, originalContent, nil
}

func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		envVar := strings.Trim(match, "${}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}

func ValidateVariant(config *VariantConfig) error {
	v := config.Variant
	if v.Name == "" {
		return fmt.Errorf("variant name is required")
	}

	if v.Stages <= 0 {
		return fmt.Errorf("stages must be greater than 0")
	}

	if v.ClockFrequency <= 0 {
		return fmt.Errorf("clock_frequency must be greater than 0")
	}

	if v.Output == "" {
		return fmt.Errorf("output path is required")
	}

	c := config.Chart
	if c.WidthIn <= 0 || c.HeightIn <= 0 {
		return fmt.Errorf("figure size must be positive (got %gx%g in)", c.WidthIn, c.HeightIn)
	}

	if c.YMin <= 0 || c.YMax <= c.YMin {
		return fmt.Errorf("log axis needs 0 < y_min < y_max (got %g, %g)", c.YMin, c.YMax)
	}

	if c.XMax <= c.XMin {
		return fmt.Errorf("x_max must be greater than x_min (got %g, %g)", c.XMin, c.XMax)
	}

	if len(c.Labels) != v.SeriesLen() {
		return fmt.Errorf("expected %d category labels for %d stages (find_set=%t), got %d",
			v.SeriesLen(), v.Stages, v.FindSet, len(c.Labels))
	}

	actors := map[string]ActorConfig{"victim": c.Victim, "attacker": c.Attacker}
	for name, actor := range actors {
		if actor.Width <= 0 {
			return fmt.Errorf("%s: bar width must be greater than 0", name)
		}
		if _, err := actor.Style(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}
