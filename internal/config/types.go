package config

import (
	"fmt"

	"attack-timing/internal/plot/timing/mappings"
)

type VariantConfig struct {
	Variant VariantInfo `yaml:"variant"`
	Chart   ChartConfig `yaml:"chart"`
}

type VariantInfo struct {
	Name        string `yaml:"name"`
	Base        string `yaml:"base,omitempty"`
	Description string `yaml:"description"`
	Input       string `yaml:"input"`
	Output      string `yaml:"output"`
	// Stages is the number of victim/attacker sample pairs after the baselines.
	Stages         int     `yaml:"stages"`
	ClockFrequency float64 `yaml:"clock_frequency"`
	// FindSet appends a spacer category and a bar showing the raw baseline.
	FindSet bool `yaml:"find_set"`
}

type ChartConfig struct {
	WidthIn  float64     `yaml:"width_in"`
	HeightIn float64     `yaml:"height_in"`
	XMin     float64     `yaml:"x_min"`
	XMax     float64     `yaml:"x_max"`
	YMin     float64     `yaml:"y_min"`
	YMax     float64     `yaml:"y_max"`
	Labels   []string    `yaml:"labels"`
	XLabel   string      `yaml:"x_label"`
	YLabel   string      `yaml:"y_label"`
	Victim   ActorConfig `yaml:"victim"`
	Attacker ActorConfig `yaml:"attacker"`
}

type ActorConfig struct {
	Legend string  `yaml:"legend"`
	Color  string  `yaml:"color"`
	Hatch  string  `yaml:"hatch,omitempty"`
	Offset float64 `yaml:"offset"`
	Width  float64 `yaml:"width"`
}

// RequiredLines is the minimum number of lines a sample file must hold.
func (v VariantInfo) RequiredLines() int {
	return 2 + 2*v.Stages
}

// SeriesLen is the number of bars per actor, including the leading zero
// and the find-set columns.
func (v VariantInfo) SeriesLen() int {
	n := v.Stages + 1
	if v.FindSet {
		n += 2
	}
	return n
}

func (a ActorConfig) Style() (mappings.ActorStyle, error) {
	c, err := mappings.ParseColor(a.Color)
	if err != nil {
		return mappings.ActorStyle{}, err
	}
	h, err := mappings.ParseHatch(a.Hatch)
	if err != nil {
		return mappings.ActorStyle{}, err
	}
	return mappings.ActorStyle{
		Legend: a.Legend,
		Color:  c,
		Hatch:  h,
		Offset: a.Offset,
		Width:  a.Width,
	}, nil
}

// Spec converts the chart section into the renderer's immutable spec.
func (c ChartConfig) Spec() (mappings.ChartSpec, error) {
	victim, err := c.Victim.Style()
	if err != nil {
		return mappings.ChartSpec{}, fmt.Errorf("victim style: %w", err)
	}
	attacker, err := c.Attacker.Style()
	if err != nil {
		return mappings.ChartSpec{}, fmt.Errorf("attacker style: %w", err)
	}
	labels := make([]string, len(c.Labels))
	copy(labels, c.Labels)
	return mappings.ChartSpec{
		WidthIn:  c.WidthIn,
		HeightIn: c.HeightIn,
		XMin:     c.XMin,
		XMax:     c.XMax,
		YMin:     c.YMin,
		YMax:     c.YMax,
		Labels:   labels,
		XLabel:   c.XLabel,
		YLabel:   c.YLabel,
		Victim:   victim,
		Attacker: attacker,
	}, nil
}

// Clone returns a deep copy so built-in variants are never mutated.
func (c *VariantConfig) Clone() *VariantConfig {
	out := *c
	out.Chart.Labels = append([]string(nil), c.Chart.Labels...)
	return &out
}
