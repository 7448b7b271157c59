package dataframe

import (
	"fmt"
	"math/big"

	"attack-timing/internal/config"
	"attack-timing/internal/dataparser"
)

type Actor string

const (
	ActorVictim   Actor = "victim"
	ActorAttacker Actor = "attacker"
)

// StageSeries holds one bar value per category for a single actor.
// Values[0] is the stage-0 point and is always zero.
type StageSeries struct {
	Actor    Actor     `json:"actor"`
	Baseline int64     `json:"baseline"`
	Samples  []int64   `json:"samples"`
	Values   []float64 `json:"values"`
}

// TimingFrames is the pair of series plotted side by side.
type TimingFrames struct {
	Variant        string      `json:"variant"`
	ClockFrequency float64     `json:"clock_frequency"`
	Labels         []string    `json:"labels"`
	Victim         StageSeries `json:"victim"`
	Attacker       StageSeries `json:"attacker"`
}

// ComputeSeries returns [0, (s0-b)/f, (s1-b)/f, ...]. The subtraction is
// exact on integers; negative deltas are kept.
func ComputeSeries(baseline int64, samples []int64, frequency float64) []float64 {
	out := make([]float64, 0, len(samples)+1)
	out = append(out, 0)
	for _, s := range samples {
		out = append(out, delta(s, baseline)/frequency)
	}
	return out
}

// delta returns s-b rounded to float64, falling back to big integers when
// the int64 subtraction would wrap.
func delta(s, b int64) float64 {
	d := s - b
	if (b > 0 && d > s) || (b < 0 && d < s) {
		exact := new(big.Int).Sub(big.NewInt(s), big.NewInt(b))
		f, _ := new(big.Float).SetInt(exact).Float64()
		return f
	}
	return float64(d)
}

// AppendFindSet adds a zero spacer and the raw baseline scaled by frequency.
// The last value is an absolute counter reading, not a delta.
func AppendFindSet(values []float64, baseline int64, frequency float64) []float64 {
	return append(values, 0, float64(baseline)/frequency)
}

func buildSeries(actor Actor, baseline int64, samples []int64, v config.VariantInfo) StageSeries {
	values := ComputeSeries(baseline, samples, v.ClockFrequency)
	if v.FindSet {
		values = AppendFindSet(values, baseline, v.ClockFrequency)
	}
	return StageSeries{
		Actor:    actor,
		Baseline: baseline,
		Samples:  append([]int64(nil), samples...),
		Values:   values,
	}
}

// BuildFrames converts parsed samples into the plotted series for a variant.
func BuildFrames(sf *dataparser.SampleFile, cfg *config.VariantConfig) (*TimingFrames, error) {
	if sf == nil || cfg == nil {
		return nil, fmt.Errorf("samples and variant are required")
	}
	v := cfg.Variant
	if v.ClockFrequency <= 0 {
		return nil, fmt.Errorf("clock frequency must be greater than 0, got %g", v.ClockFrequency)
	}
	if sf.Stages() != v.Stages || len(sf.Attacker) != v.Stages {
		return nil, fmt.Errorf("variant %s expects %d stages, samples have %d", v.Name, v.Stages, sf.Stages())
	}

	frames := &TimingFrames{
		Variant:        v.Name,
		ClockFrequency: v.ClockFrequency,
		Labels:         append([]string(nil), cfg.Chart.Labels...),
		Victim:         buildSeries(ActorVictim, sf.VictimBaseline, sf.Victim, v),
		Attacker:       buildSeries(ActorAttacker, sf.AttackerBaseline, sf.Attacker, v),
	}
	if len(frames.Labels) != len(frames.Victim.Values) {
		return nil, fmt.Errorf("variant %s has %d labels for %d bars", v.Name, len(frames.Labels), len(frames.Victim.Values))
	}
	return frames, nil
}

// Series returns both series in plotting order.
func (tf *TimingFrames) Series() []StageSeries {
	return []StageSeries{tf.Victim, tf.Attacker}
}
