package config

import "sort"

const (
	VariantBufferOverflow = "buffer-overflow"
	VariantHeapSpray      = "heap-spray"

	// DefaultClockFrequency is the divisor shared by both experiments.
	DefaultClockFrequency = 2270000

	DefaultXLabel = "Size of the secret to recover (Bytes)"
	DefaultYLabel = "Execution time (ms)"
)

var builtinVariants = map[string]VariantConfig{
	VariantBufferOverflow: {
		Variant: VariantInfo{
			Name:           VariantBufferOverflow,
			Description:    "Secret recovery through a stack buffer overflow",
			Input:          "../buffer_overflow/stats_time.out",
			Output:         "timing_ov.png",
			Stages:         8,
			ClockFrequency: DefaultClockFrequency,
		},
		Chart: ChartConfig{
			WidthIn:  4.5,
			HeightIn: 3,
			XMin:     0,
			XMax:     9,
			YMin:     0.1,
			YMax:     100,
			Labels:   []string{"", "1", "2", "3", "4", "5", "6", "7", "8"},
			XLabel:   DefaultXLabel,
			YLabel:   DefaultYLabel,
			Victim:   ActorConfig{Legend: "victim dynamic", Color: "green", Hatch: "//", Offset: -0.2, Width: 0.4},
			Attacker: ActorConfig{Legend: "attacker dynamic", Color: "red", Offset: 0.2, Width: 0.4},
		},
	},
	VariantHeapSpray: {
		Variant: VariantInfo{
			Name:           VariantHeapSpray,
			Description:    "Secret recovery through heap spraying",
			Input:          "../heap_spray/stats_time.out",
			Output:         "timing.png",
			Stages:         6,
			ClockFrequency: DefaultClockFrequency,
			FindSet:        true,
		},
		Chart: ChartConfig{
			WidthIn:  4.5,
			HeightIn: 3,
			XMin:     0,
			XMax:     9,
			YMin:     0.01,
			YMax:     1000,
			Labels:   []string{"", "1", "2", "3", "4", "5", "6", " ", "Find set"},
			XLabel:   DefaultXLabel,
			YLabel:   DefaultYLabel,
			Victim:   ActorConfig{Legend: "victim", Color: "blue", Hatch: `\`, Offset: -0.2, Width: 0.4},
			Attacker: ActorConfig{Legend: "attacker", Color: "orange", Offset: 0.2, Width: 0.4},
		},
	},
}

// LookupVariant returns a copy of a built-in variant.
func LookupVariant(name string) (*VariantConfig, bool) {
	v, ok := builtinVariants[name]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

// VariantNames returns the built-in variant names in sorted order.
func VariantNames() []string {
	names := make([]string, 0, len(builtinVariants))
	for name := range builtinVariants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
