package templates

const PlotTemplate = `% Variant: {{.Variant}}
% Description: {{.Description}}
% Input: {{.InputPath}} (checksum: {{.Checksum}})
% Stages: {{.Stages}}
% Clock Frequency: {{.ClockFrequency}}
% Victim Baseline: {{.VictimBaseline}}
% Attacker Baseline: {{.AttackerBaseline}}
%
% Requires \usetikzlibrary{patterns} and \pgfplotsset{compat=1.7} or newer
% (bar width and bar shift are given in axis units).
%
\begin{tikzpicture}
{{range .Colors}}\definecolor{ {{- .Name -}} }{RGB}{ {{- .R}},{{.G}},{{.B -}} }
{{end}}	\begin{axis}[
		ybar,
		ymode=log,
		log origin=infty,
		width={{.WidthIn}}in,
		height={{.HeightIn}}in,
		xlabel={ {{.XLabel}} },
		ylabel={ {{.YLabel}} },
		xmin={{.XMin}}, xmax={{.XMax}},
		ymin={{.YMin}}, ymax={{.YMax}},
		xtick={ {{.XTicks}} },
		xticklabels={ {{.XTickLabels}} },
		legend pos=north west,
		legend cell align=left,
	]
{{range .Plots}}
% Actor: {{.Actor}} ({{len .Coordinates}} bars, {{.Clipped}} at or below ymin omitted)
\addplot[{{.Style}}]
  coordinates {
{{range .Coordinates}}    {{.}}
{{end}}  };
\addlegendentry{ {{.LegendEntry}} }
{{end}}
	\end{axis}
\end{tikzpicture}
`

type PlotData struct {
	Variant          string
	Description      string
	InputPath        string
	Checksum         string
	Stages           int
	ClockFrequency   string
	VictimBaseline   int64
	AttackerBaseline int64
	WidthIn          string
	HeightIn         string
	XLabel           string
	YLabel           string
	XMin             string
	XMax             string
	YMin             string
	YMax             string
	XTicks           string
	XTickLabels      string
	Colors           []ColorDef
	Plots            []PlotSeries
}

type ColorDef struct {
	Name    string
	R, G, B uint8
}

type PlotSeries struct {
	Actor       string
	Style       string
	LegendEntry string
	Clipped     int
	Coordinates []string
}
