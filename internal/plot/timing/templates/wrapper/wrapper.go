package templates

const WrapperTemplate = `% Variant: {{.Variant}}
% Checksum: {{.Checksum}}
\begin{center}
    \begin{figure}[H]
    \centering
    \resizebox{1\linewidth}{!}{\input{./{{.PlotFileName}} }}
    \caption[{{.ShortCaption}}]{ {{.Caption}} }
    \label{fig:timing-{{.Variant}}}
    \end{figure}
\end{center}
`

type WrapperData struct {
	Variant      string
	Checksum     string
	PlotFileName string
	ShortCaption string
	Caption      string
}
