package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const (
	DefaultInkscapePath = "inkscape"
	DefaultPDFVersion   = "1.5"
)

// Converter turns a vector image into a PDF.
type Converter interface {
	Convert(ctx context.Context, src, dst string) error
}

// ConverterFunc adapts a plain function to Converter.
type ConverterFunc func(ctx context.Context, src, dst string) error

func (f ConverterFunc) Convert(ctx context.Context, src, dst string) error {
	return f(ctx, src, dst)
}

// ExternalToolError reports a failed invocation of an external program.
// Callers treat it as a warning; the primary output is already written.
type ExternalToolError struct {
	Tool   string
	Args   []string
	Output string
	Err    error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s %s failed: %v", e.Tool, strings.Join(e.Args, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

// InkscapeConverter shells out to Inkscape. The 1.x command line is used
// unless LegacyCLI is set, in which case the 0.92 --export-pdf flag is used.
type InkscapeConverter struct {
	Path       string
	PDFVersion string
	LegacyCLI  bool
	ExtraArgs  []string
}

type InkscapeOption func(*InkscapeConverter)

func WithInkscapePath(path string) InkscapeOption {
	return func(c *InkscapeConverter) {
		if path != "" {
			c.Path = path
		}
	}
}

func WithPDFVersion(version string) InkscapeOption {
	return func(c *InkscapeConverter) {
		if version != "" {
			c.PDFVersion = version
		}
	}
}

func WithLegacyCLI(legacy bool) InkscapeOption {
	return func(c *InkscapeConverter) {
		c.LegacyCLI = legacy
	}
}

func WithExtraArgs(args ...string) InkscapeOption {
	return func(c *InkscapeConverter) {
		c.ExtraArgs = append(c.ExtraArgs, args...)
	}
}

func NewInkscapeConverter(opts ...InkscapeOption) *InkscapeConverter {
	c := &InkscapeConverter{
		Path:       DefaultInkscapePath,
		PDFVersion: DefaultPDFVersion,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Args returns the command line used to convert src into dst.
func (c *InkscapeConverter) Args(src, dst string) []string {
	version := c.PDFVersion
	if version == "" {
		version = DefaultPDFVersion
	}

	var args []string
	if c.LegacyCLI {
		args = []string{
			src,
			"--export-pdf=" + dst,
			"--export-pdf-version=" + version,
		}
	} else {
		args = []string{
			src,
			"--export-type=pdf",
			"--export-filename=" + dst,
			"--export-pdf-version=" + version,
		}
	}
	return append(args, c.ExtraArgs...)
}

func (c *InkscapeConverter) Convert(ctx context.Context, src, dst string) error {
	tool := c.Path
	if tool == "" {
		tool = DefaultInkscapePath
	}
	args := c.Args(src, dst)

	bin, err := exec.LookPath(tool)
	if err != nil {
		return &ExternalToolError{Tool: tool, Args: args, Err: err}
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return &ExternalToolError{Tool: tool, Args: args, Output: out.String(), Err: err}
	}

	// Inkscape exits 0 on some export errors.
	if _, err := os.Stat(dst); err != nil {
		return &ExternalToolError{
			Tool:   tool,
			Args:   args,
			Output: out.String(),
			Err:    fmt.Errorf("no output produced: %w", err),
		}
	}
	return nil
}
