package dataparser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"attack-timing/internal/logging"

	"github.com/sirupsen/logrus"
)

// ErrMalformedInput is matched by every InputFormatError.
var ErrMalformedInput = errors.New("malformed input")

// InputFormatError reports a sample file that does not follow the
// baseline/sample-pair layout. Line is 1-based; 0 means the whole file.
type InputFormatError struct {
	Path   string
	Line   int
	Reason string
	Err    error
}

func (e *InputFormatError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrMalformedInput, e.Path)
	if e.Line > 0 {
		msg += fmt.Sprintf(":%d", e.Line)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InputFormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedInput}
	}
	return []error{ErrMalformedInput, e.Err}
}

// SampleFile is the parsed content of a raw counter sample file.
type SampleFile struct {
	Path             string  `json:"path"`
	VictimBaseline   int64   `json:"victim_baseline"`
	AttackerBaseline int64   `json:"attacker_baseline"`
	Victim           []int64 `json:"victim"`
	Attacker         []int64 `json:"attacker"`
}

// Stages returns the number of sample pairs.
func (sf *SampleFile) Stages() int {
	return len(sf.Victim)
}

// RequiredLines is the number of lines needed for the given stage count.
func RequiredLines(stages int) int {
	return 2 + 2*stages
}

// LoadSamples opens path and parses it with ParseSamples. The file is closed
// before returning, including on parse errors.
func LoadSamples(path string, stages int) (*SampleFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InputFormatError{Path: path, Reason: "cannot open sample file", Err: err}
	}
	defer f.Close()

	return ParseSamples(f, path, stages)
}

// ReadSamples is LoadSamples that also returns the raw file content, which
// callers use to checksum the input.
func ReadSamples(path string, stages int) (*SampleFile, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &InputFormatError{Path: path, Reason: "cannot open sample file", Err: err}
	}
	sf, err := ParseSamples(bytes.NewReader(data), path, stages)
	if err != nil {
		return nil, nil, err
	}
	return sf, data, nil
}

// ParseSamples reads one integer per line: the victim and attacker baselines
// followed by one victim/attacker pair per stage. Lines after the required
// ones are ignored when blank and reported as a warning otherwise.
func ParseSamples(r io.Reader, path string, stages int) (*SampleFile, error) {
	logger := logging.GetLogger()

	if stages <= 0 {
		return nil, fmt.Errorf("stage count must be greater than 0, got %d", stages)
	}
	required := RequiredLines(stages)

	values := make([]int64, 0, required)
	extra := 0
	lineNo := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())

		if len(values) == required {
			if text != "" {
				extra++
			}
			continue
		}

		if text == "" {
			return nil, &InputFormatError{Path: path, Line: lineNo, Reason: "empty line where a counter value is expected"}
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			reason := fmt.Sprintf("%q is not an integer", text)
			if errors.Is(err, strconv.ErrRange) {
				reason = fmt.Sprintf("%q does not fit in a signed 64-bit counter", text)
			}
			return nil, &InputFormatError{
				Path:   path,
				Line:   lineNo,
				Reason: reason,
				Err:    err,
			}
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, &InputFormatError{Path: path, Line: lineNo + 1, Reason: "read failed", Err: err}
	}

	if len(values) < required {
		return nil, &InputFormatError{
			Path:   path,
			Reason: fmt.Sprintf("expected %d lines for %d stages, found %d", required, stages, len(values)),
		}
	}

	if extra > 0 {
		logger.WithFields(logrus.Fields{
			"path":        path,
			"extra_lines": extra,
			"required":    required,
		}).Warn("Ignoring lines after the expected samples")
	}

	sf := &SampleFile{
		Path:             path,
		VictimBaseline:   values[0],
		AttackerBaseline: values[1],
		Victim:           make([]int64, stages),
		Attacker:         make([]int64, stages),
	}
	for i := 0; i < stages; i++ {
		sf.Victim[i] = values[2+2*i]
		sf.Attacker[i] = values[2+2*i+1]
	}

	logger.WithFields(logrus.Fields{
		"path":   path,
		"stages": stages,
	}).Debug("Parsed sample file")

	return sf, nil
}
