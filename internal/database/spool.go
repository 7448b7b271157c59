package database

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"attack-timing/internal/dataframe"
	"attack-timing/internal/dataparser"
)

const spoolVersion = 1

// SpoolArtifact is a self-contained record of one rendered run.
type SpoolArtifact struct {
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`

	Variant   string `json:"variant"`
	Checksum  string `json:"checksum"`
	InputPath string `json:"input_path"`

	ConfigContent string `json:"config_content,omitempty"`

	Samples *dataparser.SampleFile  `json:"samples"`
	Frames  *dataframe.TimingFrames `json:"frames"`
	Outputs []string                `json:"outputs,omitempty"`
}

func DefaultSpoolDir() string {
	if v := strings.TrimSpace(os.Getenv("ATTACK_TIMING_SPOOL_DIR")); v != "" {
		return v
	}
	return "spool"
}

// BuildSpoolArtifact bundles the parsed samples and computed frames.
func BuildSpoolArtifact(
	samples *dataparser.SampleFile,
	frames *dataframe.TimingFrames,
	checksum string,
	configContent string,
	outputs []string,
) *SpoolArtifact {
	artifact := &SpoolArtifact{
		Version:       spoolVersion,
		CreatedAt:     time.Now(),
		Checksum:      checksum,
		ConfigContent: configContent,
		Samples:       samples,
		Frames:        frames,
		Outputs:       append([]string(nil), outputs...),
	}
	if frames != nil {
		artifact.Variant = frames.Variant
	}
	if samples != nil {
		artifact.InputPath = samples.Path
	}
	return artifact
}

// WriteSpoolArtifact writes a gzip-compressed JSON artifact to disk atomically.
// It returns the final file path.
func WriteSpoolArtifact(dir string, artifact *SpoolArtifact) (string, error) {
	if artifact == nil {
		return "", fmt.Errorf("spool artifact is nil")
	}
	if dir == "" {
		dir = DefaultSpoolDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	checksum := artifact.Checksum
	if checksum == "" {
		checksum = "nocsum"
	}
	variant := artifact.Variant
	if variant == "" {
		variant = "unknown"
	}
	name := fmt.Sprintf(
		"timing_%s_%s_%s.json.gz",
		variant,
		artifact.CreatedAt.UTC().Format("20060102T150405Z"),
		checksum,
	)
	finalPath := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, name+".tmp.*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()

	ok := false
	defer func() {
		_ = tmp.Close()
		if !ok {
			_ = os.Remove(tmpPath)
		}
	}()

	gz := gzip.NewWriter(tmp)
	enc := json.NewEncoder(gz)
	enc.SetIndent("", "  ")
	if err := enc.Encode(artifact); err != nil {
		_ = gz.Close()
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", err
	}
	ok = true
	return finalPath, nil
}

// ReadSpoolArtifact loads an artifact written by WriteSpoolArtifact.
func ReadSpoolArtifact(path string) (*SpoolArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
	}
	defer gz.Close()

	var artifact SpoolArtifact
	if err := json.NewDecoder(gz).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("failed to decode spool artifact %s: %w", path, err)
	}
	if artifact.Version != spoolVersion {
		return nil, fmt.Errorf("unsupported spool artifact version %d in %s", artifact.Version, path)
	}
	return &artifact, nil
}
