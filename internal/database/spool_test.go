package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"attack-timing/internal/dataparser"

	"github.com/google/go-cmp/cmp"
)

func TestWriteSpoolArtifact_ReadBack(t *testing.T) {
	dir := t.TempDir()
	samples := &dataparser.SampleFile{
		Path:             "stats_time.out",
		VictimBaseline:   100,
		AttackerBaseline: 200,
		Victim:           []int64{1100, 2100},
		Attacker:         []int64{4200, 8200},
	}
	artifact := BuildSpoolArtifact(samples, testFrames(), "abc123", "variant: {}", []string{"timing.png"})
	artifact.CreatedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	path, err := WriteSpoolArtifact(dir, artifact)
	if err != nil {
		t.Fatalf("WriteSpoolArtifact: %v", err)
	}
	if want := filepath.Join(dir, "timing_heap-spray_20240301T120000Z_abc123.json.gz"); path != want {
		t.Fatalf("want %s, got %s", want, path)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}

	got, err := ReadSpoolArtifact(path)
	if err != nil {
		t.Fatalf("ReadSpoolArtifact: %v", err)
	}
	if diff := cmp.Diff(artifact, got); diff != "" {
		t.Fatalf("artifact mismatch (-want +got):\n%s", diff)
	}
	if got.InputPath != "stats_time.out" || got.Variant != "heap-spray" {
		t.Fatalf("provenance not recorded: %+v", got)
	}
}

func TestWriteSpoolArtifact_DefaultDirFromEnv(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "spool")
	t.Setenv("ATTACK_TIMING_SPOOL_DIR", dir)

	path, err := WriteSpoolArtifact("", &SpoolArtifact{Version: spoolVersion, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("WriteSpoolArtifact: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("expected artifact in %s, got %s", dir, path)
	}
	if !strings.Contains(filepath.Base(path), "_unknown_") || !strings.HasSuffix(path, "_nocsum.json.gz") {
		t.Fatalf("unexpected name for an anonymous artifact: %s", path)
	}
}

func TestWriteSpoolArtifact_Nil(t *testing.T) {
	if _, err := WriteSpoolArtifact(t.TempDir(), nil); err == nil {
		t.Fatalf("expected error for nil artifact")
	}
}

func TestReadSpoolArtifact_NotGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.json.gz")
	if err := os.WriteFile(path, []byte(`{"version":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSpoolArtifact(path); err == nil {
		t.Fatalf("expected gzip error")
	}
}
