package database

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"attack-timing/internal/dataframe"
	"attack-timing/internal/logging"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

const (
	MeasurementTiming = "attack_timing"
	MeasurementMeta   = "attack_timing_meta"
)

// ConnectionConfig identifies an InfluxDB v2 bucket.
type ConnectionConfig struct {
	Host   string
	Token  string
	Org    string
	Bucket string
}

// ConnectionConfigFromEnv reads INFLUXDB_HOST, INFLUXDB_TOKEN, INFLUXDB_ORG
// and INFLUXDB_BUCKET.
func ConnectionConfigFromEnv() (ConnectionConfig, error) {
	cfg := ConnectionConfig{
		Host:   strings.TrimSpace(os.Getenv("INFLUXDB_HOST")),
		Token:  strings.TrimSpace(os.Getenv("INFLUXDB_TOKEN")),
		Org:    strings.TrimSpace(os.Getenv("INFLUXDB_ORG")),
		Bucket: strings.TrimSpace(os.Getenv("INFLUXDB_BUCKET")),
	}
	var missing []string
	for name, v := range map[string]string{
		"INFLUXDB_HOST":   cfg.Host,
		"INFLUXDB_TOKEN":  cfg.Token,
		"INFLUXDB_ORG":    cfg.Org,
		"INFLUXDB_BUCKET": cfg.Bucket,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return cfg, fmt.Errorf("missing required environment variables for InfluxDB connection: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// RunMetadata describes where and from what a set of frames was produced.
type RunMetadata struct {
	Variant        string
	Checksum       string
	InputPath      string
	Stages         int
	ClockFrequency float64
	ConfigContent  string
	DriverVersion  string
	Hostname       string
	OSInfo         string
	KernelVersion  string
	CPUModel       string
}

type SystemInfo struct {
	Hostname      string
	OSInfo        string
	KernelVersion string
	CPUModel      string
}

func collectSystemInfo() *SystemInfo {
	info := &SystemInfo{
		Hostname:      "unknown",
		OSInfo:        runtime.GOOS + "/" + runtime.GOARCH,
		KernelVersion: "unknown",
		CPUModel:      "unknown",
	}
	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}
	if data, err := os.ReadFile("/proc/version"); err == nil {
		if parts := strings.Fields(string(data)); len(parts) >= 3 {
			info.KernelVersion = parts[2]
		}
	}
	if data, err := os.ReadFile("/proc/cpuinfo"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "model name") {
				if _, v, ok := strings.Cut(line, ":"); ok {
					info.CPUModel = strings.TrimSpace(v)
					break
				}
			}
		}
	}
	return info
}

// NewRunMetadata fills the host fields from the running system.
func NewRunMetadata(frames *dataframe.TimingFrames, checksum, inputPath, configContent, driverVersion string) *RunMetadata {
	sys := collectSystemInfo()
	meta := &RunMetadata{
		Checksum:      checksum,
		InputPath:     inputPath,
		ConfigContent: configContent,
		DriverVersion: driverVersion,
		Hostname:      sys.Hostname,
		OSInfo:        sys.OSInfo,
		KernelVersion: sys.KernelVersion,
		CPUModel:      sys.CPUModel,
	}
	if frames != nil {
		meta.Variant = frames.Variant
		meta.Stages = len(frames.Victim.Samples)
		meta.ClockFrequency = frames.ClockFrequency
	}
	return meta
}

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

type InfluxDBClient struct {
	client   influxdb2.Client
	writeAPI pointWriter
	queryAPI api.QueryAPI
	bucket   string
	org      string
	logger   *logrus.Logger
}

// NewInfluxDBClient connects and runs a health check before returning.
func NewInfluxDBClient(ctx context.Context, cfg ConnectionConfig) (*InfluxDBClient, error) {
	logger := logging.GetLogger()

	client := influxdb2.NewClient(cfg.Host, cfg.Token)

	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	health, err := client.Health(healthCtx)
	if err != nil {
		logger.WithField("host", cfg.Host).WithError(err).Error("Failed to connect to InfluxDB")
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB at %s: %w", cfg.Host, err)
	}
	if health.Status != "pass" {
		message := ""
		if health.Message != nil {
			message = *health.Message
		}
		logger.WithFields(logrus.Fields{
			"host":    cfg.Host,
			"status":  health.Status,
			"message": message,
		}).Error("InfluxDB health check failed")
		client.Close()
		return nil, fmt.Errorf("InfluxDB health check failed with status %q: %s", health.Status, message)
	}

	logger.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"bucket": cfg.Bucket,
		"org":    cfg.Org,
	}).Info("Connected to InfluxDB")

	return &InfluxDBClient{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
		org:      cfg.Org,
		logger:   logger,
	}, nil
}

// WriteFrames stores one point per actor per bar. Points of one run share
// ts and are spread by stage index in microseconds so none overwrite.
func (idb *InfluxDBClient) WriteFrames(ctx context.Context, frames *dataframe.TimingFrames, checksum string, ts time.Time) error {
	points, err := framePoints(frames, checksum, ts)
	if err != nil {
		return err
	}
	if err := idb.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write timing points: %w", err)
	}

	idb.logger.WithFields(logrus.Fields{
		"variant":  frames.Variant,
		"checksum": checksum,
		"points":   len(points),
		"bucket":   idb.bucket,
	}).Info("Timing frames written to InfluxDB")
	return nil
}

func (idb *InfluxDBClient) WriteMetadata(ctx context.Context, meta *RunMetadata, ts time.Time) error {
	if meta == nil {
		return fmt.Errorf("run metadata is nil")
	}
	if err := idb.writeAPI.WritePoint(ctx, metadataPoint(meta, ts)); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func framePoints(frames *dataframe.TimingFrames, checksum string, ts time.Time) ([]*write.Point, error) {
	if frames == nil {
		return nil, fmt.Errorf("no timing frames to write")
	}

	var points []*write.Point
	for _, s := range frames.Series() {
		if len(s.Values) != len(frames.Labels) {
			return nil, fmt.Errorf("%s series has %d values for %d labels", s.Actor, len(s.Values), len(frames.Labels))
		}
		for stage, v := range s.Values {
			fields := map[string]interface{}{
				"stage":           stage,
				"elapsed_ms":      v,
				"baseline":        s.Baseline,
				"clock_frequency": frames.ClockFrequency,
			}
			// Values[1..len(Samples)] come from raw samples; the rest are derived.
			if stage >= 1 && stage <= len(s.Samples) {
				fields["sample"] = s.Samples[stage-1]
			}

			point := influxdb2.NewPoint(MeasurementTiming,
				map[string]string{
					"variant":     frames.Variant,
					"actor":       string(s.Actor),
					"checksum":    checksum,
					"stage_label": frames.Labels[stage],
				},
				fields,
				ts.Add(time.Duration(stage)*time.Microsecond))
			points = append(points, point)
		}
	}
	return points, nil
}

func metadataPoint(meta *RunMetadata, ts time.Time) *write.Point {
	return influxdb2.NewPoint(MeasurementMeta,
		map[string]string{
			"variant":  meta.Variant,
			"checksum": meta.Checksum,
		},
		map[string]interface{}{
			"input_path":      meta.InputPath,
			"stages":          meta.Stages,
			"clock_frequency": meta.ClockFrequency,
			"config_file":     meta.ConfigContent,
			"driver_version":  meta.DriverVersion,
			"hostname":        meta.Hostname,
			"os_info":         meta.OSInfo,
			"kernel_version":  meta.KernelVersion,
			"cpu_model":       meta.CPUModel,
		},
		ts)
}

// frameRow is one pivoted record of the timing measurement.
type frameRow struct {
	Time           time.Time
	Actor          string
	Label          string
	Stage          int
	ElapsedMS      float64
	Baseline       int64
	ClockFrequency float64
	Sample         *int64
}

// QueryFrames reads back the frames written for a variant and checksum.
func (idb *InfluxDBClient) QueryFrames(ctx context.Context, variant, checksum string) (*dataframe.TimingFrames, error) {
	idb.logger.WithFields(logrus.Fields{
		"variant":  variant,
		"checksum": checksum,
	}).Debug("Querying timing frames")

	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: 0)
		|> filter(fn: (r) => r["_measurement"] == "%s")
		|> filter(fn: (r) => r["variant"] == "%s" and r["checksum"] == "%s")
		|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
		|> group()
		|> sort(columns: ["actor", "stage"])
	`, fluxString(idb.bucket), MeasurementTiming, fluxString(variant), fluxString(checksum))

	result, err := idb.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer result.Close()

	var rows []frameRow
	for result.Next() {
		record := result.Record()
		row := frameRow{Time: record.Time()}
		if v, ok := record.ValueByKey("actor").(string); ok {
			row.Actor = v
		}
		if v, ok := record.ValueByKey("stage_label").(string); ok {
			row.Label = v
		}
		if v, ok := record.ValueByKey("stage").(int64); ok {
			row.Stage = int(v)
		}
		if v, ok := record.ValueByKey("elapsed_ms").(float64); ok {
			row.ElapsedMS = v
		}
		if v, ok := record.ValueByKey("baseline").(int64); ok {
			row.Baseline = v
		}
		if v, ok := record.ValueByKey("clock_frequency").(float64); ok {
			row.ClockFrequency = v
		}
		if v, ok := record.ValueByKey("sample").(int64); ok {
			row.Sample = &v
		}
		rows = append(rows, row)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("query parsing failed: %w", result.Err())
	}

	return framesFromRows(variant, rows)
}

var fluxEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "${", `\${`)

// fluxString escapes s for use inside a double-quoted Flux string literal.
func fluxString(s string) string {
	return fluxEscaper.Replace(s)
}

// runStart is the ts passed to WriteFrames for the run a row belongs to.
func (r frameRow) runStart() time.Time {
	return r.Time.Add(-time.Duration(r.Stage) * time.Microsecond)
}

// latestRun keeps the rows of the most recent publish. Publishing the same
// input again stores a second copy under the same tags.
func latestRun(rows []frameRow) []frameRow {
	latest := rows[0].runStart()
	for _, r := range rows[1:] {
		if start := r.runStart(); start.After(latest) {
			latest = start
		}
	}
	kept := make([]frameRow, 0, len(rows))
	for _, r := range rows {
		if r.runStart().Equal(latest) {
			kept = append(kept, r)
		}
	}
	return kept
}

func framesFromRows(variant string, rows []frameRow) (*dataframe.TimingFrames, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no timing points found for variant %s", variant)
	}
	total := len(rows)
	rows = latestRun(rows)
	if dropped := total - len(rows); dropped > 0 {
		logging.GetLogger().WithFields(logrus.Fields{
			"variant": variant,
			"dropped": dropped,
		}).Debug("Ignoring points of earlier runs")
	}

	byActor := map[dataframe.Actor][]frameRow{}
	for _, r := range rows {
		byActor[dataframe.Actor(r.Actor)] = append(byActor[dataframe.Actor(r.Actor)], r)
	}

	frames := &dataframe.TimingFrames{Variant: variant}
	for _, actor := range []dataframe.Actor{dataframe.ActorVictim, dataframe.ActorAttacker} {
		actorRows := byActor[actor]
		if len(actorRows) == 0 {
			return nil, fmt.Errorf("no %s points found for variant %s", actor, variant)
		}
		sort.Slice(actorRows, func(i, j int) bool { return actorRows[i].Stage < actorRows[j].Stage })

		series := dataframe.StageSeries{
			Actor:    actor,
			Baseline: actorRows[0].Baseline,
			Values:   make([]float64, len(actorRows)),
		}
		labels := make([]string, len(actorRows))
		for i, r := range actorRows {
			if r.Stage != i {
				return nil, fmt.Errorf("%s points are not contiguous: stage %d at position %d", actor, r.Stage, i)
			}
			series.Values[i] = r.ElapsedMS
			labels[i] = r.Label
			if r.Sample != nil {
				series.Samples = append(series.Samples, *r.Sample)
			}
		}

		if actor == dataframe.ActorVictim {
			frames.Victim = series
			frames.Labels = labels
			frames.ClockFrequency = actorRows[0].ClockFrequency
		} else {
			frames.Attacker = series
		}
	}

	if len(frames.Victim.Values) != len(frames.Attacker.Values) {
		return nil, fmt.Errorf("victim has %d points, attacker has %d", len(frames.Victim.Values), len(frames.Attacker.Values))
	}
	return frames, nil
}

func (idb *InfluxDBClient) Close() {
	if idb.client != nil {
		idb.client.Close()
	}
}
