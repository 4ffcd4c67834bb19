// Package eventlog writes and replays the line-delimited JSON record of a
// profiling run: metric definitions first, then one line per data point.
package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/run-profiler/pkg/monitor"
)

// FileName is the event log name inside the output directory.
const FileName = "profiling.ndjson"

// Record kinds
const (
	KindMetric = "Metric"
	KindPoint  = "Point"
)

type metricData struct {
	Type string `json:"type"`
	Unit string `json:"unit"`
}

type pointData struct {
	Time  string            `json:"time"`
	Value float64           `json:"value"`
	Tags  map[string]string `json:"tags"`
}

type record struct {
	Type   string          `json:"type"`
	Metric string          `json:"metric"`
	Data   json.RawMessage `json:"data"`
}

type outRecord struct {
	Type   string `json:"type"`
	Metric string `json:"metric"`
	Data   any    `json:"data"`
}

// Path returns the event log path for an output directory.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Writer 将采样结果写入 NDJSON 事件日志
type Writer struct {
	dir string
}

// NewWriter 创建写入器，目录在 Write 时按需创建
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Path 事件日志完整路径
func (w *Writer) Path() string { return Path(w.dir) }

// Write truncates the log and writes defs then points. The returned path is
// set even on error so callers can report it.
func (w *Writer) Write(defs []monitor.MetricDefinition, points []monitor.DataPoint) (path string, err error) {
	path = w.Path()
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return path, fmt.Errorf("create output dir %s: %w", w.dir, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return path, fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := Encode(bw, defs, points); err != nil {
		return path, err
	}
	if err := bw.Flush(); err != nil {
		return path, fmt.Errorf("flush %s: %w", path, err)
	}
	return path, nil
}

// Encode writes the NDJSON stream to w.
func Encode(w io.Writer, defs []monitor.MetricDefinition, points []monitor.DataPoint) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, d := range defs {
		if err := enc.Encode(outRecord{
			Type:   KindMetric,
			Metric: string(d.Metric),
			Data:   metricData{Type: d.Type, Unit: d.Unit},
		}); err != nil {
			return fmt.Errorf("encode metric %s: %w", d.Metric, err)
		}
	}
	for i, p := range points {
		if err := enc.Encode(outRecord{
			Type:   KindPoint,
			Metric: string(p.Metric),
			Data:   pointData{Time: monitor.FormatTime(p.Time), Value: p.Value, Tags: p.Tags},
		}); err != nil {
			return fmt.Errorf("encode point %d: %w", i, err)
		}
	}
	return nil
}

// Log is a replayed event log.
type Log struct {
	Definitions []monitor.MetricDefinition
	Points      []monitor.DataPoint
}

// ReadFile replays the event log at path.
func ReadFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read replays an NDJSON stream. Blank lines are ignored; unknown record
// types and malformed lines are errors naming the line number.
func Read(r io.Reader) (*Log, error) {
	out := &Log{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		switch rec.Type {
		case KindMetric:
			var d metricData
			if err := json.Unmarshal(rec.Data, &d); err != nil {
				return nil, fmt.Errorf("line %d: metric data: %w", line, err)
			}
			out.Definitions = append(out.Definitions, monitor.MetricDefinition{
				Metric: monitor.MetricKind(rec.Metric), Type: d.Type, Unit: d.Unit,
			})
		case KindPoint:
			var d pointData
			if err := json.Unmarshal(rec.Data, &d); err != nil {
				return nil, fmt.Errorf("line %d: point data: %w", line, err)
			}
			ts, err := ParseTime(d.Time)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			out.Points = append(out.Points, monitor.DataPoint{
				Metric: monitor.MetricKind(rec.Metric), Time: ts, Value: d.Value, Tags: d.Tags,
			})
		default:
			return nil, fmt.Errorf("line %d: unknown record type %q", line, rec.Type)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseTime parses a point timestamp; only UTC instants with a "Z" suffix are accepted.
func ParseTime(s string) (time.Time, error) {
	if len(s) == 0 || s[len(s)-1] != 'Z' {
		return time.Time{}, errors.New("time " + s + " is not a UTC instant ending in Z")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
