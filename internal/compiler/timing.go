package compiler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type timingEvent struct {
	Phase      string  `json:"phase"`
	Kind       string  `json:"kind"`
	File       string  `json:"file,omitempty"`
	Status     string  `json:"status,omitempty"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	EndMS      float64 `json:"end_ms"`
}

// timingRecorder writes one JSON line per pipeline stage or unit step.
// A recorder without a path keeps nothing.
type timingRecorder struct {
	enabled bool
	start   time.Time
	mu      sync.Mutex
	file    *os.File
	enc     *json.Encoder
	err     error
}

func newTimingRecorder(start time.Time, path string) *timingRecorder {
	tr := &timingRecorder{start: start}
	if path == "" {
		return tr
	}
	f, err := os.Create(path)
	if err != nil {
		tr.err = err
		return tr
	}
	tr.enabled = true
	tr.file = f
	tr.enc = json.NewEncoder(f)
	return tr
}

func (tr *timingRecorder) Err() error {
	if tr == nil {
		return nil
	}
	return tr.err
}

func (tr *timingRecorder) Close() {
	if tr == nil || tr.file == nil {
		return
	}
	_ = tr.file.Close()
}

func (tr *timingRecorder) record(phase, kind, file, status string, start time.Time, duration time.Duration) {
	if tr == nil || !tr.enabled {
		return
	}
	startMS := durationToMS(start.Sub(tr.start))
	durationMS := durationToMS(duration)
	event := timingEvent{
		Phase:      phase,
		Kind:       kind,
		File:       file,
		Status:     status,
		StartMS:    startMS,
		DurationMS: durationMS,
		EndMS:      startMS + durationMS,
	}
	tr.mu.Lock()
	if err := tr.enc.Encode(event); err != nil && tr.err == nil {
		tr.err = err
	}
	tr.mu.Unlock()
}

// RecordStage records a whole-run stage that started at start.
func (tr *timingRecorder) RecordStage(phase string, start time.Time, status string) {
	tr.record(phase, "stage", "", status, start, time.Since(start))
}

// RecordUnit records one step of compiling a single description file.
func (tr *timingRecorder) RecordUnit(phase, file, status string, start time.Time) {
	tr.record(phase, "unit", file, status, start, time.Since(start))
}

func durationToMS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000_000.0
}

// resolveTimingPath picks the timing output: CSRC_TIMING_JSONL, then the
// compiler's TimingPath, then the configured path. Timing with no path
// writes timing.jsonl under rootPath.
func (c *Compiler) resolveTimingPath(rootPath string) string {
	if envPath := os.Getenv("CSRC_TIMING_JSONL"); envPath != "" {
		return envPath
	}
	if c.TimingPath != "" {
		return c.TimingPath
	}
	if c.Config != nil && c.Config.Output.TimingPath != "" {
		return c.Config.Output.TimingPath
	}
	if c.Timing {
		dir := rootPath
		if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
			dir = filepath.Dir(rootPath)
		}
		return filepath.Join(dir, "timing.jsonl")
	}
	return ""
}
