package tracking

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Run statuses.
const (
	StatusFinished = "FINISHED"
	StatusRunning  = "RUNNING"
	StatusFailed   = "FAILED"
	StatusKilled   = "KILLED"
)

// Experiment is an MLflow experiment.
type Experiment struct {
	ID               string `json:"experiment_id"`
	Name             string `json:"name"`
	ArtifactLocation string `json:"artifact_location"`
	LifecycleStage   string `json:"lifecycle_stage"`
}

// Run is an MLflow run.
type Run struct {
	Info RunInfo `json:"info"`
	Data RunData `json:"data"`
}

// RunInfo is the metadata of a run.
type RunInfo struct {
	RunID          string `json:"run_id"`
	RunName        string `json:"run_name"`
	ExperimentID   string `json:"experiment_id"`
	Status         string `json:"status"`
	StartTime      Millis `json:"start_time"`
	EndTime        Millis `json:"end_time"`
	ArtifactURI    string `json:"artifact_uri"`
	LifecycleStage string `json:"lifecycle_stage"`
}

// RunData holds the logged values of a run.
type RunData struct {
	Metrics []Metric `json:"metrics"`
	Params  []KV     `json:"params"`
	Tags    []KV     `json:"tags"`
}

// Metric is the latest value of a logged metric.
type Metric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp Millis  `json:"timestamp"`
	Step      int64   `json:"step"`
}

// KV is a param or tag.
type KV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Tag returns the value of the tag key.
func (r *Run) Tag(key string) (string, bool) {
	for _, t := range r.Data.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// TagMap returns the run's tags as a map.
func (r *Run) TagMap() map[string]string {
	m := make(map[string]string, len(r.Data.Tags))
	for _, t := range r.Data.Tags {
		m[t.Key] = t.Value
	}
	return m
}

// FloatTag parses the tag key as a float.
func (r *Run) FloatTag(key string) (float64, bool) {
	v, ok := r.Tag(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Millis is a Unix timestamp in milliseconds. The tracking server encodes
// int64 fields either as JSON numbers or as strings; both are accepted.
type Millis int64

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*m = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*m = Millis(n)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(m))
}

// Time converts to time.Time; zero stays zero.
func (m Millis) Time() time.Time {
	if m == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(m)).UTC()
}
