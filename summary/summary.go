// Package summary persists the record of the best weight accepted so far.
//
// The summary gates weight updates: a new run replaces the stored weight only
// when its validation loss is strictly lower than the summary's. A freshly
// initialised summary carries an infinite loss so the first run always wins.
package summary

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/tracking"
)

// Summary describes the run whose weight is currently deployed.
type Summary struct {
	RunID        string            `json:"run_id"`
	RunName      string            `json:"run_name,omitempty"`
	ExperimentID string            `json:"experiment_id,omitempty"`
	Status       string            `json:"status,omitempty"`
	ArtifactURI  string            `json:"artifact_uri,omitempty"`
	ValLoss      Loss              `json:"val_loss"`
	StartTime    *time.Time        `json:"start_time,omitempty"`
	EndTime      *time.Time        `json:"end_time,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Initial returns the summary representing "no prior best".
func Initial(now time.Time) *Summary {
	return &Summary{
		ValLoss:   Loss(math.Inf(1)),
		UpdatedAt: now.UTC(),
	}
}

// FromRun builds the summary of run, whose validation loss is loss.
func FromRun(run *tracking.Run, loss float64, now time.Time) *Summary {
	s := &Summary{
		RunID:        run.Info.RunID,
		RunName:      run.Info.RunName,
		ExperimentID: run.Info.ExperimentID,
		Status:       run.Info.Status,
		ArtifactURI:  run.Info.ArtifactURI,
		ValLoss:      Loss(loss),
		Tags:         run.TagMap(),
		UpdatedAt:    now.UTC(),
	}
	if t := run.Info.StartTime.Time(); !t.IsZero() {
		s.StartTime = &t
	}
	if t := run.Info.EndTime.Time(); !t.IsZero() {
		s.EndTime = &t
	}
	return s
}

// IsInitial reports whether no run has been accepted yet.
func (s *Summary) IsInitial() bool {
	return s.RunID == "" && math.IsInf(float64(s.ValLoss), 1)
}

// Loss is a validation loss. Positive infinity is written as the string "inf";
// on input any spelling strconv.ParseFloat accepts is allowed, quoted or not.
type Loss float64

// Float returns l as a float64.
func (l Loss) Float() float64 { return float64(l) }

// MarshalJSON implements json.Marshaler.
func (l Loss) MarshalJSON() ([]byte, error) {
	f := float64(l)
	switch {
	case math.IsNaN(f):
		return nil, errors.New(errors.CodeInvalidInput, "validation loss is NaN")
	case math.IsInf(f, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-inf"`), nil
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Loss) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if s == "null" || s == "" {
		return errors.New(errors.CodeInvalidInput, "validation loss is empty")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return errors.Newf(errors.CodeInvalidInput, "validation loss %q is not a number", s)
	}
	*l = Loss(f)
	return nil
}

// Encode renders s as indented JSON.
func Encode(s *Summary) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "failed to encode summary")
	}
	return append(data, '\n'), nil
}

// Decode parses a summary document. val_loss is required.
func Decode(data []byte) (*Summary, error) {
	var probe struct {
		ValLoss *json.RawMessage `json:"val_loss"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "malformed summary")
	}
	if probe.ValLoss == nil {
		return nil, errors.New(errors.CodeInvalidInput, "summary has no val_loss")
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "malformed summary")
	}
	return &s, nil
}
