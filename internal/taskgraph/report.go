package taskgraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/version"
)

// StageResult captures the outcome of one stage.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
	StageResultSkipped  StageResult = "skipped"
)

// Outcome is the final state of a run.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// StageRecord is one row of a Report.
type StageRecord struct {
	Stage    StageName     `json:"stage"`
	Result   StageResult   `json:"result"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Report summarizes one run of a graph.
type Report struct {
	RunID   string    `json:"run_id"`
	Flow    string    `json:"flow"`
	Version string    `json:"version"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Outcome Outcome   `json:"outcome"`
	// Stages is ordered by completion; skipped stages come last in graph order.
	Stages []StageRecord `json:"stages"`
	Errors []error       `json:"-"`
}

func newReport(runID, flow string) *Report {
	return &Report{RunID: runID, Flow: flow, Version: version.Version, Start: time.Now()}
}

func (r *Report) record(stage StageName, res StageResult, d time.Duration, err error) {
	rec := StageRecord{Stage: stage, Result: res, Duration: d}
	if err != nil {
		rec.Error = err.Error()
	}
	r.Stages = append(r.Stages, rec)
}

// Result returns the recorded result of stage.
func (r *Report) Result(stage StageName) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Result, true
		}
	}
	return "", false
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

func (r *Report) count(res StageResult) int {
	n := 0
	for _, s := range r.Stages {
		if s.Result == res {
			n++
		}
	}
	return n
}

// Summary returns a one-line human readable digest.
func (r *Report) Summary() string {
	return fmt.Sprintf("flow=%s stages=%d succeeded=%d failed=%d skipped=%d duration=%s outcome=%s",
		r.Flow, len(r.Stages), r.count(StageResultSuccess), r.count(StageResultFatal),
		r.count(StageResultSkipped), r.Duration().Truncate(time.Millisecond), r.Outcome)
}

// Persist writes the report as indented JSON to path, creating parent directories.
func (r *Report) Persist(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "marshal run report").Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create report directory").
			WithContext("path", path).
			Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write run report").
			WithContext("path", path).
			Build()
	}
	return nil
}
