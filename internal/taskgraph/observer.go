package taskgraph

import (
	"time"

	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

// Observer receives callbacks around stage execution and run lifecycle.
type Observer interface {
	OnStageStart(stage StageName)
	OnStageComplete(stage StageName, duration time.Duration, result StageResult)
	OnRunComplete(report *Report)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnStageStart(StageName)                                {}
func (NoopObserver) OnStageComplete(StageName, time.Duration, StageResult) {}
func (NoopObserver) OnRunComplete(*Report)                                 {}

// Observers fans callbacks out to several observers in order.
type Observers []Observer

func (o Observers) OnStageStart(stage StageName) {
	for _, ob := range o {
		ob.OnStageStart(stage)
	}
}

func (o Observers) OnStageComplete(stage StageName, d time.Duration, res StageResult) {
	for _, ob := range o {
		ob.OnStageComplete(stage, d, res)
	}
}

func (o Observers) OnRunComplete(report *Report) {
	for _, ob := range o {
		ob.OnRunComplete(report)
	}
}

// RecorderObserver adapts metrics.Recorder into an Observer.
type RecorderObserver struct{ Recorder metrics.Recorder }

func (r RecorderObserver) OnStageStart(StageName) {}

func (r RecorderObserver) OnStageComplete(stage StageName, d time.Duration, res StageResult) {
	if r.Recorder == nil {
		return
	}
	if res != StageResultSkipped {
		r.Recorder.ObserveStageDuration(string(stage), d)
	}
	r.Recorder.IncStageResult(string(stage), metrics.ResultLabel(res))
}

func (r RecorderObserver) OnRunComplete(report *Report) {
	if r.Recorder == nil {
		return
	}
	r.Recorder.ObserveRunDuration(report.Flow, report.Duration())
	r.Recorder.IncRunOutcome(report.Flow, metrics.RunOutcomeLabel(report.Outcome))
}
