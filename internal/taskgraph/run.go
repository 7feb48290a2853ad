package taskgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// RunOptions tune a single Run.
type RunOptions struct {
	Flow     string   // label used in logs, metrics and the report
	RunID    string   // generated when empty
	Observer Observer // optional
	Logger   *slog.Logger
}

type completion struct {
	stage StageName
	err   error
	dur   time.Duration
}

// Run executes g. Stages start as soon as their dependencies succeeded and
// run concurrently otherwise. The returned error is the first fatal
// StageError, or a canceled StageError when ctx ended the run early. The
// report is always returned, also on error.
func Run(ctx context.Context, g *Graph, opts RunOptions) (*Report, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	obs := opts.Observer
	if obs == nil {
		obs = NoopObserver{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(logfields.RunID(opts.RunID), logfields.Flow(opts.Flow))

	report := newReport(opts.RunID, opts.Flow)
	if err := g.Validate(); err != nil {
		report.End = time.Now()
		report.Outcome = OutcomeFailed
		report.Errors = append(report.Errors, err)
		return report, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid stage graph").Build()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pending := make(map[StageName]int, len(g.nodes))
	for _, n := range g.nodes {
		pending[n.name] = len(g.Deps(n.name))
	}
	dependents := g.dependents()
	started := make(map[StageName]bool, len(g.nodes))
	done := make(chan completion)
	running := 0

	var firstErr *StageError
	start := func(name StageName) {
		started[name] = true
		running++
		obs.OnStageStart(name)
		log.Info("Stage started", logfields.Stage(string(name)))
		fn := g.nodes[g.index[name]].fn
		go func() {
			t0 := time.Now()
			err := invoke(runCtx, name, fn)
			done <- completion{stage: name, err: err, dur: time.Since(t0)}
		}()
	}

	log.Info("Run started", slog.Int("stages", len(g.nodes)))
	for _, n := range g.nodes {
		if pending[n.name] == 0 {
			start(n.name)
		}
	}

	for running > 0 {
		c := <-done
		running--

		res := StageResultSuccess
		var stageErr *StageError
		if c.err != nil {
			if runCtx.Err() != nil && errors.Is(c.err, context.Canceled) {
				res = StageResultCanceled
				stageErr = NewCanceledStageError(c.stage, c.err)
			} else {
				res = StageResultFatal
				stageErr = NewFatalStageError(c.stage, c.err)
			}
			report.Errors = append(report.Errors, stageErr)
		}
		report.record(c.stage, res, c.dur, c.err)
		obs.OnStageComplete(c.stage, c.dur, res)

		attrs := []any{logfields.Stage(string(c.stage)), logfields.Result(string(res)), logfields.Duration(c.dur)}
		switch res {
		case StageResultFatal:
			log.Error("Stage failed", append(attrs, logfields.Error(c.err))...)
			if firstErr == nil {
				firstErr = stageErr
				cancel()
			}
			continue
		case StageResultCanceled:
			log.Warn("Stage canceled", attrs...)
			continue
		default:
			log.Info("Stage completed", attrs...)
		}

		if runCtx.Err() != nil {
			continue
		}
		for _, d := range dependents[c.stage] {
			pending[d]--
			if pending[d] == 0 {
				start(d)
			}
		}
	}

	for _, n := range g.nodes {
		if !started[n.name] {
			report.record(n.name, StageResultSkipped, 0, nil)
			obs.OnStageComplete(n.name, 0, StageResultSkipped)
		}
	}

	report.End = time.Now()
	var err error
	switch {
	case firstErr != nil:
		report.Outcome = OutcomeFailed
		err = firstErr
	case ctx.Err() != nil:
		report.Outcome = OutcomeCanceled
		err = canceledError(report, ctx.Err())
	default:
		report.Outcome = OutcomeSuccess
	}
	obs.OnRunComplete(report)
	log.Info("Run finished", logfields.Result(string(report.Outcome)), logfields.Duration(report.Duration()))
	return report, err
}

// invoke runs fn and converts a panic into a fatal error.
func invoke(ctx context.Context, name StageName, fn StageFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ferrors.InternalError(fmt.Sprintf("stage panicked: %v", r)).
				WithContext("stage", string(name)).
				Build()
		}
	}()
	return fn(ctx)
}

func canceledError(report *Report, cause error) *StageError {
	for _, s := range report.Stages {
		if s.Result == StageResultCanceled || s.Result == StageResultSkipped {
			return NewCanceledStageError(s.Stage, cause)
		}
	}
	var last StageName
	if n := len(report.Stages); n > 0 {
		last = report.Stages[n-1].Stage
	}
	return NewCanceledStageError(last, cause)
}
