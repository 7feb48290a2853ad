package pipeline

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/taskgraph"
	"git.home.luguber.info/inful/assetbuilder/internal/watch"
)

// RebuildFlow runs the named tasks concurrently. Clean is never part of a
// rebuild so outputs of other tasks stay untouched.
func (p *Pipeline) RebuildFlow(names []string) (taskgraph.Flow, error) {
	steps := make([]taskgraph.Flow, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		fn, ok := p.set.Lookup(n)
		if !ok {
			return nil, ferrors.ValidationError("unknown watch task").
				WithContext("task", n).
				WithContext("known", strings.Join(p.set.Names(), ",")).
				Build()
		}
		steps = append(steps, taskgraph.Step(taskgraph.StageName(n), fn))
	}
	return taskgraph.Parallel(steps...), nil
}

// WatchRules turns the configured watch rules into watcher rules whose
// actions run the mapped tasks.
func (p *Pipeline) WatchRules() ([]watch.Rule, error) {
	cfg := p.set.Config()
	rules := make([]watch.Rule, 0, len(cfg.Watch.Rules))
	for _, r := range cfg.Watch.Rules {
		flow, err := p.RebuildFlow(r.Tasks)
		if err != nil {
			if ce, ok := ferrors.AsClassified(err); ok {
				return nil, ce.WithContext("rule", r.Name)
			}
			return nil, err
		}
		label := FlowRebuild + ":" + r.Name
		rule := watch.Rule{
			Name:     r.Name,
			Patterns: r.Patterns,
			Reload:   r.Reload,
			Run: func(ctx context.Context) error {
				_, err := p.Run(ctx, label, flow)
				return err
			},
		}
		if r.Inject {
			rule.Inject = StylesheetURL(cfg)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Watcher builds a watcher over the source tree that refreshes browsers
// through reloader.
func (p *Pipeline) Watcher(reloader watch.Reloader, opts ...watch.Option) (*watch.Watcher, error) {
	rules, err := p.WatchRules()
	if err != nil {
		return nil, err
	}
	cfg := p.set.Config()
	base := []watch.Option{
		watch.WithReloader(reloader),
		watch.WithDebounce(cfg.Watch.Debounce),
		watch.WithRecorder(p.recorder),
		watch.WithLogger(p.log),
	}
	return watch.New(cfg.Source, rules, append(base, opts...)...)
}

// StylesheetURL is the server path of the compiled stylesheet.
func StylesheetURL(cfg *config.Config) string {
	return path.Join("/", filepath.ToSlash(cfg.Styles.Output))
}
