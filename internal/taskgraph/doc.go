// Package taskgraph models a build as an explicit directed acyclic graph of
// named stages and runs it with a fail-fast scheduler.
//
// Graphs are assembled either directly (Add with declared dependencies) or by
// composing Step, Series and Parallel, which compile to the same graph:
//
//	flow := taskgraph.Series(
//		taskgraph.Step("clean", clean),
//		taskgraph.Step("copy", copyFiles),
//		taskgraph.Parallel(taskgraph.Step("styles", styles), taskgraph.Step("html", html)),
//	)
//
// A stage starts as soon as all of its dependencies succeeded. The first fatal
// error cancels the run context; no further stages start, running stages are
// awaited, and stages that never ran are reported as skipped.
package taskgraph
