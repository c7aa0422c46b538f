// Package trace records what a stanwatch session is doing.
//
// Events are spans (begin/end pairs) or points, tagged with a scope:
//
//   - ScopeCommand: one CLI command or LSP request
//   - ScopeRun: one analysis attempt, from trigger to final status
//   - ScopeProcess: the external analyser process and its output
//
// The level decides which scopes are written. LevelPhase keeps commands
// and runs, LevelDetail adds process events and LevelDebug writes
// everything, including raw output dumps.
//
//	stanwatch analyse --trace=- --trace-level=detail src/
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeRun, "analyse", 0)
//	defer span.End("")
package trace
