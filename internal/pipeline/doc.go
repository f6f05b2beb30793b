// Package pipeline provides the phase pipeline execution engine.
//
// A Pipeline is a fixed chain of Stages. The output payload of stage i is
// the input payload of stage i+1; there is no fan-out, fan-in or branching.
// Pipelines hold no run-scoped state and can be shared by any number of
// concurrent runs.
//
// # Event stream
//
// Run executes the chain in a goroutine and returns a channel of Events:
//
//	Started
//	StepStarted{stage}      // once per stage, immediately before it runs
//	StepFailed{stage, msg}  // only if a stage escapes its own error handling
//	Output{value}           // exactly once, always last
//
// The channel is closed after Output. A stage that fails past its boundary
// (returns an error or panics) does not abort the stream: the pipeline's
// fallback builds an error-shaped Output instead, so every run that starts
// also completes with an Output.
//
// A stage may stop the chain early by returning a payload whose Error field
// is set; the run then completes with an ErrorResult Output.
//
// Cancelling the run context stops event delivery promptly; the channel is
// still closed.
package pipeline
