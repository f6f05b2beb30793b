package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tjfontaine/youtube-reviewer/internal/pipeline"

// ErrNoResult is passed to the fallback when the chain finishes without any
// stage setting Payload.Result.
var ErrNoResult = errors.New("pipeline produced no result")

// Stage is a single unit of pipeline work.
type Stage interface {
	// ID returns the stage identifier reported in step events.
	ID() string
	// Run consumes the previous payload and produces the next one.
	// Failures the stage can describe should be returned as a payload
	// (Failed or an error-shaped Result), not as an error.
	Run(ctx context.Context, in *Payload) (*Payload, error)
}

// FallbackFunc builds the error-shaped result for a run whose stage failed
// past its own boundary.
type FallbackFunc func(in *Payload, err error) any

// Pipeline is an immutable chain of stages.
type Pipeline struct {
	name     string
	stages   []Stage
	fallback FallbackFunc
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates a pipeline that runs stages in the given order.
func New(name string, fallback FallbackFunc, stages ...Stage) *Pipeline {
	if fallback == nil {
		fallback = func(_ *Payload, err error) any {
			return ErrorResult{Error: err.Error()}
		}
	}
	return &Pipeline{
		name:     name,
		stages:   append([]Stage(nil), stages...),
		fallback: fallback,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.name
}

// StageIDs returns the stage identifiers in chain order.
func (p *Pipeline) StageIDs() []string {
	ids := make([]string, len(p.stages))
	for i, s := range p.stages {
		ids[i] = s.ID()
	}
	return ids
}

// Run executes the chain for one invocation. The returned channel yields the
// run's events in order and is closed after the Output event or once ctx is
// done. The channel must be drained or ctx cancelled.
func (p *Pipeline) Run(ctx context.Context, in *Payload) <-chan Event {
	out := make(chan Event)
	go p.run(ctx, in, out)
	return out
}

// RunSync executes the chain and returns the aggregate result.
func (p *Pipeline) RunSync(ctx context.Context, in *Payload) Result {
	return Collect(p.Run(ctx, in))
}

func (p *Pipeline) run(ctx context.Context, in *Payload, out chan<- Event) {
	defer close(out)

	emit := func(ev Event) bool {
		ev.Pipeline = p.name
		ev.Timestamp = p.now().UTC()
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(Event{Type: EventStarted}) {
		return
	}

	current := in
	if current == nil {
		current = &Payload{}
	}

	for _, stage := range p.stages {
		if !emit(Event{Type: EventStepStarted, StageID: stage.ID()}) {
			return
		}

		next, err := p.runStage(ctx, stage, current)
		if err == nil && next == nil {
			err = fmt.Errorf("stage %s returned no payload", stage.ID())
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !emit(Event{Type: EventStepFailed, StageID: stage.ID(), Message: err.Error()}) {
				return
			}
			emit(Event{Type: EventOutput, Value: p.fallback(current, err)})
			return
		}

		current = next
		if current.Error != "" {
			emit(Event{Type: EventOutput, Value: ErrorResult{Error: current.Error}})
			return
		}
	}

	value := current.Result
	if value == nil {
		value = p.fallback(current, ErrNoResult)
	}
	emit(Event{Type: EventOutput, Value: value})
}

// runStage runs one stage inside a span and converts a panic into an error.
func (p *Pipeline) runStage(ctx context.Context, stage Stage, in *Payload) (out *Payload, err error) {
	ctx, span := p.tracer.Start(ctx, "stage "+stage.ID(),
		trace.WithAttributes(
			attribute.String("pipeline.name", p.name),
			attribute.String("pipeline.stage", stage.ID()),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("stage %s panicked: %v", stage.ID(), r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	// Stages never see the caller's payload pointer.
	return stage.Run(ctx, in.Clone())
}
