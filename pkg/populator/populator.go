// Package populator turns a spec list into a complete secret document.
//
// Populate validates the whole list, including each key's alphabet and
// template, before generating anything, then generates
// every value in list order. Generation is all-or-nothing: if any key fails, no
// document is returned and nothing should be persisted.
//
// Each call is an independent provisioning event that walks
//
//	RECEIVED -> VALIDATING -> GENERATING -> DONE
//
// or ends in FAILED from VALIDATING or GENERATING. Re-running with the same
// list succeeds or fails the same way but produces new random values.
package populator

import (
	"context"
	"fmt"
	"time"

	"github.com/systmms/multisecret/internal/logging"
	"github.com/systmms/multisecret/internal/metrics"
	"github.com/systmms/multisecret/pkg/generator"
	"github.com/systmms/multisecret/pkg/secretdoc"
	"github.com/systmms/multisecret/pkg/secretspec"
)

// ValueGenerator produces the document value for one spec.
type ValueGenerator interface {
	Value(spec secretspec.Spec) (secretdoc.Value, error)
}

// Populator generates documents.
type Populator struct {
	generator ValueGenerator
	logger    *logging.Logger
	metrics   *metrics.Recorder
}

// Option configures a Populator.
type Option func(*Populator)

// WithGenerator replaces the value generator.
func WithGenerator(g ValueGenerator) Option {
	return func(p *Populator) {
		p.generator = g
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Populator) {
		p.logger = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Populator) {
		p.metrics = m
	}
}

// New creates a Populator with a crypto/rand generator.
func New(opts ...Option) *Populator {
	p := &Populator{
		generator: generator.New(),
		logger:    logging.Discard(),
		metrics:   metrics.NewRecorder(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Populate generates the document for specs.
func (p *Populator) Populate(ctx context.Context, specs secretspec.List) (*secretdoc.Document, error) {
	event := NewEvent(specs)
	if err := p.Run(ctx, event); err != nil {
		return nil, err
	}
	return event.Document(), nil
}

// Run drives event through validation and generation.
func (p *Populator) Run(ctx context.Context, event *Event) error {
	start := time.Now()
	err := p.run(ctx, event)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	p.metrics.RecordPopulate(outcome, len(event.Specs), time.Since(start).Seconds())
	return err
}

func (p *Populator) run(ctx context.Context, event *Event) error {
	if err := event.moveTo(StateValidating); err != nil {
		return err
	}
	if err := event.Specs.Validate(); err != nil {
		p.logger.Error("Secret key configuration rejected: %v", err)
		return event.fail(err)
	}
	if err := generator.CheckList(event.Specs); err != nil {
		p.logger.Error("Secret key configuration rejected: %v", err)
		return event.fail(err)
	}

	if err := event.moveTo(StateGenerating); err != nil {
		return err
	}
	doc := secretdoc.NewDocument()
	for _, spec := range event.Specs {
		if err := ctx.Err(); err != nil {
			return event.fail(fmt.Errorf("populate cancelled before key '%s': %w", spec.Name, err))
		}
		value, err := p.generator.Value(spec)
		if err != nil {
			p.logger.Error("Failed to generate key %s: %v", spec.Name, err)
			return event.fail(err)
		}
		doc.Set(spec.Name, value)
		p.logger.Debug("Generated key %s (%d characters)", spec.Name, spec.Length())
	}

	event.document = doc
	if err := event.moveTo(StateDone); err != nil {
		return err
	}
	p.logger.Info("Generated %d secret keys", doc.Len())
	return nil
}
