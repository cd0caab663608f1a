package progress

import (
	"fmt"
	"math"
	"sync"
	"text/template"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Percentage renders progress toward a fixed total as a formatted fraction.
// It is driven synchronously by its caller and owns no goroutines.
//
// The counter is clamped to [0, total] rather than rejecting out-of-range
// amounts, so negative amounts can roll back previously reported progress.
type Percentage struct {
	id      [16]byte
	total   float64
	tmpl    *template.Template
	line    *LineWriter
	logger  *zap.Logger
	emitter Emitter
	clock   Clock

	mu      sync.Mutex
	current float64
}

// NewPercentage returns a renderer tracking progress toward total. A total of
// zero is always reported as complete.
func NewPercentage(total float64, opts ...Option) (*Percentage, error) {
	if !(total >= 0) || math.IsInf(total, 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidTotal, total)
	}
	o := buildOptions(DefaultPercentageTemplate, opts)
	tmpl, err := parseTemplate("percentage", o.template, PercentageData{})
	if err != nil {
		return nil, err
	}
	id, err := newRendererID()
	if err != nil {
		return nil, err
	}
	return &Percentage{
		id:      id,
		total:   total,
		tmpl:    tmpl,
		line:    NewLineWriter(o.out),
		logger:  o.logger.With(zap.Stringer("renderer_id", uuid.UUID(id)), zap.String("kind", string(KindPercentage))),
		emitter: o.emitter,
		clock:   o.clock,
	}, nil
}

// Update adds amount to the counter, clamps it to [0, total], and redraws.
// ctx is made available to the template as .Context.
func (p *Percentage) Update(amount float64, ctx string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !math.IsNaN(amount) {
		p.current = min(max(p.current+amount, 0), p.total)
	}
	fraction := p.fractionLocked()
	text, err := render(p.tmpl, PercentageData{Fraction: fraction, Progress: fraction, Context: ctx})
	if err != nil {
		return err
	}
	drawn, err := p.line.Write(text)
	if err != nil {
		return err
	}

	stage := StageRedraw
	if !drawn {
		stage = StageSkip
	}
	p.emitter.Emit(Event{
		RendererID: p.id,
		TS:         p.clock.Now(),
		Stage:      stage,
		Kind:       KindPercentage,
		Text:       text,
		Fraction:   fraction,
	})
	return nil
}

// Increment is Update(1, ctx).
func (p *Percentage) Increment(ctx string) error {
	return p.Update(1, ctx)
}

// Finish ends the progress line so later output starts on a fresh line.
func (p *Percentage) Finish() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.line.Newline(); err != nil {
		return err
	}
	p.emitter.Emit(Event{
		RendererID: p.id,
		TS:         p.clock.Now(),
		Stage:      StageStop,
		Kind:       KindPercentage,
		Fraction:   p.fractionLocked(),
	})
	p.logger.Debug("percentage progress finished", zap.Float64("current", p.current), zap.Float64("total", p.total))
	return nil
}

// Current returns the clamped counter.
func (p *Percentage) Current() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Total returns the bound given at construction.
func (p *Percentage) Total() float64 {
	return p.total
}

// Fraction returns current/total, or 1 when total is zero.
func (p *Percentage) Fraction() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fractionLocked()
}

func (p *Percentage) fractionLocked() float64 {
	if p.total == 0 {
		return 1
	}
	return p.current / p.total
}
