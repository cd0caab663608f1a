package progress

import (
	"context"
	"fmt"
	"sync"
	"text/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Timer renders the wall-clock time elapsed since Start, refreshed by its own
// background goroutine every period.
//
// Drive a Timer either with Start/Stop or by calling Update manually, never
// both at once: the loop and a manual caller race for the cursor.
type Timer struct {
	id         [16]byte
	tmpl       *template.Template
	line       *LineWriter
	logger     *zap.Logger
	emitter    Emitter
	clock      Clock
	period     time.Duration
	resolution Resolution
	onError    func(error)

	mu        sync.Mutex
	started   bool
	startTime time.Time
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	err       error
}

// NewTimer returns an idle Timer.
func NewTimer(opts ...Option) (*Timer, error) {
	o := buildOptions(DefaultTimeTemplate, opts)
	if o.period <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidPeriod, o.period)
	}
	tmpl, err := parseTemplate("time", o.template, TimeData{})
	if err != nil {
		return nil, err
	}
	id, err := newRendererID()
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	close(done)
	return &Timer{
		id:         id,
		tmpl:       tmpl,
		line:       NewLineWriter(o.out),
		logger:     o.logger.With(zap.Stringer("renderer_id", uuid.UUID(id)), zap.String("kind", string(KindTime))),
		emitter:    o.emitter,
		clock:      o.clock,
		period:     o.period,
		resolution: o.resolution,
		onError:    o.onError,
		doneCh:     done,
	}, nil
}

// Start records the start time and launches the redraw loop. The loop draws
// once immediately and then once per period until Stop is called, ctx ends,
// or a redraw fails. Start returns ErrAlreadyRunning until the previous loop
// has exited, including a stopped loop still finishing a redraw.
func (t *Timer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return ErrAlreadyRunning
	}
	select {
	case <-t.doneCh:
	default:
		t.mu.Unlock()
		return ErrAlreadyRunning
	}
	t.startTime = t.clock.Now()
	t.started = true
	t.running = true
	t.err = nil
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	t.stopCh, t.doneCh = stopCh, doneCh
	t.mu.Unlock()

	t.logger.Debug("progress timer started", zap.Duration("period", t.period), zap.String("resolution", string(t.resolution)))
	t.emit(StageStart, "", 0, "")
	go t.loop(ctx, stopCh, doneCh)
	return nil
}

// Stop asks the loop to exit. It does not wait: no redraw starts after Stop
// returns, but one already in flight completes. Use Wait or Done to join.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.stopCh)
}

// Update recomputes the elapsed time and redraws. It returns ErrNotStarted
// before the first Start.
func (t *Timer) Update() error {
	t.mu.Lock()
	started, startTime := t.started, t.startTime
	t.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	elapsed := max(t.clock.Now().Sub(startTime), 0)
	text, err := render(t.tmpl, splitElapsed(elapsed))
	if err != nil {
		return err
	}
	drawn, err := t.line.Write(text)
	if err != nil {
		return err
	}
	stage := StageRedraw
	if !drawn {
		stage = StageSkip
	}
	t.emit(stage, text, elapsed, "")
	return nil
}

// Finish ends the progress line so later output starts on a fresh line. Call
// it once the loop has exited.
func (t *Timer) Finish() error {
	return t.line.Newline()
}

// Done is closed when the current loop has exited. It is already closed for
// a Timer that was never started.
func (t *Timer) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doneCh
}

// Wait blocks until the loop exits or ctx ends.
func (t *Timer) Wait(ctx context.Context) error {
	select {
	case <-t.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress timer wait: %w", ctx.Err())
	}
}

// Running reports whether the loop is active.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Err returns the fault that ended the most recent loop, if any.
func (t *Timer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Resolution returns the configured resolution hint.
func (t *Timer) Resolution() Resolution {
	return t.resolution
}

func (t *Timer) loop(ctx context.Context, stopCh chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		// stop wins over a pending draw, including the first one
		select {
		case <-stopCh:
			t.finish(stopCh, "stopped")
			return
		case <-ctx.Done():
			t.finish(stopCh, ctx.Err().Error())
			return
		default:
		}
		if err := t.tick(); err != nil {
			t.fail(stopCh, err)
			return
		}
		select {
		case <-stopCh:
			t.finish(stopCh, "stopped")
			return
		case <-ctx.Done():
			t.finish(stopCh, ctx.Err().Error())
			return
		case <-ticker.C:
		}
	}
}

func (t *Timer) tick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("progress timer panic: %v", r)
		}
	}()
	return t.Update()
}

func (t *Timer) finish(stopCh chan struct{}, reason string) {
	t.mu.Lock()
	if t.stopCh == stopCh {
		t.running = false
	}
	t.mu.Unlock()
	t.logger.Debug("progress timer stopped", zap.String("reason", reason))
	t.emit(StageStop, "", t.elapsed(), reason)
}

func (t *Timer) fail(stopCh chan struct{}, err error) {
	t.mu.Lock()
	if t.stopCh == stopCh {
		t.running = false
		t.err = err
	}
	t.mu.Unlock()
	t.logger.Error("progress timer loop failed", zap.Error(err))
	t.emit(StageFault, "", t.elapsed(), err.Error())
	if t.onError != nil {
		t.onError(err)
	}
}

func (t *Timer) elapsed() time.Duration {
	t.mu.Lock()
	start := t.startTime
	t.mu.Unlock()
	return max(t.clock.Now().Sub(start), 0)
}

func (t *Timer) emit(stage Stage, text string, elapsed time.Duration, note string) {
	t.emitter.Emit(Event{
		RendererID: t.id,
		TS:         t.clock.Now(),
		Stage:      stage,
		Kind:       KindTime,
		Text:       text,
		Elapsed:    elapsed,
		Note:       note,
	})
}

// splitElapsed decomposes d into whole days, whole seconds within the day and
// microseconds within the second.
func splitElapsed(d time.Duration) TimeData {
	const day = 24 * time.Hour
	days := d / day
	d -= days * day
	secs := d / time.Second
	d -= secs * time.Second
	return TimeData{
		Days:         int(days),
		Seconds:      int(secs),
		Microseconds: int(d / time.Microsecond),
	}
}
