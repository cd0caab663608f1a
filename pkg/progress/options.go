package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kylealanhale/quicli/internal/clock/system"
	"github.com/kylealanhale/quicli/internal/id/uuid"
)

// Clock supplies timestamps; system.Clock is used unless WithClock is given.
type Clock interface {
	Now() time.Time
}

// Resolution is the granularity hint of a Timer. It is informational.
type Resolution string

// Supported resolutions.
const (
	ResolutionSeconds      Resolution = "seconds"
	ResolutionMicroseconds Resolution = "microseconds"
)

const defaultPeriod = time.Second

type options struct {
	out        io.Writer
	template   string
	logger     *zap.Logger
	emitter    Emitter
	clock      Clock
	period     time.Duration
	resolution Resolution
	onError    func(error)
}

// Option configures a Percentage or Timer. Options that only make sense for
// one renderer are ignored by the other.
type Option func(*options)

// WithOutput sets the stream the renderer redraws on. Default: os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithTemplate overrides the renderer's default template.
func WithTemplate(src string) Option {
	return func(o *options) { o.template = src }
}

// WithLogger sets the logger used for lifecycle and fault logging.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEmitter forwards renderer events, usually to a Hub.
func WithEmitter(e Emitter) Option {
	return func(o *options) { o.emitter = e }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithPeriod sets the Timer tick interval. Default: 1s.
func WithPeriod(d time.Duration) Option {
	return func(o *options) { o.period = d }
}

// WithResolution sets the Timer resolution hint.
func WithResolution(r Resolution) Option {
	return func(o *options) { o.resolution = r }
}

// WithErrorHandler registers a callback invoked once, from the loop
// goroutine, when a Timer tick faults.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) { o.onError = fn }
}

func buildOptions(defaultTemplate string, opts []Option) options {
	o := options{
		out:        os.Stdout,
		template:   defaultTemplate,
		period:     defaultPeriod,
		resolution: ResolutionSeconds,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.emitter == nil {
		o.emitter = nopEmitter{}
	}
	if o.clock == nil {
		o.clock = system.New()
	}
	return o
}

func newRendererID() ([16]byte, error) {
	id, err := uuid.NewUUIDGenerator().NewRawID()
	if err != nil {
		return [16]byte{}, fmt.Errorf("renderer id: %w", err)
	}
	return UUIDToBytes(id), nil
}
