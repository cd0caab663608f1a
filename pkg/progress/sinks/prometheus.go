package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kylealanhale/quicli/pkg/progress"
)

// PrometheusSink exports renderer activity via Prometheus: redraws, skipped
// redraws, faults, active renderers, timer run length, and the last observed
// completion ratio.
type PrometheusSink struct {
	redraws    *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	faults     *prometheus.CounterVec
	active     *prometheus.GaugeVec
	completion prometheus.Gauge
	timerRun   prometheus.Histogram

	tracker *rendererTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		redraws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_redraws_total",
			Help: "Redraws written to the output stream, by renderer kind.",
		}, []string{"kind"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_redraws_skipped_total",
			Help: "Updates that produced unchanged text and were not written.",
		}, []string{"kind"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_faults_total",
			Help: "Background loop faults, by renderer kind.",
		}, []string{"kind"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "progress_renderers_active",
			Help: "Renderers that have drawn and not yet stopped.",
		}, []string{"kind"}),
		completion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "progress_completion_ratio",
			Help: "Most recent fraction reported by a percentage renderer.",
		}),
		timerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "progress_timer_run_seconds",
			Help:    "Elapsed time shown by a timer when its loop ended.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1800, 3600},
		}),
		tracker: newRendererTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.redraws,
		s.skipped,
		s.faults,
		s.active,
		s.completion,
		s.timerRun,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch. It is safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	kind := string(evt.Kind)
	switch evt.Stage {
	case progress.StageStart:
		s.begin(evt.RendererID, kind)
	case progress.StageRedraw:
		s.begin(evt.RendererID, kind)
		s.redraws.WithLabelValues(kind).Inc()
		if evt.Kind == progress.KindPercentage {
			s.completion.Set(evt.Fraction)
		}
	case progress.StageSkip:
		s.skipped.WithLabelValues(kind).Inc()
	case progress.StageFault:
		s.faults.WithLabelValues(kind).Inc()
		s.end(evt, kind)
	case progress.StageStop:
		s.end(evt, kind)
	}
}

func (s *PrometheusSink) begin(id [16]byte, kind string) {
	if s.tracker.start(id) {
		s.active.WithLabelValues(kind).Inc()
	}
}

func (s *PrometheusSink) end(evt progress.Event, kind string) {
	if s.tracker.complete(evt.RendererID) {
		s.active.WithLabelValues(kind).Dec()
	}
	if evt.Kind == progress.KindTime && evt.Elapsed > 0 {
		s.timerRun.Observe(evt.Elapsed.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type rendererTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRendererTracker() *rendererTracker {
	return &rendererTracker{running: make(map[[16]byte]struct{})}
}

func (t *rendererTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *rendererTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
