package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aquamon/aquamon"
	"github.com/alepar/aquamon/aquamon/reader"
)

type Converter interface {
	Convert(ctx context.Context, raw aquamon.RawSample) (aquamon.ConcentrationSample, error)
}

type Predictor interface {
	Predict(ctx context.Context, window []aquamon.ConcentrationSample) (aquamon.TrendEstimate, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, current aquamon.ConcentrationSample, predicted aquamon.TrendEstimate) (aquamon.Report, error)
}

type Config struct {
	WindowSize int
	// Interval is the minimum spacing between ticks that read a sample.
	Interval time.Duration
	// IdleInterval follows a tick that read nothing; 0 means Interval.
	IdleInterval time.Duration
	ReadTimeout  time.Duration
	// Fields is the expected values per frame, 0 accepts any.
	Fields int
	// ErrorPause follows a tick that failed for a reason other than transport.
	ErrorPause    time.Duration
	BackoffMin    time.Duration
	BackoffMax    time.Duration
	BackoffJitter float64
}

type Option func(*Monitor)

func WithLogger(logger log.FieldLogger) Option {
	return func(m *Monitor) { m.logger = logger }
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Monitor) { m.metrics = metrics }
}

// WithSleep replaces the cadence wait. sleep must return ctx.Err() once ctx is done.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Monitor) { m.sleep = sleep }
}

// Monitor samples the sensor, keeps the history window and produces reports.
// Run drives it from a single goroutine; only Snapshot may be called concurrently.
type Monitor struct {
	cfg         Config
	transport   aquamon.Transport
	converter   Converter
	predictor   Predictor
	synthesizer Synthesizer
	sink        aquamon.Sink

	logger  log.FieldLogger
	metrics *Metrics
	sleep   func(ctx context.Context, d time.Duration) error
	backoff backoff.BackOff

	window  *aquamon.Window
	seq     []aquamon.ConcentrationSample
	channel aquamon.Channel
	reader  *reader.Reader

	mu   sync.Mutex
	snap Snapshot
}

func New(cfg Config, transport aquamon.Transport, converter Converter, predictor Predictor, synthesizer Synthesizer, sink aquamon.Sink, opts ...Option) *Monitor {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BackoffMin
	b.MaxInterval = cfg.BackoffMax
	b.RandomizationFactor = cfg.BackoffJitter
	b.MaxElapsedTime = 0
	b.Reset()

	m := &Monitor{
		cfg:         cfg,
		transport:   transport,
		converter:   converter,
		predictor:   predictor,
		synthesizer: synthesizer,
		sink:        sink,
		logger:      log.StandardLogger(),
		sleep:       sleepContext,
		backoff:     b,
		window:      aquamon.NewWindow(cfg.WindowSize),
		seq:         make([]aquamon.ConcentrationSample, 0, cfg.WindowSize),
		snap:        Snapshot{State: StateWaiting, WindowSize: cfg.WindowSize},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = NewMetrics(prometheus.NewRegistry())
	}
	m.logger = m.logger.WithField("component", "monitor")
	return m
}

// Run ticks until ctx is cancelled, then releases the sensor channel and
// returns nil. Cancellation is checked between ticks; a tick in progress runs
// to completion.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Infof("monitoring started (sampling interval: %s, window: %d)", m.cfg.Interval, m.cfg.WindowSize)
	defer m.setState(StateStopped)
	defer m.release()

	tickCtx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			m.logger.Info("monitoring stopped")
			return nil
		}
		wait := m.step(tickCtx)
		_ = m.sleep(ctx, wait)
	}
}

// step runs one tick and applies the recovery policy, returning how long to
// wait before the next one.
func (m *Monitor) step(ctx context.Context) time.Duration {
	outcome, err := m.Tick(ctx)

	switch {
	case err == nil:
		m.backoff.Reset()
		if outcome == OutcomeIdle && m.cfg.IdleInterval > 0 {
			return m.cfg.IdleInterval
		}
		return m.cfg.Interval
	case aquamon.IsTransport(err):
		m.recordError(err)
		m.release()
		wait := m.backoff.NextBackOff()
		if wait == backoff.Stop {
			wait = m.cfg.BackoffMax
		}
		m.logger.WithError(err).Errorf("sensor transport failed, reconnecting in %s", wait)
		return wait
	default:
		m.recordError(err)
		m.logger.WithError(err).Errorf("tick failed, resuming in %s", m.cfg.ErrorPause)
		return m.cfg.ErrorPause
	}
}

func (m *Monitor) safeTick(ctx context.Context) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomePanicked
			err = errors.Errorf("tick panicked: %v", r)
		}
	}()
	return m.tick(ctx)
}

// Tick runs one sample → convert → window → predict → report sequence and
// records its outcome. Transport faults and recovered panics are returned as
// errors; every other failure is logged and reflected in the outcome.
func (m *Monitor) Tick(ctx context.Context) (Outcome, error) {
	outcome, err := m.safeTick(ctx)
	m.metrics.Ticks.WithLabelValues(string(outcome)).Inc()
	m.finishTick(outcome)
	return outcome, err
}

func (m *Monitor) tick(ctx context.Context) (Outcome, error) {
	m.setState(StateWaiting)

	if err := m.acquire(ctx); err != nil {
		return OutcomeTransportFailed, err
	}

	raw, ok, err := m.reader.Read()
	if err != nil {
		if aquamon.IsMalformed(err) {
			m.recordError(err)
			m.logger.WithError(err).Warn("discarding sample")
			return OutcomeDiscarded, nil
		}
		return OutcomeTransportFailed, err
	}
	if !ok {
		return OutcomeIdle, nil
	}

	start := time.Now()
	current, err := m.converter.Convert(ctx, raw)
	m.observeStage("convert", start)
	if err != nil {
		m.recordError(err)
		m.logger.WithError(err).Error("failed to convert signal, discarding sample")
		return OutcomeConvertFailed, nil
	}

	m.window.Push(current)
	m.setState(StateSampled)
	m.recordReading(current)
	m.logger.Infof("measured: pH=%.2f, NH3=%.2f, NO3=%.2f", current.PH, current.Ammonia, current.Nitrate)

	seq, full := m.window.Sequence(m.seq)
	m.seq = seq
	if !full {
		m.logger.Debugf("window %d/%d", m.window.Len(), m.window.Cap())
		return OutcomeSampled, nil
	}

	m.setState(StatePredicting)
	m.logger.Info("window full, predicting trend")
	start = time.Now()
	predicted, err := m.predictor.Predict(ctx, seq)
	m.observeStage("predict", start)
	if err != nil {
		m.recordError(err)
		m.logger.WithError(err).Error("trend prediction failed, skipping report")
		return OutcomePredictFailed, nil
	}
	m.recordForecast(predicted)

	m.logger.Info("generating report")
	start = time.Now()
	report, err := m.synthesizer.Synthesize(ctx, current, predicted)
	m.observeStage("generate", start)
	if err != nil {
		m.recordError(err)
		m.logger.WithError(err).Error("report generation failed")
		return OutcomeGenerateFailed, nil
	}

	start = time.Now()
	if err := m.sink.Emit(ctx, report); err != nil {
		m.metrics.Errors.WithLabelValues("sink").Inc()
		m.logger.WithError(err).Error("failed to emit report")
	}
	m.observeStage("emit", start)
	m.recordReport(report)
	return OutcomeReported, nil
}

// Snapshot returns a copy of the observable state. Safe for concurrent use.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *Monitor) acquire(ctx context.Context) error {
	if m.channel != nil {
		return nil
	}
	ch, err := m.transport.Open(ctx)
	if err != nil {
		if !aquamon.IsTransport(err) {
			err = aquamon.NewTransportError("open", err)
		}
		return err
	}
	m.channel = ch
	m.reader = &reader.Reader{Channel: ch, Timeout: m.cfg.ReadTimeout, Fields: m.cfg.Fields}
	return nil
}

func (m *Monitor) release() {
	if m.channel == nil {
		return
	}
	if err := m.channel.Close(); err != nil {
		m.logger.WithError(err).Warn("failed to close sensor channel")
	}
	m.channel = nil
	m.reader = nil
}

func (m *Monitor) observeStage(stage string, start time.Time) {
	m.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.snap.State = s
	m.mu.Unlock()
}

func (m *Monitor) finishTick(outcome Outcome) {
	m.mu.Lock()
	m.snap.Ticks++
	m.snap.LastOutcome = outcome
	m.snap.WindowLen = m.window.Len()
	if m.snap.State != StateStopped {
		m.snap.State = StateWaiting
	}
	m.mu.Unlock()
	m.metrics.WindowSamples.Set(float64(m.window.Len()))
}

func (m *Monitor) recordReading(s aquamon.ConcentrationSample) {
	m.metrics.observeReading(s)
	m.mu.Lock()
	m.snap.LastReading = &s
	now := time.Now()
	m.snap.LastReadingAt = &now
	m.mu.Unlock()
}

func (m *Monitor) recordForecast(e aquamon.TrendEstimate) {
	m.metrics.observeForecast(e)
	m.mu.Lock()
	m.snap.LastForecast = &e
	m.mu.Unlock()
}

func (m *Monitor) recordReport(r aquamon.Report) {
	m.mu.Lock()
	m.snap.LastReport = &r
	m.mu.Unlock()
}

func (m *Monitor) recordError(err error) {
	m.metrics.Errors.WithLabelValues(aquamon.Kind(err)).Inc()
	m.mu.Lock()
	m.snap.LastError = err.Error()
	now := time.Now()
	m.snap.LastErrorAt = &now
	m.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
