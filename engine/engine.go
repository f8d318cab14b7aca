package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/d1nch8g/voicefem/audio"
	"github.com/d1nch8g/voicefem/plot"
	"github.com/d1nch8g/voicefem/spectrum"
)

// EngineConfig holds the configuration for the visualizer pipeline
type EngineConfig struct {
	Analyzer  spectrum.AnalyzerConfig
	Gain      float64
	Decay     float64
	QueueSize int
}

// Stats counts what the processing loop has seen so far.
type Stats struct {
	Buffers int64
	Frames  int64
	Skipped int64
}

// Engine drives audio buffers through analysis and peak-hold smoothing and
// hands the result to the renderers.
type Engine struct {
	config    EngineConfig
	source    audio.Source
	renderers []plot.Renderer
	mailbox   *plot.Mailbox
	log       *logrus.Entry

	// Owned by the processing goroutine once Start has built them.
	analyzer *spectrum.Analyzer
	tracker  *spectrum.Tracker
	history  *audio.History
	warned   bool

	buffers atomic.Int64
	frames  atomic.Int64
	skipped atomic.Int64

	isRunning    bool
	runningMutex sync.RWMutex
}

// GetDefaultEngineConfig returns the analyzer defaults together with the
// default gain and decay.
func GetDefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Analyzer:  spectrum.DefaultAnalyzerConfig(),
		Gain:      spectrum.DefaultGain,
		Decay:     spectrum.DefaultDecay,
		QueueSize: 16,
	}
}

// NewEngine creates a new engine instance. Gain, decay and the frequency
// range are used as given; zero is a valid value for each of them.
func NewEngine(config EngineConfig, source audio.Source, renderers ...plot.Renderer) *Engine {
	if config.Analyzer.Size == 0 {
		config.Analyzer.Size = spectrum.DefaultAnalyzerConfig().Size
	}
	if config.QueueSize <= 0 {
		config.QueueSize = GetDefaultEngineConfig().QueueSize
	}

	return &Engine{
		config:    config,
		source:    source,
		renderers: renderers,
		mailbox:   plot.NewMailbox(),
		log:       logrus.WithField("component", "engine"),
	}
}

// Mailbox returns the hand-off the renderers read from.
func (e *Engine) Mailbox() *plot.Mailbox { return e.mailbox }

// Start opens the source and runs capture, processing, and rendering until
// ctx is cancelled or one of them fails. Cancellation is not an error.
func (e *Engine) Start(ctx context.Context) error {
	e.runningMutex.Lock()
	if e.isRunning {
		e.runningMutex.Unlock()
		return fmt.Errorf("engine is already running")
	}
	e.isRunning = true
	e.runningMutex.Unlock()

	defer func() {
		e.runningMutex.Lock()
		e.isRunning = false
		e.runningMutex.Unlock()
	}()

	// Initialize audio system
	if err := e.source.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize audio source: %w", err)
	}
	defer e.source.Terminate()

	if err := e.source.Open(); err != nil {
		return fmt.Errorf("failed to open audio source: %w", err)
	}
	defer e.source.Close()

	if err := e.Prepare(e.source.SampleRate()); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	buffers := make(chan audio.Buffer, e.config.QueueSize)

	g.Go(func() error {
		defer close(buffers)
		err := e.source.StartCapture(gctx, buffers)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("audio capture failed: %w", err)
		}
		e.log.Debug("Capture finished")
		return nil
	})

	g.Go(func() error {
		for buf := range buffers {
			e.Process(buf)
		}
		return nil
	})

	for _, r := range e.renderers {
		g.Go(func() error {
			return r.Run(gctx, e.mailbox)
		})
	}

	e.log.WithFields(logrus.Fields{
		"sample_rate": e.analyzer.SampleRate(),
		"fft_size":    e.analyzer.Size(),
		"bins":        e.analyzer.BinCount(),
	}).Info("Engine started")

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	e.log.WithFields(logrus.Fields{
		"buffers": e.buffers.Load(),
		"frames":  e.frames.Load(),
	}).Info("Engine stopped")
	return nil
}

// Prepare builds the analyzer, tracker, and history for a stream at
// sampleRate. Start calls it once the source is open.
func (e *Engine) Prepare(sampleRate float64) error {
	cfg := e.config.Analyzer
	cfg.SampleRate = sampleRate
	analyzer, err := spectrum.NewAnalyzer(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up analyzer: %w", err)
	}

	e.analyzer = analyzer
	e.tracker = spectrum.NewTracker(analyzer.BinCount(),
		spectrum.WithGain(e.config.Gain),
		spectrum.WithDecay(e.config.Decay),
	)
	e.history = audio.NewHistory(analyzer.Size())
	e.warned = false
	return nil
}

// Process runs one buffer through the pipeline. Until the history holds a
// full analysis window nothing is published.
func (e *Engine) Process(buf audio.Buffer) {
	e.buffers.Add(1)
	e.history.Push(buf.Samples)
	if !e.history.Ready() {
		e.skipped.Add(1)
		return
	}

	bins, err := e.analyzer.Analyze(e.history.Samples())
	if err != nil {
		e.log.WithError(err).Warn("Analysis failed")
		e.skipped.Add(1)
		return
	}
	if len(bins) != e.tracker.Len() && !e.warned {
		e.warned = true
		e.log.WithFields(logrus.Fields{
			"bins":    len(bins),
			"tracker": e.tracker.Len(),
		}).Warn("Spectrum length differs from tracker length; extra bins are ignored")
	}

	e.mailbox.Put(e.tracker.Update(bins))
	e.frames.Add(1)
}

// Stats returns the processing counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Buffers: e.buffers.Load(),
		Frames:  e.frames.Load(),
		Skipped: e.skipped.Load(),
	}
}

// IsRunning returns whether the engine is currently running
func (e *Engine) IsRunning() bool {
	e.runningMutex.RLock()
	defer e.runningMutex.RUnlock()
	return e.isRunning
}
