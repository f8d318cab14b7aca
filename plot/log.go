package plot

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/d1nch8g/voicefem/spectrum"
)

// LogRenderer reports the loudest bin at a fixed interval. It stands in for
// a window when running headless.
type LogRenderer struct {
	Interval time.Duration
	Logger   logrus.FieldLogger
}

func NewLogRenderer(interval time.Duration) *LogRenderer {
	if interval <= 0 {
		interval = time.Second
	}
	return &LogRenderer{Interval: interval, Logger: logrus.StandardLogger()}
}

func (r *LogRenderer) Run(ctx context.Context, frames *Mailbox) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			frame, ok := frames.Latest()
			if !ok || frame.Seq == last {
				continue
			}
			last = frame.Seq
			r.report(frame)
		}
	}
}

func (r *LogRenderer) report(frame Frame) {
	peak, ok := Peak(frame.Bins)
	if !ok {
		return
	}
	r.Logger.WithFields(logrus.Fields{
		"frame":     frame.Seq,
		"frequency": peak.Frequency,
		"amplitude": peak.Amplitude,
	}).Info("Dominant bin")
}

// Peak returns the bin with the largest amplitude.
func Peak(bins []spectrum.Bin) (spectrum.Bin, bool) {
	if len(bins) == 0 {
		return spectrum.Bin{}, false
	}
	best := bins[0]
	for _, b := range bins[1:] {
		if b.Amplitude > best.Amplitude {
			best = b
		}
	}
	return best, true
}
