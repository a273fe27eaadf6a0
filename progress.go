package voom

import (
	"golang.org/x/time/rate"
)

// progress forwards events to the configured callback at a bounded cadence.
// The producer never blocks on it beyond the callback itself.
type progress struct {
	fn    func(ProgressEvent)
	limit *rate.Sometimes
}

func (c *config) newProgress() *progress {
	if c.onProgress == nil {
		return nil
	}
	return &progress{
		fn:    c.onProgress,
		limit: &rate.Sometimes{Interval: c.progressInterval},
	}
}

func (p *progress) report(ev ProgressEvent) {
	if p == nil {
		return
	}
	p.limit.Do(func() { p.fn(ev) })
}

// done always delivers, so callers see final counts.
func (p *progress) done(ev ProgressEvent) {
	if p == nil {
		return
	}
	ev.Stage = StageDone
	p.fn(ev)
}
