// Package diag wires optional CPU/memory profiling into the server
// process, grounded on cmd/rslight-importer/main.go's use of
// go-cpu-mem-profiler (NewProf, PprofWeb, StartMemProfile).
package diag

import (
	"time"

	prof "github.com/go-while/go-cpu-mem-profiler"
)

// Profiler wraps the third-party profiler with the on/off switch the
// server's config exposes; a nil *Profiler (or Enabled false) means
// Start is a no-op.
type Profiler struct {
	Enabled    bool
	WebAddr    string
	Interval   time.Duration
	SampleTime time.Duration

	p *prof.Profiler
}

// New returns a Profiler with the teacher's defaults: a 5 minute memory
// profile interval sampled over 30 seconds.
func New(enabled bool, webAddr string) *Profiler {
	return &Profiler{
		Enabled:    enabled,
		WebAddr:    webAddr,
		Interval:   5 * time.Minute,
		SampleTime: 30 * time.Second,
	}
}

// Start launches the pprof web endpoint and background memory
// profiling goroutine. No-op when the profiler is disabled.
func (d *Profiler) Start() {
	if d == nil || !d.Enabled {
		return
	}
	d.p = prof.NewProf()
	go d.p.PprofWeb(d.WebAddr)
	d.p.StartMemProfile(d.Interval, d.SampleTime)
}
