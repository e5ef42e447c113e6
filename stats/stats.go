// Package stats provides runtime-gated counters so hot paths (page
// faults, wakeups, shadow collapses, page fills) can be instrumented without cost when
// disabled. Snapshot exports the counters as a pprof profile so they
// can be inspected with the standard pprof tooling rather than a
// bespoke dump format.
package stats

import (
	"io"
	"sync/atomic"

	"github.com/google/pprof/profile"
)

// Enabled toggles counter bookkeeping. Left false by default so the
// counters cost a single branch in the hot path when disabled.
var Enabled = false

/// Counter_t is a statistics counter, safe for concurrent Inc.
type Counter_t int64

/// Inc increments the counter when counting is enabled.
func (c *Counter_t) Inc() {
	if Enabled {
		atomic.AddInt64((*int64)(c), 1)
	}
}

/// Get returns the current counter value.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

// Faults counts page faults serviced by the fault package.
var Faults Counter_t

// Wakeups counts wait-queue wakeups performed by sched.
var Wakeups Counter_t

// ShadowCollapses counts shadow objects freed when ref==nres.
var ShadowCollapses Counter_t

// PageFills counts pages demand-paged into the cache by any object variant.
var PageFills Counter_t

// namedCounters lists every package counter alongside the sample name
// Snapshot reports it under.
func namedCounters() map[string]*Counter_t {
	return map[string]*Counter_t{
		"faults":           &Faults,
		"wakeups":          &Wakeups,
		"shadow_collapses": &ShadowCollapses,
		"page_fills":       &PageFills,
	}
}

/// Snapshot renders the current counter values as a pprof Profile with
/// one sample per counter, each carrying a single "count" value — a
/// minimal but valid profile.proto document any pprof-compatible viewer
/// can load.
func Snapshot() *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "count", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "counter", Unit: "count"},
		Period:     1,
	}

	fn := &profile.Function{ID: 1, Name: "kernel"}
	loc := &profile.Location{ID: 1, Line: []profile.Line{{Function: fn}}}
	p.Function = []*profile.Function{fn}
	p.Location = []*profile.Location{loc}

	for name, c := range namedCounters() {
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{c.Get()},
			Label:    map[string][]string{"counter": {name}},
		})
	}
	return p
}

/// WriteProfile encodes Snapshot's profile in gzip'd profile.proto form
/// to w, ready for `go tool pprof`.
func WriteProfile(w io.Writer) error {
	return Snapshot().Write(w)
}
