// Package caller provides debug call-stack dumping used when the kernel
// panics on a broken invariant.
package caller

import (
	"fmt"
	"runtime"
	"sync"
)

/// Dump renders the call stack starting at the given skip depth into a
/// human-readable string, for attaching to invariant-violation panics.
func Dump(skip int) string {
	i := skip
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d\n", f, l)
		} else {
			s += fmt.Sprintf("\t<-%s:%d\n", f, l)
		}
	}
	return s
}

// Distinct_t tracks whether a call chain has already been reported, so
// repeated invariant-violation warnings from a hot path aren't spammed.
type Distinct_t struct {
	sync.Mutex
	Enabled bool
	did     map[uintptr]bool
}

func (dc *Distinct_t) pchash(pcs []uintptr) uintptr {
	var ret uintptr
	for _, pc := range pcs {
		pc = pc*1103515245 + 12345
		ret ^= pc
	}
	return ret
}

/// Distinct reports whether the current call chain is new, along with a
/// formatted stack trace the first time it is seen.
func (dc *Distinct_t) Distinct() (bool, string) {
	dc.Lock()
	defer dc.Unlock()
	if !dc.Enabled {
		return false, ""
	}
	if dc.did == nil {
		dc.did = make(map[uintptr]bool)
	}
	pcs := make([]uintptr, 30)
	got := runtime.Callers(3, pcs)
	pcs = pcs[:got]
	h := dc.pchash(pcs)
	if dc.did[h] {
		return false, ""
	}
	dc.did[h] = true
	frames := runtime.CallersFrames(pcs)
	fs := ""
	for {
		fr, more := frames.Next()
		if fs == "" {
			fs = fmt.Sprintf("%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
		} else {
			fs += fmt.Sprintf("\t%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
		}
		if !more || fr.Function == "runtime.goexit" {
			break
		}
	}
	return true, fs
}
