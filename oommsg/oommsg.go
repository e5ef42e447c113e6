// Package oommsg carries out-of-memory notifications from the page-frame
// cache to whatever reclaims memory.
package oommsg

/// Oommsg_t is sent on OomCh when the page-frame allocator cannot satisfy
/// a request.
type Oommsg_t struct {
	Need   int
	Resume chan bool
}

/// OomCh is notified when the system runs low on page frames.
var OomCh = make(chan Oommsg_t)
