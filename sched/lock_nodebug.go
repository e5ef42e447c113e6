//go:build !deadlock

package sched

import "sync"

// internalLock is the production build's variant; see lock_debug.go.
type internalLock = sync.Mutex
