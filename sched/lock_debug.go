//go:build deadlock

package sched

import "github.com/sasha-s/go-deadlock"

// internalLock guards Mutex_t's own owner/waitq bookkeeping. Under the
// deadlock build tag it is go-deadlock's detector instead of a plain
// sync.Mutex, so a lock-ordering bug in the scheduler itself (as
// opposed to a bug in code using sched.Mutex_t) shows up as a report
// rather than a silent hang — useful while developing new wait-queue
// users, not meant for the production build.
type internalLock = deadlock.Mutex
