//go:build deadlock

package syncx

import "github.com/sasha-s/go-deadlock"

// Mutex is deadlock.Mutex under -tags deadlock: it panics with a stack
// trace for all held locks when a goroutine blocks on it past the
// library's configured timeout, instead of hanging silently. Useful while
// developing the registry/processor's locking, not meant for production
// builds.
type Mutex = deadlock.Mutex
