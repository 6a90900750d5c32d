//go:build !deadlock

package syncx

import "sync"

// Mutex is sync.Mutex by default; build with -tags deadlock to swap in
// github.com/sasha-s/go-deadlock's instrumented mutex instead (see
// mutex_deadlock.go), matching the teacher's scon/syncx build-tag pair.
type Mutex = sync.Mutex
