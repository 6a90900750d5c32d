package pod

import (
	"io"
	"math/rand"

	"github.com/oklog/ulid/v2"

	"github.com/judepayne/gopods/internal/syncx"
)

// ulidSource returns a deterministic entropy source when seed is nonzero
// (tests want reproducible ids) and a fresh time-seeded one otherwise.
func ulidSource(seed uint64) io.Reader {
	if seed == 0 {
		return rand.New(rand.NewSource(int64(ulid.Now())))
	}
	return rand.New(rand.NewSource(int64(seed)))
}

// registry is the call registry of spec.md §4.4: a map from correlation id
// to the Waiter awaiting its replies, guarded by a single mutex. The
// processor goroutine is the only reader of the wire; registry just
// arbitrates between it and whatever goroutines are calling Invoke.
type registry struct {
	mu      syncx.Mutex
	entropy *ulid.MonotonicEntropy
	waiting map[string]Waiter
}

func newRegistry(seed uint64) *registry {
	return &registry{
		entropy: ulid.Monotonic(ulidSource(seed), 0),
		waiting: make(map[string]Waiter),
	}
}

// nextID mints a new correlation id. IDs are ULIDs: 128 bits, lexically
// sortable, and — unlike a plain counter — safe to generate from multiple
// goroutines calling Invoke concurrently without coordinating with each
// other (only the registry's own mutex serializes the entropy source).
func (r *registry) nextID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := ulid.MustNew(ulid.Now(), r.entropy)
	return id.String()
}

// register installs w under a freshly minted correlation id and returns it.
func (r *registry) register(w Waiter) string {
	id := r.nextID()
	r.mu.Lock()
	r.waiting[id] = w
	r.mu.Unlock()
	return id
}

// lookup returns the waiter for id, if any is still outstanding.
func (r *registry) lookup(id string) (Waiter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.waiting[id]
	return w, ok
}

// discard removes id from the registry without delivering anything to its
// waiter, e.g. once a terminal reply has been dispatched.
func (r *registry) discard(id string) {
	r.mu.Lock()
	delete(r.waiting, id)
	r.mu.Unlock()
}

// drain empties the registry and returns every still-outstanding waiter,
// used when a pod is destroyed or its transport dies out from under it so
// every blocked Invoke can be unblocked with a pod-terminated/pod-crashed
// error (spec.md §6's "Destroy" and "Pod Crash" scenarios).
func (r *registry) drain() []Waiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Waiter, 0, len(r.waiting))
	for id, w := range r.waiting {
		out = append(out, w)
		delete(r.waiting, id)
	}
	return out
}
