package pod

import "github.com/judepayne/gopods/internal/syncx"

// globalRegistry tracks every Pod currently loaded in this process, keyed
// by pod id, so a caller can look one up without threading the *Pod value
// through their own code (spec.md §5's process-wide lifecycle surface).
var globalRegistry = struct {
	mu   syncx.Mutex
	pods map[string]*Pod
}{pods: make(map[string]*Pod)}

func registerPod(p *Pod) {
	globalRegistry.mu.Lock()
	globalRegistry.pods[p.ID] = p
	globalRegistry.mu.Unlock()
}

func unregisterPod(id string) {
	globalRegistry.mu.Lock()
	delete(globalRegistry.pods, id)
	globalRegistry.mu.Unlock()
}

// Lookup returns the currently loaded pod with the given id, if any.
func Lookup(id string) (*Pod, bool) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	p, ok := globalRegistry.pods[id]
	return p, ok
}

// Loaded returns the ids of every pod currently loaded in this process.
func Loaded() []string {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	ids := make([]string, 0, len(globalRegistry.pods))
	for id := range globalRegistry.pods {
		ids = append(ids, id)
	}
	return ids
}

// DestroyAll destroys every currently loaded pod, for process shutdown.
func DestroyAll() {
	globalRegistry.mu.Lock()
	pods := make([]*Pod, 0, len(globalRegistry.pods))
	for _, p := range globalRegistry.pods {
		pods = append(pods, p)
	}
	globalRegistry.mu.Unlock()

	for _, p := range pods {
		_ = p.Destroy()
	}
}
