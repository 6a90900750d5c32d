// Package transport launches a pod subprocess and exposes its envelope
// stream as a plain io.Reader/io.Writer pair, following the two wire modes
// pythonpods.py supports: stdio pipes and a TCP socket whose port the
// child announces through a file (spec.md §4.3).
package transport

import (
	"io"
	"os"
	"os/exec"
)

// Stream is what pod.Pod reads/writes bencode envelopes over, regardless
// of which transport produced it.
type Stream interface {
	io.Reader
	io.Writer
	// Close tears down the stream. It does not itself kill the child
	// process; callers separately call Wait or the process's own Kill.
	Close() error
}

// Launched bundles the stream with the subprocess handle so the caller can
// wait for or kill the process. The child's stderr is inherited, not
// captured here.
type Launched struct {
	Stream Stream
	Cmd    *exec.Cmd
}

// Mode selects which wire transport to use when launching a pod. The caller
// chooses it (pod.LoadOpts.Mode); socket mode is announced to the child
// through BABASHKA_POD_TRANSPORT=socket (see podEnv).
type Mode int

const (
	// ModeStdio pipes the envelope stream over the child's stdin/stdout;
	// stderr is inherited so pod log lines reach the parent's own stderr
	// unmodified (pythonpods.py's run_pod with socket=False).
	ModeStdio Mode = iota
	// ModeSocket inherits all three of the child's standard streams and
	// instead connects a TCP socket whose port the child writes to a
	// well-known file (pythonpods.py's run_pod with socket=True).
	ModeSocket
)

// podEnv builds the child's environment, always starting from the
// parent's own and always setting BABASHKA_POD=true so a real pod binary
// knows to run in pod mode at all; socketMode additionally sets
// BABASHKA_POD_TRANSPORT=socket so the child knows to announce a port
// file instead of speaking over stdio (spec.md §6, §8 scenario 6). extra
// is appended last so a caller-supplied opts.Env can still override
// either marker.
func podEnv(extra []string, socketMode bool) []string {
	env := append([]string{}, os.Environ()...)
	env = append(env, "BABASHKA_POD=true")
	if socketMode {
		env = append(env, "BABASHKA_POD_TRANSPORT=socket")
	}
	return append(env, extra...)
}
