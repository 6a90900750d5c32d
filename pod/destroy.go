package pod

import (
	"time"

	"github.com/judepayne/gopods/bencode"
)

// shutdownWaitTimeout bounds how long Destroy waits for a graceful shutdown
// to exit the child process before falling back to killing it (spec.md
// §4.6: "wait up to 5 seconds for exit").
const shutdownWaitTimeout = 5 * time.Second

// Destroy requests the pod shut down and fails any calls still outstanding
// with a pod-terminated error. It is idempotent: calling it twice is a
// no-op the second time.
//
// If the describe reply advertised "shutdown" in its ops, Destroy sends
// {op: shutdown, id} and waits up to shutdownWaitTimeout for the child to
// exit on its own; otherwise (or on timeout) it kills the process directly,
// since closing the local half of a socket-mode transport does not by
// itself stop a fully-inherited-stdio child (spec.md §4.6).
func (p *Pod) Destroy() error {
	p.stateMu.Lock()
	if p.terminated {
		p.stateMu.Unlock()
		return nil
	}
	p.terminated = true
	p.crashErr = PodTerminatedError(p.ID)
	p.stateMu.Unlock()

	p.shutdownProcess()

	err := p.stream.Close()

	for _, w := range p.reg.drain() {
		w.deliverError(p.crashErr)
		w.noteDone()
	}

	unregisterPod(p.ID)
	return err
}

func (p *Pod) shutdownProcess() {
	if p.Ops["shutdown"] {
		id := p.reg.nextID()
		// Best effort: a pod that is already wedged or crashing may not be
		// able to accept the shutdown op at all, in which case the wait
		// below times out and falls back to killing the process.
		_ = p.writeEnvelope(bencode.Dict{"op": []byte("shutdown"), "id": []byte(id)})
		if p.waitForExit(shutdownWaitTimeout) {
			return
		}
	}
	p.killProcess()
}

// waitForExit blocks up to timeout for the launched child process to exit,
// reporting true if it did. Test-constructed Pods have no backing process
// (launch is nil) and are treated as already exited.
func (p *Pod) waitForExit(timeout time.Duration) bool {
	if p.launch == nil || p.launch.Cmd == nil || p.launch.Cmd.Process == nil {
		return true
	}
	done := make(chan struct{})
	go func() {
		_ = p.launch.Cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (p *Pod) killProcess() {
	if p.launch == nil || p.launch.Cmd == nil || p.launch.Cmd.Process == nil {
		return
	}
	_ = p.launch.Cmd.Process.Kill()
}
