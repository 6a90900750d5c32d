package transport

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

// pipeStream adapts a child's stdin/stdout pipes to the Stream interface.
type pipeStream struct {
	stdout io.ReadCloser
	stdin  io.WriteCloser
}

func (p *pipeStream) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *pipeStream) Write(b []byte) (int, error) { return p.stdin.Write(b) }

func (p *pipeStream) Close() error {
	errIn := p.stdin.Close()
	errOut := p.stdout.Close()
	if errIn != nil {
		return errIn
	}
	return errOut
}

// LaunchStdio starts command with its stdin/stdout wired into the returned
// Stream and stderr inherited from the parent, matching run_pod(socket=False)
// in pythonpods.py: pod log chatter goes straight to the parent's stderr,
// only the envelope stream is intercepted.
func LaunchStdio(name string, args []string, env []string) (*Launched, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = podEnv(env, false)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: stdout pipe: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("transport: start %s: %w", name, err)
	}

	return &Launched{
		Stream: &pipeStream{stdout: stdout, stdin: stdin},
		Cmd:    cmd,
	}, nil
}
