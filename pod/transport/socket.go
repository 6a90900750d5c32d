package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// pollInterval is how often the port file is polled for, matching
// pythonpods.py's read_port busy-loop cadence.
const pollInterval = 10 * time.Millisecond

// PortFilePath returns the well-known path a socket-mode pod writes its
// listening port to, keyed by the child's pid (pythonpods.py's
// ".babashka-pod-{pid}.port" naming in the current working directory).
func PortFilePath(dir string, pid int) string {
	return filepath.Join(dir, fmt.Sprintf(".babashka-pod-%d.port", pid))
}

// LaunchSocket starts command with all three standard streams inherited,
// then waits for it to announce a TCP port through PortFilePath and
// connects to it with Nagle's algorithm disabled (pythonpods.py's
// run_pod(socket=True) + create_socket).
//
// waitTimeout bounds how long to wait for the port file to appear; ctx
// additionally lets a caller cancel the wait early.
func LaunchSocket(ctx context.Context, name string, args []string, env []string, dir string, waitTimeout time.Duration) (*Launched, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = podEnv(env, true)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if dir != "" {
		cmd.Dir = dir
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("transport: start %s: %w", name, err)
	}

	portPath := PortFilePath(nonEmpty(dir, "."), cmd.Process.Pid)
	defer os.Remove(portPath)

	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	// One bounded goroutine polls for the port file and dials it; a second
	// watches for the child exiting early (e.g. a bad pod binary) so the
	// caller gets a useful error instead of just a timeout. errgroup ties
	// both to waitCtx and propagates whichever finishes first as the
	// group's error, without requiring the long-lived process-exit watch
	// to itself finish before LaunchSocket can return.
	var g errgroup.Group
	connCh := make(chan net.Conn, 1)
	g.Go(func() error {
		conn, err := pollForConn(waitCtx, portPath)
		if err != nil {
			return err
		}
		connCh <- conn
		return nil
	})
	g.Go(func() error {
		if err := waitForExit(waitCtx, cmd); err != nil {
			return fmt.Errorf("%s exited before announcing a port: %w", name, err)
		}
		return nil
	})

	select {
	case conn := <-connCh:
		cancel()
		return &Launched{Stream: &socketStream{conn: conn}, Cmd: cmd}, nil
	case <-waitCtx.Done():
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("transport: %w", err)
		}
		return nil, fmt.Errorf("transport: timed out waiting for socket port")
	}
}

// waitForExit returns nil if cmd exits cleanly before ctx is done, the
// process's exit error if it exits uncleanly, and also nil if ctx finishes
// first (the normal case: the pod keeps running and never "exits").
func waitForExit(ctx context.Context, cmd *exec.Cmd) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}

func pollForConn(ctx context.Context, portPath string) (net.Conn, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if port, ok := readPort(portPath); ok {
			d := net.Dialer{}
			conn, err := d.DialContext(ctx, "tcp", "127.0.0.1:"+strconv.Itoa(port))
			if err != nil {
				return nil, err
			}
			if tc, ok := conn.(*net.TCPConn); ok {
				_ = tc.SetNoDelay(true)
			}
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func readPort(path string) (int, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, false
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return port, true
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

type socketStream struct {
	conn net.Conn
}

func (s *socketStream) Read(b []byte) (int, error)  { return s.conn.Read(b) }
func (s *socketStream) Write(b []byte) (int, error) { return s.conn.Write(b) }
func (s *socketStream) Close() error                { return s.conn.Close() }
