package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

// ExecLauncher runs the renderer as a child process. Address is appended
// as the final argument.
type ExecLauncher struct {
	Command []string
	Address string
	Env     []string
	// Handoff writes the one-time startup payload to the child's stdin,
	// which is closed afterwards.
	Handoff func(w io.Writer) error
}

func (l *ExecLauncher) Launch(_ context.Context) (Process, error) {
	if len(l.Command) == 0 {
		return nil, errors.New("no renderer command configured")
	}
	args := append([]string{}, l.Command[1:]...)
	if l.Address != "" {
		args = append(args, l.Address)
	}
	cmd := exec.Command(l.Command[0], args...)
	cmd.Env = l.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{cmd: cmd}
	p.logs.Add(2)
	go p.relay(stdout, "stdout")
	go p.relay(stderr, "stderr")

	if l.Handoff != nil {
		if err := l.Handoff(stdin); err != nil {
			_ = cmd.Process.Kill()
			_ = p.Wait()
			return nil, fmt.Errorf("failed to hand off to renderer: %w", err)
		}
	}
	if err := stdin.Close(); err != nil {
		slog.Debug("Failed to close renderer stdin", "error", err)
	}
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	logs sync.WaitGroup
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

// Wait waits for the output relays to drain before reaping the process.
func (p *execProcess) Wait() error {
	p.logs.Wait()
	return p.cmd.Wait()
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}

// maxLogLine bounds one relayed output line.
const maxLogLine = 1 << 20

// relay logs r line by line. Output past a failed scan is discarded so the
// child never blocks on a full pipe.
func (p *execProcess) relay(r io.Reader, stream string) {
	defer p.logs.Done()
	pid := p.cmd.Process.Pid
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)
	for scanner.Scan() {
		slog.Info(scanner.Text(), "component", "renderer", "stream", stream, "pid", pid)
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("Dropping renderer output", "stream", stream, "pid", pid, "error", err)
		_, _ = io.Copy(io.Discard, r)
	}
}
