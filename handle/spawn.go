package handle

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/marl-kit/modelhost/model"
	"github.com/marl-kit/modelhost/protocol"
)

// WorkerConfig describes one worker process. Every handle/host pair gets
// its own process; pairs share nothing.
type WorkerConfig struct {
	// BinaryPath of the worker executable. Defaults to the current binary,
	// which hosts the worker loop under the "worker" subcommand.
	BinaryPath     string
	Group          model.GroupHandle
	Name           string
	BufferCapacity int
	Actions        int
	Seed           uint64
	// RedisAddr selects the redis snapshot store in the worker when set.
	RedisAddr string
	// AcceptTimeout bounds how long to wait for the spawned process to dial
	// back. Zero means 10 seconds.
	AcceptTimeout time.Duration
}

// Worker is a handle bound to a spawned worker process.
type Worker struct {
	*Handle
	process *exec.Cmd
	cancel  context.CancelFunc
	stderr  *bytes.Buffer
}

// Spawn starts a worker process and connects it to a new handle. The
// supervisor listens on a loopback address and passes it to the worker,
// which dials back; the accepted connection is the channel for the lifetime
// of the pair.
func Spawn(ctx context.Context, config WorkerConfig) (*Worker, error) {
	binary := config.BinaryPath
	if binary == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolving worker binary: %w", err)
		}
		binary = self
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listening for worker: %w", err)
	}
	defer listener.Close()

	args := []string{
		"worker",
		"--connect", listener.Addr().String(),
		"--group", strconv.Itoa(int(config.Group)),
		"--name", config.Name,
		"--capacity", strconv.Itoa(config.BufferCapacity),
		"--actions", strconv.Itoa(config.Actions),
		"--seed", strconv.FormatUint(config.Seed, 10),
	}
	if config.RedisAddr != "" {
		args = append(args, "--redis", config.RedisAddr)
	}

	ctx, cancel := context.WithCancel(ctx)
	process := exec.CommandContext(ctx, binary, args...)
	stderr := new(bytes.Buffer)
	process.Stderr = stderr

	if err := process.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting worker: %w", err)
	}

	timeout := config.AcceptTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if tcp, ok := listener.(*net.TCPListener); ok {
		tcp.SetDeadline(time.Now().Add(timeout))
	}
	conn, err := listener.Accept()
	if err != nil {
		cancel()
		process.Wait()
		return nil, &protocol.ChannelError{Op: "accept worker", Err: err}
	}

	return &Worker{
		Handle:  New(config.Group, protocol.NewConn(conn)),
		process: process,
		cancel:  cancel,
		stderr:  stderr,
	}, nil
}

// Stop sends Quit and waits for the process to exit. The process is killed
// if quitting fails, so Stop always tears the pair down exactly once.
func (w *Worker) Stop() error {
	quitErr := w.Quit()
	if quitErr != nil {
		w.cancel()
	}
	waitErr := w.process.Wait()
	w.cancel()
	if quitErr != nil {
		return quitErr
	}
	if waitErr != nil {
		return fmt.Errorf("worker exit: %w\n%s", waitErr, w.stderr.String())
	}
	return nil
}
