package handle

import (
	"net"

	"github.com/marl-kit/modelhost/host"
	"github.com/marl-kit/modelhost/model"
	"github.com/marl-kit/modelhost/protocol"
)

// LoopbackHost runs a host in-process, connected to the returned handle
// over an in-memory pipe. The host loop runs on its own goroutine but the
// protocol is identical to the spawned-worker form, so the two are
// interchangeable to callers.
type LoopbackHost struct {
	handle *Handle
	done   chan error
}

func Loopback(group model.GroupHandle, capability model.Capability, bufferCapacity int) *LoopbackHost {
	supervisor, worker := net.Pipe()
	h := New(group, protocol.NewConn(supervisor))
	lh := &LoopbackHost{
		handle: h,
		done:   make(chan error, 1),
	}
	go func() {
		lh.done <- host.New(group, protocol.NewConn(worker), capability, bufferCapacity).Serve()
	}()
	return lh
}

func (l *LoopbackHost) Handle() *Handle {
	return l.handle
}

// Stop sends Quit and waits for the host loop to exit.
func (l *LoopbackHost) Stop() error {
	if err := l.handle.Quit(); err != nil {
		return err
	}
	return <-l.done
}
