// Package handle implements the supervisor side of the model hosting
// protocol: a proxy whose methods serialize commands onto the channel and
// hand back typed pending responses. Waiting on the pending response
// immediately gives the blocking form of each call; holding on to it gives
// the non-blocking form. The discipline is strictly half duplex: one
// command, then its response, never pipelined.
package handle

import (
	"fmt"

	"github.com/marl-kit/modelhost/model"
	"github.com/marl-kit/modelhost/protocol"
)

type Handle struct {
	group model.GroupHandle
	conn  *protocol.Conn

	// pending is true while a response has not been drained. Issuing a
	// command in that window is a caller bug.
	pending bool
	closed  bool

	// step token carried back by the latest infer, consumed by SampleStep.
	step    uint64
	hasStep bool
}

func New(group model.GroupHandle, conn *protocol.Conn) *Handle {
	return &Handle{group: group, conn: conn}
}

func (h *Handle) Group() model.GroupHandle {
	return h.group
}

func (h *Handle) guard(op string) error {
	if h.closed {
		return &protocol.ChannelError{Op: op, Err: protocol.ErrClosed}
	}
	if h.pending {
		return fmt.Errorf("%s: %w", op, protocol.ErrPending)
	}
	return nil
}

func (h *Handle) send(cmd protocol.Command) error {
	if err := h.conn.SendCommand(cmd); err != nil {
		h.closed = true
		return err
	}
	h.pending = true
	return nil
}

// recv drains the one outstanding response. Any transport failure or
// host-reported error kills the handle: the pair has no degraded mode.
func (h *Handle) recv(op string) (protocol.Response, error) {
	resp, err := h.conn.RecvResponse()
	if err != nil {
		h.closed = true
		return nil, err
	}
	h.pending = false
	if errResp, ok := resp.(*protocol.ErrorResponse); ok {
		h.closed = true
		return nil, fmt.Errorf("%s: worker: %s", op, errResp.Message)
	}
	return resp, nil
}

func (h *Handle) badResponse(op string, resp protocol.Response) error {
	h.closed = true
	return fmt.Errorf("%s: %w: %T", op, protocol.ErrBadResponse, resp)
}

// InferActions sends an infer command for the given batch. Wait on the
// returned pending response for the action vector; the handle also caches
// the step token so the next SampleStep records against this step.
func (h *Handle) InferActions(obs model.Observation, ids []int32, policy model.PolicyKind, eps float64) (*PendingActions, error) {
	if err := h.guard("infer"); err != nil {
		return nil, err
	}
	cmd := &protocol.InferCommand{Observation: obs, IDs: ids, Policy: policy, Eps: eps}
	if err := h.send(cmd); err != nil {
		return nil, err
	}
	return &PendingActions{h: h}, nil
}

// SampleStep records rewards and alive flags for the step returned by the
// most recent InferActions. It fails locally with ErrNoPendingStep when no
// such step exists.
func (h *Handle) SampleStep(rewards []float32, alive []bool) (*PendingDone, error) {
	if err := h.guard("sample"); err != nil {
		return nil, err
	}
	if !h.hasStep {
		return nil, protocol.ErrNoPendingStep
	}
	cmd := &protocol.SampleCommand{Step: h.step, Rewards: rewards, Alive: alive}
	if err := h.send(cmd); err != nil {
		return nil, err
	}
	h.hasStep = false
	return &PendingDone{h: h, op: "sample"}, nil
}

// Train triggers a training pass over the transitions buffered in the
// worker since the previous one.
func (h *Handle) Train(printEvery int) (*PendingTrain, error) {
	if err := h.guard("train"); err != nil {
		return nil, err
	}
	if err := h.send(&protocol.TrainCommand{PrintEvery: printEvery}); err != nil {
		return nil, err
	}
	return &PendingTrain{h: h}, nil
}

func (h *Handle) Save(dir string, epoch int) (*PendingDone, error) {
	if err := h.guard("save"); err != nil {
		return nil, err
	}
	if err := h.send(&protocol.SaveCommand{Dir: dir, Epoch: epoch}); err != nil {
		return nil, err
	}
	return &PendingDone{h: h, op: "save"}, nil
}

func (h *Handle) Load(dir string, epoch int, name string) (*PendingDone, error) {
	if err := h.guard("load"); err != nil {
		return nil, err
	}
	if err := h.send(&protocol.LoadCommand{Dir: dir, Epoch: epoch, Name: name}); err != nil {
		return nil, err
	}
	return &PendingDone{h: h, op: "load"}, nil
}

// Quit terminates the worker loop. No response is read; the channel is
// closed for further use immediately. Quit with an undrained response
// outstanding is a protocol violation like any other command.
func (h *Handle) Quit() error {
	if err := h.guard("quit"); err != nil {
		return err
	}
	err := h.conn.SendCommand(protocol.QuitCommand{})
	h.closed = true
	if closeErr := h.conn.Close(); err == nil {
		err = closeErr
	}
	return err
}

// PendingActions is the deferred result of InferActions.
type PendingActions struct {
	h    *Handle
	done bool
}

// Wait blocks for the action vector.
func (p *PendingActions) Wait() ([]int32, error) {
	if p.done {
		return nil, fmt.Errorf("infer: %w", protocol.ErrDrained)
	}
	p.done = true
	resp, err := p.h.recv("infer")
	if err != nil {
		return nil, err
	}
	actions, ok := resp.(*protocol.ActionResponse)
	if !ok {
		return nil, p.h.badResponse("infer", resp)
	}
	p.h.step = actions.Step
	p.h.hasStep = true
	return actions.Actions, nil
}

// PendingTrain is the deferred result of Train.
type PendingTrain struct {
	h    *Handle
	done bool
}

// Wait blocks for the (loss, meanValue) pair.
func (p *PendingTrain) Wait() (loss float64, meanValue float64, err error) {
	if p.done {
		return 0, 0, fmt.Errorf("train: %w", protocol.ErrDrained)
	}
	p.done = true
	resp, err := p.h.recv("train")
	if err != nil {
		return 0, 0, err
	}
	result, ok := resp.(*protocol.TrainResponse)
	if !ok {
		return 0, 0, p.h.badResponse("train", resp)
	}
	return result.Loss, result.MeanValue, nil
}

// PendingDone is the deferred completion marker of Sample, Save and Load.
type PendingDone struct {
	h    *Handle
	op   string
	done bool
}

// Wait blocks for the completion marker and validates it.
func (p *PendingDone) Wait() error {
	if p.done {
		return fmt.Errorf("%s: %w", p.op, protocol.ErrDrained)
	}
	p.done = true
	resp, err := p.h.recv(p.op)
	if err != nil {
		return err
	}
	if _, ok := resp.(protocol.DoneResponse); !ok {
		return p.h.badResponse(p.op, resp)
	}
	return nil
}
