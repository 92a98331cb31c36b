// Package host runs the worker side of the model hosting protocol: a
// single-threaded loop that owns one capability and one transition buffer
// and executes commands read from its channel endpoint, one response per
// command, in order.
package host

import (
	"errors"
	"fmt"
	"log"

	"github.com/marl-kit/modelhost/model"
	"github.com/marl-kit/modelhost/protocol"
)

// pendingStep is the step handed out by the latest infer dispatch. Sample
// must reference it by token before anything else replaces it.
type pendingStep struct {
	token   uint64
	ids     []int32
	obs     model.Observation
	actions []int32
}

type Host struct {
	group model.GroupHandle
	conn  *protocol.Conn
	cap   model.Capability
	buf   *model.TransitionBuffer

	steps   uint64
	pending *pendingStep
}

func New(group model.GroupHandle, conn *protocol.Conn, capability model.Capability, bufferCapacity int) *Host {
	return &Host{
		group: group,
		conn:  conn,
		cap:   capability,
		buf:   model.NewTransitionBuffer(bufferCapacity),
	}
}

// Serve reads and dispatches commands until Quit, a channel failure, or a
// fatal dispatch error. It returns nil only on Quit. Capability failures
// are not caught here beyond reporting: the error response is sent and the
// loop exits, so the supervisor observes a dead channel on its next call.
func (h *Host) Serve() error {
	// The endpoint is released with the loop that owns it.
	defer h.conn.Close()
	for {
		cmd, err := h.conn.RecvCommand()
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownCommand) {
				log.Printf("host[%d]: %v", h.group, err)
			}
			return err
		}

		switch c := cmd.(type) {
		case *protocol.InferCommand:
			err = h.dispatchInfer(c)
		case *protocol.SampleCommand:
			err = h.dispatchSample(c)
		case *protocol.TrainCommand:
			err = h.dispatchTrain(c)
		case *protocol.SaveCommand:
			err = h.respond(h.cap.Save(c.Dir, c.Epoch))
		case *protocol.LoadCommand:
			err = h.respond(h.cap.Load(c.Dir, c.Epoch, c.Name))
		case protocol.QuitCommand:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (h *Host) dispatchInfer(c *protocol.InferCommand) error {
	actions, err := h.cap.InferActions(c.Observation, c.IDs, c.Policy, c.Eps)
	if err != nil {
		return h.fail(fmt.Errorf("infer: %w", err))
	}
	h.steps++
	h.pending = &pendingStep{
		token:   h.steps,
		ids:     c.IDs,
		obs:     c.Observation,
		actions: actions,
	}
	return h.conn.SendResponse(&protocol.ActionResponse{Step: h.steps, Actions: actions})
}

func (h *Host) dispatchSample(c *protocol.SampleCommand) error {
	if h.pending == nil {
		return h.fail(fmt.Errorf("sample for step %d: no infer step pending", c.Step))
	}
	if c.Step != h.pending.token {
		return h.fail(fmt.Errorf("sample for step %d does not match pending step %d", c.Step, h.pending.token))
	}
	step := h.pending
	h.pending = nil
	if err := h.buf.RecordStep(step.ids, step.obs, step.actions, c.Rewards, c.Alive); err != nil {
		return h.fail(fmt.Errorf("sample for step %d: %w", c.Step, err))
	}
	return h.conn.SendResponse(protocol.DoneResponse{})
}

func (h *Host) dispatchTrain(c *protocol.TrainCommand) error {
	loss, meanValue, err := h.cap.Train(h.buf, c.PrintEvery)
	if err != nil {
		return h.fail(fmt.Errorf("train: %w", err))
	}
	// A training pass consumes the buffer: the next one starts empty.
	h.buf = model.NewTransitionBuffer(h.buf.Cap())
	return h.conn.SendResponse(&protocol.TrainResponse{Loss: loss, MeanValue: meanValue})
}

// respond sends the completion marker, or reports err and kills the loop.
func (h *Host) respond(err error) error {
	if err != nil {
		return h.fail(err)
	}
	return h.conn.SendResponse(protocol.DoneResponse{})
}

// fail reports a dispatch failure to the handle and returns an error so the
// loop exits. There is no degraded mode: every failure ends the pair.
func (h *Host) fail(err error) error {
	log.Printf("host[%d]: %v", h.group, err)
	if sendErr := h.conn.SendResponse(&protocol.ErrorResponse{Message: err.Error()}); sendErr != nil {
		return sendErr
	}
	return err
}
