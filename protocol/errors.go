package protocol

import (
	"errors"
	"fmt"
)

// Protocol violations are caller bugs: the handle is used outside the strict
// request-then-response discipline. They fail fast and are not recoverable.
var (
	// ErrPending is returned when a command is issued while a previous
	// response has not been drained.
	ErrPending = errors.New("a response is still pending on this handle")
	// ErrDrained is returned when Wait is called twice on the same pending
	// response.
	ErrDrained = errors.New("pending response already drained")
	// ErrNoPendingStep is returned by SampleStep when no completed infer
	// call provides the step to record.
	ErrNoPendingStep = errors.New("sample requires a completed infer for the same step")
	// ErrBadResponse is returned when the next response on the channel is
	// not of the kind the pending command requires.
	ErrBadResponse = errors.New("unexpected response kind")
	// ErrUnknownCommand is fatal at the host: a tag outside the command set
	// is treated as corruption, not recoverable input.
	ErrUnknownCommand = errors.New("unknown command tag")
	// ErrClosed is returned for any use of a handle after Quit or after a
	// channel failure. The choice is deterministic: a dead handle never
	// blocks, it always fails with a ChannelError wrapping ErrClosed.
	ErrClosed = errors.New("channel closed")
)

// ChannelError marks a transport failure. It is fatal to the pair: no retry,
// no reconnection.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel failure during %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}
