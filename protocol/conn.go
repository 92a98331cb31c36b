package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// envelope is the wire form of every message: a tag plus the payload for
// that tag. One complete envelope per send, newline delimited.
type envelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body,omitempty"`
}

// Conn is one endpoint of the duplex ordered channel between a handle and a
// host. Any reliable ordered transport works: the handle/host pair uses a
// TCP connection when the worker is a separate process and net.Pipe when it
// runs in-process. Reads and writes block; there is no timeout and no retry.
type Conn struct {
	rwc io.ReadWriteCloser
	enc *json.Encoder
	dec *json.Decoder
}

func NewConn(rwc io.ReadWriteCloser) *Conn {
	return &Conn{
		rwc: rwc,
		enc: json.NewEncoder(rwc),
		dec: json.NewDecoder(rwc),
	}
}

func (c *Conn) Close() error {
	return c.rwc.Close()
}

func (c *Conn) send(tag string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", tag, err)
	}
	if err := c.enc.Encode(envelope{Type: tag, Body: body}); err != nil {
		return &ChannelError{Op: "send " + tag, Err: err}
	}
	return nil
}

func (c *Conn) recv() (envelope, error) {
	var env envelope
	if err := c.dec.Decode(&env); err != nil {
		return envelope{}, &ChannelError{Op: "recv", Err: err}
	}
	return env, nil
}

func (c *Conn) SendCommand(cmd Command) error {
	return c.send(cmd.commandTag(), cmd)
}

func (c *Conn) SendResponse(resp Response) error {
	return c.send(resp.responseTag(), resp)
}

// RecvCommand blocks for the next command. A tag outside the command set
// yields ErrUnknownCommand, which the host treats as fatal.
func (c *Conn) RecvCommand() (Command, error) {
	env, err := c.recv()
	if err != nil {
		return nil, err
	}
	var cmd Command
	switch env.Type {
	case tagInfer:
		cmd = &InferCommand{}
	case tagSample:
		cmd = &SampleCommand{}
	case tagTrain:
		cmd = &TrainCommand{}
	case tagSave:
		cmd = &SaveCommand{}
	case tagLoad:
		cmd = &LoadCommand{}
	case tagQuit:
		return QuitCommand{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Type)
	}
	if err := json.Unmarshal(env.Body, cmd); err != nil {
		return nil, fmt.Errorf("decoding %s command: %w", env.Type, err)
	}
	return cmd, nil
}

// RecvResponse blocks for the next response.
func (c *Conn) RecvResponse() (Response, error) {
	env, err := c.recv()
	if err != nil {
		return nil, err
	}
	var resp Response
	switch env.Type {
	case tagActions:
		resp = &ActionResponse{}
	case tagResult:
		resp = &TrainResponse{}
	case tagDone:
		return DoneResponse{}, nil
	case tagError:
		resp = &ErrorResponse{}
	default:
		return nil, fmt.Errorf("%w: unexpected response tag %q", ErrBadResponse, env.Type)
	}
	if err := json.Unmarshal(env.Body, resp); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", env.Type, err)
	}
	return resp, nil
}
