package protocol

import (
	"encoding/json"
	"errors"
	"net"
	"testing"

	"github.com/marl-kit/modelhost/model"
)

func connPair() (*Conn, *Conn) {
	a, b := net.Pipe()
	return NewConn(a), NewConn(b)
}

func TestCommandsArriveInSendOrder(t *testing.T) {
	supervisor, worker := connPair()
	defer supervisor.Close()
	defer worker.Close()

	sent := []Command{
		&InferCommand{IDs: []int32{1, 2}, Policy: model.PolicyEpsGreedy, Eps: 0.3},
		&SampleCommand{Step: 1, Rewards: []float32{0.5, -0.5}, Alive: []bool{true, false}},
		&TrainCommand{PrintEvery: 10},
		&SaveCommand{Dir: "/tmp/x", Epoch: 5},
		&LoadCommand{Dir: "/tmp/x", Epoch: 5, Name: "other"},
		QuitCommand{},
	}

	go func() {
		for _, cmd := range sent {
			supervisor.SendCommand(cmd)
		}
	}()

	for i, want := range sent {
		got, err := worker.RecvCommand()
		if err != nil {
			t.Fatalf("receiving command %d: %v", i, err)
		}
		if got.commandTag() != want.commandTag() {
			t.Errorf("command %d arrived as %q, sent %q", i, got.commandTag(), want.commandTag())
		}
	}
}

func TestSampleCommandPayloadSurvivesTheWire(t *testing.T) {
	supervisor, worker := connPair()
	defer supervisor.Close()
	defer worker.Close()

	go supervisor.SendCommand(&SampleCommand{Step: 7, Rewards: []float32{1, 2}, Alive: []bool{true, false}})

	got, err := worker.RecvCommand()
	if err != nil {
		t.Fatalf("receiving: %v", err)
	}
	sample, ok := got.(*SampleCommand)
	if !ok {
		t.Fatalf("received %T, want *SampleCommand", got)
	}
	if sample.Step != 7 || len(sample.Rewards) != 2 || sample.Alive[1] {
		t.Errorf("payload corrupted in transit: %+v", sample)
	}
}

func TestUnknownTagIsAnError(t *testing.T) {
	client, server := net.Pipe()
	worker := NewConn(server)
	defer client.Close()
	defer server.Close()

	go json.NewEncoder(client).Encode(map[string]string{"type": "reboot"})

	_, err := worker.RecvCommand()
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("got %v, want ErrUnknownCommand", err)
	}
}

func TestClosedTransportYieldsChannelError(t *testing.T) {
	supervisor, worker := connPair()
	worker.Close()
	supervisor.Close()

	_, err := supervisor.RecvResponse()
	var chErr *ChannelError
	if !errors.As(err, &chErr) {
		t.Errorf("got %v, want a ChannelError", err)
	}
}

func TestErrorResponseRoundTrip(t *testing.T) {
	supervisor, worker := connPair()
	defer supervisor.Close()
	defer worker.Close()

	go worker.SendResponse(&ErrorResponse{Message: "train: no such snapshot"})

	resp, err := supervisor.RecvResponse()
	if err != nil {
		t.Fatalf("receiving: %v", err)
	}
	errResp, ok := resp.(*ErrorResponse)
	if !ok {
		t.Fatalf("received %T, want *ErrorResponse", resp)
	}
	if errResp.Message != "train: no such snapshot" {
		t.Errorf("message corrupted: %q", errResp.Message)
	}
}
