package handle

import (
	"errors"
	"sync"
	"testing"

	"github.com/marl-kit/modelhost/model"
	"github.com/marl-kit/modelhost/protocol"
)

// doublingCapability returns 2*id per agent so responses are attributable
// to the command that produced them, and records every training batch.
type doublingCapability struct {
	lock        sync.Mutex
	trainedWith [][]model.Transition
}

func (c *doublingCapability) InferActions(obs model.Observation, ids []int32, policy model.PolicyKind, eps float64) ([]int32, error) {
	actions := make([]int32, len(ids))
	for i, id := range ids {
		actions[i] = id * 2
	}
	return actions, nil
}

func (c *doublingCapability) Train(buf *model.TransitionBuffer, printEvery int) (float64, float64, error) {
	batch := make([]model.Transition, 0, buf.Len())
	for i := 0; i < buf.Len(); i++ {
		step, _ := buf.Get(i)
		batch = append(batch, step)
	}
	c.lock.Lock()
	c.trainedWith = append(c.trainedWith, batch)
	c.lock.Unlock()
	return float64(len(batch)), 0.5, nil
}

func (c *doublingCapability) Save(dir string, epoch int) error { return nil }

func (c *doublingCapability) Load(dir string, epoch int, _ string) error { return nil }

func (c *doublingCapability) batches() [][]model.Transition {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.trainedWith
}

func obsFor(ids []int32) model.Observation {
	n := len(ids)
	obs := model.Observation{
		View:         make([]float32, n),
		ViewShape:    [4]int{n, 1, 1, 1},
		Feature:      make([]float32, n),
		FeatureShape: [2]int{n, 1},
	}
	for i, id := range ids {
		obs.View[i] = float32(id)
		obs.Feature[i] = float32(id)
	}
	return obs
}

// inferAndSample runs one complete blocking step.
func inferAndSample(t *testing.T, h *Handle, ids []int32, reward float32) []int32 {
	t.Helper()
	pending, err := h.InferActions(obsFor(ids), ids, model.PolicyGreedy, 0)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	actions, err := pending.Wait()
	if err != nil {
		t.Fatalf("waiting for actions: %v", err)
	}
	rewards := make([]float32, len(ids))
	alive := make([]bool, len(ids))
	for i := range ids {
		rewards[i] = reward
		alive[i] = true
	}
	sampled, err := h.SampleStep(rewards, alive)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if err := sampled.Wait(); err != nil {
		t.Fatalf("waiting for sample marker: %v", err)
	}
	return actions
}

func TestBlockingResponsesMatchCommandsInOrder(t *testing.T) {
	lh := Loopback(1, &doublingCapability{}, 16)
	h := lh.Handle()

	for step := int32(0); step < 5; step++ {
		ids := []int32{step, step + 10}
		actions := inferAndSample(t, h, ids, 0)
		for i, id := range ids {
			if actions[i] != id*2 {
				t.Errorf("step %d: action[%d] = %d, want %d", step, i, actions[i], id*2)
			}
		}
	}

	if err := lh.Stop(); err != nil {
		t.Errorf("stop: %v", err)
	}
}

func TestDeferredWaitYieldsSameActionsAsBlocking(t *testing.T) {
	blocking := Loopback(1, &doublingCapability{}, 16)
	deferred := Loopback(2, &doublingCapability{}, 16)
	ids := []int32{3, 4, 5}

	pendingB, err := blocking.Handle().InferActions(obsFor(ids), ids, model.PolicyGreedy, 0)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	actionsB, err := pendingB.Wait()
	if err != nil {
		t.Fatalf("blocking wait: %v", err)
	}

	pendingD, err := deferred.Handle().InferActions(obsFor(ids), ids, model.PolicyGreedy, 0)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	// Something else happens here in a real supervisor; the response stays
	// queued until drained.
	actionsD, err := pendingD.Wait()
	if err != nil {
		t.Fatalf("deferred wait: %v", err)
	}

	if len(actionsB) != len(actionsD) {
		t.Fatalf("action vectors differ in length: %d vs %d", len(actionsB), len(actionsD))
	}
	for i := range actionsB {
		if actionsB[i] != actionsD[i] {
			t.Errorf("action[%d]: blocking %d, deferred %d", i, actionsB[i], actionsD[i])
		}
	}

	blocking.Stop()
	deferred.Stop()
}

func TestCommandWhileResponsePendingIsRejected(t *testing.T) {
	lh := Loopback(1, &doublingCapability{}, 16)
	h := lh.Handle()
	ids := []int32{1}

	pending, err := h.InferActions(obsFor(ids), ids, model.PolicyGreedy, 0)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if _, err := h.Train(0); !errors.Is(err, protocol.ErrPending) {
		t.Errorf("train while infer pending: got %v, want ErrPending", err)
	}
	if _, err := pending.Wait(); err != nil {
		t.Fatalf("draining: %v", err)
	}
	if _, err := pending.Wait(); !errors.Is(err, protocol.ErrDrained) {
		t.Errorf("second wait: got %v, want ErrDrained", err)
	}

	lh.Stop()
}

func TestSampleWithoutInferIsRejectedLocally(t *testing.T) {
	lh := Loopback(1, &doublingCapability{}, 16)
	defer lh.Stop()

	_, err := lh.Handle().SampleStep([]float32{0}, []bool{true})
	if !errors.Is(err, protocol.ErrNoPendingStep) {
		t.Errorf("got %v, want ErrNoPendingStep", err)
	}
}

func TestTrainConsumesExactlyTheBufferedWindow(t *testing.T) {
	capability := &doublingCapability{}
	lh := Loopback(1, capability, 2)
	h := lh.Handle()

	// Three steps into a capacity-2 buffer: the oldest one is evicted.
	for step := 0; step < 3; step++ {
		inferAndSample(t, h, []int32{int32(step)}, float32(step))
	}

	trained, err := h.Train(0)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	loss, _, err := trained.Wait()
	if err != nil {
		t.Fatalf("waiting for train result: %v", err)
	}
	if loss != 2 {
		t.Errorf("first training pass saw %.0f transitions, want 2", loss)
	}

	batches := capability.batches()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("capability received %v batches, want one batch of 2", batches)
	}
	if batches[0][0].Rewards[0] != 1 || batches[0][1].Rewards[0] != 2 {
		t.Errorf("capability received the wrong window: %v, %v", batches[0][0].Rewards, batches[0][1].Rewards)
	}

	// The buffer is replaced after training: one fresh step is all the next
	// pass can see.
	inferAndSample(t, h, []int32{7}, 9)
	trained, err = h.Train(0)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	loss, _, err = trained.Wait()
	if err != nil {
		t.Fatalf("waiting for train result: %v", err)
	}
	if loss != 1 {
		t.Errorf("second training pass saw %.0f transitions, want only the fresh one", loss)
	}

	lh.Stop()
}

func TestSaveThenLoadCompleteWithMarkers(t *testing.T) {
	lh := Loopback(1, &doublingCapability{}, 4)
	h := lh.Handle()

	saved, err := h.Save("/tmp/x", 5)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := saved.Wait(); err != nil {
		t.Errorf("save marker: %v", err)
	}

	loaded, err := h.Load("/tmp/x", 5, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := loaded.Wait(); err != nil {
		t.Errorf("load marker: %v", err)
	}

	lh.Stop()
}

func TestQuitIsTerminal(t *testing.T) {
	lh := Loopback(1, &doublingCapability{}, 4)
	h := lh.Handle()

	if err := lh.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// A dead handle fails deterministically rather than blocking.
	if _, err := h.InferActions(obsFor([]int32{1}), []int32{1}, model.PolicyGreedy, 0); !errors.Is(err, protocol.ErrClosed) {
		t.Errorf("infer after quit: got %v, want ErrClosed", err)
	}
	if _, err := h.Train(0); !errors.Is(err, protocol.ErrClosed) {
		t.Errorf("train after quit: got %v, want ErrClosed", err)
	}
	if err := h.Quit(); !errors.Is(err, protocol.ErrClosed) {
		t.Errorf("second quit: got %v, want ErrClosed", err)
	}
}
