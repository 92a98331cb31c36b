package model

import "fmt"

// Transition is one recorded step of experience for a group of agents.
// Rewards and Alive are index-aligned with IDs and the observation rows.
type Transition struct {
	IDs         []int32
	Observation Observation
	Actions     []int32
	Rewards     []float32
	Alive       []bool
}

// TransitionBuffer accumulates transitions between training calls. It is
// owned exclusively by the host and never crosses the channel. The buffer
// is bounded: once capacity is reached the oldest step is evicted, so a
// training call sees at most the last capacity steps.
type TransitionBuffer struct {
	capacity int
	steps    []Transition
}

func NewTransitionBuffer(capacity int) *TransitionBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &TransitionBuffer{
		capacity: capacity,
		steps:    make([]Transition, 0, capacity),
	}
}

// RecordStep appends one transition. All sequences must be aligned with ids.
func (b *TransitionBuffer) RecordStep(ids []int32, obs Observation, actions []int32, rewards []float32, alive []bool) error {
	n := len(ids)
	if err := obs.validate(n); err != nil {
		return err
	}
	if len(actions) != n || len(rewards) != n || len(alive) != n {
		return fmt.Errorf("misaligned step: %d ids, %d actions, %d rewards, %d alive flags",
			n, len(actions), len(rewards), len(alive))
	}
	if len(b.steps) == b.capacity {
		copy(b.steps, b.steps[1:])
		b.steps = b.steps[:b.capacity-1]
	}
	b.steps = append(b.steps, Transition{
		IDs:         ids,
		Observation: obs,
		Actions:     actions,
		Rewards:     rewards,
		Alive:       alive,
	})
	return nil
}

func (b *TransitionBuffer) Len() int {
	return len(b.steps)
}

func (b *TransitionBuffer) Cap() int {
	return b.capacity
}

// Get returns the i-th oldest transition.
func (b *TransitionBuffer) Get(i int) (Transition, bool) {
	if i < 0 || i >= len(b.steps) {
		return Transition{}, false
	}
	return b.steps[i], true
}
