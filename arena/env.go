// Package arena drives handle/host pairs through the full protocol on a toy
// multi-agent gridworld: every live agent observes its 3x3 neighborhood and
// walks toward a goal cell, one model per group.
package arena

import (
	"math/rand"

	"github.com/marl-kit/modelhost/model"
)

// NumActions is the size of the gridworld action space: up, down, left, right.
const NumActions = 4

const (
	viewSpan    = 3 // 3x3 neighborhood
	featureSize = 2 // normalized position
)

type Config struct {
	Height int
	Width  int
	Agents int
	Seed   int64
}

type agentState struct {
	id    int32
	x, y  int
	alive bool
}

// Env is the environment for one group. It is a collaborator of the
// protocol, not part of it: the handle only ever sees the observations and
// rewards it produces.
type Env struct {
	config Config
	agents []agentState
	rng    *rand.Rand
}

func NewEnv(config Config) *Env {
	if config.Height <= 0 {
		config.Height = 5
	}
	if config.Width <= 0 {
		config.Width = 5
	}
	if config.Agents <= 0 {
		config.Agents = 1
	}
	e := &Env{
		config: config,
		agents: make([]agentState, config.Agents),
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
	e.Reset()
	return e
}

// Reset scatters the agents and revives them. The goal stays at the far
// corner.
func (e *Env) Reset() {
	for i := range e.agents {
		e.agents[i] = agentState{
			id:    int32(i),
			x:     e.rng.Intn(e.config.Width),
			y:     e.rng.Intn(e.config.Height),
			alive: true,
		}
	}
}

func (e *Env) goalX() int { return e.config.Width - 1 }
func (e *Env) goalY() int { return e.config.Height - 1 }

// Done reports whether every agent has reached the goal.
func (e *Env) Done() bool {
	for _, a := range e.agents {
		if a.alive {
			return false
		}
	}
	return true
}

func (e *Env) occupied(x, y int) bool {
	for _, a := range e.agents {
		if a.alive && a.x == x && a.y == y {
			return true
		}
	}
	return false
}

// Observe returns the ids and batched observation of the live agents. The
// view marks blocked cells (walls and other agents) in the agent's 3x3
// neighborhood; the feature is the normalized position.
func (e *Env) Observe() ([]int32, model.Observation) {
	live := make([]agentState, 0, len(e.agents))
	for _, a := range e.agents {
		if a.alive {
			live = append(live, a)
		}
	}
	n := len(live)
	obs := model.Observation{
		View:         make([]float32, 0, n*viewSpan*viewSpan),
		ViewShape:    [4]int{n, viewSpan, viewSpan, 1},
		Feature:      make([]float32, 0, n*featureSize),
		FeatureShape: [2]int{n, featureSize},
	}
	ids := make([]int32, n)
	for i, a := range live {
		ids[i] = a.id
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				x, y := a.x+dx, a.y+dy
				blocked := x < 0 || x >= e.config.Width || y < 0 || y >= e.config.Height
				if !blocked && !(dx == 0 && dy == 0) {
					blocked = e.occupied(x, y)
				}
				if blocked {
					obs.View = append(obs.View, 1)
				} else {
					obs.View = append(obs.View, 0)
				}
			}
		}
		obs.Feature = append(obs.Feature,
			float32(a.x)/float32(e.config.Width),
			float32(a.y)/float32(e.config.Height))
	}
	return ids, obs
}

// Step applies one action per id and returns the aligned rewards and alive
// flags. Reaching the goal pays 1 and retires the agent; every other move
// costs a small step penalty.
func (e *Env) Step(ids []int32, actions []int32) ([]float32, []bool) {
	rewards := make([]float32, len(ids))
	alive := make([]bool, len(ids))
	for i, id := range ids {
		a := &e.agents[id]
		x, y := a.x, a.y
		switch actions[i] {
		case 0:
			y--
		case 1:
			y++
		case 2:
			x--
		case 3:
			x++
		}
		if x >= 0 && x < e.config.Width && y >= 0 && y < e.config.Height && !e.occupied(x, y) {
			a.x, a.y = x, y
		}
		if a.x == e.goalX() && a.y == e.goalY() {
			rewards[i] = 1
			a.alive = false
		} else {
			rewards[i] = -0.01
		}
		alive[i] = a.alive
	}
	return rewards, alive
}
