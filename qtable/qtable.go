// Package qtable is a tabular Q-learning capability: Q-values indexed by a
// hash of each agent's observation row. It exists so the protocol ships
// with a working end-to-end learner; any other algorithm plugs in through
// the same model.Capability interface.
package qtable

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"strconv"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/marl-kit/modelhost/model"
	"github.com/marl-kit/modelhost/snapshot"
)

type Config struct {
	// Actions is the size of the discrete action space.
	Actions int
	// Alpha is the learning rate, Gamma the discount.
	Alpha float64
	Gamma float64
	Seed  uint64
	// Store receives save/load snapshots. Defaults to the file store.
	Store snapshot.Store
}

type Model struct {
	group   model.GroupHandle
	name    string
	actions int
	alpha   float64
	gamma   float64
	q       map[string][]float64
	src     rand.Source
	store   snapshot.Store
}

var _ model.Capability = &Model{}

func New(group model.GroupHandle, name string, config Config) *Model {
	if config.Alpha == 0 {
		config.Alpha = 0.1
	}
	if config.Gamma == 0 {
		config.Gamma = 0.95
	}
	if config.Seed == 0 {
		config.Seed = uint64(time.Now().UnixNano())
	}
	if config.Store == nil {
		config.Store = snapshot.FileStore{}
	}
	return &Model{
		group:   group,
		name:    name,
		actions: config.Actions,
		alpha:   config.Alpha,
		gamma:   config.Gamma,
		q:       make(map[string][]float64),
		src:     rand.NewSource(config.Seed),
		store:   config.Store,
	}
}

// stateKey hashes one agent's observation row. Rows with identical values
// share Q estimates.
func stateKey(obs model.Observation, i int) string {
	h := fnv.New64a()
	var b [4]byte
	for _, v := range obs.ViewRow(i) {
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
		h.Write(b[:])
	}
	for _, v := range obs.FeatureRow(i) {
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
		h.Write(b[:])
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func (m *Model) values(key string) []float64 {
	vals, ok := m.q[key]
	if !ok {
		vals = make([]float64, m.actions)
		m.q[key] = vals
	}
	return vals
}

func argmax(vals []float64) int {
	best := 0
	for i, v := range vals {
		if v > vals[best] {
			best = i
		}
	}
	return best
}

func (m *Model) InferActions(obs model.Observation, ids []int32, policy model.PolicyKind, eps float64) ([]int32, error) {
	if obs.Rows() != len(ids) {
		return nil, fmt.Errorf("observation has %d rows for %d ids", obs.Rows(), len(ids))
	}
	actions := make([]int32, len(ids))
	for i := range ids {
		vals := m.values(stateKey(obs, i))
		switch policy {
		case model.PolicyGreedy:
			actions[i] = int32(argmax(vals))
		case model.PolicyEpsGreedy:
			a, err := m.sampleEpsGreedy(vals, eps)
			if err != nil {
				return nil, err
			}
			actions[i] = int32(a)
		default:
			return nil, fmt.Errorf("unknown policy %q", policy)
		}
	}
	return actions, nil
}

// sampleEpsGreedy places 1-eps on the greedy action and spreads eps
// uniformly over the whole action space.
func (m *Model) sampleEpsGreedy(vals []float64, eps float64) (int, error) {
	weights := make([]float64, m.actions)
	for i := range weights {
		weights[i] = eps / float64(m.actions)
	}
	weights[argmax(vals)] += 1 - eps
	i, ok := sampleuv.NewWeighted(weights, m.src).Take()
	if !ok {
		return 0, fmt.Errorf("sampling from %d actions failed", m.actions)
	}
	return i, nil
}

// Train runs one Q-update pass over the buffered transitions, in recording
// order. The value of an agent's next state is bootstrapped from the next
// transition in the buffer that contains the same id; dead agents and final
// steps use the plain reward as target.
func (m *Model) Train(buf *model.TransitionBuffer, printEvery int) (float64, float64, error) {
	if buf.Len() == 0 {
		return 0, 0, nil
	}
	sqErrors := make([]float64, 0, buf.Len())
	maxValues := make([]float64, 0, buf.Len())

	for i := 0; i < buf.Len(); i++ {
		step, _ := buf.Get(i)
		nextKeys := make(map[int32]string)
		if next, ok := buf.Get(i + 1); ok {
			for j, id := range next.IDs {
				nextKeys[id] = stateKey(next.Observation, j)
			}
		}
		for j, id := range step.IDs {
			key := stateKey(step.Observation, j)
			vals := m.values(key)
			action := int(step.Actions[j])
			if action < 0 || action >= m.actions {
				return 0, 0, fmt.Errorf("recorded action %d outside action space of size %d", action, m.actions)
			}
			target := float64(step.Rewards[j])
			if nextKey, ok := nextKeys[id]; ok && step.Alive[j] {
				target += m.gamma * floats.Max(m.values(nextKey))
			}
			td := target - vals[action]
			vals[action] += m.alpha * td
			sqErrors = append(sqErrors, td*td)
			maxValues = append(maxValues, floats.Max(vals))
		}
		if printEvery > 0 && (i+1)%printEvery == 0 {
			log.Printf("model[%d] %s: trained %d/%d steps, loss %.4f",
				m.group, m.name, i+1, buf.Len(), floats.Sum(sqErrors)/float64(len(sqErrors)))
		}
	}

	loss := floats.Sum(sqErrors) / float64(len(sqErrors))
	meanValue := floats.Sum(maxValues) / float64(len(maxValues))
	return loss, meanValue, nil
}

// persisted is the snapshot layout. It belongs to this capability alone.
type persisted struct {
	Name    string               `json:"name"`
	Actions int                  `json:"actions"`
	Alpha   float64              `json:"alpha"`
	Gamma   float64              `json:"gamma"`
	Q       map[string][]float64 `json:"q"`
}

func (m *Model) Save(dir string, epoch int) error {
	data, err := json.Marshal(persisted{
		Name:    m.name,
		Actions: m.actions,
		Alpha:   m.alpha,
		Gamma:   m.gamma,
		Q:       m.q,
	})
	if err != nil {
		return err
	}
	return m.store.Put(dir, epoch, m.name, data)
}

func (m *Model) Load(dir string, epoch int, name string) error {
	if name == "" {
		name = m.name
	}
	data, err := m.store.Get(dir, epoch, name)
	if err != nil {
		return err
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding snapshot %s epoch %d: %w", name, epoch, err)
	}
	if p.Actions != m.actions {
		return fmt.Errorf("snapshot %s has %d actions, model has %d", name, p.Actions, m.actions)
	}
	m.q = p.Q
	return nil
}
