package model

import "fmt"

// GroupHandle names a set of agents that share one model.
// Handles are assigned by the supervisor and never change.
type GroupHandle int32

// PolicyKind selects how the capability turns Q-values into actions.
type PolicyKind string

const (
	PolicyGreedy    PolicyKind = "greedy"
	PolicyEpsGreedy PolicyKind = "eps_greedy"
)

// Observation carries the spatial and non-spatial inputs for a batch of
// agents. View is flattened row-major with shape [n, width, height, channels],
// Feature with shape [n, featureSize]. Observations are transient: they are
// not retained beyond the call that produced them except through the
// transition buffer.
type Observation struct {
	View         []float32 `json:"view"`
	ViewShape    [4]int    `json:"view_shape"`
	Feature      []float32 `json:"feature"`
	FeatureShape [2]int    `json:"feature_shape"`
}

// Rows returns the batch size n.
func (o Observation) Rows() int {
	return o.ViewShape[0]
}

// ViewRow returns the flattened spatial slice for agent row i.
func (o Observation) ViewRow(i int) []float32 {
	stride := o.ViewShape[1] * o.ViewShape[2] * o.ViewShape[3]
	return o.View[i*stride : (i+1)*stride]
}

// FeatureRow returns the feature slice for agent row i.
func (o Observation) FeatureRow(i int) []float32 {
	stride := o.FeatureShape[1]
	return o.Feature[i*stride : (i+1)*stride]
}

func (o Observation) validate(n int) error {
	if o.ViewShape[0] != n || o.FeatureShape[0] != n {
		return fmt.Errorf("observation batch size %d/%d does not match %d ids", o.ViewShape[0], o.FeatureShape[0], n)
	}
	viewLen := o.ViewShape[0] * o.ViewShape[1] * o.ViewShape[2] * o.ViewShape[3]
	if len(o.View) != viewLen {
		return fmt.Errorf("view has %d values, shape requires %d", len(o.View), viewLen)
	}
	featLen := o.FeatureShape[0] * o.FeatureShape[1]
	if len(o.Feature) != featLen {
		return fmt.Errorf("feature has %d values, shape requires %d", len(o.Feature), featLen)
	}
	return nil
}

// Capability is the learning algorithm consumed by a host. Everything about
// the algorithm is opaque to the protocol: the host only forwards commands
// and the accumulated transition buffer.
type Capability interface {
	// InferActions returns one action per id for the given batch observation.
	InferActions(obs Observation, ids []int32, policy PolicyKind, eps float64) ([]int32, error)
	// Train consumes the transitions buffered since the previous call and
	// returns the mean loss and mean estimated state value.
	Train(buf *TransitionBuffer, printEvery int) (loss float64, meanValue float64, err error)
	// Save persists the model parameters for the given epoch.
	Save(dir string, epoch int) error
	// Load restores the parameters saved at the given epoch. A non-empty
	// name overrides the model's own name when looking up the snapshot.
	Load(dir string, epoch int, name string) error
}
