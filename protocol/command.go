package protocol

import "github.com/marl-kit/modelhost/model"

// Command is the closed set of messages a handle sends to a host. The
// marker method keeps the set closed so dispatch can switch exhaustively:
// a tag outside this set can only appear as a decoding error, never as a
// surprise variant.
type Command interface {
	commandTag() string
}

const (
	tagInfer  = "infer"
	tagSample = "sample"
	tagTrain  = "train"
	tagSave   = "save"
	tagLoad   = "load"
	tagQuit   = "quit"
)

// InferCommand asks the capability for one action per id.
type InferCommand struct {
	Observation model.Observation `json:"observation"`
	IDs         []int32           `json:"ids"`
	Policy      model.PolicyKind  `json:"policy"`
	Eps         float64           `json:"eps"`
}

// SampleCommand records rewards and alive flags against the step returned
// by the preceding infer. Carrying the step token makes the infer/sample
// pairing a checked invariant instead of an ordering assumption.
type SampleCommand struct {
	Step    uint64    `json:"step"`
	Rewards []float32 `json:"rewards"`
	Alive   []bool    `json:"alive"`
}

// TrainCommand triggers a training pass over the buffered transitions.
type TrainCommand struct {
	PrintEvery int `json:"print_every"`
}

// SaveCommand persists the model parameters for the given epoch.
type SaveCommand struct {
	Dir   string `json:"dir"`
	Epoch int    `json:"epoch"`
}

// LoadCommand restores previously saved parameters. Name optionally
// overrides the model's own name.
type LoadCommand struct {
	Dir   string `json:"dir"`
	Epoch int    `json:"epoch"`
	Name  string `json:"name,omitempty"`
}

// QuitCommand terminates the host loop. It is the only command without a
// response.
type QuitCommand struct{}

func (InferCommand) commandTag() string  { return tagInfer }
func (SampleCommand) commandTag() string { return tagSample }
func (TrainCommand) commandTag() string  { return tagTrain }
func (SaveCommand) commandTag() string   { return tagSave }
func (LoadCommand) commandTag() string   { return tagLoad }
func (QuitCommand) commandTag() string   { return tagQuit }
