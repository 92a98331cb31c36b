package protocol

// Response is the closed set of messages a host sends back. Every command
// except Quit produces exactly one response, in command order.
type Response interface {
	responseTag() string
}

const (
	tagActions = "actions"
	tagResult  = "train_result"
	tagDone    = "done"
	tagError   = "error"
)

// ActionResponse answers an InferCommand. Step is the token the following
// SampleCommand must carry to record this step.
type ActionResponse struct {
	Step    uint64  `json:"step"`
	Actions []int32 `json:"actions"`
}

// TrainResponse answers a TrainCommand.
type TrainResponse struct {
	Loss      float64 `json:"loss"`
	MeanValue float64 `json:"mean_value"`
}

// DoneResponse is the completion marker acknowledging a side-effecting
// command with no other payload.
type DoneResponse struct{}

// ErrorResponse reports a host-side dispatch failure. The host sends it and
// exits its loop, so the pair is dead after this message.
type ErrorResponse struct {
	Message string `json:"message"`
}

func (ActionResponse) responseTag() string { return tagActions }
func (TrainResponse) responseTag() string  { return tagResult }
func (DoneResponse) responseTag() string   { return tagDone }
func (ErrorResponse) responseTag() string  { return tagError }
