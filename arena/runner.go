package arena

import (
	"fmt"
	"log"

	"github.com/marl-kit/modelhost/analysis"
	"github.com/marl-kit/modelhost/handle"
	"github.com/marl-kit/modelhost/model"
	"github.com/marl-kit/modelhost/monitor"
)

// Runner drives one handle/host pair through the canonical loop: infer,
// step the environment, sample the transition, train at episode end, save
// at the run's end. Runners for different groups are fully independent.
type Runner struct {
	Name   string
	Handle *handle.Handle
	Env    *Env

	Episodes   int
	Horizon    int
	Eps        float64
	EpsDecay   float64
	PrintEvery int
	SaveDir    string

	// optional sinks
	Series *analysis.LossSeries
	Stats  *monitor.Stats
}

func (r *Runner) Run() error {
	if r.Episodes <= 0 || r.Horizon <= 0 {
		return fmt.Errorf("runner %s: episodes and horizon must be positive", r.Name)
	}
	eps := r.Eps
	for episode := 0; episode < r.Episodes; episode++ {
		r.Env.Reset()
		for t := 0; t < r.Horizon && !r.Env.Done(); t++ {
			ids, obs := r.Env.Observe()
			pending, err := r.Handle.InferActions(obs, ids, model.PolicyEpsGreedy, eps)
			if err != nil {
				return fmt.Errorf("runner %s: %w", r.Name, err)
			}
			actions, err := pending.Wait()
			if err != nil {
				return fmt.Errorf("runner %s: %w", r.Name, err)
			}
			rewards, alive := r.Env.Step(ids, actions)
			sampled, err := r.Handle.SampleStep(rewards, alive)
			if err != nil {
				return fmt.Errorf("runner %s: %w", r.Name, err)
			}
			if err := sampled.Wait(); err != nil {
				return fmt.Errorf("runner %s: %w", r.Name, err)
			}
		}

		trained, err := r.Handle.Train(r.PrintEvery)
		if err != nil {
			return fmt.Errorf("runner %s: %w", r.Name, err)
		}
		loss, meanValue, err := trained.Wait()
		if err != nil {
			return fmt.Errorf("runner %s: %w", r.Name, err)
		}
		if r.Series != nil {
			r.Series.Record(episode, loss, meanValue)
		}
		if r.Stats != nil {
			r.Stats.Update(r.Name, episode+1, loss, meanValue)
		}
		if r.EpsDecay > 0 && eps > 0.01 {
			eps *= r.EpsDecay
		}
	}

	if r.SaveDir != "" {
		saved, err := r.Handle.Save(r.SaveDir, r.Episodes)
		if err != nil {
			return fmt.Errorf("runner %s: %w", r.Name, err)
		}
		if err := saved.Wait(); err != nil {
			return fmt.Errorf("runner %s: %w", r.Name, err)
		}
		log.Printf("runner %s: saved model at epoch %d to %s", r.Name, r.Episodes, r.SaveDir)
	}
	return nil
}
