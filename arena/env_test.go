package arena

import "testing"

func TestObserveShapesMatchLiveAgents(t *testing.T) {
	env := NewEnv(Config{Height: 4, Width: 4, Agents: 3, Seed: 1})

	ids, obs := env.Observe()
	if len(ids) != 3 {
		t.Fatalf("observed %d agents, want 3", len(ids))
	}
	if obs.ViewShape != [4]int{3, viewSpan, viewSpan, 1} {
		t.Errorf("view shape %v", obs.ViewShape)
	}
	if obs.FeatureShape != [2]int{3, featureSize} {
		t.Errorf("feature shape %v", obs.FeatureShape)
	}
	if len(obs.View) != 3*viewSpan*viewSpan || len(obs.Feature) != 3*featureSize {
		t.Errorf("flattened lengths %d/%d do not match shapes", len(obs.View), len(obs.Feature))
	}
}

func TestReachingTheGoalRetiresTheAgent(t *testing.T) {
	env := NewEnv(Config{Height: 2, Width: 2, Agents: 1, Seed: 0})
	env.agents[0].x = 0
	env.agents[0].y = 1

	// One step right lands on the goal corner (1, 1).
	rewards, alive := env.Step([]int32{0}, []int32{3})
	if rewards[0] != 1 {
		t.Errorf("goal reward %v, want 1", rewards[0])
	}
	if alive[0] {
		t.Errorf("agent still alive after reaching the goal")
	}
	if !env.Done() {
		t.Errorf("single-agent env not done after its agent retired")
	}

	ids, _ := env.Observe()
	if len(ids) != 0 {
		t.Errorf("retired agents still observed: %v", ids)
	}
}

func TestBlockedMovesKeepPositionAndCost(t *testing.T) {
	env := NewEnv(Config{Height: 3, Width: 3, Agents: 1, Seed: 0})
	env.agents[0].x = 0
	env.agents[0].y = 0

	rewards, alive := env.Step([]int32{0}, []int32{2}) // left into the wall
	if env.agents[0].x != 0 || env.agents[0].y != 0 {
		t.Errorf("agent moved through a wall to (%d, %d)", env.agents[0].x, env.agents[0].y)
	}
	if rewards[0] != -0.01 || !alive[0] {
		t.Errorf("blocked move returned (%v, %v)", rewards[0], alive[0])
	}
}
