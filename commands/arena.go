package commands

import (
	"context"
	"fmt"
	"log"
	"path"
	"sync"

	"github.com/spf13/cobra"

	"github.com/marl-kit/modelhost/analysis"
	"github.com/marl-kit/modelhost/arena"
	"github.com/marl-kit/modelhost/handle"
	"github.com/marl-kit/modelhost/model"
	"github.com/marl-kit/modelhost/monitor"
	"github.com/marl-kit/modelhost/qtable"
	"github.com/marl-kit/modelhost/snapshot"
	"github.com/marl-kit/modelhost/util"
)

// ArenaCommand runs one handle/host pair per agent group on the gridworld
// driver. Groups are fully independent: no shared state, no coordination.
func ArenaCommand() *cobra.Command {
	var groups int
	var agents int
	var height int
	var width int
	var eps float64
	var epsDecay float64
	var printEvery int
	var spawn bool
	var monitorAddr string
	var plotResults bool
	var redisAddr string
	var seed uint64

	cmd := &cobra.Command{
		Use: "arena",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats := monitor.NewStats()
			var server *monitor.Server
			if monitorAddr != "" {
				server = monitor.NewServer(monitorAddr, stats)
				server.Start()
				defer server.Stop()
			}

			type group struct {
				runner *arena.Runner
				stop   func() error
			}
			runs := make([]group, groups)
			for g := 0; g < groups; g++ {
				name := fmt.Sprintf("group-%d", g)
				var (
					h    *handle.Handle
					stop func() error
				)
				if spawn {
					worker, err := handle.Spawn(context.Background(), handle.WorkerConfig{
						Group:          model.GroupHandle(g),
						Name:           name,
						BufferCapacity: horizon * agents,
						Actions:        arena.NumActions,
						Seed:           seed + uint64(g),
						RedisAddr:      redisAddr,
					})
					if err != nil {
						return err
					}
					h = worker.Handle
					stop = worker.Stop
				} else {
					var store snapshot.Store = snapshot.FileStore{}
					if redisAddr != "" {
						store = snapshot.NewRedisStore(redisAddr)
					}
					capability := qtable.New(model.GroupHandle(g), name, qtable.Config{
						Actions: arena.NumActions,
						Seed:    seed + uint64(g),
						Store:   store,
					})
					lh := handle.Loopback(model.GroupHandle(g), capability, horizon*agents)
					h = lh.Handle()
					stop = lh.Stop
				}
				runs[g] = group{
					runner: &arena.Runner{
						Name:   name,
						Handle: h,
						Env: arena.NewEnv(arena.Config{
							Height: height,
							Width:  width,
							Agents: agents,
							Seed:   int64(seed) + int64(g),
						}),
						Episodes:   episodes,
						Horizon:    horizon,
						Eps:        eps,
						EpsDecay:   epsDecay,
						PrintEvery: printEvery,
						SaveDir:    path.Join(savePath, "models"),
						Series:     analysis.NewLossSeries(name),
						Stats:      stats,
					},
					stop: stop,
				}
			}

			var wg sync.WaitGroup
			errs := make([]error, groups)
			for g := range runs {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					errs[g] = runs[g].runner.Run()
					if stopErr := runs[g].stop(); errs[g] == nil {
						errs[g] = stopErr
					}
				}(g)
			}
			wg.Wait()

			series := make([]*analysis.LossSeries, 0, groups)
			for g, run := range runs {
				if errs[g] != nil {
					return errs[g]
				}
				series = append(series, run.runner.Series)
				last := run.runner.Series.Points[len(run.runner.Series.Points)-1]
				summary := fmt.Sprintf("%s: episodes=%d loss=%.4f mean_value=%.4f",
					run.runner.Name, episodes, last.Loss, last.MeanValue)
				log.Println(summary)
				if err := util.AppendToFile(path.Join(savePath, "summary.txt"), summary); err != nil {
					return err
				}
			}

			if plotResults {
				return analysis.PlotSeries(path.Join(savePath, "plots"), series)
			}
			return nil
		},
	}
	cmd.PersistentFlags().IntVar(&groups, "groups", 2, "Number of agent groups, one worker each")
	cmd.PersistentFlags().IntVar(&agents, "agents", 4, "Agents per group")
	cmd.PersistentFlags().IntVar(&height, "height", 5, "Grid height")
	cmd.PersistentFlags().IntVar(&width, "width", 5, "Grid width")
	cmd.PersistentFlags().Float64Var(&eps, "eps", 0.5, "Initial exploration probability")
	cmd.PersistentFlags().Float64Var(&epsDecay, "eps-decay", 0.99, "Per-episode exploration decay")
	cmd.PersistentFlags().IntVar(&printEvery, "print-every", 0, "Log training progress every N buffered steps")
	cmd.PersistentFlags().BoolVar(&spawn, "spawn", false, "Run each host in a separate worker process")
	cmd.PersistentFlags().StringVar(&monitorAddr, "monitor-addr", "", "Serve live stats on this address")
	cmd.PersistentFlags().BoolVar(&plotResults, "plot", false, "Plot loss and value curves")
	cmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address for model snapshots")
	cmd.PersistentFlags().Uint64Var(&seed, "seed", 1, "Base seed")
	return cmd
}
