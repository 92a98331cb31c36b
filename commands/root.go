package commands

import "github.com/spf13/cobra"

var (
	episodes int
	horizon  int
	savePath string
)

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "modelhost",
		Short: "Host RL models in worker processes behind a command protocol",
	}
	rootCommand.PersistentFlags().IntVarP(&episodes, "episodes", "e", 200, "Number of episodes to run")
	rootCommand.PersistentFlags().IntVar(&horizon, "horizon", 100, "Horizon of each episode")
	rootCommand.PersistentFlags().StringVarP(&savePath, "save", "s", "results", "Directory for run results and model snapshots")
	rootCommand.AddCommand(WorkerCommand())
	rootCommand.AddCommand(ArenaCommand())
	return rootCommand
}
