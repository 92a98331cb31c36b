package commands

import (
	"fmt"
	"log"
	"net"

	"github.com/spf13/cobra"

	"github.com/marl-kit/modelhost/host"
	"github.com/marl-kit/modelhost/model"
	"github.com/marl-kit/modelhost/protocol"
	"github.com/marl-kit/modelhost/qtable"
	"github.com/marl-kit/modelhost/snapshot"
)

// WorkerCommand is the worker-process bootstrap: dial the supervisor, build
// the capability and serve the command loop until Quit.
func WorkerCommand() *cobra.Command {
	var connect string
	var group int
	var name string
	var capacity int
	var actions int
	var seed uint64
	var redisAddr string
	var alpha float64
	var gamma float64

	cmd := &cobra.Command{
		Use:    "worker",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if connect == "" {
				return fmt.Errorf("--connect is required")
			}
			conn, err := net.Dial("tcp", connect)
			if err != nil {
				return fmt.Errorf("dialing supervisor at %s: %w", connect, err)
			}

			var store snapshot.Store = snapshot.FileStore{}
			if redisAddr != "" {
				store = snapshot.NewRedisStore(redisAddr)
			}
			capability := qtable.New(model.GroupHandle(group), name, qtable.Config{
				Actions: actions,
				Alpha:   alpha,
				Gamma:   gamma,
				Seed:    seed,
				Store:   store,
			})

			log.Printf("worker[%d] %s: connected to %s, buffer capacity %d", group, name, connect, capacity)
			h := host.New(model.GroupHandle(group), protocol.NewConn(conn), capability, capacity)
			if err := h.Serve(); err != nil {
				return fmt.Errorf("worker[%d]: %w", group, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&connect, "connect", "", "Supervisor address to dial back")
	cmd.Flags().IntVar(&group, "group", 0, "Group handle this worker serves")
	cmd.Flags().StringVar(&name, "name", "model", "Model name used for snapshots")
	cmd.Flags().IntVar(&capacity, "capacity", 1000, "Transition buffer capacity")
	cmd.Flags().IntVar(&actions, "actions", 4, "Size of the discrete action space")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for action sampling")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for snapshots instead of the filesystem")
	cmd.Flags().Float64Var(&alpha, "alpha", 0.1, "Q-learning rate")
	cmd.Flags().Float64Var(&gamma, "gamma", 0.95, "Discount factor")
	return cmd
}
