package main

import (
	"github.com/argus-labs/skirmish/pkg/scene"
	"github.com/argus-labs/skirmish/pkg/sim"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the skirmish command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "skirmish",
		Short:         "Headless tower and projectile simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newRunCmd(), newSceneCmd())
	return rootCmd
}

func newRunCmd() *cobra.Command {
	var opts sim.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation",
		Long: `Run the simulation at a fixed tick rate until interrupted or until --frames frames ran.
Flags override the SKIRMISH_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			opts.LogOutput = cmd.OutOrStdout()

			s, err := sim.New(ctx, opts)
			if err != nil {
				return err
			}
			runErr := s.Run(ctx)
			if err := s.Close(ctx); err != nil && runErr == nil {
				return eris.Wrap(err, "failed to shut down")
			}
			return runErr
		},
	}

	flags := cmd.Flags()
	flags.Uint64Var(&opts.MaxFrames, "frames", 0, "stop after this many frames (0 runs until interrupted)")
	flags.Float64Var(&opts.TickRate, "tick-rate", 0, "frames per second (default 60)")
	flags.StringVar(&opts.SceneFile, "scene", "", "YAML scene file (default scene when empty)")
	flags.BoolVar(&opts.SweptBounds, "swept", false, "inflate moving hitboxes by the distance travelled each frame")
	flags.BoolVar(&opts.CascadeDespawn, "cascade", false, "despawn bullets together with their tower")
	flags.StringVar(&opts.RedisAddress, "redis", "", "publish events to this Redis server")
	flags.StringVar(&opts.StatsdAddress, "statsd", "", "send metrics to this statsd agent")
	flags.Uint64Var(&opts.SpawnTargetEvery, "spawn-target-every", 0, "spawn a target every N frames")
	return cmd
}

func newSceneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scene [file]",
		Short: "Print the default scene, or validate and print a scene file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := scene.Default()
			if len(args) == 1 {
				var err error
				if s, err = scene.LoadFile(args[0]); err != nil {
					return err
				}
			}
			data, err := s.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return eris.Wrap(err, "failed to write scene")
		},
	}
}
