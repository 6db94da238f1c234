package main

import (
	"context"
	"fmt"
	"strconv"

	viewer "github.com/louteranas/nomad-viewer"
	"github.com/louteranas/nomad-viewer/property"
	"github.com/louteranas/nomad-viewer/value"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newPositionsCommand(g *globalOptions) *cobra.Command {
	var (
		reset   string
		command string
	)

	cmd := &cobra.Command{
		Use:   "positions <local>,<remote>,<process>",
		Short: "Query the position worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, viewer.Positions, args[0], func(ctx context.Context, s *viewer.Session) error {
				if reset != "" {
					if err := s.Reset(ctx, reset); err != nil {
						return err
					}
				}

				reply, err := s.RequestCall(ctx, []byte(command))
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), string(reply))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reset, "reset", "", "follow another remote simulation instance first")
	cmd.Flags().StringVar(&command, "command", viewer.PositionsCommand, "command to send (POSITIONS, PAUSE or RESTART)")

	return cmd
}

func newCollisionCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collision <record> <payload>",
		Short: "Send positions to the collision worker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, viewer.Collision, args[0], func(ctx context.Context, s *viewer.Session) error {
				reply, err := s.RequestCall(ctx, []byte(args[1]))
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), string(reply))
				return nil
			})
		},
	}
}

func newListCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <local>,<remote>,<process> [pattern]",
		Short: "List the simulation instances on the remote server",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pattern string
			if len(args) == 2 {
				pattern = args[1]
			}

			return withSession(cmd, g, viewer.Properties, args[0], func(ctx context.Context, s *viewer.Session) error {
				ids, err := s.ListRemoteInstances(ctx, pattern)
				if err != nil {
					return err
				}

				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}

				return nil
			})
		},
	}
}

func newGetCommand(g *globalOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "get <local>,<remote>,<process> <servant> <property>",
		Short: "Read a property",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := value.ParseKind(kind)
			if err != nil {
				return err
			}

			return withSession(cmd, g, viewer.Properties, args[0], func(ctx context.Context, s *viewer.Session) error {
				id, err := s.ResolveID(ctx, args[1], args[2])
				if err != nil {
					return err
				}

				x, err := get(ctx, s, id, k)
				if err != nil {
					return err
				}

				return yaml.NewEncoder(cmd.OutOrStdout()).Encode(x)
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", value.Float64.String(), "kind of the property")

	return cmd
}

func newSetCommand(g *globalOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "set <local>,<remote>,<process> <servant> <property> <yaml-value>",
		Short: "Write a property",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := value.ParseKind(kind)
			if err != nil {
				return err
			}

			var native interface{}
			if err := yaml.Unmarshal([]byte(args[3]), &native); err != nil {
				return err
			}

			v, err := value.FromNative(k, native)
			if err != nil {
				return err
			}

			return withSession(cmd, g, viewer.Properties, args[0], func(ctx context.Context, s *viewer.Session) error {
				id, err := s.ResolveID(ctx, args[1], args[2])
				if err != nil {
					return err
				}

				ok, err := set(ctx, s, id, v)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatBool(ok))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", value.Float64.String(), "kind of the property")

	return cmd
}

func newWatchCommand(g *globalOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "watch <local>,<remote>,<process> <servant> <property>",
		Short: "Print changes to a property until interrupted",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := value.ParseKind(kind)
			if err != nil {
				return err
			}

			return withSession(cmd, g, viewer.Properties, args[0], func(ctx context.Context, s *viewer.Session) error {
				id, err := s.ResolveID(ctx, args[1], args[2])
				if err != nil {
					return err
				}

				if err := watch(s, id, k, func(x interface{}) {
					fmt.Fprintln(cmd.OutOrStdout(), x)
				}); err != nil {
					return err
				}

				return s.Loop().Run(ctx)
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", value.Float64.String(), "kind of the property")

	return cmd
}

func get(ctx context.Context, s *viewer.Session, id property.ID, k value.Kind) (interface{}, error) {
	switch k {
	case value.Float64:
		return s.GetFloat64(ctx, id)
	case value.Int32:
		return s.GetInt32(ctx, id)
	case value.Bool:
		return s.GetBool(ctx, id)
	case value.String:
		return s.GetString(ctx, id)
	case value.Float64Array:
		return s.GetFloat64Array(ctx, id)
	default:
		return s.GetInt32Array(ctx, id)
	}
}

func set(ctx context.Context, s *viewer.Session, id property.ID, v value.Value) (bool, error) {
	switch x := v.Native().(type) {
	case float64:
		return s.SetFloat64(ctx, id, x)
	case int32:
		return s.SetInt32(ctx, id, x)
	case bool:
		return s.SetBool(ctx, id, x)
	case string:
		return s.SetString(ctx, id, x)
	case []float64:
		return s.SetFloat64Array(ctx, id, x)
	default:
		return s.SetInt32Array(ctx, id, x.([]int32))
	}
}

func watch(s *viewer.Session, id property.ID, k value.Kind, fn func(interface{})) error {
	switch k {
	case value.Float64:
		return s.RegisterChangedFloat64(id, func(x float64) { fn(x) })
	case value.Int32:
		return s.RegisterChangedInt32(id, func(x int32) { fn(x) })
	case value.Bool:
		return s.RegisterChangedBool(id, func(x bool) { fn(x) })
	case value.String:
		return s.RegisterChangedString(id, func(x string) { fn(x) })
	case value.Float64Array:
		return s.RegisterChangedFloat64Array(id, func(x []float64) { fn(x) })
	default:
		return s.RegisterChangedInt32Array(id, func(x []int32) { fn(x) })
	}
}
