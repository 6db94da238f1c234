// Package main is a position query worker. It is launched by the process
// manager and answers the get_positions operation on behalf of a viewer.
//
// Its single argument is the remote simulation endpoint, optionally followed
// by a comma and the ID of the simulation instance to follow.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dogmatiq/dodeca/config"
	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/bootargs"
	"github.com/louteranas/nomad-viewer/internal/x/loggingx"
	"github.com/louteranas/nomad-viewer/responder"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: n3dpositions <remote-endpoint>[,<simulation-id>]")
	}

	remote, simulation, _ := strings.Cut(args[0], ",")

	env, err := responder.FromEnvironment()
	if err != nil {
		return err
	}

	z, err := loggingx.NewZap(config.AsStringDefault(config.Environment(), "NOMAD_DEBUG", "") != "")
	if err != nil {
		return err
	}
	defer z.Sync() // nolint:errcheck

	logger := loggingx.WithPrefix(loggingx.Zap(z), "[n3dpositions#%d] ", env.InstanceID)

	target, err := bootargs.DialTarget(env.ManagerEndpoint)
	if err != nil {
		// The manager passes its listen address, which is not always a
		// tcp:// endpoint.
		target = env.ManagerEndpoint
	}

	conn, err := grpc.DialContext(
		ctx,
		target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return err
	}
	defer conn.Close()

	h := &handler{
		Remote:     remote,
		Simulation: simulation,
	}

	return responder.Serve(
		ctx,
		api.NewApplicationClient(conn),
		env.InstanceID,
		"get_positions",
		h,
		logger,
	)
}
