package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/louteranas/nomad-viewer/api"
)

// Spec describes an instance that is to be launched.
type Spec struct {
	Definition Definition
	InstanceID int32

	// Args is the full argument list, the definition's own arguments
	// followed by those given to Start.
	Args []string
}

// Process is a running application instance.
type Process interface {
	// Wait blocks until the process exits and returns its exit error.
	Wait() error

	// Kill asks the process to terminate. It does not wait for it to exit.
	Kill() error
}

// Runner launches application instances.
type Runner interface {
	Run(Spec) (Process, error)
}

// RunnerFunc is an adaptor to use a function as a Runner.
type RunnerFunc func(Spec) (Process, error)

// Run calls fn(s).
func (fn RunnerFunc) Run(s Spec) (Process, error) {
	return fn(s)
}

// ErrNoExecutable is returned by ExecRunner when the definition does not
// name an executable.
var ErrNoExecutable = errors.New("no executable")

// ExecRunner is a Runner that launches each instance as an operating system
// process.
//
// The process inherits the manager's environment, with the manager endpoint
// and its own instance ID added.
type ExecRunner struct {
	// ManagerEndpoint is the dial target workers use to reach the manager.
	ManagerEndpoint string

	// Stdout and Stderr receive the output of launched processes. If they are
	// nil the output is discarded.
	Stdout, Stderr io.Writer
}

// Run starts the executable of s.Definition.
func (r *ExecRunner) Run(s Spec) (Process, error) {
	if s.Definition.Executable == "" {
		return nil, fmt.Errorf("%w for %s", ErrNoExecutable, s.Definition.Name)
	}

	cmd := exec.Command(s.Definition.Executable, s.Args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.Env = append(
		os.Environ(),
		api.ManagerEndpointEnv+"="+r.ManagerEndpoint,
		api.InstanceIDEnv+"="+strconv.Itoa(int(s.InstanceID)),
	)

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return execProcess{cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p execProcess) Kill() error {
	return p.cmd.Process.Kill()
}

// Go returns a Process that runs fn on a new goroutine.
//
// Kill cancels the context passed to fn. A fn that returns context.Canceled
// after being killed is considered to have been killed rather than failed.
func Go(fn func(ctx context.Context) error) Process {
	ctx, cancel := context.WithCancel(context.Background())

	p := &goProcess{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		defer cancel()

		err := fn(ctx)
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			err = nil
		}

		p.err = err
	}()

	return p
}

type goProcess struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (p *goProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *goProcess) Kill() error {
	p.cancel()
	return nil
}
