// Package application manages the lifecycle of named remote worker
// applications and the request channels used to talk to them.
package application

import (
	"context"
	"fmt"

	"github.com/louteranas/nomad-viewer/api"
)

// State is the lifecycle state of an application instance.
type State = api.State

// The states of an application instance.
const (
	Unknown  = api.Unknown
	Starting = api.Starting
	Running  = api.Running
	Killing  = api.Killing
	Success  = api.Success
	Failure  = api.Failure
	Killed   = api.Killed
)

// NoInstance is the ID of an Instance that does not exist.
const NoInstance = api.NoInstance

// Instance is a handle to an instance of a named application, as last
// reported by the process manager.
type Instance struct {
	Name  string
	ID    int32
	State State

	client api.ApplicationClient
}

func newInstance(c api.ApplicationClient, i api.Instance) *Instance {
	return &Instance{
		Name:   i.Name,
		ID:     i.ID,
		State:  i.State,
		client: c,
	}
}

// Exists returns true if the instance was known to the process manager when
// the handle was last refreshed.
func (i *Instance) Exists() bool {
	return i.ID != NoInstance
}

func (i *Instance) String() string {
	if !i.Exists() {
		return i.Name
	}

	return fmt.Sprintf("%s#%d", i.Name, i.ID)
}

// Refresh updates the state of the instance.
func (i *Instance) Refresh(ctx context.Context) error {
	if !i.Exists() {
		return nil
	}

	res, err := i.client.State(ctx, &api.StateRequest{InstanceID: i.ID})
	if err != nil {
		return err
	}

	i.State = res.Instance.State
	return nil
}

// Kill asks the process manager to terminate the instance.
//
// It does not wait for the instance to exit, see WaitFor().
func (i *Instance) Kill(ctx context.Context) error {
	if !i.Exists() {
		return fmt.Errorf("can not kill %s, it does not exist", i.Name)
	}

	_, err := i.client.Kill(ctx, &api.KillRequest{InstanceID: i.ID})
	return err
}

// WaitFor blocks until the instance reaches a terminal state, or ctx is
// canceled.
//
// The wait happens on the process manager, the caller does not poll.
func (i *Instance) WaitFor(ctx context.Context) (State, error) {
	if !i.Exists() {
		return Unknown, fmt.Errorf("can not wait for %s, it does not exist", i.Name)
	}

	res, err := i.client.WaitFor(ctx, &api.WaitForRequest{InstanceID: i.ID})
	if err != nil {
		return i.State, err
	}

	i.State = res.Instance.State
	return i.State, nil
}

// ListInstances returns handles for every live instance whose application
// name matches the path.Match pattern, in ascending ID order.
func ListInstances(
	ctx context.Context,
	c api.ApplicationClient,
	pattern string,
) ([]*Instance, error) {
	res, err := c.ConnectAll(ctx, &api.ConnectAllRequest{Pattern: pattern})
	if err != nil {
		return nil, err
	}

	instances := make([]*Instance, len(res.Instances))
	for n, i := range res.Instances {
		instances[n] = newInstance(c, i)
	}

	return instances, nil
}
