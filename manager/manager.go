// Package manager implements the process manager: it starts, tracks and
// kills named application instances, and routes requests to the responders
// those instances register.
package manager

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/fault"
	"github.com/louteranas/nomad-viewer/internal/mlog"
	"github.com/louteranas/nomad-viewer/internal/x/syncx"
)

// Manager is the process manager. It implements api.ApplicationServer.
type Manager struct {
	Catalog *Catalog
	Runner  Runner
	Logger  logging.Logger

	starts syncx.MutexNamespace

	m         sync.Mutex
	nextID    int32
	instances map[int32]*instance
}

var _ api.ApplicationServer = (*Manager)(nil)

// instance is the manager's record of a launched application instance.
type instance struct {
	def    Definition
	id     int32
	state  api.State // guarded by Manager.m
	killed bool      // guarded by Manager.m
	proc   Process
	done   chan struct{}

	responders map[string]*responder // guarded by Manager.m
	ready      chan struct{}         // closed when a responder registers, guarded by Manager.m
}

func (i *instance) info() api.Instance {
	return api.Instance{
		Name:  i.def.Name,
		ID:    i.id,
		State: i.state,
	}
}

// Connect returns the instance of the named application that has not exited,
// if any. An instance that is being killed is still reported.
func (m *Manager) Connect(_ context.Context, req *api.ConnectRequest) (*api.ConnectResponse, error) {
	m.m.Lock()
	defer m.m.Unlock()

	res := &api.ConnectResponse{
		Instance: api.Instance{
			Name:  req.Name,
			ID:    api.NoInstance,
			State: api.Unknown,
		},
	}

	if i := m.currentInstance(req.Name); i != nil {
		res.Instance = i.info()
	}

	return res, nil
}

// ConnectAll returns every live instance whose name matches the pattern.
func (m *Manager) ConnectAll(_ context.Context, req *api.ConnectAllRequest) (*api.ConnectAllResponse, error) {
	if _, err := path.Match(req.Pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", req.Pattern, err)
	}

	m.m.Lock()
	defer m.m.Unlock()

	res := &api.ConnectAllResponse{}

	for _, i := range m.instances {
		if ok, _ := path.Match(req.Pattern, i.def.Name); ok && i.state.IsLive() {
			res.Instances = append(res.Instances, i.info())
		}
	}

	sort.Slice(res.Instances, func(a, b int) bool {
		return res.Instances[a].ID < res.Instances[b].ID
	})

	return res, nil
}

// Start launches a new instance of the named application.
//
// It fails with fault.ErrStartFailed if the application is unknown, can not
// be launched, or does not allow multiple instances and already has an
// instance that has not exited, including one that is being killed.
func (m *Manager) Start(ctx context.Context, req *api.StartRequest) (*api.StartResponse, error) {
	unlock, err := m.starts.Lock(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	def, ok := m.Catalog.Lookup(req.Name)
	if !ok {
		return nil, fault.New(fault.StartFailed, "no application named %q", req.Name)
	}

	m.m.Lock()
	if !def.Multiple {
		if i := m.currentInstance(def.Name); i != nil {
			m.m.Unlock()
			return nil, fault.New(fault.StartFailed, "%s already has instance %d (%s)", def.Name, i.id, i.state)
		}
	}

	m.nextID++
	i := &instance{
		def:   def,
		id:    m.nextID,
		state: api.Starting,
		done:  make(chan struct{}),
	}
	m.m.Unlock()

	proc, err := m.Runner.Run(Spec{
		Definition: def,
		InstanceID: i.id,
		Args:       append(append([]string{}, def.Args...), req.Args...),
	})
	if err != nil {
		mlog.LogLifecycle(m.Logger, def.Name, i.id, err, "unable to launch")
		return nil, fault.New(fault.StartFailed, "unable to launch %s: %s", def.Name, err)
	}

	m.m.Lock()
	i.proc = proc
	i.state = api.Running
	if m.instances == nil {
		m.instances = map[int32]*instance{}
	}
	m.instances[i.id] = i
	info := i.info()
	m.m.Unlock()

	mlog.LogLifecycle(m.Logger, def.Name, i.id, nil, "launched with %d argument(s)", len(req.Args))

	go m.supervise(i)

	return &api.StartResponse{Instance: info}, nil
}

// supervise waits for the instance to exit and records its final state.
func (m *Manager) supervise(i *instance) {
	err := i.proc.Wait()

	m.m.Lock()
	switch {
	case i.killed:
		i.state = api.Killed
	case err != nil:
		i.state = api.Failure
	default:
		i.state = api.Success
	}
	state := i.state
	close(i.done)
	m.m.Unlock()

	mlog.LogLifecycle(m.Logger, i.def.Name, i.id, err, "exited (%s)", state)
}

// Kill asks an instance to terminate.
func (m *Manager) Kill(_ context.Context, req *api.KillRequest) (*api.KillResponse, error) {
	m.m.Lock()
	i, err := m.lookup(req.InstanceID)
	if err != nil {
		m.m.Unlock()
		return nil, err
	}

	if i.state.IsTerminal() {
		m.m.Unlock()
		return &api.KillResponse{}, nil
	}

	prev := i.state
	i.killed = true
	i.state = api.Killing
	m.m.Unlock()

	if err := i.proc.Kill(); err != nil {
		m.m.Lock()
		if i.state == api.Killing {
			i.killed = false
			i.state = prev
		}
		m.m.Unlock()

		mlog.LogLifecycle(m.Logger, i.def.Name, i.id, err, "unable to kill")
		return nil, fmt.Errorf("unable to kill %s#%d: %w", i.def.Name, i.id, err)
	}

	mlog.LogLifecycle(m.Logger, i.def.Name, i.id, nil, "kill requested")

	return &api.KillResponse{}, nil
}

// State returns the current state of an instance.
func (m *Manager) State(_ context.Context, req *api.StateRequest) (*api.StateResponse, error) {
	m.m.Lock()
	defer m.m.Unlock()

	i, err := m.lookup(req.InstanceID)
	if err != nil {
		return nil, err
	}

	return &api.StateResponse{Instance: i.info()}, nil
}

// WaitFor blocks until an instance reaches a terminal state.
func (m *Manager) WaitFor(ctx context.Context, req *api.WaitForRequest) (*api.WaitForResponse, error) {
	m.m.Lock()
	i, err := m.lookup(req.InstanceID)
	m.m.Unlock()

	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-i.done:
	}

	m.m.Lock()
	defer m.m.Unlock()

	return &api.WaitForResponse{Instance: i.info()}, nil
}

// lookup returns the instance with the given ID. m.m must be held.
func (m *Manager) lookup(id int32) (*instance, error) {
	if i, ok := m.instances[id]; ok {
		return i, nil
	}

	return nil, fault.New(fault.NotFound, "no instance with ID %d", id)
}

// currentInstance returns the newest instance of the named application that
// has not exited. m.m must be held.
func (m *Manager) currentInstance(name string) *instance {
	var current *instance

	for _, i := range m.instances {
		if i.def.Name == name && !i.state.IsTerminal() {
			if current == nil || i.id > current.id {
				current = i
			}
		}
	}

	return current
}
