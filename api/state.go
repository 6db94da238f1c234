package api

import "fmt"

// State is the lifecycle state of an application instance, as reported by
// the process manager.
type State string

const (
	// Unknown means the state of the instance could not be determined.
	Unknown State = "UNKNOWN"

	// Starting means the instance has been launched but is not running yet.
	Starting State = "STARTING"

	// Running means the instance is running.
	Running State = "RUNNING"

	// Killing means a kill has been requested and the instance has not yet
	// exited.
	Killing State = "KILLING"

	// Success means the instance exited without error.
	Success State = "SUCCESS"

	// Failure means the instance exited with an error.
	Failure State = "FAILURE"

	// Killed means the instance exited because it was killed.
	Killed State = "KILLED"
)

// IsTerminal returns true if s is a state that an instance never leaves.
func (s State) IsTerminal() bool {
	switch s {
	case Success, Failure, Killed:
		return true
	default:
		return false
	}
}

// IsLive returns true if an instance in state s can still serve requests.
func (s State) IsLive() bool {
	return s == Starting || s == Running
}

// Validate returns an error if s is not a recognized state.
func (s State) Validate() error {
	switch s {
	case Unknown, Starting, Running, Killing, Success, Failure, Killed:
		return nil
	default:
		return fmt.Errorf("unrecognized application state: %q", string(s))
	}
}

// NoInstance is the instance ID reported when no instance exists.
const NoInstance int32 = -1

// Instance describes an application instance known to the process manager.
type Instance struct {
	Name  string `json:"name"`
	ID    int32  `json:"id"`
	State State  `json:"state"`
}

// Exists returns true if the instance is known to the process manager.
func (i Instance) Exists() bool {
	return i.ID != NoInstance
}
