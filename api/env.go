package api

// Environment variables set by the process manager when it launches a worker
// executable.
const (
	// ManagerEndpointEnv holds the dial target of the process manager that
	// launched the worker.
	ManagerEndpointEnv = "NOMAD_MANAGER_ENDPOINT"

	// InstanceIDEnv holds the ID the process manager assigned to the worker.
	InstanceIDEnv = "NOMAD_INSTANCE_ID"
)
