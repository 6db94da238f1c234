// Package api defines the gRPC services spoken between the viewer, the
// process manager and the workers it starts.
//
// The services are described by hand-written service descriptors and use a
// JSON codec, selected with the "json" content-subtype. Servers return errors
// that wrap the fault sentinels, and clients receive errors that wrap the same
// sentinels.
package api
