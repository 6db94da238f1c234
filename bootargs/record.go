// Package bootargs parses the comma-delimited init record that a host passes
// when it initializes a session.
package bootargs

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Config is the information carried by an init record.
//
// Which fields are populated depends on the record format, see
// ParsePositions(), ParseAccessor() and ParseCollision().
type Config struct {
	// LocalEndpoint is the endpoint of the process manager on this host.
	LocalEndpoint string

	// RemoteEndpoint is the endpoint of the remote simulation server.
	RemoteEndpoint string

	// ProcessName is the name under which the host identifies itself.
	ProcessName string

	// ModelDirectory always ends with a slash.
	ModelDirectory  string
	ModelFile       string
	LevelOfDetail   string
	CollisionMargin string

	// GUI is true if the collision worker is hosted by a GUI, in which case
	// it is attached to rather than started.
	GUI bool
}

// ParseError is returned when an init record is malformed.
type ParseError struct {
	Record string
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid init record %q: %s", e.Record, e.Reason)
	}

	return fmt.Sprintf("invalid init record %q: %s: %s", e.Record, e.Field, e.Reason)
}

var (
	accessorFields  = []string{"local endpoint", "remote endpoint", "process name"}
	collisionFields = []string{
		"local endpoint",
		"process name",
		"model directory",
		"model file",
		"level of detail",
		"collision margin",
		"gui",
	}
)

// ParseAccessor parses a "local,remote,process" record.
func ParseAccessor(s string) (Config, error) {
	f, err := split(s, accessorFields)
	if err != nil {
		return Config{}, err
	}

	c := Config{
		LocalEndpoint:  f[0],
		RemoteEndpoint: f[1],
		ProcessName:    f[2],
	}

	if err := checkEndpoint(s, accessorFields[0], c.LocalEndpoint); err != nil {
		return Config{}, err
	}

	if err := checkEndpoint(s, accessorFields[1], c.RemoteEndpoint); err != nil {
		return Config{}, err
	}

	return c, nil
}

// ParsePositions parses the record used by the position query bridge. It has
// the same format as the property accessor record.
func ParsePositions(s string) (Config, error) {
	return ParseAccessor(s)
}

// ParseCollision parses a "local,process,modelDir,file,lod,margin,gui"
// record.
func ParseCollision(s string) (Config, error) {
	f, err := split(s, collisionFields)
	if err != nil {
		return Config{}, err
	}

	c := Config{
		LocalEndpoint:   f[0],
		ProcessName:     f[1],
		ModelDirectory:  strings.TrimSuffix(f[2], "/") + "/",
		ModelFile:       f[3],
		LevelOfDetail:   f[4],
		CollisionMargin: f[5],
	}

	if err := checkEndpoint(s, collisionFields[0], c.LocalEndpoint); err != nil {
		return Config{}, err
	}

	if _, err := strconv.Atoi(c.LevelOfDetail); err != nil {
		return Config{}, &ParseError{s, collisionFields[4], "not an integer"}
	}

	if _, err := strconv.ParseFloat(c.CollisionMargin, 64); err != nil {
		return Config{}, &ParseError{s, collisionFields[5], "not a number"}
	}

	c.GUI, err = strconv.ParseBool(f[6])
	if err != nil {
		return Config{}, &ParseError{s, collisionFields[6], "not a boolean"}
	}

	return c, nil
}

// DialTarget returns the gRPC dial target for a "tcp://host:port" endpoint.
func DialTarget(endpoint string) (string, error) {
	addr, ok := strings.CutPrefix(endpoint, "tcp://")
	if !ok {
		return "", fmt.Errorf("endpoint %q does not use the tcp:// scheme", endpoint)
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("endpoint %q: %w", endpoint, err)
	}

	if host == "" || port == "" {
		return "", fmt.Errorf("endpoint %q must have both a host and a port", endpoint)
	}

	return addr, nil
}

func split(s string, names []string) ([]string, error) {
	fields := strings.Split(s, ",")

	if len(fields) != len(names) {
		return nil, &ParseError{
			Record: s,
			Reason: fmt.Sprintf("expected %d fields (%s), got %d", len(names), strings.Join(names, ", "), len(fields)),
		}
	}

	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
		if fields[i] == "" {
			return nil, &ParseError{s, names[i], "must not be empty"}
		}
	}

	return fields, nil
}

func checkEndpoint(record, field, endpoint string) error {
	if _, err := DialTarget(endpoint); err != nil {
		return &ParseError{record, field, err.Error()}
	}

	return nil
}
