package viewer

import (
	"fmt"

	"github.com/louteranas/nomad-viewer/bootargs"
)

// Variant selects which bridge a session provides.
type Variant int

const (
	// Positions is the position query bridge. It starts an n3dpositions
	// worker bound to the remote simulation and sends it requests.
	Positions Variant = iota

	// Collision is the collision detection bridge. It starts an
	// n3dcollisions worker, or attaches to n3dcollisionsgui when the worker
	// is hosted by a GUI.
	Collision

	// Properties is the property accessor bridge. It has no worker.
	Properties
)

func (v Variant) String() string {
	switch v {
	case Positions:
		return "positions"
	case Collision:
		return "collision"
	case Properties:
		return "properties"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// The names of the worker applications and the operations they serve.
const (
	PositionsWorker    = "n3dpositions"
	PositionsOperation = "get_positions"

	CollisionWorker    = "n3dcollisions"
	CollisionGUIWorker = "n3dcollisionsgui"
	CollisionOperation = "update_positions"
)

// worker describes the remote worker a session drives.
type worker struct {
	Name      string
	Args      []string
	Operation string

	// Attach is true if the worker is managed by someone else and must only
	// be connected to.
	Attach bool
}

// parse parses the init record of the variant.
func (v Variant) parse(record string) (bootargs.Config, error) {
	switch v {
	case Positions:
		return bootargs.ParsePositions(record)
	case Collision:
		return bootargs.ParseCollision(record)
	case Properties:
		return bootargs.ParseAccessor(record)
	default:
		return bootargs.Config{}, fmt.Errorf("unsupported session variant: %s", v)
	}
}

// hasRemote returns true if the variant connects to the remote simulation
// server.
func (v Variant) hasRemote() bool {
	return v != Collision
}

// worker returns the worker the variant drives, if any.
func (v Variant) worker(c bootargs.Config) (worker, bool) {
	switch v {
	case Positions:
		return worker{
			Name:      PositionsWorker,
			Args:      []string{c.RemoteEndpoint},
			Operation: PositionsOperation,
		}, true

	case Collision:
		if c.GUI {
			return worker{
				Name:      CollisionGUIWorker,
				Operation: CollisionOperation,
				Attach:    true,
			}, true
		}

		return worker{
			Name: CollisionWorker,
			Args: []string{
				c.ModelDirectory,
				c.ModelFile,
				c.LevelOfDetail,
				c.CollisionMargin,
			},
			Operation: CollisionOperation,
		}, true

	default:
		return worker{}, false
	}
}
