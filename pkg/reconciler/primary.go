package reconciler

import (
	"errors"
	"fmt"

	"github.com/cuemby/subnet-watchdog/pkg/types"
)

// ErrNoSuchNode is returned when a primary identifier matches no node descriptor
var ErrNoSuchNode = errors.New("no such node")

// ResolvePrimary returns the node whose NodeID, or failing that Name, equals id
func ResolvePrimary(nodes []*types.NodeDescriptor, id string) (*types.NodeDescriptor, error) {
	for _, n := range nodes {
		if n.NodeID != "" && n.NodeID == id {
			return n, nil
		}
	}
	for _, n := range nodes {
		if n.Name == id {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoSuchNode, id)
}
