package source

import (
	"context"

	"github.com/cuemby/subnet-watchdog/pkg/types"
)

// Source returns every subnet binding currently stored in the backing store.
// Rows come back in the store's order; deduplication is left to
// types.NewDesiredState so the first occurrence wins.
type Source interface {
	FetchAll(ctx context.Context) ([]types.SubnetBinding, error)
}

// Fetch reads all bindings from src and builds the desired state
func Fetch(ctx context.Context, src Source) (types.DesiredState, error) {
	bindings, err := src.FetchAll(ctx)
	if err != nil {
		return types.DesiredState{}, err
	}
	return types.NewDesiredState(bindings), nil
}
