// Package chain gives the test generator read access to a chain archive.
// The archive is a capability, not an engine: it answers tipset, message and
// market-state lookups and nothing else. The production implementation is a
// CAR snapshot (snapshot.go); tests substitute in-memory fakes.
package chain

import (
	"context"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/lotus/chain/types"
)

// Archive is the read-only view of a chain the dynamic test generator walks.
type Archive interface {
	// HeaviestTipSet returns the archive's head.
	HeaviestTipSet(ctx context.Context) (*types.TipSet, error)

	// TipSet loads the tipset with the given key; used for ancestor
	// traversal via TipSet(ts.Parents()).
	TipSet(ctx context.Context, key types.TipSetKey) (*types.TipSet, error)

	// BlockMessages returns a block's messages split by signature scheme.
	BlockMessages(ctx context.Context, h *types.BlockHeader) (bls []*types.Message, secp []*types.SignedMessage, err error)

	// DealIDs lists the storage-market deal proposals present in chain
	// state at the given tipset.
	DealIDs(ctx context.Context, ts *types.TipSet) ([]abi.DealID, error)
}
