// snapshot.go implements Archive on top of chain snapshot files in CAR
// format (plain .car or zstd-compressed .car.zst). All blocks are loaded
// into memory keyed by CID; conformance runs use pruned snapshots, so the
// resident set stays manageable.
package chain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/filecoin-project/go-amt-ipld/v4"
	"github.com/filecoin-project/go-state-types/abi"
	markettypes "github.com/filecoin-project/go-state-types/builtin/v9/market"
	"github.com/filecoin-project/lotus/chain/actors/adt"
	"github.com/filecoin-project/lotus/chain/actors/builtin/market"
	"github.com/filecoin-project/lotus/chain/state"
	"github.com/filecoin-project/lotus/chain/types"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/ipld/go-car"
	"github.com/klauspost/compress/zstd"
	cbg "github.com/whyrusleeping/cbor-gen"
)

// Snapshot is an in-memory, read-only chain archive backed by one or more
// CAR files. The roots of each file are expected to form a head tipset.
type Snapshot struct {
	bs    *memBlockstore
	cst   *cbor.BasicIpldStore
	heads [][]cid.Cid
}

// OpenSnapshot reads every given CAR file into memory. Any read or decode
// failure aborts the whole load.
func OpenSnapshot(ctx context.Context, paths []string) (*Snapshot, error) {
	s := &Snapshot{bs: newMemBlockstore()}
	s.cst = cbor.NewCborStore(s.bs)
	for _, path := range paths {
		if err := s.loadFile(ctx, path); err != nil {
			return nil, fmt.Errorf("loading snapshot %s: %w", path, err)
		}
	}
	return s, nil
}

func (s *Snapshot) loadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	cr, err := car.NewCarReader(r)
	if err != nil {
		return fmt.Errorf("reading CAR header: %w", err)
	}
	s.heads = append(s.heads, cr.Header.Roots)
	for {
		blk, err := cr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading CAR block: %w", err)
		}
		if err := s.bs.Put(ctx, blk); err != nil {
			return err
		}
	}
}

// HeaviestTipSet resolves the head tipset of each loaded file and returns
// the highest one.
func (s *Snapshot) HeaviestTipSet(ctx context.Context) (*types.TipSet, error) {
	if len(s.heads) == 0 {
		return nil, fmt.Errorf("no snapshot files loaded")
	}
	var heaviest *types.TipSet
	for _, roots := range s.heads {
		ts, err := s.TipSet(ctx, types.NewTipSetKey(roots...))
		if err != nil {
			return nil, fmt.Errorf("resolving snapshot head: %w", err)
		}
		if heaviest == nil || ts.Height() > heaviest.Height() {
			heaviest = ts
		}
	}
	return heaviest, nil
}

// TipSet loads and assembles the block headers named by the key.
func (s *Snapshot) TipSet(ctx context.Context, key types.TipSetKey) (*types.TipSet, error) {
	cids := key.Cids()
	if len(cids) == 0 {
		return nil, fmt.Errorf("empty tipset key")
	}
	headers := make([]*types.BlockHeader, 0, len(cids))
	for _, c := range cids {
		blk, err := s.bs.Get(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("block header %s: %w", c, err)
		}
		h, err := types.DecodeBlock(blk.RawData())
		if err != nil {
			return nil, fmt.Errorf("decoding block header %s: %w", c, err)
		}
		headers = append(headers, h)
	}
	return types.NewTipSet(headers)
}

// BlockMessages reads the block's message meta object and resolves both
// message AMTs.
func (s *Snapshot) BlockMessages(ctx context.Context, h *types.BlockHeader) ([]*types.Message, []*types.SignedMessage, error) {
	var meta types.MsgMeta
	if err := s.cst.Get(ctx, h.Messages, &meta); err != nil {
		return nil, nil, fmt.Errorf("message meta %s: %w", h.Messages, err)
	}

	blsCids, err := s.readMsgCids(ctx, meta.BlsMessages)
	if err != nil {
		return nil, nil, fmt.Errorf("bls message index: %w", err)
	}
	secpCids, err := s.readMsgCids(ctx, meta.SecpkMessages)
	if err != nil {
		return nil, nil, fmt.Errorf("secp message index: %w", err)
	}

	bls := make([]*types.Message, 0, len(blsCids))
	for _, c := range blsCids {
		blk, err := s.bs.Get(ctx, c)
		if err != nil {
			return nil, nil, fmt.Errorf("bls message %s: %w", c, err)
		}
		m, err := types.DecodeMessage(blk.RawData())
		if err != nil {
			return nil, nil, fmt.Errorf("decoding bls message %s: %w", c, err)
		}
		bls = append(bls, m)
	}

	secp := make([]*types.SignedMessage, 0, len(secpCids))
	for _, c := range secpCids {
		blk, err := s.bs.Get(ctx, c)
		if err != nil {
			return nil, nil, fmt.Errorf("secp message %s: %w", c, err)
		}
		m, err := types.DecodeSignedMessage(blk.RawData())
		if err != nil {
			return nil, nil, fmt.Errorf("decoding secp message %s: %w", c, err)
		}
		secp = append(secp, m)
	}
	return bls, secp, nil
}

func (s *Snapshot) readMsgCids(ctx context.Context, root cid.Cid) ([]cid.Cid, error) {
	arr, err := amt.LoadAMT(ctx, s.cst, root)
	if err != nil {
		return nil, err
	}
	var cids []cid.Cid
	err = arr.ForEach(ctx, func(_ uint64, d *cbg.Deferred) error {
		var c cbg.CborCid
		if err := c.UnmarshalCBOR(bytes.NewReader(d.Raw)); err != nil {
			return err
		}
		cids = append(cids, cid.Cid(c))
		return nil
	})
	return cids, err
}

// DealIDs walks the market actor's deal-proposal collection at the tipset.
func (s *Snapshot) DealIDs(ctx context.Context, ts *types.TipSet) ([]abi.DealID, error) {
	st, err := state.LoadStateTree(s.cst, ts.ParentState())
	if err != nil {
		return nil, fmt.Errorf("loading state tree at %s: %w", ts.Key(), err)
	}
	act, err := st.GetActor(market.Address)
	if err != nil {
		return nil, fmt.Errorf("market actor: %w", err)
	}
	mst, err := market.Load(adt.WrapStore(ctx, s.cst), act)
	if err != nil {
		return nil, fmt.Errorf("market state: %w", err)
	}
	props, err := mst.Proposals()
	if err != nil {
		return nil, fmt.Errorf("deal proposals: %w", err)
	}
	var ids []abi.DealID
	err = props.ForEach(func(id abi.DealID, _ markettypes.DealProposal) error {
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

// memBlockstore is a map-backed IpldBlockstore.
type memBlockstore struct {
	blocks map[cid.Cid][]byte
}

func newMemBlockstore() *memBlockstore {
	return &memBlockstore{blocks: make(map[cid.Cid][]byte)}
}

func (m *memBlockstore) Get(_ context.Context, c cid.Cid) (blocks.Block, error) {
	data, ok := m.blocks[c]
	if !ok {
		return nil, fmt.Errorf("block %s not found in snapshot", c)
	}
	return blocks.NewBlockWithCid(data, c)
}

func (m *memBlockstore) Put(_ context.Context, blk blocks.Block) error {
	m.blocks[blk.Cid()] = blk.RawData()
	return nil
}
