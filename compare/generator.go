// generator.go derives test cases from a chain archive: it walks a fixed
// number of tipsets back from the archive head and emits lookups for every
// block, message and deal it encounters. Message-scoped lookups are
// deduplicated by CID; call replay aggregates per tipset and is not.
package compare

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-bitfield"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/builtin"
	"github.com/filecoin-project/go-state-types/dline"
	"github.com/filecoin-project/lotus/api"
	lotusminer "github.com/filecoin-project/lotus/chain/actors/builtin/miner"
	"github.com/filecoin-project/lotus/chain/types"
	"github.com/ipfs/go-cid"

	"github.com/fildiff/fildiff/chain"
	"github.com/fildiff/fildiff/rpc"
)

// maxDealsPerTipset caps how many market deals a single tipset contributes;
// calibnet tipsets can carry thousands and they all exercise the same code
// path.
const maxDealsPerTipset = 5

// SnapshotTests walks nTipsets tipsets back from the archive head and builds
// the dynamic catalogue. Any archive read failure aborts generation.
func SnapshotTests(ctx context.Context, archive chain.Archive, nTipsets int) ([]RpcTest, error) {
	head, err := archive.HeaviestTipSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading archive head: %w", err)
	}

	var tests []RpcTest
	tests = append(tests, chainTestsForTipSet(head)...)
	tests = append(tests, stateTests(head)...)
	tests = append(tests, ethTestsForTipSet(head)...)
	tests = append(tests,
		identity[*abi.StoragePower](rpc.NewRequest("Filecoin.StateVerifiedClientStatus", builtin.VerifiedRegistryActorAddr, head.Key())),
		identity[*abi.StoragePower](rpc.NewRequest("Filecoin.StateVerifiedClientStatus", builtin.DatacapActorAddr, head.Key())),
	)

	seen := make(map[cid.Cid]struct{})
	ts := head
	for i := 0; i < nTipsets; i++ {
		tipsetTests, err := testsForTipSet(ctx, archive, ts, head, seen)
		if err != nil {
			return nil, err
		}
		tests = append(tests, tipsetTests...)

		if ts.Height() == 0 {
			break
		}
		parent, err := archive.TipSet(ctx, ts.Parents())
		if err != nil {
			return nil, fmt.Errorf("loading parent of tipset %d: %w", ts.Height(), err)
		}
		ts = parent
	}
	return tests, nil
}

func testsForTipSet(ctx context.Context, archive chain.Archive, ts, head *types.TipSet, seen map[cid.Cid]struct{}) ([]RpcTest, error) {
	tests := []RpcTest{
		identity[types.BigInt](rpc.NewRequest("Filecoin.StateCirculatingSupply", ts.Key())),
		identity[api.CirculatingSupply](rpc.NewRequest("Filecoin.StateVMCirculatingSupplyInternal", ts.Key())),
		identity[[]api.Message](rpc.NewRequest("Filecoin.ChainGetMessagesInTipset", ts.Key())),
	}

	for _, blk := range ts.Blocks() {
		tests = append(tests,
			identity[*api.BlockMessages](rpc.NewRequest("Filecoin.ChainGetBlockMessages", blk.Cid())),
			identity[[]api.Message](rpc.NewRequest("Filecoin.ChainGetParentMessages", blk.Cid())),
			identity[[]*types.MessageReceipt](rpc.NewRequest("Filecoin.ChainGetParentReceipts", blk.Cid())),
		)
		tests = append(tests, minerTests(blk.Miner, ts)...)

		bls, secp, err := archive.BlockMessages(ctx, blk)
		if err != nil {
			return nil, fmt.Errorf("loading messages of block %s: %w", blk.Cid(), err)
		}
		// Replay every message of the block against the head state. The
		// replay is a per-tipset aggregate and is deliberately not deduped:
		// a message landing in several tipsets is replayed for each.
		for _, msg := range bls {
			tests = append(tests,
				identity[*api.InvocResult](rpc.NewRequest("Filecoin.StateCall", msg, head.Key())))
		}
		for _, smsg := range secp {
			tests = append(tests,
				identity[*api.InvocResult](rpc.NewRequest("Filecoin.StateCall", &smsg.Message, head.Key())))
		}

		for _, msg := range bls {
			c := msg.Cid()
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			tests = append(tests, messageTests(msg, ts)...)
		}
		for _, smsg := range secp {
			c := smsg.Cid()
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			tests = append(tests, messageTests(&smsg.Message, ts)...)
			tests = append(tests, signedMessageTests(smsg, ts)...)
		}
	}

	deals, err := archive.DealIDs(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("loading deals at tipset %d: %w", ts.Height(), err)
	}
	for i, id := range deals {
		if i == maxDealsPerTipset {
			break
		}
		tests = append(tests,
			identity[*api.MarketDeal](rpc.NewRequest("Filecoin.StateMarketStorageDeal", id, ts.Key())))
	}
	return tests, nil
}

// messageTests covers lookups keyed by a message or its sender, known to both
// nodes because the message is on chain inside the snapshot window.
func messageTests(msg *types.Message, ts *types.TipSet) []RpcTest {
	c := msg.Cid()
	return []RpcTest{
		identity[*types.Message](rpc.NewRequest("Filecoin.ChainGetMessage", c)),
		identity[address.Address](rpc.NewRequest("Filecoin.StateAccountKey", msg.From, ts.Key())),
		identity[address.Address](rpc.NewRequest("Filecoin.StateAccountKey", msg.From, types.EmptyTSK)),
		identity[address.Address](rpc.NewRequest("Filecoin.StateLookupID", msg.From, ts.Key())),
		// With zero lookback confidence the node answers from indexed state
		// rather than waiting, but a slow index still stalls; give it more
		// room than a plain lookup while keeping a bound.
		validateMessageLookup(rpc.NewRequest("Filecoin.StateWaitMsg", c, 0)).
			withTimeout(30 * time.Second),
		validateMessageLookup(rpc.NewRequest("Filecoin.StateSearchMsg", c)),
		validateMessageLookup(rpc.NewRequest("Filecoin.StateSearchMsgLimited", c, abi.ChainEpoch(800))),
		identity[[]cid.Cid](rpc.NewRequest("Filecoin.StateListMessages",
			&api.MessageMatch{From: msg.From, To: msg.To}, ts.Key(), ts.Height())),
	}
}

func signedMessageTests(smsg *types.SignedMessage, ts *types.TipSet) []RpcTest {
	msg := smsg.Message
	tests := []RpcTest{
		identity[uint64](rpc.NewRequest("Filecoin.MpoolGetNonce", msg.From)),
		identity[[]cid.Cid](rpc.NewRequest("Filecoin.StateListMessages",
			&api.MessageMatch{To: msg.To}, ts.Key(), ts.Height())),
		identity[[]cid.Cid](rpc.NewRequest("Filecoin.StateListMessages",
			&api.MessageMatch{From: msg.From}, ts.Key(), ts.Height())),
		identity[[]cid.Cid](rpc.NewRequest("Filecoin.StateListMessages",
			&api.MessageMatch{}, ts.Key(), ts.Height())),
	}
	if len(msg.Params) > 0 {
		tests = append(tests,
			basic[interface{}](rpc.NewRequest("Filecoin.StateDecodeParams", msg.To, msg.Method, msg.Params, ts.Key())).
				ignored("decoded params depend on actor-version pinning"))
	}
	return tests
}

// minerTests exercises the per-miner state surface for every block producer
// in the window.
func minerTests(miner address.Address, ts *types.TipSet) []RpcTest {
	return []RpcTest{
		identity[api.MinerInfo](rpc.NewRequest("Filecoin.StateMinerInfo", miner, ts.Key())),
		identity[[]*lotusminer.SectorOnChainInfo](rpc.NewRequest("Filecoin.StateMinerActiveSectors", miner, ts.Key())),
		identity[*api.MinerPower](rpc.NewRequest("Filecoin.StateMinerPower", miner, ts.Key())),
		identity[[]api.Deadline](rpc.NewRequest("Filecoin.StateMinerDeadlines", miner, ts.Key())),
		identity[*dline.Info](rpc.NewRequest("Filecoin.StateMinerProvingDeadline", miner, ts.Key())),
		identity[types.BigInt](rpc.NewRequest("Filecoin.StateMinerAvailableBalance", miner, ts.Key())),
		identity[bitfield.BitField](rpc.NewRequest("Filecoin.StateMinerFaults", miner, ts.Key())),
		identity[*api.MiningBaseInfo](rpc.NewRequest("Filecoin.MinerGetBaseInfo", miner, ts.Height(), ts.Key())),
		identity[bitfield.BitField](rpc.NewRequest("Filecoin.StateMinerRecoveries", miner, ts.Key())),
		identity[api.MinerSectors](rpc.NewRequest("Filecoin.StateMinerSectorCount", miner, ts.Key())),
	}
}

// validateMessageLookup compares message lookups while blanking the decoded
// return value: nodes legitimately differ on how far they decode receipts.
func validateMessageLookup(req rpc.Request) RpcTest {
	return validate[*api.MsgLookup](req, func(a, b *api.MsgLookup) bool {
		if a == nil || b == nil {
			return a == b
		}
		ca, cb := *a, *b
		ca.ReturnDec, cb.ReturnDec = nil, nil
		return reflect.DeepEqual(ca, cb)
	})
}
