// suites.go holds the hand-curated, fixture-driven test suites: one pure
// builder per API category. Fixtures are compiled in — a calibnet address
// funded by the faucet whose key has been discarded, a precomputed secp
// signature over a fixed message, the calibnet bootstrap peer list — so
// every builder is deterministic and side-effect free.
package compare

import (
	_ "embed"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/filecoin-project/lotus/api"
	lotusminer "github.com/filecoin-project/lotus/chain/actors/builtin/miner"
	"github.com/filecoin-project/lotus/chain/types"
	"github.com/filecoin-project/lotus/chain/types/ethtypes"
	"github.com/holiman/uint256"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/fildiff/fildiff/rpc"
)

//go:embed bootstrap_calibnet.txt
var calibnetBootstrap string

var (
	systemActorAddr = idAddr(0)
	// A multisig that exists on calibnet and never gets spent.
	msigTestAddr = idAddr(18101)
)

func mustAddr(s string) address.Address {
	a, err := address.NewFromString(s)
	if err != nil {
		panic("bad fixture address " + s + ": " + err.Error())
	}
	return a
}

func idAddr(id uint64) address.Address {
	a, err := address.NewIDAddress(id)
	if err != nil {
		panic(err)
	}
	return a
}

func mustEthAddr(s string) ethtypes.EthAddress {
	a, err := ethtypes.ParseEthAddress(s)
	if err != nil {
		panic("bad fixture eth address " + s + ": " + err.Error())
	}
	return a
}

// StaticTests returns every hand-curated suite, concatenated.
func StaticTests() []RpcTest {
	var tests []RpcTest
	tests = append(tests, commonTests()...)
	tests = append(tests, authTests()...)
	tests = append(tests, beaconTests()...)
	tests = append(tests, chainTests()...)
	tests = append(tests, mpoolTests()...)
	tests = append(tests, netTests()...)
	tests = append(tests, nodeTests()...)
	tests = append(tests, walletTests()...)
	tests = append(tests, ethTests()...)
	return tests
}

func commonTests() []RpcTest {
	return []RpcTest{
		basic[api.APIVersion](rpc.NewRequest("Filecoin.Version")),
		basic[time.Time](rpc.NewRequest("Filecoin.StartTime")),
		basic[map[string]interface{}](rpc.NewRequest("Filecoin.Discover")).
			ignored("not implemented on every candidate"),
		basic[string](rpc.NewRequest("Filecoin.Session")),
	}
}

// Auth methods need write access on the reference node, so there is nothing
// safe to compare yet.
func authTests() []RpcTest {
	return nil
}

func beaconTests() []RpcTest {
	return []RpcTest{
		identity[*types.BeaconEntry](rpc.NewRequest("Filecoin.BeaconGetEntry", abi.ChainEpoch(10101))),
	}
}

func chainTests() []RpcTest {
	return []RpcTest{
		// Two live nodes are rarely on the exact same head; a small height
		// drift is fine.
		validate[*types.TipSet](rpc.NewRequest("Filecoin.ChainHead"), func(a, b *types.TipSet) bool {
			if a == nil || b == nil {
				return false
			}
			d := int64(a.Height() - b.Height())
			if d < 0 {
				d = -d
			}
			return d < 10
		}),
		identity[*types.TipSet](rpc.NewRequest("Filecoin.ChainGetGenesis")),
	}
}

// chainTestsForTipSet anchors block and tipset identity lookups at a tipset
// taken from the snapshot, so both nodes are asked about data they must
// already have.
func chainTestsForTipSet(ts *types.TipSet) []RpcTest {
	blk := ts.MinTicketBlock()
	return []RpcTest{
		identity[*types.BlockHeader](rpc.NewRequest("Filecoin.ChainGetBlock", blk.Cid())),
		identity[*types.TipSet](rpc.NewRequest("Filecoin.ChainGetTipSetByHeight", ts.Height(), types.EmptyTSK)),
		identity[*types.TipSet](rpc.NewRequest("Filecoin.ChainGetTipSetAfterHeight", ts.Height(), types.EmptyTSK)),
		identity[*types.TipSet](rpc.NewRequest("Filecoin.ChainGetTipSet", ts.Key())),
		identity[[]byte](rpc.NewRequest("Filecoin.ChainReadObj", blk.Cid())),
		identity[bool](rpc.NewRequest("Filecoin.ChainHasObj", blk.Cid())),
		identity[[]*api.HeadChange](rpc.NewRequest("Filecoin.ChainGetPath", ts.Key(), ts.Parents())),
	}
}

func mpoolTests() []RpcTest {
	return []RpcTest{
		basic[[]*types.SignedMessage](rpc.NewRequest("Filecoin.MpoolPending", types.EmptyTSK)),
	}
}

// netInfoResult is the candidate-only Filecoin.NetInfo response shape.
type netInfoResult struct {
	NumPeers       int    `json:"num_peers"`
	NumConnections uint64 `json:"num_connections"`
	TotalIn        uint64 `json:"total_in"`
	TotalOut       uint64 `json:"total_out"`
}

// bootstrapPeerID extracts the peer ID of the last bootstrap entry, matching
// the convention that multiaddrs end in /p2p/<peer-id>.
func bootstrapPeerID() string {
	lines := strings.Split(strings.TrimSpace(calibnetBootstrap), "\n")
	last := lines[len(lines)-1]
	i := strings.LastIndex(last, "/")
	if i < 0 || i == len(last)-1 {
		panic("bootstrap fixture entry is not a /p2p/ multiaddr: " + last)
	}
	return last[i+1:]
}

func netTests() []RpcTest {
	peerID := bootstrapPeerID()
	return []RpcTest{
		basic[peer.AddrInfo](rpc.NewRequest("Filecoin.NetAddrsListen")),
		basic[[]peer.AddrInfo](rpc.NewRequest("Filecoin.NetPeers")),
		identity[bool](rpc.NewRequest("Filecoin.NetListening")),
		basic[string](rpc.NewRequest("Filecoin.NetAgentVersion", peerID)),
		basic[netInfoResult](rpc.NewRequest("Filecoin.NetInfo")).
			ignored("not implemented by the reference node"),
		basic[api.NatInfo](rpc.NewRequest("Filecoin.NetAutoNatStatus")),
		identity[string](rpc.NewRequest("Filecoin.NetVersion")),
	}
}

func nodeTests() []RpcTest {
	return []RpcTest{
		basic[api.NodeStatus](rpc.NewRequest("Filecoin.NodeStatus", true)).
			ignored("v1 API method, not served on /rpc/v0"),
	}
}

func walletTests() []RpcTest {
	// This address was funded by the calibnet faucet and its private key
	// discarded, so the balance is non-zero and stable.
	knownWallet := mustAddr("t1c4dkec3qhrnrsa4mccy7qntkyq2hhsma4sq7lui")
	// "Hello world!" signed with the above address.
	sigBytes, err := hex.DecodeString("44364ca78d85e53dda5ac6f719a4f2de3261c17f58558ab7730f80c478e6d43775244e7d6855afad82e4a1fd6449490acfa88e3fcfe7c1fe96ed549c100900b400")
	if err != nil {
		panic(err)
	}
	sig := crypto.Signature{Type: crypto.SigTypeSecp256k1, Data: sigBytes}

	return []RpcTest{
		identity[types.BigInt](rpc.NewRequest("Filecoin.WalletBalance", knownWallet)),
		identity[address.Address](rpc.NewRequest("Filecoin.WalletValidateAddress", knownWallet.String())),
		identity[bool](rpc.NewRequest("Filecoin.WalletVerify", knownWallet, []byte("Hello world!"), &sig)),
	}
}

func ethTests() []RpcTest {
	ethAddr := mustEthAddr("0xff38c072f286e3b20b3954ca9f99c05fbecc64aa")
	return []RpcTest{
		identity[[]ethtypes.EthAddress](rpc.NewRequest("Filecoin.EthAccounts")),
		validate[string](rpc.NewRequest("Filecoin.EthBlockNumber"), func(a, b string) bool {
			pa, errA := uint256.FromHex(a)
			pb, errB := uint256.FromHex(b)
			if errA != nil || errB != nil {
				return false
			}
			diff := new(uint256.Int)
			if pa.Lt(pb) {
				diff.Sub(pb, pa)
			} else {
				diff.Sub(pa, pb)
			}
			return diff.LtUint64(10)
		}),
		identity[ethtypes.EthUint64](rpc.NewRequest("Filecoin.EthChainId")),
		// Gas price moves between the two calls; shape check only.
		basic[ethtypes.EthBigInt](rpc.NewRequest("Filecoin.EthGasPrice")),
		basic[ethtypes.EthSyncingResult](rpc.NewRequest("Filecoin.EthSyncing")),
		identity[ethtypes.EthBigInt](rpc.NewRequest("Filecoin.EthGetBalance", ethAddr, "latest")),
		identity[ethtypes.EthBigInt](rpc.NewRequest("Filecoin.EthGetBalance", ethAddr, "pending")),
	}
}

// ethTestsForTipSet pins balance lookups of two fixed addresses — one
// delegated, one an ID-masked actor — to the tipset's height.
func ethTestsForTipSet(ts *types.TipSet) []RpcTest {
	height := ethtypes.EthUint64(ts.Height())
	return []RpcTest{
		identity[ethtypes.EthBigInt](rpc.NewRequest("Filecoin.EthGetBalance",
			mustEthAddr("0xff38c072f286e3b20b3954ca9f99c05fbecc64aa"), height)),
		identity[ethtypes.EthBigInt](rpc.NewRequest("Filecoin.EthGetBalance",
			mustEthAddr("0xff000000000000000000000000000000000003ec"), height)),
	}
}

// stateTests anchors actor and randomness lookups at a snapshot tipset.
// The system actor is used because arbitrary addresses recovered from blocks
// mostly resolve to empty state and discriminate nothing.
func stateTests(ts *types.TipSet) []RpcTest {
	blk := ts.MinTicketBlock()
	return []RpcTest{
		identity[string](rpc.NewRequest("Filecoin.StateNetworkName")),
		identity[*types.Actor](rpc.NewRequest("Filecoin.StateGetActor", systemActorAddr, ts.Key())),
		identity[abi.Randomness](rpc.NewRequest("Filecoin.StateGetRandomnessFromTickets",
			crypto.DomainSeparationTag_ElectionProofProduction, ts.Height(), []byte("dead beef"), ts.Key())),
		identity[abi.Randomness](rpc.NewRequest("Filecoin.StateGetRandomnessFromBeacon",
			crypto.DomainSeparationTag_ElectionProofProduction, ts.Height(), []byte("dead beef"), ts.Key())),
		identity[*api.ActorState](rpc.NewRequest("Filecoin.StateReadState", systemActorAddr, ts.Key())),
		identity[*api.ActorState](rpc.NewRequest("Filecoin.StateReadState", systemActorAddr, types.EmptyTSK)),
		identity[[]*lotusminer.SectorOnChainInfo](rpc.NewRequest("Filecoin.StateMinerActiveSectors", blk.Miner, ts.Key())),
		identity[address.Address](rpc.NewRequest("Filecoin.StateLookupID", blk.Miner, ts.Key())),
		// This one resolves to itself: ID addresses are their own ID.
		identity[address.Address](rpc.NewRequest("Filecoin.StateLookupID", idAddr(0xdeadbeef), ts.Key())),
		identity[network.Version](rpc.NewRequest("Filecoin.StateNetworkVersion", ts.Key())),
		identity[[]address.Address](rpc.NewRequest("Filecoin.StateListMiners", ts.Key())),
		identity[*lotusminer.SectorOnChainInfo](rpc.NewRequest("Filecoin.StateSectorGetInfo", blk.Miner, abi.SectorNumber(101), ts.Key())),
		identity[types.BigInt](rpc.NewRequest("Filecoin.MsigGetAvailableBalance", msigTestAddr, ts.Key())),
		identity[[]*api.MsigTransaction](rpc.NewRequest("Filecoin.MsigGetPending", msigTestAddr, ts.Key())),
	}
}

// WebsocketTests returns the suite that only makes sense on the persistent
// transport.
func WebsocketTests() []RpcTest {
	return []RpcTest{
		identity[[]*api.HeadChange](rpc.NewRequest("Filecoin.ChainNotify")).
			ignored("subscription channels are not comparable call-for-call yet"),
	}
}

// SortTests orders the catalogue by method name so reports are stable
// regardless of generation order.
func SortTests(tests []RpcTest) {
	sort.SliceStable(tests, func(i, j int) bool {
		return tests[i].Request.Method < tests[j].Request.Method
	})
}
