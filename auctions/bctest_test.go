package auctions

import (
	"testing"
	"time"

	"github.com/dedis/auction_contracts/chain"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/byzcoin/contracts"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/cothority/v3/darc/expression"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/protobuf"
)

// bcTest is used here to provide some simple test structure for different
// tests.
type bcTest struct {
	local    *onet.LocalTest
	servers  []*onet.Server
	roster   *onet.Roster
	cl       *byzcoin.Client
	gMsg     *byzcoin.CreateGenesisBlock
	gDarc    *darc.Darc
	counters map[string]uint64
}

func newBCTest(t *testing.T, signers ...darc.Signer) (out *bcTest) {
	out = &bcTest{counters: make(map[string]uint64)}
	// First create a local test environment with three nodes.
	out.local = onet.NewTCPTest(cothority.Suite)
	out.servers, out.roster, _ = out.local.GenTree(3, true)

	var ids []darc.Identity
	var idStrings []string
	for _, s := range signers {
		ids = append(ids, s.Identity())
		idStrings = append(idStrings, s.Identity().String())
	}

	// Then create a new ledger with the genesis darc letting any of the
	// signers use auctions and coins.
	rules := []string{
		"spawn:" + ContractAuctionID,
		"invoke:" + ContractAuctionID + "." + MethodOptIn,
		"invoke:" + ContractAuctionID + "." + MethodOptIntoAsset,
		"invoke:" + ContractAuctionID + "." + MethodStartAuction,
		"invoke:" + ContractAuctionID + "." + MethodBid,
		"invoke:" + ContractAuctionID + "." + MethodClaimBids,
		"invoke:" + ContractAuctionID + "." + MethodClaimAsset,
		"delete:" + ContractAuctionID,
		"spawn:coin", "invoke:coin.mint", "invoke:coin.fetch", "invoke:coin.store",
	}
	var err error
	out.gMsg, err = byzcoin.DefaultGenesisMsg(byzcoin.CurrentVersion, out.roster, rules, ids...)
	require.NoError(t, err)
	anyOf := expression.InitOrExpr(idStrings...)
	for _, r := range rules {
		require.NoError(t, out.gMsg.GenesisDarc.Rules.UpdateRule(darc.Action(r), anyOf))
	}
	out.gDarc = &out.gMsg.GenesisDarc

	// This BlockInterval is good for testing, but in real world applications this
	// should be more like 5 seconds.
	out.gMsg.BlockInterval = time.Second / 2

	out.cl, _, err = byzcoin.NewLedger(out.gMsg, false)
	require.NoError(t, err)
	return out
}

func (bct *bcTest) Close() {
	bct.local.CloseAll()
}

// send signs all instructions with signer and waits for the transaction.
// The signer counter only moves if the transaction got accepted.
func (bct *bcTest) send(signer darc.Signer, instrs ...byzcoin.Instruction) (byzcoin.ClientTransaction, error) {
	id := signer.Identity().String()
	ct := bct.counters[id]
	for i := range instrs {
		instrs[i].SignerCounter = []uint64{ct + uint64(i) + 1}
	}
	ctx := byzcoin.NewClientTransaction(byzcoin.CurrentVersion, instrs...)
	if err := ctx.FillSignersAndSignWith(signer); err != nil {
		return ctx, err
	}
	_, err := bct.cl.AddTransactionAndWait(ctx, 10)
	if err == nil {
		bct.counters[id] = ct + uint64(len(instrs))
	}
	return ctx, err
}

func (bct *bcTest) createAccount(t *testing.T, signer darc.Signer, asset chain.AssetID) byzcoin.InstanceID {
	ctx, err := bct.send(signer, byzcoin.Instruction{
		InstanceID: byzcoin.NewInstanceID(bct.gDarc.GetBaseID()),
		Spawn: &byzcoin.Spawn{
			ContractID: contracts.ContractCoinID,
			Args: byzcoin.Arguments{{
				Name:  "type",
				Value: AssetCoinName(asset).Slice(),
			}},
		},
	})
	require.NoError(t, err)
	return ctx.Instructions[0].DeriveID("")
}

func (bct *bcTest) mint(t *testing.T, signer darc.Signer, account byzcoin.InstanceID, amount uint64) {
	_, err := bct.send(signer, byzcoin.Instruction{
		InstanceID: account,
		Invoke: &byzcoin.Invoke{
			ContractID: contracts.ContractCoinID,
			Command:    "mint",
			Args:       byzcoin.Arguments{{Name: "coins", Value: chain.Uint64Bytes(amount)}},
		},
	})
	require.NoError(t, err)
}

func fetch(account byzcoin.InstanceID, amount uint64) byzcoin.Instruction {
	return byzcoin.Instruction{
		InstanceID: account,
		Invoke: &byzcoin.Invoke{
			ContractID: contracts.ContractCoinID,
			Command:    "fetch",
			Args:       byzcoin.Arguments{{Name: "coins", Value: chain.Uint64Bytes(amount)}},
		},
	}
}

func store(account byzcoin.InstanceID) byzcoin.Instruction {
	return byzcoin.Instruction{
		InstanceID: account,
		Invoke: &byzcoin.Invoke{
			ContractID: contracts.ContractCoinID,
			Command:    "store",
		},
	}
}

func invokeAuction(auctID byzcoin.InstanceID, command string, args ...byzcoin.Argument) byzcoin.Instruction {
	return byzcoin.Instruction{
		InstanceID: auctID,
		Invoke: &byzcoin.Invoke{
			ContractID: ContractAuctionID,
			Command:    command,
			Args:       args,
		},
	}
}

func uint64Arg(name string, v uint64) byzcoin.Argument {
	return byzcoin.Argument{Name: name, Value: chain.Uint64Bytes(v)}
}

func (bct *bcTest) spawnAuction(t *testing.T, signer darc.Signer, asset chain.AssetID) byzcoin.InstanceID {
	ctx, err := bct.send(signer, byzcoin.Instruction{
		InstanceID: byzcoin.NewInstanceID(bct.gDarc.GetBaseID()),
		Spawn: &byzcoin.Spawn{
			ContractID: ContractAuctionID,
			Args:       byzcoin.Arguments{uint64Arg(ArgAsset, uint64(asset))},
		},
	})
	require.NoError(t, err)
	return ctx.Instructions[0].DeriveID("")
}

func (bct *bcTest) proof(t *testing.T, id byzcoin.InstanceID) (*byzcoin.GetProofResponse, []byte) {
	//Get the proof from byzcoin
	reply, err := bct.cl.GetProof(id.Slice())
	require.NoError(t, err)
	// Make sure the proof is a matching proof and not a proof of absence.
	require.True(t, reply.Proof.InclusionProof.Match(id.Slice()))

	// Get the raw values of the proof.
	_, val, _, _, err := reply.Proof.KeyValue()
	require.NoError(t, err)
	return reply, val
}

func (bct *bcTest) coins(t *testing.T, account byzcoin.InstanceID) uint64 {
	_, val := bct.proof(t, account)
	coin := byzcoin.Coin{}
	require.NoError(t, protobuf.Decode(val, &coin))
	return coin.Value
}

func (bct *bcTest) auction(t *testing.T, auctID byzcoin.InstanceID) AuctionData {
	_, val := bct.proof(t, auctID)
	snap := Snapshot{}
	require.NoError(t, protobuf.Decode(val, &snap))
	ad, err := ReadData(chain.NewMemStore(snap.Entries...).Prefixed(prefixGlobal))
	require.NoError(t, err)
	return ad
}

// waitBlock adds minting transactions until the chain is past index.
func (bct *bcTest) waitBlock(t *testing.T, signer darc.Signer, account byzcoin.InstanceID, index uint64) {
	for i := 0; i < 20; i++ {
		reply, _ := bct.proof(t, account)
		if uint64(reply.Proof.Latest.Index) > index {
			return
		}
		bct.mint(t, signer, account, 0)
	}
	t.Fatal("chain didn't reach block", index)
}
