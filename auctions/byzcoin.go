package auctions

import (
	"crypto/sha256"
	"strconv"

	"github.com/dedis/auction_contracts/chain"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/byzcoin/contracts"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// MethodOptIn registers the local state of the signer. ByzCoin has no
// opt-in of its own, so every signer can also bid without it.
const MethodOptIn = "opt_in"

const (
	keyCreator   = "creator"
	prefixGlobal = "global/"
	prefixLocal  = "local/"
	prefixEscrow = "escrow/"
)

func init() {
	log.ErrFatal(byzcoin.RegisterGlobalContract(ContractAuctionID, contractByzAuctionFromBytes))
}

// AssetCoinName returns the coin type standing for an asset on ByzCoin.
// The native asset is the ByzCoin coin.
func AssetCoinName(asset chain.AssetID) byzcoin.InstanceID {
	if asset == chain.NativeAsset {
		return contracts.CoinName
	}
	h := sha256.New()
	h.Write([]byte("auction_asset"))
	h.Write(chain.Uint64Bytes(uint64(asset)))
	return byzcoin.NewInstanceID(h.Sum(nil))
}

// contractByzAuction runs the auction state machine inside a ByzCoin
// instance. The whole key/value space of the auction, including the
// escrow balances, is stored as one Snapshot in the instance.
//
// Time on ByzCoin is the block index: the length of an auction is a
// number of blocks.
//
// Value moves with coins: the bid and the asset deposit are fetched from a
// coin account by the previous instruction of the same transaction, and
// refunds, the asset and the seller's payout are returned as coins that
// the next instruction stores in a coin account.
type contractByzAuction struct {
	byzcoin.BasicContract
	store *chain.MemStore
}

func contractByzAuctionFromBytes(in []byte) (byzcoin.Contract, error) {
	snap := Snapshot{}
	if len(in) > 0 {
		if err := protobuf.Decode(in, &snap); err != nil {
			return nil, xerrors.Errorf("decoding auction instance: %v", err)
		}
	}
	return &contractByzAuction{store: chain.NewMemStore(snap.Entries...)}, nil
}

// Spawn creates a new auction with the signer as seller. If the argument
// "asset" is given, the escrow opts into it right away.
func (c *contractByzAuction) Spawn(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	cout = coins

	//Darc control the access to the connected instance
	var darcID darc.ID
	_, _, _, darcID, err = rst.GetValues(inst.InstanceID.Slice())
	if err != nil {
		return
	}
	if inst.Spawn.ContractID != ContractAuctionID {
		return nil, nil, xerrors.New("can only spawn auction instances")
	}

	instID := inst.DeriveID("")
	env, err := c.newEnv(rst, inst, instID)
	if err != nil {
		return nil, nil, err
	}
	if err = c.store.Set([]byte(keyCreator), []byte(env.sender)); err != nil {
		return nil, nil, err
	}
	a := New(env)
	if err = a.Create(); err != nil {
		return nil, nil, err
	}
	if buf := inst.Spawn.Args.Search(ArgAsset); buf != nil {
		var asset uint64
		asset, err = chain.BytesUint64(buf)
		if err != nil {
			return nil, nil, xerrors.Errorf("%s: %v", ArgAsset, err)
		}
		if err = a.OptIntoAsset(chain.AssetID(asset)); err != nil {
			return nil, nil, err
		}
	}

	buf, err := c.snapshot()
	if err != nil {
		return nil, nil, err
	}
	sc = []byzcoin.StateChange{
		byzcoin.NewStateChange(byzcoin.Create, instID, ContractAuctionID, buf, darcID),
	}
	return
}

// Invoke runs one auction method. start_auction takes the asset coin out
// of the incoming coins, bid takes the ByzCoin coin.
func (c *contractByzAuction) Invoke(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	var darcID darc.ID
	_, _, _, darcID, err = rst.GetValues(inst.InstanceID.Slice())
	if err != nil {
		return
	}
	env, err := c.newEnv(rst, inst, inst.InstanceID)
	if err != nil {
		return nil, nil, err
	}
	a := New(env)
	args := inst.Invoke.Args
	rest := coins

	switch inst.Invoke.Command {
	case MethodOptIn:
		err = a.OptIn()

	case MethodOptIntoAsset:
		var asset uint64
		if asset, err = byzUint64(args, ArgAsset); err == nil {
			err = a.OptIntoAsset(chain.AssetID(asset))
		}

	case MethodStartAuction:
		var price, length uint64
		if price, err = byzUint64(args, ArgStartingPrice); err != nil {
			return nil, nil, err
		}
		if length, err = byzUint64(args, ArgLength); err != nil {
			return nil, nil, err
		}
		var ad AuctionData
		if ad, err = a.Data(); err != nil {
			return nil, nil, err
		}
		var deposit *chain.Transfer
		if deposit, rest, err = env.take(coins, ad.AssetID); err != nil {
			return nil, nil, err
		}
		_, err = a.StartAuction(price, length, *deposit)

	case MethodBid:
		var payment *chain.Transfer
		if payment, rest, err = env.take(coins, chain.NativeAsset); err != nil {
			return nil, nil, err
		}
		_, err = a.Bid(*payment)

	case MethodClaimBids:
		_, err = a.ClaimBids()

	case MethodClaimAsset:
		var asset uint64
		if asset, err = byzUint64(args, ArgAsset); err == nil {
			err = a.ClaimAsset(chain.AssetID(asset))
		}

	default:
		err = xerrors.Errorf("auction has no method %q: %w", inst.Invoke.Command, chain.ErrUnknownMethod)
	}
	if err != nil {
		return nil, nil, err
	}

	buf, err := c.snapshot()
	if err != nil {
		return nil, nil, err
	}
	sc = []byzcoin.StateChange{
		byzcoin.NewStateChange(byzcoin.Update, inst.InstanceID, ContractAuctionID, buf, darcID),
	}
	cout = append(rest, env.out...)
	return
}

// Delete pays the seller and removes the instance.
func (c *contractByzAuction) Delete(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, coins []byzcoin.Coin) (sc []byzcoin.StateChange, cout []byzcoin.Coin, err error) {
	var darcID darc.ID
	_, _, _, darcID, err = rst.GetValues(inst.InstanceID.Slice())
	if err != nil {
		return
	}
	env, err := c.newEnv(rst, inst, inst.InstanceID)
	if err != nil {
		return nil, nil, err
	}
	if _, err = New(env).DeleteApplication(); err != nil {
		return nil, nil, err
	}

	sc = []byzcoin.StateChange{
		byzcoin.NewStateChange(byzcoin.Remove, inst.InstanceID, ContractAuctionID, nil, darcID),
	}
	cout = append(coins, env.out...)
	return
}

func (c *contractByzAuction) newEnv(rst byzcoin.ReadOnlyStateTrie, inst byzcoin.Instruction, instID byzcoin.InstanceID) (*byzEnv, error) {
	if len(inst.SignerIdentities) == 0 {
		return nil, xerrors.New("instruction has no signer")
	}
	return &byzEnv{
		store:   c.store,
		sender:  chain.Address(inst.SignerIdentities[0].String()),
		now:     uint64(rst.GetIndex()),
		address: chain.Address(instID.String()),
	}, nil
}

func (c *contractByzAuction) snapshot() ([]byte, error) {
	buf, err := protobuf.Encode(&Snapshot{Entries: c.store.Entries()})
	if err != nil {
		return nil, xerrors.Errorf("encoding auction instance: %v", err)
	}
	return buf, nil
}

func byzUint64(args byzcoin.Arguments, name string) (uint64, error) {
	buf := args.Search(name)
	if buf == nil {
		return 0, xerrors.Errorf("%s: %w", name, chain.ErrMissingArgument)
	}
	return chain.BytesUint64(buf)
}

// byzEnv is the chain.Env of one ByzCoin instruction.
type byzEnv struct {
	store   *chain.MemStore
	sender  chain.Address
	now     uint64
	address chain.Address
	out     []byzcoin.Coin
}

func (e *byzEnv) Sender() chain.Address { return e.sender }

func (e *byzEnv) Creator() chain.Address {
	buf, _ := e.store.Get([]byte(keyCreator))
	return chain.Address(buf)
}

func (e *byzEnv) Now() uint64 { return e.now }

func (e *byzEnv) Address() chain.Address { return e.address }

func (e *byzEnv) Global() chain.Store { return e.store.Prefixed(prefixGlobal) }

func (e *byzEnv) Local(addr chain.Address) (chain.Store, error) {
	return e.store.Prefixed(prefixLocal + string(addr) + "/"), nil
}

// Send can only pay the signer: the coins leave with the instruction and
// the signer stores them.
func (e *byzEnv) Send(to chain.Address, asset chain.AssetID, amount uint64) error {
	if to != e.sender {
		return xerrors.Errorf("can only pay the signer, not %s", to)
	}
	if err := e.debit(asset, amount); err != nil {
		return err
	}
	e.out = append(e.out, byzcoin.Coin{Name: AssetCoinName(asset), Value: amount})
	return nil
}

func (e *byzEnv) OptInAsset(chain.AssetID) error { return nil }

// take removes the first coin of the asset from coins and credits the
// escrow with it.
func (e *byzEnv) take(coins []byzcoin.Coin, asset chain.AssetID) (*chain.Transfer, []byzcoin.Coin, error) {
	name := AssetCoinName(asset)
	for i, coin := range coins {
		if coin.Name != name {
			continue
		}
		rest := append(append([]byzcoin.Coin{}, coins[:i]...), coins[i+1:]...)
		if err := e.credit(asset, coin.Value); err != nil {
			return nil, nil, err
		}
		return &chain.Transfer{
			Sender:   e.sender,
			Receiver: e.address,
			Asset:    asset,
			Amount:   coin.Value,
		}, rest, nil
	}
	return nil, nil, xerrors.Errorf("no coins of asset %d: %w", asset, chain.ErrMissingTransfer)
}

func escrowKey(asset chain.AssetID) []byte {
	return []byte(prefixEscrow + strconv.FormatUint(uint64(asset), 10))
}

func (e *byzEnv) escrow(asset chain.AssetID) uint64 {
	buf, _ := e.store.Get(escrowKey(asset))
	if buf == nil {
		return 0
	}
	v, err := chain.BytesUint64(buf)
	if err != nil {
		return 0
	}
	return v
}

func (e *byzEnv) credit(asset chain.AssetID, amount uint64) error {
	balance := e.escrow(asset)
	if balance+amount < balance {
		return xerrors.New("escrow overflow")
	}
	return e.store.Set(escrowKey(asset), chain.Uint64Bytes(balance+amount))
}

func (e *byzEnv) debit(asset chain.AssetID, amount uint64) error {
	balance := e.escrow(asset)
	if balance < amount {
		return xerrors.Errorf("escrow holds %d of asset %d, cannot pay %d", balance, asset, amount)
	}
	return e.store.Set(escrowKey(asset), chain.Uint64Bytes(balance-amount))
}
