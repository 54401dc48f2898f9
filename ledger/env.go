package ledger

import (
	"github.com/dedis/auction_contracts/chain"
	"golang.org/x/xerrors"
)

// appEnv is what a contract sees of the ledger during one call. All of it
// lives in the transaction of the call.
type appEnv struct {
	t      tx
	app    AppInfo
	sender chain.Address
	now    uint64
}

func (l *Ledger) newEnv(t tx, ai AppInfo, sender chain.Address) (*appEnv, error) {
	now, err := l.tick(t)
	if err != nil {
		return nil, err
	}
	return &appEnv{t: t, app: ai, sender: sender, now: now}, nil
}

func (e *appEnv) Sender() chain.Address  { return e.sender }
func (e *appEnv) Creator() chain.Address { return e.app.Creator }
func (e *appEnv) Now() uint64            { return e.now }
func (e *appEnv) Address() chain.Address { return e.app.Escrow }

func (e *appEnv) Global() chain.Store {
	return bucketStore{e.t.sub(bucketState).Bucket(idKey(e.app.ID)).Bucket(bucketGlobal)}
}

func (e *appEnv) Local(addr chain.Address) (chain.Store, error) {
	b := e.t.sub(bucketState).Bucket(idKey(e.app.ID)).Bucket(bucketLocals).Bucket([]byte(addr))
	if b == nil {
		return nil, xerrors.Errorf("%s in app %d: %w", addr, e.app.ID, chain.ErrNotOptedIn)
	}
	return bucketStore{b}, nil
}

func (e *appEnv) Send(to chain.Address, asset chain.AssetID, amount uint64) error {
	return transfer(e.t, chain.Transfer{Sender: e.app.Escrow, Receiver: to, Asset: asset, Amount: amount})
}

func (e *appEnv) OptInAsset(asset chain.AssetID) error {
	return optInAsset(e.t, e.app.Escrow, asset)
}
