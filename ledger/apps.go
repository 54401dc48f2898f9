package ledger

import (
	"github.com/dedis/auction_contracts/chain"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

// Call is one signed application call.
type Call struct {
	App    uint64
	Sender chain.Address
	Method string
	Args   chain.Arguments
	// Companion is executed right before the method, in the same
	// transaction.
	Companion *chain.Transfer
	// OptIn opts the sender into the application first, unless it already
	// is.
	OptIn bool
}

// CreateApp creates an application running the contract of the given
// kind and returns it.
func (l *Ledger) CreateApp(creator chain.Address, kind string) (AppInfo, error) {
	fn, ok := chain.SearchContract(kind)
	if !ok {
		return AppInfo{}, xerrors.Errorf("%q: %w", kind, ErrUnknownKind)
	}
	var ai AppInfo
	err := l.update(func(t tx) error {
		id, err := nextSeq(t, keyAppSeq)
		if err != nil {
			return err
		}
		ai = AppInfo{ID: id, Kind: kind, Creator: creator, Escrow: EscrowAddress(id)}
		buf, err := protobuf.Encode(&ai)
		if err != nil {
			return xerrors.Errorf("encoding app: %v", err)
		}
		if err := t.sub(bucketApps).Put(idKey(id), buf); err != nil {
			return err
		}
		st, err := t.sub(bucketState).CreateBucket(idKey(id))
		if err != nil {
			return err
		}
		if _, err := st.CreateBucket(bucketGlobal); err != nil {
			return err
		}
		if _, err := st.CreateBucket(bucketLocals); err != nil {
			return err
		}
		env, err := l.newEnv(t, ai, creator)
		if err != nil {
			return err
		}
		return fn().Create(env)
	})
	if err != nil {
		return AppInfo{}, err
	}
	log.Lvlf2("%s created %s app %d", creator, kind, ai.ID)
	return ai, nil
}

// App returns the application with the given id.
func (l *Ledger) App(id uint64) (AppInfo, error) {
	var ai AppInfo
	err := l.view(func(t tx) error {
		var err error
		ai, err = app(t, id)
		return err
	})
	return ai, err
}

// OptInApp gives addr local state in the application and runs the opt-in
// of its contract.
func (l *Ledger) OptInApp(id uint64, addr chain.Address) error {
	return l.update(func(t tx) error {
		ai, err := app(t, id)
		if err != nil {
			return err
		}
		return l.optInApp(t, ai, addr)
	})
}

// Call executes c, companion transfer included, and returns what the
// method returned. Nothing of it is kept if it fails.
func (l *Ledger) Call(c Call) ([]byte, error) {
	var ret []byte
	err := l.update(func(t tx) error {
		ai, err := app(t, c.App)
		if err != nil {
			return err
		}
		if c.OptIn && !optedIn(t, ai.ID, c.Sender) {
			if err := l.optInApp(t, ai, c.Sender); err != nil {
				return err
			}
		}
		if c.Companion != nil {
			if c.Companion.Sender != c.Sender {
				return xerrors.Errorf("companion transfer from %s not signed by %s",
					c.Companion.Sender, c.Sender)
			}
			if err := transfer(t, *c.Companion); err != nil {
				return xerrors.Errorf("companion transfer: %w", err)
			}
		}
		env, err := l.newEnv(t, ai, c.Sender)
		if err != nil {
			return err
		}
		ret, err = contract(ai).Invoke(env, c.Method, c.Args, c.Companion)
		return err
	})
	if err != nil {
		log.Lvlf3("call %s on app %d by %s failed: %v", c.Method, c.App, c.Sender, err)
		return nil, err
	}
	return ret, nil
}

// DeleteApp runs the delete hook of the contract, closes everything left
// in the escrow to the creator and drops the application with all its
// state.
func (l *Ledger) DeleteApp(id uint64, sender chain.Address) error {
	return l.update(func(t tx) error {
		ai, err := app(t, id)
		if err != nil {
			return err
		}
		if sender != ai.Creator {
			return xerrors.Errorf("%s deleting app %d: %w", sender, id, ErrNotCreator)
		}
		env, err := l.newEnv(t, ai, sender)
		if err != nil {
			return err
		}
		if err := contract(ai).Delete(env); err != nil {
			return err
		}
		for _, h := range holdings(t, ai.Escrow) {
			if err := optInAsset(t, ai.Creator, h.Asset); err != nil {
				return err
			}
			err := transfer(t, chain.Transfer{Sender: ai.Escrow, Receiver: ai.Creator,
				Asset: h.Asset, Amount: h.Amount})
			if err != nil {
				return err
			}
			if err := t.sub(bucketHoldings).Delete(holdingKey(ai.Escrow, h.Asset)); err != nil {
				return err
			}
		}
		if err := t.sub(bucketState).DeleteBucket(idKey(id)); err != nil {
			return err
		}
		log.Lvlf2("app %d deleted", id)
		return t.sub(bucketApps).Delete(idKey(id))
	})
}

// GlobalState returns the global state of an application sorted by key.
func (l *Ledger) GlobalState(id uint64) ([]chain.KeyValue, error) {
	var kvs []chain.KeyValue
	err := l.view(func(t tx) error {
		st := t.sub(bucketState).Bucket(idKey(id))
		if st == nil {
			return xerrors.Errorf("app %d: %w", id, ErrNoApp)
		}
		kvs = entries(st.Bucket(bucketGlobal))
		return nil
	})
	return kvs, err
}

// LocalState returns the local state of addr in an application sorted by
// key.
func (l *Ledger) LocalState(id uint64, addr chain.Address) ([]chain.KeyValue, error) {
	var kvs []chain.KeyValue
	err := l.view(func(t tx) error {
		st := t.sub(bucketState).Bucket(idKey(id))
		if st == nil {
			return xerrors.Errorf("app %d: %w", id, ErrNoApp)
		}
		local := st.Bucket(bucketLocals).Bucket([]byte(addr))
		if local == nil {
			return xerrors.Errorf("%s in app %d: %w", addr, id, chain.ErrNotOptedIn)
		}
		kvs = entries(local)
		return nil
	})
	return kvs, err
}

func app(t tx, id uint64) (AppInfo, error) {
	buf := t.sub(bucketApps).Get(idKey(id))
	if buf == nil {
		return AppInfo{}, xerrors.Errorf("app %d: %w", id, ErrNoApp)
	}
	ai := AppInfo{}
	if err := protobuf.Decode(buf, &ai); err != nil {
		return AppInfo{}, xerrors.Errorf("decoding app: %v", err)
	}
	return ai, nil
}

// contract returns the contract of a stored application. The kind was
// checked at creation.
func contract(ai AppInfo) chain.Contract {
	fn, _ := chain.SearchContract(ai.Kind)
	return fn()
}

func optedIn(t tx, id uint64, addr chain.Address) bool {
	return t.sub(bucketState).Bucket(idKey(id)).Bucket(bucketLocals).Bucket([]byte(addr)) != nil
}

func (l *Ledger) optInApp(t tx, ai AppInfo, addr chain.Address) error {
	locals := t.sub(bucketState).Bucket(idKey(ai.ID)).Bucket(bucketLocals)
	if _, err := locals.CreateBucket([]byte(addr)); err != nil {
		if err == bbolt.ErrBucketExists {
			return xerrors.Errorf("%s in app %d: %w", addr, ai.ID, ErrAlreadyOptedIn)
		}
		return err
	}
	env, err := l.newEnv(t, ai, addr)
	if err != nil {
		return err
	}
	return contract(ai).OptIn(env)
}
