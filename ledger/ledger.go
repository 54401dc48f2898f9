// Package ledger is the host runtime the contracts run on. It keeps
// accounts, assets and applications in a bbolt bucket and executes every
// operation in a single read-write transaction: an operation either
// commits all of its writes, transfers included, or none of them.
package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"time"

	"github.com/dedis/auction_contracts/chain"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var (
	// ErrInsufficientFunds is returned when an account pays more than it
	// holds.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAssetNotOptedIn is returned when an account receives or sends an
	// asset it did not opt into.
	ErrAssetNotOptedIn = errors.New("account has not opted into asset")
	// ErrNoAsset is returned for unknown assets.
	ErrNoAsset = errors.New("no such asset")
	// ErrNoApp is returned for unknown applications.
	ErrNoApp = errors.New("no such application")
	// ErrAlreadyOptedIn is returned when an account opts twice into an
	// application.
	ErrAlreadyOptedIn = errors.New("account already opted in")
	// ErrNotCreator is returned when someone else than the creator deletes
	// an application.
	ErrNotCreator = errors.New("only the creator can do this")
	// ErrUnknownKind is returned when creating an application of a kind no
	// contract registered.
	ErrUnknownKind = errors.New("unknown contract kind")
)

var (
	bucketMeta     = []byte("meta")
	bucketAssets   = []byte("assets")
	bucketHoldings = []byte("holdings")
	bucketApps     = []byte("apps")
	bucketState    = []byte("state")
	bucketGlobal   = []byte("global")
	bucketLocals   = []byte("locals")

	keyTime      = []byte("time")
	keyOffset    = []byte("offset")
	keyAssetSeq  = []byte("asset_seq")
	keyAppSeq    = []byte("app_seq")
	subBuckets   = [][]byte{bucketMeta, bucketAssets, bucketHoldings, bucketApps, bucketState}
	holdingSplit = byte(0)
)

// Ledger holds accounts, assets and applications.
type Ledger struct {
	db     *bbolt.DB
	bucket []byte
	// owned is true if the database was opened by Open and must be closed
	// with the ledger.
	owned bool

	// Wall returns the wall clock. Tests replace it.
	Wall func() time.Time
	// at pins the clock, see At.
	at uint64
}

// New stores the ledger in the given bucket of db, creating it if needed.
func New(db *bbolt.DB, bucket []byte) (*Ledger, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		for _, name := range subBuckets {
			if _, err := root.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("creating buckets: %v", err)
	}
	return &Ledger{db: db, bucket: bucket, Wall: time.Now}, nil
}

// Open opens or creates a ledger in the bbolt file at path.
func Open(path string) (*Ledger, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, xerrors.Errorf("opening db: %v", err)
	}
	l, err := New(db, []byte("ledger"))
	if err != nil {
		db.Close()
		return nil, err
	}
	l.owned = true
	return l, nil
}

// Close releases the database if the ledger opened it.
func (l *Ledger) Close() error {
	if l.owned {
		return l.db.Close()
	}
	return nil
}

// tx wraps a bbolt transaction with the ledger layout.
type tx struct {
	*bbolt.Tx
	root *bbolt.Bucket
}

func (t tx) sub(name []byte) *bbolt.Bucket {
	return t.root.Bucket(name)
}

func (l *Ledger) update(f func(t tx) error) error {
	return l.db.Update(func(btx *bbolt.Tx) error {
		return f(tx{Tx: btx, root: btx.Bucket(l.bucket)})
	})
}

func (l *Ledger) view(f func(t tx) error) error {
	return l.db.View(func(btx *bbolt.Tx) error {
		return f(tx{Tx: btx, root: btx.Bucket(l.bucket)})
	})
}

// Now returns the ledger time in unix seconds.
func (l *Ledger) Now() (uint64, error) {
	var now uint64
	err := l.view(func(t tx) error {
		now = l.now(t)
		return nil
	})
	return now, err
}

// SetTimestampOffset shifts the ledger clock against the wall clock. The
// ledger time never goes back behind the time of the last committed call.
func (l *Ledger) SetTimestampOffset(offset time.Duration) error {
	return l.update(func(t tx) error {
		return t.sub(bucketMeta).Put(keyOffset, chain.Uint64Bytes(uint64(int64(offset/time.Second))))
	})
}

// At returns a view of the ledger whose operations run at time now, or at
// the time of the last committed call if that one is later. Replicas use it
// to run an operation at the time the first node ran it.
func (l *Ledger) At(now uint64) *Ledger {
	pinned := *l
	pinned.owned = false
	pinned.at = now
	return &pinned
}

func (l *Ledger) now(t tx) uint64 {
	meta := t.sub(bucketMeta)
	now := l.at
	if now == 0 {
		var offset int64
		if buf := meta.Get(keyOffset); buf != nil {
			off, _ := chain.BytesUint64(buf)
			offset = int64(off)
		}
		if wall := l.Wall().Unix() + offset; wall > 0 {
			now = uint64(wall)
		}
	}
	if buf := meta.Get(keyTime); buf != nil {
		if last, _ := chain.BytesUint64(buf); last > now {
			return last
		}
	}
	return now
}

// tick returns the time of the running call and commits it as the lower
// bound of future calls.
func (l *Ledger) tick(t tx) (uint64, error) {
	now := l.now(t)
	return now, t.sub(bucketMeta).Put(keyTime, chain.Uint64Bytes(now))
}

func nextSeq(t tx, key []byte) (uint64, error) {
	meta := t.sub(bucketMeta)
	var seq uint64
	if buf := meta.Get(key); buf != nil {
		seq, _ = chain.BytesUint64(buf)
	}
	seq++
	return seq, meta.Put(key, chain.Uint64Bytes(seq))
}

func idKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func holdingKey(addr chain.Address, asset chain.AssetID) []byte {
	return append(append([]byte(addr), holdingSplit), idKey(uint64(asset))...)
}

// EscrowAddress is the account of the application with the given id.
func EscrowAddress(app uint64) chain.Address {
	h := sha256.Sum256(append([]byte("appID"), idKey(app)...))
	return chain.Address(hex.EncodeToString(h[:]))
}

// Fund credits addr with native currency out of thin air. It is the faucet
// of development ledgers.
func (l *Ledger) Fund(addr chain.Address, amount uint64) error {
	return l.update(func(t tx) error {
		return credit(t, addr, chain.NativeAsset, amount)
	})
}

// Balance returns what addr holds of asset. ok is false if addr did not
// opt into asset.
func (l *Ledger) Balance(addr chain.Address, asset chain.AssetID) (amount uint64, ok bool, err error) {
	err = l.view(func(t tx) error {
		amount, ok = balance(t, addr, asset)
		return nil
	})
	return
}

// Holdings returns all assets held by addr, ordered by asset id.
func (l *Ledger) Holdings(addr chain.Address) ([]Holding, error) {
	var hs []Holding
	err := l.view(func(t tx) error {
		hs = holdings(t, addr)
		return nil
	})
	return hs, err
}

// CreateAsset creates an asset and gives its whole supply to creator.
func (l *Ledger) CreateAsset(creator chain.Address, params AssetParams) (chain.AssetID, error) {
	var id chain.AssetID
	err := l.update(func(t tx) error {
		seq, err := nextSeq(t, keyAssetSeq)
		if err != nil {
			return err
		}
		id = chain.AssetID(seq)
		buf, err := protobuf.Encode(&AssetInfo{ID: id, Creator: creator, Params: params})
		if err != nil {
			return xerrors.Errorf("encoding asset: %v", err)
		}
		if err := t.sub(bucketAssets).Put(idKey(seq), buf); err != nil {
			return err
		}
		return t.sub(bucketHoldings).Put(holdingKey(creator, id), chain.Uint64Bytes(params.Total))
	})
	if err == nil {
		log.Lvlf2("%s created asset %d (%s)", creator, id, params.Name)
	}
	return id, err
}

// Asset returns the asset with the given id.
func (l *Ledger) Asset(id chain.AssetID) (AssetInfo, error) {
	var ai AssetInfo
	err := l.view(func(t tx) error {
		var err error
		ai, err = asset(t, id)
		return err
	})
	return ai, err
}

// OptInAsset lets addr hold asset.
func (l *Ledger) OptInAsset(addr chain.Address, id chain.AssetID) error {
	return l.update(func(t tx) error {
		return optInAsset(t, addr, id)
	})
}

// Pay executes a transfer signed by its sender.
func (l *Ledger) Pay(tr chain.Transfer) error {
	return l.update(func(t tx) error {
		return transfer(t, tr)
	})
}

func asset(t tx, id chain.AssetID) (AssetInfo, error) {
	buf := t.sub(bucketAssets).Get(idKey(uint64(id)))
	if buf == nil {
		return AssetInfo{}, xerrors.Errorf("asset %d: %w", id, ErrNoAsset)
	}
	ai := AssetInfo{}
	if err := protobuf.Decode(buf, &ai); err != nil {
		return AssetInfo{}, xerrors.Errorf("decoding asset: %v", err)
	}
	return ai, nil
}

func optInAsset(t tx, addr chain.Address, id chain.AssetID) error {
	if id == chain.NativeAsset {
		return nil
	}
	if _, err := asset(t, id); err != nil {
		return err
	}
	b := t.sub(bucketHoldings)
	if b.Get(holdingKey(addr, id)) != nil {
		return nil
	}
	return b.Put(holdingKey(addr, id), chain.Uint64Bytes(0))
}

func balance(t tx, addr chain.Address, id chain.AssetID) (uint64, bool) {
	buf := t.sub(bucketHoldings).Get(holdingKey(addr, id))
	if buf == nil {
		return 0, id == chain.NativeAsset
	}
	v, _ := chain.BytesUint64(buf)
	return v, true
}

func holdings(t tx, addr chain.Address) []Holding {
	var hs []Holding
	prefix := append([]byte(addr), holdingSplit)
	c := t.sub(bucketHoldings).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		amount, _ := chain.BytesUint64(v)
		hs = append(hs, Holding{
			Asset:  chain.AssetID(binary.BigEndian.Uint64(k[len(prefix):])),
			Amount: amount,
		})
	}
	return hs
}

func credit(t tx, addr chain.Address, id chain.AssetID, amount uint64) error {
	have, ok := balance(t, addr, id)
	if !ok {
		return xerrors.Errorf("%s cannot receive asset %d: %w", addr, id, ErrAssetNotOptedIn)
	}
	if have+amount < have {
		return xerrors.Errorf("balance of %s overflows", addr)
	}
	return t.sub(bucketHoldings).Put(holdingKey(addr, id), chain.Uint64Bytes(have+amount))
}

func debit(t tx, addr chain.Address, id chain.AssetID, amount uint64) error {
	have, ok := balance(t, addr, id)
	if !ok {
		return xerrors.Errorf("%s cannot send asset %d: %w", addr, id, ErrAssetNotOptedIn)
	}
	if have < amount {
		return xerrors.Errorf("%s has %d of asset %d, needs %d: %w", addr, have, id, amount,
			ErrInsufficientFunds)
	}
	return t.sub(bucketHoldings).Put(holdingKey(addr, id), chain.Uint64Bytes(have-amount))
}

func transfer(t tx, tr chain.Transfer) error {
	if err := debit(t, tr.Sender, tr.Asset, tr.Amount); err != nil {
		return err
	}
	return credit(t, tr.Receiver, tr.Asset, tr.Amount)
}
