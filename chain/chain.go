// Package chain describes what a contract sees of the ledger hosting it:
// who calls, what time it is on the ledger, where its escrow lives, its
// key/value storage and the value transfers bundled with a call.
//
// Contracts never talk to a ledger directly. They get an Env for the
// duration of one call, and the host commits or discards everything that
// happened during that call as a whole.
package chain

import (
	"encoding/binary"
	"errors"

	"golang.org/x/xerrors"
)

// Address identifies an account or an application escrow on the ledger.
type Address string

// IsZero returns true if the address is not set.
func (a Address) IsZero() bool {
	return a == ""
}

// AssetID identifies an asset held on the ledger. The native currency has
// the id NativeAsset.
type AssetID uint64

// NativeAsset is the ledger's own currency.
const NativeAsset AssetID = 0

// Transfer is a value transfer already verified by the host and committed
// together with the method call it accompanies.
type Transfer struct {
	Sender   Address
	Receiver Address
	Asset    AssetID
	Amount   uint64
}

var (
	// ErrNotOptedIn is returned when local state of an account is accessed
	// before the account opted into the application.
	ErrNotOptedIn = errors.New("account has not opted in")
	// ErrUnknownMethod is returned by contracts for methods they don't have.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrMissingArgument is returned when a method argument is absent.
	ErrMissingArgument = errors.New("missing argument")
	// ErrMissingTransfer is returned when a method needs a companion
	// transfer and none was bundled.
	ErrMissingTransfer = errors.New("missing companion transfer")
)

// Store is the key/value storage of an application, either its global
// state or the local state of one account.
type Store interface {
	// Get returns nil if the key is not set.
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

// Env is handed to a contract for the duration of a single call.
type Env interface {
	// Sender is the account that signed the call.
	Sender() Address
	// Creator is the account that created the application.
	Creator() Address
	// Now is the ledger timestamp in seconds, never decreasing between
	// calls.
	Now() uint64
	// Address is the escrow account of the application.
	Address() Address
	Global() Store
	// Local returns ErrNotOptedIn if addr is not registered with the
	// application.
	Local(addr Address) (Store, error)
	// Send pays from the application escrow.
	Send(to Address, asset AssetID, amount uint64) error
	// OptInAsset lets the escrow hold the given asset.
	OptInAsset(asset AssetID) error
}

// Uint64Bytes encodes v the way every uint64 argument and return value is
// encoded.
func Uint64Bytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

// BytesUint64 is the inverse of Uint64Bytes.
func BytesUint64(buf []byte) (uint64, error) {
	if len(buf) != 8 {
		return 0, xerrors.Errorf("need 8 bytes for an uint64, got %d", len(buf))
	}
	return binary.LittleEndian.Uint64(buf), nil
}
